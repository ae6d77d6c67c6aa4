package parser

const (
	// HTMLのコメントとタグ
	htmlTagPattern = `(?s)(<!--.*?-->|<[^>]*>)`
	// HTMLエンティティ参照 (&nbsp; &#12354; など)
	htmlEntityPattern = `&[^;\s]+;`
	// 読みやピッチアクセント情報の注記 (例: 聞[き,きく;h])
	bracketPattern = `\[.*?\]`
	// 半角スペースと全角スペース
	spacePattern = `[ 　]`

	// maxNormalizePasses は除去によって新たな一致が生じた場合の再適用回数の上限です。
	maxNormalizePasses = 8
)
