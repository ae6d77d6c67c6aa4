package voicevox

import "time"

// ----------------------------------------------------------------------
// エンジン処理定数
// ----------------------------------------------------------------------

const (
	// DefaultChunkSize は1回の /multi_synthesis にまとめるノート数です。
	DefaultChunkSize = 4
	// DefaultMaxParallelQueries が 1 の場合、オーディオクエリは順番に生成されます。
	DefaultMaxParallelQueries = 1
	DefaultChunkTimeout       = 300 * time.Second
)

// PreviewFilename はプレビュー音声の保存先ファイル名です。
const PreviewFilename = "VOICEVOX_preview.wav"

// PreviewSentences はプレビューで読み上げる文の候補です。
var PreviewSentences = []string{
	"こんにちは、これはテスト文章です。",
	"ＤＶＤの再生ボタンを押して、書斎に向かった。",
	"さてと 、 ご馳走様でした",
	"真似しないでくれる？",
	"な 、 なんだよ ？　 テンション高いな",
}
