package parser

import (
	"regexp"
)

// Normalizer はノートのフィールド文字列を音声合成用のテキストに変換するインターフェースです。
type Normalizer interface {
	Normalize(raw string) string
}

var (
	reHTMLTag    = regexp.MustCompile(htmlTagPattern)
	reHTMLEntity = regexp.MustCompile(htmlEntityPattern)
	reBracket    = regexp.MustCompile(bracketPattern)
	reSpace      = regexp.MustCompile(spacePattern)
)

// TextNormalizer はHTMLや注記、スペースを取り除く Normalizer の実装です。
type TextNormalizer struct {
	IgnoreBrackets bool
}

// NewNormalizer は TextNormalizer を生成します。
func NewNormalizer(ignoreBrackets bool) *TextNormalizer {
	return &TextNormalizer{IgnoreBrackets: ignoreBrackets}
}

// Normalize は次の順に処理します。
//  1. HTMLコメントとタグの除去
//  2. HTMLエンティティの除去
//  3. IgnoreBrackets が有効なら [...] の除去
//  4. スペースの除去 (日本語は分かち書きをせず、スペースは合成品質を下げる)
//
// 除去の結果として新たなタグ等が現れることがあるため、結果が変わらなくなるまで繰り返します。
func (n *TextNormalizer) Normalize(raw string) string {
	text := raw
	for i := 0; i < maxNormalizePasses; i++ {
		next := n.pass(text)
		if next == text {
			break
		}
		text = next
	}
	return text
}

func (n *TextNormalizer) pass(text string) string {
	text = reHTMLTag.ReplaceAllString(text, "")
	text = reHTMLEntity.ReplaceAllString(text, "")
	if n.IgnoreBrackets {
		text = reBracket.ReplaceAllString(text, "")
	}
	return reSpace.ReplaceAllString(text, "")
}
