// Package filename は音声ファイル名のテンプレート展開とサニタイズを行います。
package filename

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/Toocanzs/anki-voicevox/pkg/anki"
)

// DefaultTemplate は新しい設定で使われるテンプレートです。
const DefaultTemplate = "VOICEVOX_{{speaker}}_{{style}}_{{uid}}"

// MaxLength はファイル名の語幹の最大文字数です。
const MaxLength = 255

const (
	TokenUID      = "uid"
	TokenSpeaker  = "speaker"
	TokenStyle    = "style"
	TokenDeck     = "deck"
	TokenDeckFull = "deck-full"
	TokenDate     = "date"
	// TokenFieldPrefix の後ろにフィールド名を続けます (例: {{field:Expression}})。
	TokenFieldPrefix = "field:"
)

var (
	reToken   = regexp.MustCompile(`\{\{([^{}]*)\}\}`)
	reIllegal = regexp.MustCompile(`[<>:"/\\|?*]`)
)

// Values はテンプレートの展開に使う値です。
type Values struct {
	Speaker string
	Style   string
	Note    *anki.Note
	// Now がゼロ値なら現在時刻を使います。
	Now time.Time
	// UID がnilなら uuid.NewString を使います。{{uid}} が現れるたびに呼ばれます。
	UID func() string
}

func (v Values) uid() string {
	if v.UID != nil {
		return v.UID()
	}
	return uuid.NewString()
}

// Expand はプレースホルダーを展開します。未知のトークンは空文字になります。
func Expand(template string, v Values) string {
	now := v.Now
	if now.IsZero() {
		now = time.Now()
	}

	return reToken.ReplaceAllStringFunc(template, func(match string) string {
		token := strings.TrimSpace(reToken.FindStringSubmatch(match)[1])
		switch {
		case token == TokenUID:
			return v.uid()
		case token == TokenSpeaker:
			return v.Speaker
		case token == TokenStyle:
			return v.Style
		case token == TokenDeck:
			if v.Note == nil {
				return ""
			}
			return v.Note.DeckLeaf()
		case token == TokenDeckFull:
			if v.Note == nil {
				return ""
			}
			return v.Note.Deck
		case token == TokenDate:
			return now.Format(time.DateOnly)
		case strings.HasPrefix(token, TokenFieldPrefix):
			if v.Note == nil {
				return ""
			}
			value, _ := v.Note.Get(strings.TrimPrefix(token, TokenFieldPrefix))
			return value
		}
		return ""
	})
}

// Sanitize はファイル名に使えない文字を '_' に置き換え、前後の空白とドットを除き、MaxLength 文字に切り詰めます。
func Sanitize(stem string) string {
	stem = reIllegal.ReplaceAllString(stem, "_")
	stem = strings.TrimFunc(stem, func(r rune) bool {
		return unicode.IsSpace(r) || r == '.'
	})
	if runes := []rune(stem); len(runes) > MaxLength {
		stem = string(runes[:MaxLength])
	}
	return stem
}

// Render は展開とサニタイズを行い、拡張子を付けたファイル名を返します。
// 語幹が空になった場合は VOICEVOX_<uid> を使います。
func Render(template string, v Values, extension string) string {
	stem := Sanitize(Expand(template, v))
	if stem == "" {
		stem = "VOICEVOX_" + v.uid()
	}
	return stem + "." + strings.TrimPrefix(extension, ".")
}

// Validate は生成前にユーザーへ表示する警告を返します。
// 未知のトークンと、{{uid}} がない場合 (ジョブ間でファイル名が衝突し得る) を報告します。
// {{field:...}} がある場合はファイル名の長さの上限についても警告します。
func Validate(template string) []string {
	var warnings []string
	hasUID, hasField := false, false
	for _, m := range reToken.FindAllStringSubmatch(template, -1) {
		token := strings.TrimSpace(m[1])
		switch {
		case token == TokenUID:
			hasUID = true
		case token == TokenSpeaker, token == TokenStyle, token == TokenDeck, token == TokenDeckFull, token == TokenDate:
		case strings.HasPrefix(token, TokenFieldPrefix) && len(token) > len(TokenFieldPrefix):
			hasField = true
		default:
			warnings = append(warnings, fmt.Sprintf("未知のトークン {{%s}} は空文字に置き換えられます", token))
		}
	}
	if hasField {
		warnings = append(warnings, fmt.Sprintf("{{field:...}} の値が長いと、ファイル名が多くのファイルシステムの上限 (%dバイト) を超えて書き込みに失敗する可能性があります", MaxLength))
	}
	if !hasUID {
		warnings = append(warnings, "テンプレートに {{uid}} がありません。同じ値を持つノート間でファイル名が衝突する可能性があります")
	}
	return warnings
}
