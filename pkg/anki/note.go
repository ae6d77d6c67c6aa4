package anki

import (
	"fmt"
	"strings"
)

// NoteID はホストのコレクション内でノートを識別する値です。
type NoteID int64

// Field はノートの1フィールドです。ノートタイプで定義された順序を保持します。
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Note はコレクションのノートです。Deck は最初のカードが属するデッキの完全名 (A::B::C) です。
type Note struct {
	ID     NoteID  `json:"id"`
	Deck   string  `json:"deck"`
	Fields []Field `json:"fields"`
}

// ErrFieldNotFound はノートに指定のフィールドがないことを示します。
type ErrFieldNotFound struct {
	NoteID NoteID
	Field  string
}

func (e *ErrFieldNotFound) Error() string {
	return fmt.Sprintf("ノート %d にフィールド '%s' がありません", e.NoteID, e.Field)
}

// Get はフィールドの値を返します。
func (n *Note) Get(name string) (string, bool) {
	for _, f := range n.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Set は既存のフィールドの値を書き換えます。
func (n *Note) Set(name, value string) error {
	for i := range n.Fields {
		if n.Fields[i].Name == name {
			n.Fields[i].Value = value
			return nil
		}
	}
	return &ErrFieldNotFound{NoteID: n.ID, Field: name}
}

// FieldNames はフィールド名を定義順に返します。
func (n *Note) FieldNames() []string {
	names := make([]string, len(n.Fields))
	for i, f := range n.Fields {
		names[i] = f.Name
	}
	return names
}

// DeckLeaf はデッキ名の最下層の名前を返します (A::B::C → C)。
func (n *Note) DeckLeaf() string {
	parts := strings.Split(n.Deck, "::")
	return parts[len(parts)-1]
}

func (n *Note) clone() *Note {
	c := *n
	c.Fields = append([]Field(nil), n.Fields...)
	return &c
}

// SoundTag はフィールドに書き込むインライン音声の参照を返します。
func SoundTag(filename string) string {
	return "[sound:" + filename + "]"
}

// ApplyAudio は追記モードなら既存の値の後ろに、そうでなければ置き換えて音声参照を書き込みます。
func ApplyAudio(current, tag string, appendAudio bool) string {
	if appendAudio {
		return current + tag
	}
	return tag
}
