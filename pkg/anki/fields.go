package anki

import (
	"context"
	"fmt"
	"strings"
)

// ErrNoCommonFields は選択されたノートに共通のフィールドがないことを示します。
type ErrNoCommonFields struct{}

func (e *ErrNoCommonFields) Error() string {
	return "選択されたノートに共通のフィールドがありません。異なるノートタイプを選択していないか確認してください"
}

// ErrSingleCommonField は共通フィールドが1つしかなく、音声の書き込み先が残らないことを示します。
type ErrSingleCommonField struct {
	Field string
}

func (e *ErrSingleCommonField) Error() string {
	return fmt.Sprintf("選択されたノートの共通フィールドは '%s' の1つだけです。読み上げ元を上書きせずに音声を書き込む先がありません", e.Field)
}

// CommonFields は全てのノートに共通するフィールド名を、最初のノートの定義順で返します。
func CommonFields(ctx context.Context, coll Collection, ids []NoteID) ([]string, error) {
	var common []string
	for i, id := range ids {
		note, err := coll.GetNote(ctx, id)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			common = note.FieldNames()
			continue
		}
		names := make(map[string]bool, len(note.Fields))
		for _, name := range note.FieldNames() {
			names[name] = true
		}
		kept := common[:0]
		for _, name := range common {
			if names[name] {
				kept = append(kept, name)
			}
		}
		common = kept
	}
	return common, nil
}

// CheckCommonFields は共通フィールドが2つ以上あることを確認します。
func CheckCommonFields(common []string) error {
	switch len(common) {
	case 0:
		return &ErrNoCommonFields{}
	case 1:
		return &ErrSingleCommonField{Field: common[0]}
	}
	return nil
}

// DefaultFields は読み上げ元と書き込み先の初期値を決めます。
// 前回の値があればそれを、なければ "expression"/"sentence" と "audio" を大文字小文字を無視して探します。
// どれにも一致しなければ先頭のフィールドです。
func DefaultFields(common []string, lastSource, lastDestination string) (source, destination string) {
	if len(common) == 0 {
		return "", ""
	}
	source, destination = common[0], common[0]
	for _, field := range common {
		lower := strings.ToLower(field)
		if lastSource == "" {
			if lower == "expression" || lower == "sentence" {
				source = field
			}
		} else if field == lastSource {
			source = field
		}

		if lastDestination == "" {
			if lower == "audio" {
				destination = field
			}
		} else if field == lastDestination {
			destination = field
		}
	}
	return source, destination
}
