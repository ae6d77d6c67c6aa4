package speaker

import "fmt"

// ErrNotFound は指定された話者またはスタイルがスナップショットに存在しないことを示します。
type ErrNotFound struct {
	Speaker string
	Style   string
}

func (e *ErrNotFound) Error() string {
	if e.Style == "" {
		return fmt.Sprintf("話者 '%s' が見つかりません", e.Speaker)
	}
	return fmt.Sprintf("話者 '%s' のスタイル '%s' が見つかりません", e.Speaker, e.Style)
}

// ErrNoSpeakers はエンジンが話者を1人も返さなかったことを示します。
type ErrNoSpeakers struct{}

func (e *ErrNoSpeakers) Error() string {
	return "VOICEVOXエンジンから話者一覧を取得できませんでした"
}
