package voicevox

import (
	"fmt"

	"github.com/Toocanzs/anki-voicevox/pkg/anki"
)

// ----------------------------------------------------------------------
// 事前検証エラー
// ----------------------------------------------------------------------

// ErrEmptySelection はノートが1件も選択されていないことを示します。
type ErrEmptySelection struct{}

func (e *ErrEmptySelection) Error() string {
	return "ノートが選択されていません"
}

// ErrSameField は読み上げ元と書き込み先が同じフィールドであることを示します。
type ErrSameField struct {
	Field string
}

func (e *ErrSameField) Error() string {
	return fmt.Sprintf("読み上げ元と書き込み先が同じフィールド '%s' です。読み上げ元の内容が上書きされてしまいます", e.Field)
}

// ErrFieldNotCommon は指定されたフィールドが選択された全てのノートにはないことを示します。
type ErrFieldNotCommon struct {
	Field  string
	Common []string
}

func (e *ErrFieldNotCommon) Error() string {
	return fmt.Sprintf("フィールド '%s' は選択された全てのノートに存在しません (共通フィールド: %v)", e.Field, e.Common)
}

// ----------------------------------------------------------------------
// バッチ処理エラー (engine.go で利用)
// ----------------------------------------------------------------------

// ErrBatchAborted はチャンクの処理中にバッチが中断されたことを示します。
// 中断前に書き込まれたノートはそのまま残ります。Remaining を指定して再実行できます。
type ErrBatchAborted struct {
	Chunk     int // 0始まり
	Completed []anki.NoteID
	Remaining []anki.NoteID
	Cause     error
}

func (e *ErrBatchAborted) Error() string {
	return fmt.Sprintf("チャンク %d の処理中に音声生成を中断しました (完了 %d 件、未処理 %d 件): %v",
		e.Chunk+1, len(e.Completed), len(e.Remaining), e.Cause)
}

func (e *ErrBatchAborted) Unwrap() error { return e.Cause }
