package api

import (
	"fmt"
)

// ErrAPINetwork はAPI呼び出しにおける通信エラーやリトライ後の最終失敗を示すカスタムエラー型です。
type ErrAPINetwork struct {
	Endpoint   string
	WrappedErr error
}

func (e *ErrAPINetwork) Error() string {
	return fmt.Sprintf("API通信エラー (%s): %v", e.Endpoint, e.WrappedErr)
}

func (e *ErrAPINetwork) Unwrap() error { return e.WrappedErr }

// ErrInvalidJSON はAPI応答やデータが期待されるJSON形式でなかったことを示します。
type ErrInvalidJSON struct {
	Details    string
	WrappedErr error
}

func (e *ErrInvalidJSON) Error() string {
	return fmt.Sprintf("不正なJSONデータ: %s (詳細: %v)", e.Details, e.WrappedErr)
}

func (e *ErrInvalidJSON) Unwrap() error { return e.WrappedErr }

// ErrAudioQuery は /audio_query の失敗を示します。
// バッチ処理を中断させるため、原因となったテキストと生の応答ボディを保持します。
type ErrAudioQuery struct {
	Text       string
	Body       string
	WrappedErr error
}

func (e *ErrAudioQuery) Error() string {
	// 応答ボディが長すぎる場合は切り詰める
	bodyDisplay := e.Body
	if len(bodyDisplay) > 200 {
		bodyDisplay = bodyDisplay[:200] + "..."
	}
	if bodyDisplay == "" {
		bodyDisplay = "None"
	}
	return fmt.Sprintf("次のテキストの音声クエリを生成できませんでした: `%s`\n応答: %s\n%v", e.Text, bodyDisplay, e.WrappedErr)
}

func (e *ErrAudioQuery) Unwrap() error { return e.WrappedErr }

// ErrNilQuery は multi_synthesis に空のクエリが渡されたことを示します。
type ErrNilQuery struct {
	Index int
}

func (e *ErrNilQuery) Error() string {
	return fmt.Sprintf("multi_synthesis に空のオーディオクエリが渡されました (インデックス %d)", e.Index)
}
