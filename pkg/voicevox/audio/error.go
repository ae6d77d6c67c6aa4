package audio

import "fmt"

// ErrInvalidWAVHeader はWAVデータが短すぎる、またはRIFF/WAVEヘッダーを持たないことを示します。
type ErrInvalidWAVHeader struct {
	Index   int // エラーが発生したクリップの序数 (1始まり)
	Details string
}

func (e *ErrInvalidWAVHeader) Error() string {
	return fmt.Sprintf("WAVデータ #%d のヘッダーが無効です: %s", e.Index, e.Details)
}

// ErrArchiveMismatch は返却されたアーカイブの内容が送信したクエリと対応しないことを示します。
type ErrArchiveMismatch struct {
	Expected int
	Actual   int
	Details  string
}

func (e *ErrArchiveMismatch) Error() string {
	return fmt.Sprintf("アーカイブのエントリが送信クエリと一致しません (期待 %d 件, 実際 %d 件): %s", e.Expected, e.Actual, e.Details)
}
