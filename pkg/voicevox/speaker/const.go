package speaker

// ----------------------------------------------------------------------
// 既定の話者・スタイル
// ----------------------------------------------------------------------

// 新しい設定 (Default プリセット) で使われる話者とスタイルの名前です。
const (
	DefaultSpeakerName = "四国めたん"
	DefaultStyleName   = "ノーマル"
)
