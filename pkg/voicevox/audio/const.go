package audio

// ----------------------------------------------------------------------
// WAV ファイル定数
// ----------------------------------------------------------------------

const (
	// RIFF 構造の必須サイズ定数
	RiffChunkIDSize   = 4 // "RIFF" チャンクIDのサイズ
	RiffChunkSizeSize = 4 // ファイルサイズフィールドのサイズ
	WaveIDSize        = 4 // "WAVE" 識別子のサイズ
)

const (
	WavRiffHeaderSize  = RiffChunkIDSize + RiffChunkSizeSize + WaveIDSize // RIFFヘッダーの合計サイズ (12バイト)
	WavTotalHeaderSize = 44
)

// ----------------------------------------------------------------------
// multi_synthesis アーカイブ定数
// ----------------------------------------------------------------------

const (
	// ClipExtension はアーカイブ内の各エントリの拡張子です。
	ClipExtension = ".wav"
	// ClipNameFormat はエントリ名の書式です (1始まり、4桁ゼロ埋め)。
	ClipNameFormat = "%04d" + ClipExtension
)
