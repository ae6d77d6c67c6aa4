package transcode

import "time"

// Codec は変換先の形式です。
type Codec string

const (
	CodecMP3  Codec = "mp3"
	CodecOpus Codec = "opus"
	// CodecWAV は変換しない場合の形式です。
	CodecWAV Codec = "wav"
)

// Extension はファイル拡張子を返します。
func (c Codec) Extension() string { return string(c) }

const (
	// DefaultReleaseURL は静的ビルドされたffmpegの配布情報を返すAPIです。
	DefaultReleaseURL = "https://ffbinaries.com/api/v1/version/6.1"

	DefaultDownloadTimeout = 5 * time.Minute
)

// ffmpeg の出力オプション
var codecArgs = map[Codec]map[string]interface{}{
	CodecMP3:  {"f": "mp3", "qscale:a": 3},
	CodecOpus: {"f": "opus", "c:a": "libopus", "b:a": "64k"},
}
