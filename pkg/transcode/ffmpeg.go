package transcode

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Transcoder はWAVデータを別の形式に変換します。
// ok が false の場合、変換は利用できず呼び出し側は元のWAVを使います。
type Transcoder interface {
	Transcode(ctx context.Context, wav []byte, codec Codec) (data []byte, ok bool)
}

// Config は FFmpeg の設定です。
type Config struct {
	// BinaryPath は明示的に指定された ffmpeg のパスです (空なら探索)。
	BinaryPath string
	// InstallDir は自動インストール先、および既存バイナリを探すディレクトリです。
	InstallDir string
	// AutoInstall が true なら、見つからない場合に一度だけダウンロードを試みます。
	AutoInstall bool
	Installer   *Installer
}

// FFmpeg は外部の ffmpeg バイナリに標準入出力で音声を通す Transcoder です。
type FFmpeg struct {
	cfg Config

	once     sync.Once
	resolved string
}

// NewFFmpeg は FFmpeg を生成します。バイナリの探索は最初の変換時に行われます。
func NewFFmpeg(cfg Config) *FFmpeg {
	if cfg.AutoInstall && cfg.Installer == nil {
		cfg.Installer = NewInstaller(DefaultReleaseURL, DefaultDownloadTimeout)
	}
	return &FFmpeg{cfg: cfg}
}

// BinaryName は実行環境での ffmpeg の実行ファイル名です。
func BinaryName() string {
	if runtime.GOOS == "windows" {
		return "ffmpeg.exe"
	}
	return "ffmpeg"
}

// Available はバイナリを解決し、変換が可能かを返します。
// インストールはセッション中に一度だけ試み、失敗しても変換が無効になるだけです。
func (f *FFmpeg) Available(ctx context.Context) bool {
	f.once.Do(func() {
		f.resolved = f.resolve(ctx)
		if f.resolved == "" {
			slog.WarnContext(ctx, "ffmpeg が見つからないため、音声はWAVのまま保存されます")
		} else {
			slog.DebugContext(ctx, "ffmpeg を使用します", "path", f.resolved)
		}
	})
	return f.resolved != ""
}

func (f *FFmpeg) resolve(ctx context.Context) string {
	if f.cfg.BinaryPath != "" && isFile(f.cfg.BinaryPath) {
		return f.cfg.BinaryPath
	}
	if f.cfg.InstallDir != "" {
		local := filepath.Join(f.cfg.InstallDir, BinaryName())
		if isFile(local) {
			return local
		}
	}
	if p, err := exec.LookPath("ffmpeg"); err == nil {
		return p
	}
	if !f.cfg.AutoInstall || f.cfg.InstallDir == "" {
		return ""
	}

	p, err := f.cfg.Installer.Install(ctx, f.cfg.InstallDir)
	if err != nil {
		slog.WarnContext(ctx, "ffmpeg の自動インストールに失敗しました", "error", err)
		return ""
	}
	return p
}

// Transcode はWAVデータを ffmpeg に通して codec の形式に変換します。
func (f *FFmpeg) Transcode(ctx context.Context, wav []byte, codec Codec) ([]byte, bool) {
	args, supported := codecArgs[codec]
	if !supported || !f.Available(ctx) {
		return nil, false
	}

	var out, errOut bytes.Buffer
	stream := ffmpeg.Input("pipe:").
		Output("pipe:", ffmpeg.KwArgs(args)).
		GlobalArgs("-nostats", "-hide_banner")
	// ctx が終了したらプロセスを停止する
	stream.Context = ctx
	err := stream.
		OverWriteOutput().
		WithInput(bytes.NewReader(wav)).
		WithOutput(&out, &errOut).
		SetFfmpegPath(f.resolved).
		Silent(true).
		Run()
	if err != nil || out.Len() == 0 {
		slog.DebugContext(ctx, "ffmpeg による変換に失敗しました。WAVを使用します",
			"codec", codec, "error", err, "stderr", errOut.String())
		return nil, false
	}
	return out.Bytes(), true
}

func isFile(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}
