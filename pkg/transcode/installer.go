package transcode

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"time"

	"github.com/shouni/go-http-kit/pkg/httpkit"
)

// Installer は配布APIから静的ビルドの ffmpeg をダウンロードして展開します。
type Installer struct {
	client     *httpkit.Client
	releaseURL string
	platform   string
}

// releaseInfo は配布APIの応答のうち必要な部分です。
type releaseInfo struct {
	Bin map[string]map[string]string `json:"bin"`
}

// NewInstaller は Installer を生成します。
func NewInstaller(releaseURL string, timeout time.Duration) *Installer {
	return &Installer{
		client:     httpkit.New(timeout),
		releaseURL: releaseURL,
		platform:   platformKey(runtime.GOOS, runtime.GOARCH),
	}
}

// platformKey は配布APIのプラットフォーム名を返します。非対応なら空文字です。
func platformKey(goos, goarch string) string {
	switch goos {
	case "windows":
		return "windows-64"
	case "darwin":
		return "osx-64"
	case "linux":
		if goarch == "arm64" {
			return "linux-arm64"
		}
		return "linux-64"
	}
	return ""
}

// Install は dir に ffmpeg を展開し、そのパスを返します。
func (i *Installer) Install(ctx context.Context, dir string) (string, error) {
	if i.platform == "" {
		return "", fmt.Errorf("このプラットフォームには対応していません (%s/%s)", runtime.GOOS, runtime.GOARCH)
	}

	// 1. ダウンロードURLの取得
	body, err := i.client.FetchBytes(ctx, i.releaseURL)
	if err != nil {
		return "", fmt.Errorf("配布情報の取得に失敗しました: %w", err)
	}
	var info releaseInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return "", fmt.Errorf("配布情報のデコードに失敗しました: %w", err)
	}
	downloadURL := info.Bin[i.platform]["ffmpeg"]
	if downloadURL == "" {
		return "", fmt.Errorf("プラットフォーム %s の ffmpeg が配布されていません", i.platform)
	}

	// 2. ZIPのダウンロード (一時ファイルへストリーミング)
	slog.InfoContext(ctx, "ffmpeg をダウンロードしています", "url", downloadURL)
	archivePath, err := i.download(ctx, downloadURL, dir)
	if err != nil {
		return "", fmt.Errorf("ffmpeg のダウンロードに失敗しました: %w", err)
	}
	defer os.Remove(archivePath)

	// 3. 展開と実行権限の付与
	target := filepath.Join(dir, BinaryName())
	if err := extractBinaryFile(archivePath, BinaryName(), target); err != nil {
		return "", err
	}
	slog.InfoContext(ctx, "ffmpeg をインストールしました", "path", target)
	return target, nil
}

// download はアーカイブを dir 内の一時ファイルに書き出し、そのパスを返します。
func (i *Installer) download(ctx context.Context, downloadURL, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := i.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("HTTPステータスコードエラー: %d", resp.StatusCode)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(dir, "ffmpeg-*.zip")
	if err != nil {
		return "", err
	}
	n, err := io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	slog.DebugContext(ctx, "ffmpeg アーカイブをダウンロードしました", "bytes", n)
	return tmp.Name(), nil
}

func extractBinaryFile(archivePath, name, target string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("ffmpeg アーカイブの読み込みに失敗しました: %w", err)
	}
	defer reader.Close()
	return extractFrom(&reader.Reader, name, target)
}

func extractFrom(reader *zip.Reader, name, target string) error {
	for _, f := range reader.File {
		if path.Base(f.Name) != name || f.FileInfo().IsDir() {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}

		rc, err := f.Open()
		if err != nil {
			return err
		}
		defer rc.Close()

		out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0755)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, rc); err != nil {
			out.Close()
			return err
		}
		if err := out.Close(); err != nil {
			return err
		}
		// 既存ファイルを上書きした場合は権限が変わらないため明示的に付与する
		return os.Chmod(target, 0755)
	}
	return fmt.Errorf("アーカイブ内に %s が見つかりません", name)
}
