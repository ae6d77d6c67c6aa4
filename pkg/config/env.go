package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Toocanzs/anki-voicevox/pkg/voicevox/api"
)

// Env は環境変数から読み込む実行時の設定です。これらは設定ファイルには保存されません。
type Env struct {
	APIURL           string
	ConfigPath       string
	FFmpegPath       string
	FFmpegDir        string
	AutoInstall      bool
	RequestTimeout   time.Duration
	SynthesisTimeout time.Duration
}

// LoadEnv はカレントディレクトリの .env を読み込み (存在しなければ無視)、既定値を適用した Env を返します。
func LoadEnv() *Env {
	_ = godotenv.Load()

	dataDir := defaultDataDir()
	env := &Env{
		APIURL:           getEnv("VOICEVOX_API_URL", api.DefaultAPIURL),
		ConfigPath:       getEnv("VOICEVOX_CONFIG", filepath.Join(dataDir, "config.json")),
		FFmpegPath:       getEnv("VOICEVOX_FFMPEG_PATH", ""),
		FFmpegDir:        getEnv("VOICEVOX_FFMPEG_DIR", dataDir),
		AutoInstall:      getEnvBool("VOICEVOX_FFMPEG_AUTO_INSTALL", true),
		RequestTimeout:   getEnvDuration("VOICEVOX_TIMEOUT", api.DefaultRequestTimeout),
		SynthesisTimeout: getEnvDuration("VOICEVOX_SYNTHESIS_TIMEOUT", api.DefaultSynthesisTimeout),
	}
	return env
}

func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "anki-voicevox")
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("環境変数の値を時間として解釈できません。既定値を使用します", "key", key, "value", v, "default", def.String())
		return def
	}
	return d
}
