package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/Toocanzs/anki-voicevox/pkg/config"
)

// ----------------------------------------------------------------------
// コマンド定義
// ----------------------------------------------------------------------

const usage = `使い方: anki-voicevox [-v] <コマンド> [オプション]

コマンド:
  speakers                      話者とスタイルの一覧を表示します
  preview                       選択中の話者でプレビュー音声を生成します
  generate -notes <file>        ノートの音声を一括生成します
  preset list                   プリセットの一覧を表示します
  preset save <name>            現在の設定をプリセットとして保存します
  preset rename <old> <new>     プリセットの名前を変更します
  preset delete <name>          プリセットを削除します
  preset load <name>            プリセットを現在の設定として読み込みます
`

// app はコマンド間で共有する実行時の状態です。
type app struct {
	env   *config.Env
	store *config.Store
	cfg   *config.Config
}

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"speakers": runSpeakers,
	"preview":  runPreview,
	"generate": runGenerate,
	"preset":   runPreset,
}

func main() {
	root := flag.NewFlagSet("anki-voicevox", flag.ContinueOnError)
	verbose := root.Bool("v", false, "デバッグログを出力します")
	root.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	if err := root.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	// ログ設定
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))

	if root.NArg() == 0 {
		root.Usage()
		os.Exit(2)
	}
	cmd, ok := commands[root.Arg(0)]
	if !ok {
		slog.Error("不明なコマンドです", "command", root.Arg(0))
		root.Usage()
		os.Exit(2)
	}

	// 実行コンテキスト (Ctrl+C でチャンクの区切りで中断)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := newApp()
	if err != nil {
		slog.Error("設定の読み込みに失敗しました", "error", err)
		os.Exit(1)
	}

	if err := cmd(ctx, a, root.Args()[1:]); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			slog.Error("コマンドの実行に失敗しました", "command", root.Arg(0), "error", err)
		}
		os.Exit(1)
	}
}

func newApp() (*app, error) {
	env := config.LoadEnv()
	store := config.NewStore(env.ConfigPath)
	cfg, err := store.Load()
	if err != nil {
		return nil, err
	}
	slog.Debug("設定を読み込みました", "file", store.Path(), "api_url", env.APIURL)
	return &app{env: env, store: store, cfg: cfg}, nil
}

// save は設定全体を一度に保存します。
func (a *app) save() error {
	if err := a.store.Save(a.cfg); err != nil {
		return err
	}
	slog.Debug("設定を保存しました", "file", a.store.Path())
	return nil
}

// dataDir はプレビュー音声などを置くディレクトリです。
func (a *app) dataDir() string {
	return filepath.Dir(a.store.Path())
}
