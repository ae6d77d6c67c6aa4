package voicevox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Toocanzs/anki-voicevox/pkg/anki"
	"github.com/Toocanzs/anki-voicevox/pkg/transcode"
	"github.com/Toocanzs/anki-voicevox/pkg/voicevox/api"
	"github.com/Toocanzs/anki-voicevox/pkg/voicevox/parser"
	"github.com/Toocanzs/anki-voicevox/pkg/voicevox/speaker"
)

// ----------------------------------------------------------------------
// ドライラン
// ----------------------------------------------------------------------

// dryRunExecutor は EngineExecutor を満たし、合成や書き込みを行わずに処理内容だけを記録します。
type dryRunExecutor struct {
	coll      anki.Collection
	chunkSize int
}

// Execute はチャンクの分け方と正規化後のテキストをログに出力します。
func (d *dryRunExecutor) Execute(ctx context.Context, req Request, opts ...ExecuteOption) (*Result, error) {
	if len(req.NoteIDs) == 0 {
		return nil, &ErrEmptySelection{}
	}
	if req.SourceField == req.DestinationField {
		return nil, &ErrSameField{Field: req.SourceField}
	}

	normalizer := parser.NewNormalizer(req.IgnoreBrackets)
	for i, chunk := range ChunkIDs(req.NoteIDs, d.chunkSize) {
		for _, id := range chunk {
			note, err := d.coll.GetNote(ctx, id)
			if err != nil {
				return nil, err
			}
			raw, _ := note.Get(req.SourceField)
			slog.InfoContext(ctx, "ドライラン: 音声生成はスキップされました",
				"chunk", i+1, "note_id", id, "text", normalizer.Normalize(raw))
		}
	}
	return &Result{Total: len(req.NoteIDs), DryRun: true}, nil
}

// ----------------------------------------------------------------------
// Factory 関数
// ----------------------------------------------------------------------

// SessionConfig はセッションの組み立てに必要な設定です。
type SessionConfig struct {
	APIURL           string
	RequestTimeout   time.Duration
	SynthesisTimeout time.Duration

	// Collection は generate でのみ必要です。
	Collection anki.Collection
	Transcoder transcode.Transcoder
	Engine     EngineConfig

	DryRun bool
}

// Session はエンジンへの接続と、セッション中に一度だけ取得する話者一覧をまとめたものです。
type Session struct {
	Client   *api.Client
	Speakers *speaker.SpeakerData
	Engine   *Engine
	Executor EngineExecutor
}

// NewSession は、VOICEVOXエンジンへの接続確認と話者データのロードを行い、
// EngineExecutor を実装した具象型を組み立てて返します。
// エンジンに到達できない場合は、それ以上の処理を行わずにエラーを返します。
func NewSession(ctx context.Context, cfg SessionConfig) (*Session, error) {
	if cfg.APIURL == "" {
		cfg.APIURL = api.DefaultAPIURL
	}

	// 1. クライアントの初期化と疎通確認
	client := api.NewClient(cfg.APIURL, cfg.RequestTimeout, api.WithSynthesisTimeout(cfg.SynthesisTimeout))
	if err := client.Probe(ctx); err != nil {
		return nil, fmt.Errorf("VOICEVOXエンジン (%s) に接続できません。エンジンが起動しているか確認してください: %w", cfg.APIURL, err)
	}

	// 2. 話者データのロード
	slog.InfoContext(ctx, "VOICEVOX話者スタイルデータをロード中...")
	speakerData, err := speaker.LoadSpeakers(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("話者データのロードに失敗しました: %w", err)
	}
	slog.InfoContext(ctx, "VOICEVOX話者スタイルデータのロード完了。", "speakers", len(speakerData.Speakers))

	// 3. Engineの組み立て
	engine := NewEngine(client, cfg.Collection, cfg.Transcoder, cfg.Engine)

	var executor EngineExecutor = engine
	if cfg.DryRun {
		slog.InfoContext(ctx, "ドライランが有効です。音声は生成されません。")
		executor = &dryRunExecutor{coll: cfg.Collection, chunkSize: engine.config.ChunkSize}
	}

	slog.DebugContext(ctx, "VOICEVOX Executorの初期化が完了しました。",
		"chunk_size", engine.config.ChunkSize,
		"max_parallel_queries", engine.config.MaxParallelQueries,
		"chunk_timeout", engine.config.ChunkTimeout.String())

	return &Session{
		Client:   client,
		Speakers: speakerData,
		Engine:   engine,
		Executor: executor,
	}, nil
}
