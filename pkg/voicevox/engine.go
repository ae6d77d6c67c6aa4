package voicevox

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Toocanzs/anki-voicevox/pkg/anki"
	"github.com/Toocanzs/anki-voicevox/pkg/filename"
	"github.com/Toocanzs/anki-voicevox/pkg/transcode"
	"github.com/Toocanzs/anki-voicevox/pkg/voicevox/api"
	"github.com/Toocanzs/anki-voicevox/pkg/voicevox/audio"
	"github.com/Toocanzs/anki-voicevox/pkg/voicevox/parser"
)

type Engine struct {
	client     SynthesisClient
	coll       anki.Collection
	transcoder transcode.Transcoder
	config     EngineConfig

	// uid は {{uid}} の生成関数です (nil なら uuid)。
	uid func() string
	// pick はプレビュー文の選択に使います。
	pick func(n int) int
}

type EngineConfig struct {
	ChunkSize          int
	MaxParallelQueries int
	// ChunkTimeout はチャンク1つ分 (クエリ生成から書き込みまで) の制限時間です。
	ChunkTimeout time.Duration
}

// ----------------------------------------------------------------------
// Executeメソッド用のオプション定義 (Functional Options Pattern)
// ----------------------------------------------------------------------

// ExecuteConfig は Execute メソッドの実行中に適用されるオプション設定を保持する
type ExecuteConfig struct {
	Progress ProgressFunc
}

// ExecuteOption はオプションを適用するための関数シグネチャ
type ExecuteOption func(*ExecuteConfig)

func newExecuteConfig() *ExecuteConfig {
	return &ExecuteConfig{
		Progress: func(int, int, string) {},
	}
}

// WithProgress は進捗の通知先を指定します。
func WithProgress(fn ProgressFunc) ExecuteOption {
	return func(cfg *ExecuteConfig) {
		if fn != nil {
			cfg.Progress = fn
		}
	}
}

// NewEngine は新しい Engine インスタンスを作成し、依存関係を注入します。
// transcoder が nil の場合、音声は常にWAVで保存されます。
func NewEngine(client SynthesisClient, coll anki.Collection, transcoder transcode.Transcoder, config EngineConfig) *Engine {
	if config.ChunkSize <= 0 {
		config.ChunkSize = DefaultChunkSize
	}
	if config.MaxParallelQueries <= 0 {
		config.MaxParallelQueries = DefaultMaxParallelQueries
	}
	if config.ChunkTimeout <= 0 {
		config.ChunkTimeout = DefaultChunkTimeout
	}

	return &Engine{
		client:     client,
		coll:       coll,
		transcoder: transcoder,
		config:     config,
		pick:       rand.IntN,
	}
}

// ----------------------------------------------------------------------
// ヘルパー関数
// ----------------------------------------------------------------------

// ChunkIDs はIDを順序を保ったまま size 件ずつに分割します。最後のチャンクは短くなることがあります。
func ChunkIDs(ids []anki.NoteID, size int) [][]anki.NoteID {
	if size <= 0 {
		size = DefaultChunkSize
	}
	chunks := make([][]anki.NoteID, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// ValidateRequest は生成を始める前にフィールドの指定を検証します。
func ValidateRequest(ctx context.Context, coll anki.Collection, req Request) error {
	if len(req.NoteIDs) == 0 {
		return &ErrEmptySelection{}
	}
	if req.SourceField == req.DestinationField {
		return &ErrSameField{Field: req.SourceField}
	}

	common, err := anki.CommonFields(ctx, coll, req.NoteIDs)
	if err != nil {
		return fmt.Errorf("ノートのフィールドの取得に失敗しました: %w", err)
	}
	if err := anki.CheckCommonFields(common); err != nil {
		return err
	}
	for _, field := range []string{req.SourceField, req.DestinationField} {
		if !slices.Contains(common, field) {
			return &ErrFieldNotCommon{Field: field, Common: common}
		}
	}
	return nil
}

// progressReporter は進捗通知をまとめます。並列のクエリ生成からも呼ばれます。
type progressReporter struct {
	mu    sync.Mutex
	fn    ProgressFunc
	done  int
	total int
}

func (p *progressReporter) status(status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fn(p.done, p.total, status)
}

func (p *progressReporter) advance(status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
	p.fn(p.done, p.total, status)
}

// ----------------------------------------------------------------------
// メイン処理 (Execute メソッド)
// ----------------------------------------------------------------------

// Execute は選択されたノートをチャンクに分け、チャンクごとにクエリ生成、一括合成、書き込みを行います。
// 失敗した時点で *ErrBatchAborted を返して中断します。書き込み済みのノートは元に戻しません。
func (e *Engine) Execute(ctx context.Context, req Request, opts ...ExecuteOption) (*Result, error) {
	cfg := newExecuteConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if len(req.NoteIDs) == 0 {
		return nil, &ErrEmptySelection{}
	}
	if req.SourceField == req.DestinationField {
		return nil, &ErrSameField{Field: req.SourceField}
	}
	if req.FilenameTemplate == "" {
		req.FilenameTemplate = filename.DefaultTemplate
	}

	chunks := ChunkIDs(req.NoteIDs, e.config.ChunkSize)
	normalizer := parser.NewNormalizer(req.IgnoreBrackets)
	result := &Result{Total: len(req.NoteIDs)}
	progress := &progressReporter{fn: cfg.Progress, total: len(req.NoteIDs)}
	progress.status("")

	slog.InfoContext(ctx, "音声生成バッチ処理開始",
		"notes", len(req.NoteIDs),
		"chunks", len(chunks),
		"speaker", req.Selection.Speaker.Name,
		"style", req.Selection.Style.Name,
		"style_id", req.Selection.StyleID())

	for i, chunk := range chunks {
		if err := e.processChunk(ctx, req, normalizer, chunk, result, progress); err != nil {
			aborted := &ErrBatchAborted{
				Chunk:     i,
				Completed: result.CompletedIDs(),
				Remaining: slices.Clone(req.NoteIDs[len(result.Notes):]),
				Cause:     err,
			}
			if len(result.Notes) > 0 {
				if rerr := e.coll.Refresh(context.WithoutCancel(ctx)); rerr != nil {
					slog.WarnContext(ctx, "中断後のコレクション更新通知に失敗しました", "error", rerr)
				}
			}
			return result, aborted
		}
		slog.DebugContext(ctx, "チャンクの処理が完了しました", "chunk", i+1, "done", len(result.Notes), "total", result.Total)
	}

	if err := e.coll.Refresh(ctx); err != nil {
		return result, fmt.Errorf("コレクションの更新通知に失敗しました: %w", err)
	}
	slog.InfoContext(ctx, "音声生成バッチ処理が完了しました", "notes", len(result.Notes))
	return result, nil
}

// processChunk はチャンク1つ分のノートを処理し、書き込みが終わるたびに result に追加します。
func (e *Engine) processChunk(ctx context.Context, req Request, normalizer parser.Normalizer, chunk []anki.NoteID, result *Result, progress *progressReporter) error {
	chunkCtx, cancel := context.WithTimeout(ctx, e.config.ChunkTimeout)
	defer cancel()

	// 1. 読み上げテキストの取得と正規化
	texts := make([]string, len(chunk))
	for i, id := range chunk {
		if err := chunkCtx.Err(); err != nil {
			return err
		}
		note, err := e.coll.GetNote(chunkCtx, id)
		if err != nil {
			return err
		}
		raw, ok := note.Get(req.SourceField)
		if !ok {
			return &anki.ErrFieldNotFound{NoteID: id, Field: req.SourceField}
		}
		texts[i] = normalizer.Normalize(raw)
	}

	// 2. オーディオクエリの生成
	queries, err := e.buildQueries(chunkCtx, req, texts, progress)
	if err != nil {
		return err
	}

	// 3. 一括合成とアーカイブの展開
	first := len(result.Notes) + 1
	progress.status(fmt.Sprintf("音声合成中 %d〜%d", first, first+len(chunk)-1))
	archive, err := e.client.MultiSynthesize(chunkCtx, queries, req.Selection.StyleID())
	if err != nil {
		return err
	}
	clips, err := audio.SplitArchive(archive, len(chunk))
	if err != nil {
		return err
	}

	// 4. 変換と書き込み (clips[i] は chunk[i] の音声)
	for i, clip := range clips {
		if err := chunkCtx.Err(); err != nil {
			return err
		}
		progress.status(fmt.Sprintf("音声変換中 %d/%d", i, len(chunk)))
		written, err := e.writeClip(chunkCtx, req, chunk[i], clip)
		if err != nil {
			return err
		}
		result.Notes = append(result.Notes, written)
		progress.advance(fmt.Sprintf("音声変換中 %d/%d", i+1, len(chunk)))
	}
	return nil
}

// buildQueries はテキストごとのオーディオクエリを、テキストと同じ順序で返します。
func (e *Engine) buildQueries(ctx context.Context, req Request, texts []string, progress *progressReporter) ([][]byte, error) {
	queries := make([][]byte, len(texts))
	styleID := req.Selection.StyleID()

	if e.config.MaxParallelQueries <= 1 {
		for i, text := range texts {
			progress.status(fmt.Sprintf("オーディオクエリ生成中 %d/%d", i, len(texts)))
			q, err := e.client.BuildAudioQuery(ctx, text, styleID, req.Params)
			if err != nil {
				return nil, err
			}
			queries[i] = q
		}
		return queries, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.MaxParallelQueries)

	var mu sync.Mutex
	built := 0
	for i, text := range texts {
		g.Go(func() error {
			q, err := e.client.BuildAudioQuery(gctx, text, styleID, req.Params)
			if err != nil {
				return err
			}
			queries[i] = q

			mu.Lock()
			built++
			n := built
			mu.Unlock()
			progress.status(fmt.Sprintf("オーディオクエリ生成中 %d/%d", n, len(texts)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return queries, nil
}

// writeClip は音声をメディアフォルダに保存し、書き込み先フィールドに参照を設定してノートを更新します。
func (e *Engine) writeClip(ctx context.Context, req Request, id anki.NoteID, wav []byte) (WrittenNote, error) {
	data, codec := e.encode(ctx, wav, req.Codec)

	note, err := e.coll.GetNote(ctx, id)
	if err != nil {
		return WrittenNote{}, err
	}

	name := filename.Render(req.FilenameTemplate, filename.Values{
		Speaker: req.Selection.Speaker.Name,
		Style:   req.Selection.Style.Name,
		Note:    note,
		UID:     e.uid,
	}, codec.Extension())

	fullPath := filepath.Join(e.coll.MediaDir(), name)
	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		return WrittenNote{}, fmt.Errorf("音声ファイルの書き込みに失敗しました (%s): %w", fullPath, err)
	}

	current, ok := note.Get(req.DestinationField)
	if !ok {
		return WrittenNote{}, &anki.ErrFieldNotFound{NoteID: id, Field: req.DestinationField}
	}
	if err := note.Set(req.DestinationField, anki.ApplyAudio(current, anki.SoundTag(name), req.AppendAudio)); err != nil {
		return WrittenNote{}, err
	}
	if err := e.coll.UpdateNote(ctx, note); err != nil {
		return WrittenNote{}, fmt.Errorf("ノート %d の更新に失敗しました: %w", id, err)
	}

	slog.DebugContext(ctx, "音声を書き込みました", "note_id", id, "file", name)
	return WrittenNote{NoteID: id, Filename: name, Codec: codec}, nil
}

// encode は変換できればその結果を、できなければ元のWAVを返します。
func (e *Engine) encode(ctx context.Context, wav []byte, codec transcode.Codec) ([]byte, transcode.Codec) {
	if e.transcoder == nil || codec == "" || codec == transcode.CodecWAV {
		return wav, transcode.CodecWAV
	}
	data, ok := e.transcoder.Transcode(ctx, wav, codec)
	if !ok {
		return wav, transcode.CodecWAV
	}
	return data, codec
}

// ----------------------------------------------------------------------
// プレビュー
// ----------------------------------------------------------------------

// Preview は候補からランダムに選んだ文を /synthesis で合成し、その文とWAVデータを返します。
func (e *Engine) Preview(ctx context.Context, styleID int, params api.VoiceParams) (string, []byte, error) {
	text := PreviewSentences[e.pick(len(PreviewSentences))]

	query, err := e.client.BuildAudioQuery(ctx, text, styleID, params)
	if err != nil {
		return text, nil, err
	}
	wav, err := e.client.Synthesize(ctx, query, styleID)
	if err != nil {
		return text, nil, fmt.Errorf("プレビュー音声の合成に失敗しました: %w", err)
	}
	return text, wav, nil
}
