package voicevox

import (
	"context"

	"github.com/Toocanzs/anki-voicevox/pkg/anki"
	"github.com/Toocanzs/anki-voicevox/pkg/config"
	"github.com/Toocanzs/anki-voicevox/pkg/transcode"
	"github.com/Toocanzs/anki-voicevox/pkg/voicevox/api"
	"github.com/Toocanzs/anki-voicevox/pkg/voicevox/speaker"
)

// ----------------------------------------------------------------------
// インターフェース
// ----------------------------------------------------------------------

// SynthesisClient は Engine が利用するVOICEVOX APIの呼び出しです。api.Client がこれを満たします。
type SynthesisClient interface {
	BuildAudioQuery(ctx context.Context, text string, styleID int, params api.VoiceParams) ([]byte, error)
	Synthesize(ctx context.Context, query []byte, styleID int) ([]byte, error)
	MultiSynthesize(ctx context.Context, queries [][]byte, styleID int) ([]byte, error)
}

// EngineExecutor は選択されたノートの音声を生成する契約を定義します。
// 進捗の通知などは Functional Options Pattern を通じて指定します。
type EngineExecutor interface {
	Execute(ctx context.Context, req Request, opts ...ExecuteOption) (*Result, error)
}

// ----------------------------------------------------------------------
// リクエストと結果
// ----------------------------------------------------------------------

// Request は1回の生成の入力です。全てのノートで同じ話者・スタイルと音声パラメータを使います。
type Request struct {
	NoteIDs          []anki.NoteID
	SourceField      string
	DestinationField string
	Selection        speaker.Selection
	Params           api.VoiceParams
	FilenameTemplate string
	AppendAudio      bool
	IgnoreBrackets   bool
	// Codec は変換先の形式です。変換できない場合はWAVのまま保存されます。
	Codec transcode.Codec
}

// NewRequest は保存された設定から Request を組み立てます。
func NewRequest(ids []anki.NoteID, s config.Settings, sel speaker.Selection) Request {
	codec := transcode.CodecMP3
	if s.UseOpus {
		codec = transcode.CodecOpus
	}
	return Request{
		NoteIDs:          ids,
		SourceField:      s.SourceField,
		DestinationField: s.DestinationField,
		Selection:        sel,
		Params:           s.VoiceParams(),
		FilenameTemplate: s.FilenameTemplate,
		AppendAudio:      s.AppendAudio,
		IgnoreBrackets:   s.IgnoreBrackets,
		Codec:            codec,
	}
}

// WrittenNote は音声を書き込んだノート1件分の記録です。
type WrittenNote struct {
	NoteID   anki.NoteID
	Filename string
	Codec    transcode.Codec
}

// Result は生成の結果です。中断された場合も、それまでに書き込んだノートを保持します。
type Result struct {
	Total  int
	Notes  []WrittenNote
	DryRun bool
}

// CompletedIDs は書き込みが完了したノートIDを処理順に返します。
func (r *Result) CompletedIDs() []anki.NoteID {
	ids := make([]anki.NoteID, len(r.Notes))
	for i, n := range r.Notes {
		ids[i] = n.NoteID
	}
	return ids
}

// ProgressFunc は進捗を受け取ります。done は書き込みが完了したノート数です。
type ProgressFunc func(done, total int, status string)
