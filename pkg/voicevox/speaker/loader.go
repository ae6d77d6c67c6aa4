package speaker

import (
	"context"
	"log/slog"
)

// ----------------------------------------------------------------------
// ロードロジック
// ----------------------------------------------------------------------

// LoadSpeakers は /speakers エンドポイントからデータを取得し、SpeakerDataを構築します。
func LoadSpeakers(ctx context.Context, client SpeakerClient) (*SpeakerData, error) {
	speakers, err := client.GetSpeakers(ctx)
	if err != nil {
		return nil, err
	}
	if len(speakers) == 0 {
		return nil, &ErrNoSpeakers{}
	}

	styles := 0
	for _, spk := range speakers {
		if len(spk.Styles) == 0 {
			slog.DebugContext(ctx, "スタイルを持たない話者があります", "speaker", spk.Name)
		}
		styles += len(spk.Styles)
	}

	slog.InfoContext(ctx, "VOICEVOX話者データが正常にロードされました", "speakers_count", len(speakers), "styles_count", styles)

	return &SpeakerData{Speakers: speakers}, nil
}
