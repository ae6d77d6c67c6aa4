package speaker

import (
	"context"

	"github.com/Toocanzs/anki-voicevox/pkg/voicevox/api"
)

// ----------------------------------------------------------------------
// インターフェース定義
// ----------------------------------------------------------------------

// SpeakerClient は /speakers エンドポイントを呼び出す能力を抽象化するインターフェースです。
// api.Client がこれを満たします。
type SpeakerClient interface {
	GetSpeakers(ctx context.Context) ([]api.Speaker, error)
}

// ----------------------------------------------------------------------
// 構造体定義
// ----------------------------------------------------------------------

// Selection は選択された話者とスタイルの組です。
type Selection struct {
	Speaker api.Speaker
	Style   api.Style
}

// StyleID は合成APIに渡す値です。
func (s Selection) StyleID() int { return s.Style.ID }

// SpeakerData はセッション中に一度だけ取得する話者一覧のスナップショットです。
type SpeakerData struct {
	Speakers []api.Speaker
}

// Names は話者名をエンジンの返却順に返します。
func (d *SpeakerData) Names() []string {
	names := make([]string, 0, len(d.Speakers))
	for _, spk := range d.Speakers {
		names = append(names, spk.Name)
	}
	return names
}

// Find は話者名とスタイル名が完全一致する組を返します。
func (d *SpeakerData) Find(speakerName, styleName string) (Selection, error) {
	for _, spk := range d.Speakers {
		if spk.Name != speakerName {
			continue
		}
		for _, style := range spk.Styles {
			if style.Name == styleName {
				return Selection{Speaker: spk, Style: style}, nil
			}
		}
		return Selection{}, &ErrNotFound{Speaker: speakerName, Style: styleName}
	}
	return Selection{}, &ErrNotFound{Speaker: speakerName}
}

// Select は前回の選択を復元します。
// 一致する話者がなければ先頭の話者を、一致するスタイルがなければその話者の先頭のスタイルを選びます。
func (d *SpeakerData) Select(lastSpeaker, lastStyle string) (Selection, error) {
	if len(d.Speakers) == 0 {
		return Selection{}, &ErrNoSpeakers{}
	}

	spk := d.Speakers[0]
	for _, candidate := range d.Speakers {
		if candidate.Name == lastSpeaker {
			spk = candidate
			break
		}
	}
	if len(spk.Styles) == 0 {
		return Selection{}, &ErrNotFound{Speaker: spk.Name, Style: lastStyle}
	}

	style := spk.Styles[0]
	for _, candidate := range spk.Styles {
		if candidate.Name == lastStyle {
			style = candidate
			break
		}
	}
	return Selection{Speaker: spk, Style: style}, nil
}
