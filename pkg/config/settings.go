package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Toocanzs/anki-voicevox/pkg/filename"
	"github.com/Toocanzs/anki-voicevox/pkg/voicevox/api"
	"github.com/Toocanzs/anki-voicevox/pkg/voicevox/speaker"
)

// Settings は生成ダイアログ1回分のオプション値です。プリセットはこれを名前付きで保存したものです。
type Settings struct {
	SourceField      string
	DestinationField string
	FilenameTemplate string
	SpeakerName      string
	StyleName        string
	AppendAudio      bool
	UseOpus          bool
	IgnoreBrackets   bool

	// スライダーの値は 1/100 単位の整数です (100 = 1.0)。
	VolumeSlider         int
	PitchSlider          int
	SpeedSlider          int
	IntonationSlider     int
	InitialSilenceSlider int
	FinalSilenceSlider   int
}

// VoiceParams はスライダーの値をオーディオクエリの上書き値に変換します。
// 値が 0 のスライダーは上書きしません。
func (s Settings) VoiceParams() api.VoiceParams {
	scale := func(v int) *float64 {
		if v == 0 {
			return nil
		}
		return api.Float(float64(v) / 100)
	}
	return api.VoiceParams{
		SpeedScale:        scale(s.SpeedSlider),
		VolumeScale:       scale(s.VolumeSlider),
		PitchScale:        scale(s.PitchSlider),
		IntonationScale:   scale(s.IntonationSlider),
		PrePhonemeLength:  scale(s.InitialSilenceSlider),
		PostPhonemeLength: scale(s.FinalSilenceSlider),
	}
}

// ----------------------------------------------------------------------
// 設定キーとアクセサの対応表
// ----------------------------------------------------------------------

// setting は1つの設定キーの読み書きを定義します。def が nil のキーは既定値を持たず、実行時に決まります。
type setting struct {
	key string
	def any
	get func(*Settings) any
	set func(*Settings, any) error
}

func stringSetting(key string, def any, field func(*Settings) *string) setting {
	return setting{
		key: key,
		def: def,
		get: func(s *Settings) any { return *field(s) },
		set: func(s *Settings, v any) error {
			str, ok := v.(string)
			if !ok {
				return fmt.Errorf("設定 %s は文字列である必要があります (%T)", key, v)
			}
			*field(s) = str
			return nil
		},
	}
}

// boolSetting は真偽値を "true"/"false" の文字列として保存します。
func boolSetting(key string, def bool, field func(*Settings) *bool) setting {
	return setting{
		key: key,
		def: formatBool(def),
		get: func(s *Settings) any { return formatBool(*field(s)) },
		set: func(s *Settings, v any) error {
			b, err := parseBool(v)
			if err != nil {
				return fmt.Errorf("設定 %s: %w", key, err)
			}
			*field(s) = b
			return nil
		},
	}
}

// intSetting は範囲 [min, max] に収まるよう値を丸めます。
func intSetting(key string, def, min, max int, field func(*Settings) *int) setting {
	return setting{
		key: key,
		def: def,
		get: func(s *Settings) any { return *field(s) },
		set: func(s *Settings, v any) error {
			n, err := parseInt(v)
			if err != nil {
				return fmt.Errorf("設定 %s: %w", key, err)
			}
			if n < min {
				n = min
			}
			if n > max {
				n = max
			}
			*field(s) = n
			return nil
		},
	}
}

var settingTable = []setting{
	stringSetting(KeySourceField, nil, func(s *Settings) *string { return &s.SourceField }),
	stringSetting(KeyDestinationField, nil, func(s *Settings) *string { return &s.DestinationField }),
	stringSetting(KeyFilenameTemplate, filename.DefaultTemplate, func(s *Settings) *string { return &s.FilenameTemplate }),
	stringSetting(KeySpeakerName, speaker.DefaultSpeakerName, func(s *Settings) *string { return &s.SpeakerName }),
	stringSetting(KeyStyleName, speaker.DefaultStyleName, func(s *Settings) *string { return &s.StyleName }),
	boolSetting(KeyAppendAudio, false, func(s *Settings) *bool { return &s.AppendAudio }),
	boolSetting(KeyUseOpus, false, func(s *Settings) *bool { return &s.UseOpus }),
	boolSetting(KeyIgnoreBrackets, true, func(s *Settings) *bool { return &s.IgnoreBrackets }),
	intSetting(KeyVolumeSlider, 100, 0, 200, func(s *Settings) *int { return &s.VolumeSlider }),
	intSetting(KeyPitchSlider, 0, -15, 15, func(s *Settings) *int { return &s.PitchSlider }),
	intSetting(KeySpeedSlider, 100, 50, 200, func(s *Settings) *int { return &s.SpeedSlider }),
	intSetting(KeyIntonationSlider, 100, 1, 200, func(s *Settings) *int { return &s.IntonationSlider }),
	intSetting(KeyInitialSilenceSlider, 10, 0, 150, func(s *Settings) *int { return &s.InitialSilenceSlider }),
	intSetting(KeyFinalSilenceSlider, 10, 0, 150, func(s *Settings) *int { return &s.FinalSilenceSlider }),
}

// Keys は対応表の全キーを定義順に返します。
func Keys() []string {
	keys := make([]string, len(settingTable))
	for i, st := range settingTable {
		keys[i] = st.key
	}
	return keys
}

// DefaultBundle は既定値を持つキーだけからなるプリセットを返します。
func DefaultBundle() map[string]any {
	bundle := make(map[string]any)
	for _, st := range settingTable {
		if st.def != nil {
			bundle[st.key] = st.def
		}
	}
	return bundle
}

// DefaultSettings は既定値を適用した Settings を返します。
func DefaultSettings() Settings {
	var s Settings
	// 既定値は対応表自身が生成したものなので失敗しない
	_ = s.Apply(DefaultBundle())
	return s
}

// Bundle は全てのキーを含むプリセットを返します。
func (s *Settings) Bundle() map[string]any {
	bundle := make(map[string]any, len(settingTable))
	for _, st := range settingTable {
		bundle[st.key] = st.get(s)
	}
	return bundle
}

// Apply はプリセットの値を適用します。未知のキーと nil の値は無視します。
func (s *Settings) Apply(bundle map[string]any) error {
	for _, st := range settingTable {
		v, ok := bundle[st.key]
		if !ok || v == nil {
			continue
		}
		if err := st.set(s, v); err != nil {
			return err
		}
	}
	return nil
}

// ----------------------------------------------------------------------
// 変換ヘルパー
// ----------------------------------------------------------------------

func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func parseBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		return strings.EqualFold(b, "true"), nil
	}
	return false, fmt.Errorf("真偽値として解釈できません (%T)", v)
}

func parseInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		return int(i), err
	case string:
		return strconv.Atoi(n)
	}
	return 0, fmt.Errorf("整数として解釈できません (%T)", v)
}
