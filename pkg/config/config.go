package config

import (
	"encoding/json"
	"fmt"
)

// 設定キー (プリセット内で使われる名前)
const (
	KeySourceField          = "source_field"
	KeyDestinationField     = "destination_field"
	KeyFilenameTemplate     = "filename_template"
	KeySpeakerName          = "speaker_name"
	KeyStyleName            = "style_name"
	KeyAppendAudio          = "append_audio"
	KeyUseOpus              = "use_opus"
	KeyIgnoreBrackets       = "ignore_brackets"
	KeyVolumeSlider         = "volume_slider_value"
	KeyPitchSlider          = "pitch_slider_value"
	KeySpeedSlider          = "speed_slider_value"
	KeyIntonationSlider     = "intonation_slider_value"
	KeyInitialSilenceSlider = "initial_silence_slider_value"
	KeyFinalSilenceSlider   = "final_silence_slider_value"
)

const (
	keyPresets    = "presets"
	keyLastPreset = "last_preset"

	// DefaultPresetName は常に存在し、名前の変更や削除ができないプリセットです。
	DefaultPresetName = "Default"
)

// 最上位に保存する「前回の値」のうち、プリセットと名前が異なるもの
var lastValueKeys = map[string]string{
	KeySourceField:      "last_source_field",
	KeyDestinationField: "last_destination_field",
	KeySpeakerName:      "last_speaker_name",
	KeyStyleName:        "last_style_name",
}

func topLevelKey(key string) string {
	if k, ok := lastValueKeys[key]; ok {
		return k
	}
	return key
}

// Config は永続化される設定全体です。
// 呼び出し側はメモリ上のコピーを変更し、Store.Save で一度に保存します。
type Config struct {
	Presets    map[string]map[string]any
	LastPreset string

	// values は最上位の前回値と未知のキーです。未知のキーも保存時にそのまま書き戻されます。
	values map[string]any
}

// NewConfig は Default プリセットだけを持つ設定を返します。
func NewConfig() *Config {
	c := &Config{
		Presets: make(map[string]map[string]any),
		values:  make(map[string]any),
	}
	c.Remember(DefaultSettings())
	c.EnsureDefault()
	return c
}

// EnsureDefault は Default プリセットがなければ既定値で作成します。
func (c *Config) EnsureDefault() {
	if c.Presets == nil {
		c.Presets = make(map[string]map[string]any)
	}
	if _, ok := c.Presets[DefaultPresetName]; !ok {
		c.Presets[DefaultPresetName] = DefaultBundle()
	}
}

// Current は前回の値から Settings を組み立てます。保存されていないキーは既定値です。
func (c *Config) Current() (Settings, error) {
	s := DefaultSettings()
	bundle := make(map[string]any)
	for _, key := range Keys() {
		if v, ok := c.values[topLevelKey(key)]; ok {
			bundle[key] = v
		}
	}
	if err := s.Apply(bundle); err != nil {
		return s, err
	}
	return s, nil
}

// Remember は Settings を前回の値として記録します。保存は行いません。
func (c *Config) Remember(s Settings) {
	if c.values == nil {
		c.values = make(map[string]any)
	}
	for key, v := range s.Bundle() {
		c.values[topLevelKey(key)] = v
	}
}

// MarshalJSON は presets と last_preset、前回値を1つのオブジェクトに書き出します。
func (c *Config) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c.values)+2)
	for k, v := range c.values {
		out[k] = v
	}
	out[keyPresets] = c.Presets
	out[keyLastPreset] = c.LastPreset
	return json.Marshal(out)
}

func (c *Config) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	c.Presets = make(map[string]map[string]any)
	if p, ok := raw[keyPresets]; ok && p != nil {
		presets, ok := p.(map[string]any)
		if !ok {
			return fmt.Errorf("presets はオブジェクトである必要があります (%T)", p)
		}
		for name, bundle := range presets {
			b, ok := bundle.(map[string]any)
			if !ok {
				return fmt.Errorf("プリセット '%s' はオブジェクトである必要があります (%T)", name, bundle)
			}
			c.Presets[name] = b
		}
	}
	delete(raw, keyPresets)

	c.LastPreset = ""
	if lp, ok := raw[keyLastPreset].(string); ok {
		c.LastPreset = lp
	}
	delete(raw, keyLastPreset)

	c.values = raw
	return nil
}
