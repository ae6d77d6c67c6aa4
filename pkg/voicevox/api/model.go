package api

// ----------------------------------------------------------------------
// データモデル (API応答)
// ----------------------------------------------------------------------

// Speaker は /speakers APIの応答に含まれる話者です。
type Speaker struct {
	Name        string  `json:"name"`
	SpeakerUUID string  `json:"speaker_uuid"`
	Styles      []Style `json:"styles"`
	Version     string  `json:"version,omitempty"`
}

// Style は話者のスタイルです。ID が合成APIに渡す値になります。
type Style struct {
	Name string `json:"name"`
	ID   int    `json:"id"`
}

// StyleInfo は /speaker_info の styles_info 要素です。
type StyleInfo struct {
	ID           int      `json:"id"`
	Icon         string   `json:"icon"`
	VoiceSamples []string `json:"voice_samples"`
}

// SpeakerInfo は /speaker_info APIの応答です。音声サンプルは base64 のまま保持します。
type SpeakerInfo struct {
	Policy     string      `json:"policy"`
	Portrait   string      `json:"portrait"`
	StyleInfos []StyleInfo `json:"style_infos"`
}

// AudioQueryResponse は /audio_query APIの応答構造の一部に対応する型です。
// 検証用であり、送信には元のJSONバイト列を使います。
type AudioQueryResponse struct {
	AccentPhrases []map[string]interface{} `json:"accent_phrases"`
	SpeedScale    float64                  `json:"speedScale"`
}

// VoiceParams はオーディオクエリに上書きする値です。nil のフィールドは上書きしません。
type VoiceParams struct {
	SpeedScale        *float64
	VolumeScale       *float64
	PitchScale        *float64
	IntonationScale   *float64
	PrePhonemeLength  *float64
	PostPhonemeLength *float64
}

// Float はポインタ値を作るための小さなヘルパーです。
func Float(v float64) *float64 { return &v }

// overlay はクエリのJSONキーと上書き値の対応を返します。
func (p VoiceParams) overlay() map[string]*float64 {
	return map[string]*float64{
		"speedScale":        p.SpeedScale,
		"volumeScale":       p.VolumeScale,
		"pitchScale":        p.PitchScale,
		"intonationScale":   p.IntonationScale,
		"prePhonemeLength":  p.PrePhonemeLength,
		"postPhonemeLength": p.PostPhonemeLength,
	}
}
