package main

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Toocanzs/anki-voicevox/pkg/anki"
	"github.com/Toocanzs/anki-voicevox/pkg/config"
	"github.com/Toocanzs/anki-voicevox/pkg/preset"
	"github.com/Toocanzs/anki-voicevox/pkg/voicevox/api"
	"github.com/Toocanzs/anki-voicevox/pkg/voicevox/speaker"
)

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs(" 3, 1,,12 ")
	require.NoError(t, err)
	assert.Equal(t, []anki.NoteID{3, 1, 12}, ids)
	assert.Equal(t, "3,1,12", formatIDs(ids))

	ids, err = parseIDs("")
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = parseIDs("1,x")
	assert.Error(t, err)
}

func TestVoiceFlags_Apply(t *testing.T) {
	a := &app{cfg: config.NewConfig()}
	saved := config.DefaultSettings()
	saved.SpeakerName = "ずんだもん"
	saved.PitchSlider = 5
	require.NoError(t, preset.NewManager(a.cfg, nil).Save("zunda", saved))

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	var vf voiceFlags
	vf.register(fs)
	require.NoError(t, fs.Parse([]string{"-preset", "zunda", "-style", "ささやき", "-speed", "150"}))

	settings := config.DefaultSettings()
	explicit, err := vf.apply(a, fs, &settings)

	require.NoError(t, err)
	assert.True(t, explicit)
	assert.Equal(t, "ずんだもん", settings.SpeakerName)
	assert.Equal(t, "ささやき", settings.StyleName)
	assert.Equal(t, 5, settings.PitchSlider)
	assert.Equal(t, 150, settings.SpeedSlider)
	// 指定していないフラグの既定値 0 でプリセットの値は上書きされない
	assert.Equal(t, saved.VolumeSlider, settings.VolumeSlider)
}

func TestVoiceFlags_UnknownPreset(t *testing.T) {
	a := &app{cfg: config.NewConfig()}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	var vf voiceFlags
	vf.register(fs)
	require.NoError(t, fs.Parse([]string{"-preset", "missing"}))

	settings := config.DefaultSettings()
	_, err := vf.apply(a, fs, &settings)

	var nf *preset.ErrNotFound
	assert.ErrorAs(t, err, &nf)
}

func TestSelectSpeaker_ListsAvailableNames(t *testing.T) {
	data := &speaker.SpeakerData{Speakers: []api.Speaker{
		{Name: "四国めたん", Styles: []api.Style{{Name: "ノーマル", ID: 2}}},
		{Name: "ずんだもん", Styles: []api.Style{{Name: "ノーマル", ID: 3}}},
	}}

	_, err := selectSpeaker(data, config.Settings{SpeakerName: "春日部つむぎ", StyleName: "ノーマル"}, true)
	var notFound *speaker.ErrNotFound
	require.ErrorAs(t, err, &notFound)
	assert.Contains(t, err.Error(), "四国めたん, ずんだもん")

	sel, err := selectSpeaker(data, config.Settings{SpeakerName: "ずんだもん", StyleName: "ノーマル"}, true)
	require.NoError(t, err)
	assert.Equal(t, 3, sel.StyleID())

	// 話者が存在しスタイルだけが違う場合は一覧を付けない
	_, err = selectSpeaker(data, config.Settings{SpeakerName: "ずんだもん", StyleName: "あまあま"}, true)
	require.ErrorAs(t, err, &notFound)
	assert.NotContains(t, err.Error(), "四国めたん")
}
