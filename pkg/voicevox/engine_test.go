package voicevox

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Toocanzs/anki-voicevox/pkg/anki"
	"github.com/Toocanzs/anki-voicevox/pkg/transcode"
	"github.com/Toocanzs/anki-voicevox/pkg/voicevox/api"
	"github.com/Toocanzs/anki-voicevox/pkg/voicevox/audio"
	"github.com/Toocanzs/anki-voicevox/pkg/voicevox/speaker"
)

// ----------------------------------------------------------------------
// テスト用のVOICEVOXエンジン
// ----------------------------------------------------------------------

// fakeVoicevox は /audio_query でテキストをクエリに埋め込み、
// /multi_synthesis でそのテキストを末尾に持つWAVをZIPにまとめて返します。
type fakeVoicevox struct {
	mu         sync.Mutex
	chunkSizes []int
	// reverse はZIPのエントリを逆順に格納します。
	reverse bool
	// dropLast は最後のエントリを欠落させます。
	dropLast bool
}

func (f *fakeVoicevox) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/audio_query", func(w http.ResponseWriter, r *http.Request) {
		text := r.URL.Query().Get("text")
		if strings.Contains(text, "拒否") {
			http.Error(w, `{"detail":"rejected"}`, http.StatusUnprocessableEntity)
			return
		}
		body, _ := json.Marshal(map[string]any{"accent_phrases": []any{}, "speedScale": 1.0, "kana": text})
		w.Write(body)
	})
	mux.HandleFunc("/synthesis", func(w http.ResponseWriter, r *http.Request) {
		var q map[string]any
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&q)) {
			return
		}
		w.Write(clipFor(q["kana"].(string)))
	})
	mux.HandleFunc("/multi_synthesis", func(w http.ResponseWriter, r *http.Request) {
		var queries []map[string]any
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&queries)) {
			return
		}

		f.mu.Lock()
		f.chunkSizes = append(f.chunkSizes, len(queries))
		f.mu.Unlock()

		order := make([]int, len(queries))
		for i := range order {
			order[i] = i
			if f.reverse {
				order[i] = len(queries) - 1 - i
			}
		}
		if f.dropLast {
			order = order[:len(order)-1]
		}

		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		for _, i := range order {
			entry, err := zw.CreateHeader(&zip.FileHeader{Name: audio.ClipName(i + 1), Method: zip.Store})
			if !assert.NoError(t, err) {
				return
			}
			entry.Write(clipFor(queries[i]["kana"].(string)))
		}
		assert.NoError(t, zw.Close())
		w.Header().Set("Content-Type", "application/zip")
		w.Write(buf.Bytes())
	})
	return mux
}

func clipFor(text string) []byte {
	header := make([]byte, audio.WavTotalHeaderSize)
	copy(header, "RIFF")
	copy(header[8:], "WAVE")
	return append(header, []byte(text)...)
}

// upperTranscoder は変換の代わりにデータの先頭に形式名を付けます。
type upperTranscoder struct {
	ok bool
}

func (u upperTranscoder) Transcode(ctx context.Context, wav []byte, codec transcode.Codec) ([]byte, bool) {
	if !u.ok {
		return nil, false
	}
	return append([]byte(strings.ToUpper(string(codec))+":"), wav...), true
}

// ----------------------------------------------------------------------
// テスト用のコレクション
// ----------------------------------------------------------------------

func writeCollection(t *testing.T, sources []string) *anki.FileCollection {
	t.Helper()
	notes := make([]anki.Note, len(sources))
	for i, src := range sources {
		notes[i] = anki.Note{
			ID:   anki.NoteID(i + 1),
			Deck: "日本語::例文",
			Fields: []anki.Field{
				{Name: "Sentence", Value: src},
				{Name: "Meaning", Value: fmt.Sprintf("meaning %d", i+1)},
				{Name: "Audio", Value: "[sound:old.mp3]"},
			},
		}
	}
	data, err := json.Marshal(map[string]any{"notes": notes})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "collection.json")
	require.NoError(t, os.WriteFile(path, data, 0644))
	coll, err := anki.OpenFileCollection(path, "")
	require.NoError(t, err)
	return coll
}

func numberedSources(n int) []string {
	sources := make([]string, n)
	for i := range sources {
		sources[i] = fmt.Sprintf("<b>文 %d</b>&nbsp;[ぶん]", i+1)
	}
	return sources
}

func newTestEngine(t *testing.T, fake *fakeVoicevox, coll anki.Collection, tc transcode.Transcoder, cfg EngineConfig) *Engine {
	t.Helper()
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	client := api.NewClient(srv.URL, 2*time.Second, api.WithRateLimit(time.Millisecond, 16))
	engine := NewEngine(client, coll, tc, cfg)

	var mu sync.Mutex
	n := 0
	engine.uid = func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("uid%02d", n)
	}
	return engine
}

func testRequest(ids []anki.NoteID) Request {
	return Request{
		NoteIDs:          ids,
		SourceField:      "Sentence",
		DestinationField: "Audio",
		Selection: speaker.Selection{
			Speaker: api.Speaker{Name: "ずんだもん"},
			Style:   api.Style{Name: "ノーマル", ID: 3},
		},
		FilenameTemplate: "{{speaker}}_{{field:Meaning}}_{{uid}}",
		IgnoreBrackets:   true,
		Codec:            transcode.CodecMP3,
	}
}

func allIDs(n int) []anki.NoteID {
	ids := make([]anki.NoteID, n)
	for i := range ids {
		ids[i] = anki.NoteID(i + 1)
	}
	return ids
}

// soundFile はフィールドの値から参照されているファイル名を取り出します。
func soundFile(t *testing.T, value string) string {
	t.Helper()
	require.True(t, strings.HasPrefix(value, "[sound:") && strings.HasSuffix(value, "]"), value)
	return strings.TrimSuffix(strings.TrimPrefix(value, "[sound:"), "]")
}

// ----------------------------------------------------------------------
// テスト
// ----------------------------------------------------------------------

func TestChunkIDs(t *testing.T) {
	chunks := ChunkIDs(allIDs(11), 4)

	require.Len(t, chunks, 3)
	assert.Equal(t, []anki.NoteID{1, 2, 3, 4}, chunks[0])
	assert.Equal(t, []anki.NoteID{5, 6, 7, 8}, chunks[1])
	assert.Equal(t, []anki.NoteID{9, 10, 11}, chunks[2])

	assert.Empty(t, ChunkIDs(nil, 4))
	assert.Len(t, ChunkIDs(allIDs(4), 4), 1)
	assert.Len(t, ChunkIDs(allIDs(5), 0), 2)
}

func TestExecute_WritesEveryNoteInOrder(t *testing.T) {
	ctx := context.Background()
	fake := &fakeVoicevox{reverse: true}
	coll := writeCollection(t, numberedSources(11))
	engine := newTestEngine(t, fake, coll, upperTranscoder{ok: true}, EngineConfig{})

	var lastDone, lastTotal int
	result, err := engine.Execute(ctx, testRequest(allIDs(11)), WithProgress(func(done, total int, status string) {
		assert.GreaterOrEqual(t, done, lastDone)
		lastDone, lastTotal = done, total
	}))

	require.NoError(t, err)
	assert.Equal(t, []int{4, 4, 3}, fake.chunkSizes)
	assert.Equal(t, 11, lastDone)
	assert.Equal(t, 11, lastTotal)
	require.Len(t, result.Notes, 11)
	assert.Equal(t, allIDs(11), result.CompletedIDs())

	for i, id := range allIDs(11) {
		note, err := coll.GetNote(ctx, id)
		require.NoError(t, err)
		value, _ := note.Get("Audio")
		name := soundFile(t, value)
		assert.Equal(t, result.Notes[i].Filename, name)
		assert.True(t, strings.HasPrefix(name, fmt.Sprintf("ずんだもん_meaning %d_uid", id)), name)
		assert.True(t, strings.HasSuffix(name, ".mp3"), name)

		data, err := os.ReadFile(filepath.Join(coll.MediaDir(), name))
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(data, []byte("MP3:RIFF")))
		// 逆順のアーカイブでも各ノートには自身のテキストの音声が入る
		assert.True(t, bytes.HasSuffix(data, []byte(fmt.Sprintf("文%d", id))), string(data))
	}
}

func TestExecute_AppendKeepsExistingAudio(t *testing.T) {
	ctx := context.Background()
	coll := writeCollection(t, numberedSources(2))
	engine := newTestEngine(t, &fakeVoicevox{}, coll, upperTranscoder{ok: true}, EngineConfig{})

	req := testRequest(allIDs(2))
	req.AppendAudio = true
	result, err := engine.Execute(ctx, req)
	require.NoError(t, err)

	note, err := coll.GetNote(ctx, 2)
	require.NoError(t, err)
	value, _ := note.Get("Audio")
	assert.Equal(t, "[sound:old.mp3]"+anki.SoundTag(result.Notes[1].Filename), value)
}

func TestExecute_FallsBackToWav(t *testing.T) {
	coll := writeCollection(t, numberedSources(3))
	engine := newTestEngine(t, &fakeVoicevox{}, coll, upperTranscoder{ok: false}, EngineConfig{})

	result, err := engine.Execute(context.Background(), testRequest(allIDs(3)))

	require.NoError(t, err)
	for _, written := range result.Notes {
		assert.Equal(t, transcode.CodecWAV, written.Codec)
		assert.True(t, strings.HasSuffix(written.Filename, ".wav"))
		data, err := os.ReadFile(filepath.Join(coll.MediaDir(), written.Filename))
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(data, []byte("RIFF")))
	}
}

func TestExecute_AbortsOnQueryFailure(t *testing.T) {
	ctx := context.Background()
	sources := numberedSources(11)
	sources[5] = "拒否される文"
	coll := writeCollection(t, sources)
	fake := &fakeVoicevox{}
	engine := newTestEngine(t, fake, coll, nil, EngineConfig{})

	result, err := engine.Execute(ctx, testRequest(allIDs(11)))

	var aborted *ErrBatchAborted
	require.ErrorAs(t, err, &aborted)
	assert.Equal(t, 1, aborted.Chunk)
	assert.Equal(t, []anki.NoteID{1, 2, 3, 4}, aborted.Completed)
	assert.Equal(t, []anki.NoteID{5, 6, 7, 8, 9, 10, 11}, aborted.Remaining)

	var queryErr *api.ErrAudioQuery
	require.ErrorAs(t, err, &queryErr)
	assert.Equal(t, "拒否される文", queryErr.Text)

	// 最初のチャンクは書き込み済み、以降は未変更
	assert.Len(t, result.Notes, 4)
	assert.Equal(t, []int{4}, fake.chunkSizes)
	for _, id := range allIDs(11) {
		note, err := coll.GetNote(ctx, id)
		require.NoError(t, err)
		value, _ := note.Get("Audio")
		if id <= 4 {
			assert.NotEqual(t, "[sound:old.mp3]", value)
		} else {
			assert.Equal(t, "[sound:old.mp3]", value)
		}
	}
}

func TestExecute_ArchiveCountMismatch(t *testing.T) {
	coll := writeCollection(t, numberedSources(3))
	engine := newTestEngine(t, &fakeVoicevox{dropLast: true}, coll, nil, EngineConfig{})

	result, err := engine.Execute(context.Background(), testRequest(allIDs(3)))

	var mismatch *audio.ErrArchiveMismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 3, mismatch.Expected)
	assert.Equal(t, 2, mismatch.Actual)
	assert.Empty(t, result.Notes)

	entries, err := os.ReadDir(coll.MediaDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExecute_ParallelQueriesKeepOrder(t *testing.T) {
	ctx := context.Background()
	coll := writeCollection(t, numberedSources(9))
	engine := newTestEngine(t, &fakeVoicevox{}, coll, nil, EngineConfig{ChunkSize: 3, MaxParallelQueries: 3})

	result, err := engine.Execute(ctx, testRequest(allIDs(9)))

	require.NoError(t, err)
	require.Len(t, result.Notes, 9)
	for _, written := range result.Notes {
		data, err := os.ReadFile(filepath.Join(coll.MediaDir(), written.Filename))
		require.NoError(t, err)
		assert.True(t, bytes.HasSuffix(data, []byte(fmt.Sprintf("文%d", written.NoteID))))
	}
}

func TestExecute_RejectsInvalidRequest(t *testing.T) {
	coll := writeCollection(t, numberedSources(1))
	engine := newTestEngine(t, &fakeVoicevox{}, coll, nil, EngineConfig{})

	_, err := engine.Execute(context.Background(), testRequest(nil))
	var empty *ErrEmptySelection
	assert.ErrorAs(t, err, &empty)

	req := testRequest(allIDs(1))
	req.DestinationField = req.SourceField
	_, err = engine.Execute(context.Background(), req)
	var same *ErrSameField
	assert.ErrorAs(t, err, &same)
}

func TestExecute_Cancelled(t *testing.T) {
	coll := writeCollection(t, numberedSources(5))
	engine := newTestEngine(t, &fakeVoicevox{}, coll, nil, EngineConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Execute(ctx, testRequest(allIDs(5)))

	var aborted *ErrBatchAborted
	require.ErrorAs(t, err, &aborted)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, aborted.Remaining, 5)
}

func TestValidateRequest(t *testing.T) {
	ctx := context.Background()
	coll := writeCollection(t, numberedSources(2))

	require.NoError(t, ValidateRequest(ctx, coll, testRequest(allIDs(2))))

	var empty *ErrEmptySelection
	assert.ErrorAs(t, ValidateRequest(ctx, coll, testRequest(nil)), &empty)

	req := testRequest(allIDs(2))
	req.DestinationField = "Sentence"
	var same *ErrSameField
	assert.ErrorAs(t, ValidateRequest(ctx, coll, req), &same)

	req = testRequest(allIDs(2))
	req.DestinationField = "Picture"
	var notCommon *ErrFieldNotCommon
	require.ErrorAs(t, ValidateRequest(ctx, coll, req), &notCommon)
	assert.Equal(t, "Picture", notCommon.Field)

	req = testRequest([]anki.NoteID{1, 99})
	var notFound *anki.ErrNoteNotFound
	assert.ErrorAs(t, ValidateRequest(ctx, coll, req), &notFound)
}

func TestPreview(t *testing.T) {
	engine := newTestEngine(t, &fakeVoicevox{}, nil, nil, EngineConfig{})
	engine.pick = func(n int) int { return 1 }

	text, wav, err := engine.Preview(context.Background(), 3, api.VoiceParams{SpeedScale: api.Float(1.1)})

	require.NoError(t, err)
	assert.Equal(t, PreviewSentences[1], text)
	assert.True(t, bytes.HasPrefix(wav, []byte("RIFF")))
	assert.True(t, bytes.HasSuffix(wav, []byte(PreviewSentences[1])))
}

func TestDryRunExecutor(t *testing.T) {
	coll := writeCollection(t, numberedSources(5))
	executor := &dryRunExecutor{coll: coll, chunkSize: DefaultChunkSize}

	result, err := executor.Execute(context.Background(), testRequest(allIDs(5)))

	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Equal(t, 5, result.Total)
	entries, err := os.ReadDir(coll.MediaDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}
