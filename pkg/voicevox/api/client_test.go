package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine は VOICEVOX エンジンの応答を模したテスト用サーバーです。
type fakeEngine struct {
	infoCalls  atomic.Int32
	lastBody   atomic.Value
	lastAccept atomic.Value
}

func (f *fakeEngine) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`"0.14.10"`))
	})
	mux.HandleFunc("/speakers", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"name":"四国めたん","speaker_uuid":"u-1","styles":[{"name":"ノーマル","id":2}],"version":"0.14.10"}]`))
	})
	mux.HandleFunc("/speaker_info", func(w http.ResponseWriter, r *http.Request) {
		f.infoCalls.Add(1)
		assert.Equal(t, "u-1", r.URL.Query().Get("speaker_uuid"))
		w.Write([]byte(`{"policy":"ok","portrait":"","style_infos":[{"id":2,"icon":"","voice_samples":[]}]}`))
	})
	mux.HandleFunc("/audio_query", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		text := r.URL.Query().Get("text")
		if text == "拒否" {
			http.Error(w, `{"detail":"invalid text"}`, http.StatusUnprocessableEntity)
			return
		}
		w.Write([]byte(`{"accent_phrases":[],"speedScale":1.0,"pitchScale":0.0,"kana":"テスト","outputSamplingRate":24000}`))
	})
	record := func(w http.ResponseWriter, r *http.Request, response []byte) {
		body, _ := io.ReadAll(r.Body)
		f.lastBody.Store(string(body))
		f.lastAccept.Store(r.Header.Get("Accept"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "2", r.URL.Query().Get("speaker"))
		w.Write(response)
	}
	mux.HandleFunc("/synthesis", func(w http.ResponseWriter, r *http.Request) {
		record(w, r, append([]byte("RIFF\x00\x00\x00\x00WAVE"), make([]byte, 40)...))
	})
	mux.HandleFunc("/multi_synthesis", func(w http.ResponseWriter, r *http.Request) {
		record(w, r, []byte("PK-archive"))
	})
	return mux
}

func newTestClient(t *testing.T) (*Client, *fakeEngine) {
	t.Helper()
	fake := &fakeEngine{}
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 2*time.Second, WithRateLimit(time.Millisecond, 16)), fake
}

func TestClient_ProbeAndSpeakers(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)

	require.NoError(t, client.Probe(ctx))

	speakers, err := client.GetSpeakers(ctx)
	require.NoError(t, err)
	require.Len(t, speakers, 1)
	assert.Equal(t, "四国めたん", speakers[0].Name)
	assert.Equal(t, 2, speakers[0].Styles[0].ID)
}

func TestClient_ProbeUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	start := time.Now()
	err := NewClient(url, time.Second).Probe(context.Background())

	// リトライせずに失敗する
	assert.Less(t, time.Since(start), 2*time.Second)
	var netErr *ErrAPINetwork
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, "/version", netErr.Endpoint)
}

func TestClient_GetSpeakerInfoIsCached(t *testing.T) {
	ctx := context.Background()
	client, fake := newTestClient(t)

	first, err := client.GetSpeakerInfo(ctx, "u-1")
	require.NoError(t, err)
	second, err := client.GetSpeakerInfo(ctx, "u-1")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), fake.infoCalls.Load())
}

func TestClient_BuildAudioQuery_OverlaysOnlySetParams(t *testing.T) {
	client, _ := newTestClient(t)

	query, err := client.BuildAudioQuery(context.Background(), "テスト", 2, VoiceParams{
		SpeedScale:       Float(1.25),
		PrePhonemeLength: Float(0.1),
	})
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(query, &fields))
	assert.Equal(t, 1.25, fields["speedScale"])
	assert.Equal(t, 0.1, fields["prePhonemeLength"])
	assert.Equal(t, 0.0, fields["pitchScale"])
	assert.NotContains(t, fields, "volumeScale")
	// 未知のフィールドはそのまま残る
	assert.Equal(t, "テスト", fields["kana"])
	assert.Equal(t, 24000.0, fields["outputSamplingRate"])
}

func TestClient_BuildAudioQuery_Failure(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.BuildAudioQuery(context.Background(), "拒否", 2, VoiceParams{})

	var queryErr *ErrAudioQuery
	require.ErrorAs(t, err, &queryErr)
	assert.Equal(t, "拒否", queryErr.Text)
	assert.Contains(t, queryErr.Body, "invalid text")
	assert.Contains(t, queryErr.Error(), "拒否")
	assert.NotContains(t, queryErr.Error(), "応答: None")
}

func TestOverlayVoiceParams_RejectsInvalidJSON(t *testing.T) {
	for _, body := range []string{"not json", "null", "[]"} {
		_, err := OverlayVoiceParams([]byte(body), VoiceParams{SpeedScale: Float(1)})
		var jsonErr *ErrInvalidJSON
		assert.ErrorAs(t, err, &jsonErr, body)
	}
}

func TestClient_Synthesize(t *testing.T) {
	client, fake := newTestClient(t)

	wav, err := client.Synthesize(context.Background(), []byte(`{"speedScale":1}`), 2)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(wav), "RIFF"))
	assert.Equal(t, `{"speedScale":1}`, fake.lastBody.Load())
	assert.Equal(t, "audio/wav", fake.lastAccept.Load())
}

func TestClient_MultiSynthesize(t *testing.T) {
	client, fake := newTestClient(t)

	archive, err := client.MultiSynthesize(context.Background(), [][]byte{[]byte(`{"a":1}`), []byte(`{"b":2}`)}, 2)

	require.NoError(t, err)
	assert.Equal(t, []byte("PK-archive"), archive)
	assert.Equal(t, `[{"a":1},{"b":2}]`, fake.lastBody.Load())
	assert.Equal(t, "application/zip", fake.lastAccept.Load())
}

func TestClient_MultiSynthesize_RejectsNilQuery(t *testing.T) {
	client, fake := newTestClient(t)

	_, err := client.MultiSynthesize(context.Background(), [][]byte{[]byte(`{}`), nil}, 2)
	var nilErr *ErrNilQuery
	require.ErrorAs(t, err, &nilErr)
	assert.Equal(t, 1, nilErr.Index)

	_, err = client.MultiSynthesize(context.Background(), nil, 2)
	assert.ErrorAs(t, err, &nilErr)

	// 送信前に拒否されている
	assert.Nil(t, fake.lastBody.Load())
}
