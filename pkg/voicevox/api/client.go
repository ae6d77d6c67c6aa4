package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Toocanzs/anki-voicevox/pkg/voicevox/audio"
	"github.com/jellydator/ttlcache/v3"
	"github.com/shouni/go-http-kit/pkg/httpkit"
	"golang.org/x/time/rate"
)

// ----------------------------------------------------------------------
// クライアント構造体とコンストラクタ
// ----------------------------------------------------------------------

// Client はVOICEVOXエンジンへのAPIリクエストを処理するクライアントです。
// httpkit.Client を利用してリトライ機能を内包します。
type Client struct {
	client      *httpkit.Client // 通常のリクエスト用
	probeClient *httpkit.Client // 疎通確認用 (リトライなし)
	synthClient *httpkit.Client // 合成系 (時間がかかる) リクエスト用
	apiURL      string
	limiter     *rate.Limiter

	speakerInfoCache *ttlcache.Cache[string, *SpeakerInfo]
}

type clientConfig struct {
	synthesisTimeout time.Duration
	interval         time.Duration
	burst            int
	infoTTL          time.Duration
}

// ClientOption は Client の設定を変更する関数です。
type ClientOption func(*clientConfig)

// WithSynthesisTimeout は /synthesis と /multi_synthesis のタイムアウトを変更します。
func WithSynthesisTimeout(d time.Duration) ClientOption {
	return func(cfg *clientConfig) {
		if d > 0 {
			cfg.synthesisTimeout = d
		}
	}
}

// WithRateLimit はリクエスト間隔とバースト数を変更します。
func WithRateLimit(interval time.Duration, burst int) ClientOption {
	return func(cfg *clientConfig) {
		if burst > 0 {
			cfg.interval = interval
			cfg.burst = burst
		}
	}
}

// NewClient は新しいClientインスタンスを初期化します。
func NewClient(apiURL string, timeout time.Duration, opts ...ClientOption) *Client {
	cfg := &clientConfig{
		synthesisTimeout: DefaultSynthesisTimeout,
		interval:         DefaultRequestInterval,
		burst:            DefaultRequestBurst,
		infoTTL:          DefaultSpeakerInfoTTL,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	cache := ttlcache.New[string, *SpeakerInfo](
		ttlcache.WithTTL[string, *SpeakerInfo](cfg.infoTTL),
	)

	return &Client{
		client:           httpkit.New(timeout),
		probeClient:      httpkit.New(timeout, httpkit.WithMaxRetries(0)),
		synthClient:      httpkit.New(cfg.synthesisTimeout),
		apiURL:           apiURL,
		limiter:          rate.NewLimiter(rate.Every(cfg.interval), cfg.burst),
		speakerInfoCache: cache,
	}
}

// ----------------------------------------------------------------------
// ヘルパー
// ----------------------------------------------------------------------

// buildURL はベースURLとエンドポイントを結合し、エラー処理を行います。
func (c *Client) buildURL(endpoint string, params url.Values) (*url.URL, error) {
	u, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, &ErrAPINetwork{Endpoint: endpoint, WrappedErr: fmt.Errorf("API URLのパース失敗: %w", err)}
	}

	u.Path, err = url.JoinPath(u.Path, endpoint)
	if err != nil {
		return nil, &ErrAPINetwork{Endpoint: endpoint, WrappedErr: fmt.Errorf("エンドポイント結合失敗: %w", err)}
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}

	return u, nil
}

func (c *Client) wait(ctx context.Context, endpoint string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &ErrAPINetwork{Endpoint: endpoint, WrappedErr: err}
	}
	return nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	return c.fetch(ctx, c.client, endpoint, params)
}

func (c *Client) fetch(ctx context.Context, hc *httpkit.Client, endpoint string, params url.Values) ([]byte, error) {
	u, err := c.buildURL(endpoint, params)
	if err != nil {
		return nil, err
	}
	if err := c.wait(ctx, endpoint); err != nil {
		return nil, err
	}

	// FetchBytes は GET, リトライ、ステータスチェック、ボディ読み取りを全て処理
	bodyBytes, err := hc.FetchBytes(ctx, u.String())
	if err != nil {
		return nil, &ErrAPINetwork{Endpoint: endpoint, WrappedErr: err}
	}
	return bodyBytes, nil
}

// responseBody は 4xx 応答のエラーからボディを取り出します。
func responseBody(err error) string {
	var httpErr *httpkit.NonRetryableHTTPError
	if errors.As(err, &httpErr) {
		return strings.TrimSpace(string(httpErr.Body))
	}
	return ""
}

func styleParam(styleID int) url.Values {
	q := url.Values{}
	q.Set("speaker", strconv.Itoa(styleID))
	return q
}

// ----------------------------------------------------------------------
// API呼び出しロジック
// ----------------------------------------------------------------------

// Probe は /version を呼び出し、エンジンに到達できるかを確認します。
// 接続確認ではリトライを行いません。
func (c *Client) Probe(ctx context.Context) error {
	body, err := c.fetch(ctx, c.probeClient, endpointVersion, nil)
	if err != nil {
		return err
	}
	slog.DebugContext(ctx, "VOICEVOXエンジンに接続しました", "version", string(bytes.Trim(body, "\"\n")))
	return nil
}

// GetSpeakers は /speakers APIを呼び出し、全ての話者情報を返します。
func (c *Client) GetSpeakers(ctx context.Context) ([]Speaker, error) {
	bodyBytes, err := c.get(ctx, endpointSpeakers, nil)
	if err != nil {
		return nil, err
	}

	var speakers []Speaker
	if err := json.Unmarshal(bodyBytes, &speakers); err != nil {
		return nil, &ErrInvalidJSON{Details: "/speakers 応答", WrappedErr: err}
	}
	return speakers, nil
}

// GetSpeakerInfo は /speaker_info を呼び出します。結果はUUIDごとにキャッシュされます。
func (c *Client) GetSpeakerInfo(ctx context.Context, speakerUUID string) (*SpeakerInfo, error) {
	if item := c.speakerInfoCache.Get(speakerUUID); item != nil {
		return item.Value(), nil
	}

	q := url.Values{}
	q.Set("speaker_uuid", speakerUUID)
	bodyBytes, err := c.get(ctx, endpointSpeakerInfo, q)
	if err != nil {
		return nil, err
	}

	var info SpeakerInfo
	if err := json.Unmarshal(bodyBytes, &info); err != nil {
		return nil, &ErrInvalidJSON{Details: "/speaker_info 応答", WrappedErr: err}
	}
	c.speakerInfoCache.Set(speakerUUID, &info, ttlcache.DefaultTTL)
	return &info, nil
}

// BuildAudioQuery は /audio_query APIを呼び出し、params を上書きしたクエリJSONを返します。
func (c *Client) BuildAudioQuery(ctx context.Context, text string, styleID int, params VoiceParams) ([]byte, error) {
	const endpoint = endpointAudioQuery

	// 1. URLとクエリパラメータの構築
	q := styleParam(styleID)
	q.Set("text", text)
	u, err := c.buildURL(endpoint, q)
	if err != nil {
		return nil, &ErrAudioQuery{Text: text, WrappedErr: err}
	}
	if err := c.wait(ctx, endpoint); err != nil {
		return nil, &ErrAudioQuery{Text: text, WrappedErr: err}
	}

	// 2. リクエスト構築と実行 (ボディは nil)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), nil)
	if err != nil {
		return nil, &ErrAudioQuery{Text: text, WrappedErr: fmt.Errorf("リクエスト構築失敗: %w", err)}
	}

	bodyBytes, err := c.client.DoRequest(req)
	if err != nil {
		return nil, &ErrAudioQuery{Text: text, Body: responseBody(err), WrappedErr: &ErrAPINetwork{Endpoint: endpoint, WrappedErr: err}}
	}

	// 3. 上書きと再シリアライズ
	query, err := OverlayVoiceParams(bodyBytes, params)
	if err != nil {
		return nil, &ErrAudioQuery{Text: text, Body: string(bodyBytes), WrappedErr: err}
	}
	return query, nil
}

// OverlayVoiceParams はクエリJSONのうち、指定されたパラメータのキーだけを書き換えます。
// 未知のフィールドはそのまま保持されます。
func OverlayVoiceParams(query []byte, params VoiceParams) ([]byte, error) {
	var aqr AudioQueryResponse
	if err := json.Unmarshal(query, &aqr); err != nil {
		return nil, &ErrInvalidJSON{Details: "/audio_query 応答JSONのデコード", WrappedErr: err}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(query, &fields); err != nil {
		return nil, &ErrInvalidJSON{Details: "/audio_query 応答JSONのデコード", WrappedErr: err}
	}
	if fields == nil {
		return nil, &ErrInvalidJSON{Details: "/audio_query 応答が空です", WrappedErr: fmt.Errorf("null")}
	}

	for key, value := range params.overlay() {
		if value == nil {
			continue
		}
		fields[key] = json.RawMessage(strconv.FormatFloat(*value, 'f', -1, 64))
	}

	out, err := json.Marshal(fields)
	if err != nil {
		return nil, &ErrInvalidJSON{Details: "オーディオクエリの再シリアライズ", WrappedErr: err}
	}
	return out, nil
}

// Synthesize は /synthesis APIを呼び出し、WAV形式の音声データを返します。
func (c *Client) Synthesize(ctx context.Context, query []byte, styleID int) ([]byte, error) {
	const endpoint = endpointSynthesis

	wavData, err := c.postJSON(ctx, endpoint, query, styleID, "audio/wav")
	if err != nil {
		return nil, err
	}
	if len(wavData) < audio.WavTotalHeaderSize {
		return nil, &ErrAPINetwork{
			Endpoint:   endpoint,
			WrappedErr: fmt.Errorf("WAVデータのサイズが短すぎます (%dバイト)", len(wavData)),
		}
	}
	return wavData, nil
}

// MultiSynthesize は複数のクエリを /multi_synthesis にまとめて送信し、ZIPアーカイブを返します。
// アーカイブ内のエントリは送信順に 0001.wav, 0002.wav ... と名付けられます。
func (c *Client) MultiSynthesize(ctx context.Context, queries [][]byte, styleID int) ([]byte, error) {
	const endpoint = endpointMultiSynthesis

	if len(queries) == 0 {
		return nil, &ErrNilQuery{Index: 0}
	}
	var body bytes.Buffer
	body.WriteByte('[')
	for i, q := range queries {
		if len(q) == 0 {
			return nil, &ErrNilQuery{Index: i}
		}
		if i > 0 {
			body.WriteByte(',')
		}
		body.Write(q)
	}
	body.WriteByte(']')

	return c.postJSON(ctx, endpoint, body.Bytes(), styleID, "application/zip")
}

// postJSON は合成系エンドポイントへ JSON ボディを POST します。
// Accept ヘッダー設定が必須なため、httpkit.DoRequest を基盤としてリクエストを手動で構築する。
func (c *Client) postJSON(ctx context.Context, endpoint string, payload []byte, styleID int, accept string) ([]byte, error) {
	u, err := c.buildURL(endpoint, styleParam(styleID))
	if err != nil {
		return nil, err
	}
	if err := c.wait(ctx, endpoint); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, &ErrAPINetwork{Endpoint: endpoint, WrappedErr: fmt.Errorf("リクエスト構築失敗: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)

	data, err := c.synthClient.DoRequest(req)
	if err != nil {
		return nil, &ErrAPINetwork{Endpoint: endpoint, WrappedErr: err}
	}
	return data, nil
}
