package api

import "time"

const (
	// DefaultAPIURL はローカルで起動したVOICEVOXエンジンの既定アドレスです。
	DefaultAPIURL = "http://127.0.0.1:50021"

	DefaultRequestTimeout   = 5 * time.Second
	DefaultSynthesisTimeout = 60 * time.Second

	// リクエスト間隔の下限とバースト数
	DefaultRequestInterval = 20 * time.Millisecond
	DefaultRequestBurst    = 4

	DefaultSpeakerInfoTTL = 30 * time.Minute
)

const (
	endpointVersion        = "/version"
	endpointSpeakers       = "/speakers"
	endpointSpeakerInfo    = "/speaker_info"
	endpointAudioQuery     = "/audio_query"
	endpointSynthesis      = "/synthesis"
	endpointMultiSynthesis = "/multi_synthesis"
)
