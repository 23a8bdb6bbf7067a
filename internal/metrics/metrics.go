package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicebot_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voicebot_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	ConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "voicebot_ws_connections_active",
			Help: "Number of currently open WebSocket connections.",
		},
	)

	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicebot_messages_total",
			Help: "Total inbound WebSocket messages by type.",
		},
		[]string{"type"},
	)

	ExchangeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "voicebot_exchange_duration_seconds",
			Help:    "Full text_input pipeline duration (retrieval, completion, synthesis).",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	ProviderFaultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicebot_provider_faults_total",
			Help: "Degraded provider calls by provider (retrieval, llm, tts).",
		},
		[]string{"provider"},
	)

	EmotionInteractionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "voicebot_emotion_interactions_total",
			Help: "Proactive emotion interactions sent.",
		},
	)

	TTSCacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicebot_tts_cache_total",
			Help: "Speech synthesis cache lookups by outcome (hit, miss).",
		},
		[]string{"outcome"},
	)

	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "voicebot_sessions_active",
			Help: "Sessions currently held by the in-memory store.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ConnectionsActive,
		MessagesTotal,
		ExchangeDuration,
		ProviderFaultsTotal,
		EmotionInteractionsTotal,
		TTSCacheHitsTotal,
		SessionsActive,
	)
}
