package metrics

import "github.com/prometheus/client_golang/prometheus"

// Streaming answer engine metrics. Registered explicitly from main (no init).
var (
	StreamsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragline",
			Name:      "chat_streams_total",
			Help:      "Answer streams by outcome (done, error, canceled)",
		},
		[]string{"outcome", "mode"},
	)

	StreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragline",
			Name:      "chat_stream_duration_seconds",
			Help:      "Duration of one answer stream",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"mode"},
	)

	RetrievedChunks = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ragline",
			Name:      "chat_retrieved_chunks",
			Help:      "Chunks retrieved per grounded question",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
	)
)

// RegisterChatMetrics registers the streaming metrics with the default registry.
func RegisterChatMetrics() {
	prometheus.MustRegister(StreamsTotal, StreamDuration, RetrievedChunks)
}
