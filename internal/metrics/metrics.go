package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rendi_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rendi_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rendi_sessions_active",
			Help: "Number of live speech sessions.",
		},
	)

	SessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rendi_sessions_total",
			Help: "Total number of speech sessions by outcome.",
		},
		[]string{"outcome"},
	)

	AudioFramesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rendi_audio_frames_total",
			Help: "Total number of audio frames received from clients.",
		},
	)

	RecognizerFrameErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rendi_recognizer_frame_errors_total",
			Help: "Total number of audio frames the recognizer rejected.",
		},
	)

	UtterancesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rendi_utterances_total",
			Help: "Total number of final utterances by speaker role.",
		},
		[]string{"role"},
	)

	PipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rendi_pipeline_runs_total",
			Help: "Total number of conversation pipeline runs by status.",
		},
		[]string{"status"},
	)

	PipelineStepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rendi_pipeline_step_duration_seconds",
			Help:    "Latency of each downstream conversation call.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"step"},
	)

	EgressDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rendi_egress_dropped_total",
			Help: "Total number of payloads dropped because the client connection was gone.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		SessionsActive,
		SessionsTotal,
		AudioFramesTotal,
		RecognizerFrameErrors,
		UtterancesTotal,
		PipelineRunsTotal,
		PipelineStepDuration,
		EgressDroppedTotal,
	)
}
