package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Registry = prometheus.NewRegistry()

	MessagesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "peershare",
			Name:      "messages_received_total",
			Help:      "Inbound protocol messages by type.",
		},
		[]string{"type"},
	)

	MessagesDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "peershare",
			Name:      "messages_dropped_total",
			Help:      "Inbound messages dropped for failing to decode.",
		},
	)

	MessagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "peershare",
			Name:      "messages_sent_total",
			Help:      "Outbound protocol messages by type and outcome.",
		},
		[]string{"type", "outcome"},
	)

	SendRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "peershare",
			Name:      "send_retries_total",
			Help:      "Outbound attempts retried after a transient failure.",
		},
	)

	SendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "peershare",
			Name:      "send_duration_seconds",
			Help:      "Latency of outbound exchanges.",
			// Covers 1ms .. ~16s; the per-attempt timeout is 5s.
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		},
		[]string{"type"},
	)

	// ---- Process / build info ----
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "peershare",
			Name:      "build_info",
			Help:      "Build info (constant 1, labeled by version and git_sha).",
		},
		[]string{"version", "git_sha"},
	)

	startTime = time.Now()
	uptime    = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "peershare",
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds.",
		},
		func() float64 { return time.Since(startTime).Seconds() },
	)
)

func init() {
	Registry.MustRegister(MessagesReceived, MessagesDropped, MessagesSent, SendRetries, SendDuration, buildInfo, uptime)
}

// RegisterNodeGauges hooks node-owned state into the registry: the current
// logical clock and the online-peer count. Call once at startup.
func RegisterNodeGauges(clockNow func() uint64, onlinePeers func() int) {
	Registry.MustRegister(
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: "peershare",
				Name:      "logical_clock",
				Help:      "Current value of the Lamport clock.",
			},
			func() float64 { return float64(clockNow()) },
		),
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: "peershare",
				Name:      "online_peers",
				Help:      "Peers currently marked ONLINE in the registry.",
			},
			func() float64 { return float64(onlinePeers()) },
		),
	)
}

// MetricsHandler exposes /metrics. Mount it with mux.Handle("/metrics", telemetry.MetricsHandler()).
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// SetBuildInfo should be called once at startup, e.g. with ldflags-provided values.
func SetBuildInfo(version, gitSHA string) {
	buildInfo.WithLabelValues(version, gitSHA).Set(1)
}
