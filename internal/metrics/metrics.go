package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stream",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "stream",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method", "path"})

	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "stream",
		Name:      "active_sessions",
		Help:      "Number of currently active torrent sessions.",
	})

	SessionJoinsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stream",
		Name:      "session_joins_total",
		Help:      "Total swarm join attempts by outcome (ok, metadata_timeout, no_video_file, error).",
	}, []string{"outcome"})

	SessionsReapedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "stream",
		Name:      "sessions_reaped_total",
		Help:      "Total sessions destroyed by the idle reaper.",
	})

	BytesServedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "stream",
		Name:      "bytes_served_total",
		Help:      "Total payload bytes written to stream clients.",
	})

	DownloadSpeedBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "stream",
		Name:      "download_speed_bytes",
		Help:      "Current aggregate download speed in bytes per second.",
	})

	UploadSpeedBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "stream",
		Name:      "upload_speed_bytes",
		Help:      "Current aggregate upload speed in bytes per second.",
	})

	PeersConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "stream",
		Name:      "peers_connected",
		Help:      "Total number of peers connected across all sessions.",
	})

	SearchRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stream",
		Name:      "search_requests_total",
		Help:      "Total discovery queries per source by outcome.",
	}, []string{"source", "outcome"})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ActiveSessions,
		SessionJoinsTotal,
		SessionsReapedTotal,
		BytesServedTotal,
		DownloadSpeedBytes,
		UploadSpeedBytes,
		PeersConnected,
		SearchRequestsTotal,
	)
}
