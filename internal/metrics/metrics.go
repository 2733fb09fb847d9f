// Package metrics exposes the server's Prometheus collectors: one counter
// vector per event of interest, labeled by protocol (connections, frames)
// or by topic (publishes), served over /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every counter/gauge the supervisor and sessions update.
type Registry struct {
	ConnectionsOpened  *prometheus.CounterVec
	ConnectionsClosed  *prometheus.CounterVec
	FramesDecoded      *prometheus.CounterVec
	FramesMalformed    *prometheus.CounterVec
	PublishesEnqueued  *prometheus.CounterVec
	PublishesDropped   *prometheus.CounterVec
	PublishFailures    *prometheus.CounterVec
}

// New registers and returns the server's metrics on the default registerer.
func New() *Registry {
	return &Registry{
		ConnectionsOpened: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gpsingest_connections_opened_total",
			Help: "TCP connections accepted, by protocol.",
		}, []string{"protocol"}),
		ConnectionsClosed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gpsingest_connections_closed_total",
			Help: "TCP connections closed, by protocol.",
		}, []string{"protocol"}),
		FramesDecoded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gpsingest_frames_decoded_total",
			Help: "Frames successfully decoded, by protocol and kind.",
		}, []string{"protocol", "kind"}),
		FramesMalformed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gpsingest_frames_malformed_total",
			Help: "Frames rejected as malformed, by protocol.",
		}, []string{"protocol"}),
		PublishesEnqueued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gpsingest_publishes_enqueued_total",
			Help: "Records enqueued to the bus, by topic.",
		}, []string{"topic"}),
		PublishesDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gpsingest_publishes_dropped_total",
			Help: "Records dropped before enqueue (e.g. missing IMEI), by topic.",
		}, []string{"topic"}),
		PublishFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gpsingest_publish_failures_total",
			Help: "Bus writes that failed, by topic.",
		}, []string{"topic"}),
	}
}

// Handler returns the HTTP handler to mount at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
