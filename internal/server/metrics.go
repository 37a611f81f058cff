package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "oxen",
		Subsystem: "server",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method", "status"})

	nodesServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "oxen",
		Subsystem: "server",
		Name:      "nodes_served_total",
		Help:      "Merkle nodes served or accepted, by direction.",
	}, []string{"direction"})

	bytesTransferred = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "oxen",
		Subsystem: "server",
		Name:      "bytes_transferred_total",
		Help:      "Version-store bytes served or accepted, by direction.",
	}, []string{"direction"})
)

func metricsHandler() http.Handler {
	return promhttp.Handler()
}

// observeRoute records request_duration_seconds for a named route
// (chi's RoutePattern, not the raw path, so /tree/nodes/{hash} stays
// one series regardless of hash value).
func observeRoute(route, method string, status int, start time.Time) {
	requestDuration.WithLabelValues(route, method, http.StatusText(status)).Observe(time.Since(start).Seconds())
}
