// Package metrics holds the Prometheus collectors shared by the service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// IngestTotal counts submissions by outcome: ok, invalid, malformed_date, store_error.
	IngestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "climate_ingest_total",
		Help: "Measurement submissions by outcome",
	}, []string{"result"})

	BroadcastListeners = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "climate_broadcast_listeners",
		Help: "Currently subscribed live listeners",
	})
	BroadcastPublishedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "climate_broadcast_published_total",
		Help: "Measurements published to the broadcaster",
	})
	BroadcastDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "climate_broadcast_dropped_total",
		Help: "Buffered messages evicted because a listener fell behind",
	})
	BroadcastDisconnectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "climate_broadcast_disconnected_total",
		Help: "Listeners disconnected because their buffer overflowed",
	})

	StoreDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "climate_store_duration_seconds",
		Help:    "Duration of store operations in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"op", "result"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "climate_http_requests_total",
		Help: "HTTP requests by route pattern and status code",
	}, []string{"route", "code"})
	HTTPDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "climate_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	registerOnce sync.Once
)

// Register adds every collector to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			IngestTotal,
			BroadcastListeners,
			BroadcastPublishedTotal,
			BroadcastDroppedTotal,
			BroadcastDisconnectedTotal,
			StoreDurationSeconds,
			HTTPRequestsTotal,
			HTTPDurationSeconds,
		)
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	Register()
	return promhttp.Handler()
}

// ObserveStore records one store operation.
func ObserveStore(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	StoreDurationSeconds.WithLabelValues(op, result).Observe(time.Since(start).Seconds())
}

// ObserveHTTP records one request against its route pattern.
func ObserveHTTP(route string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	HTTPDurationSeconds.WithLabelValues(route).Observe(d.Seconds())
}
