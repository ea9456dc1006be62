package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "meter_reading"

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		[]string{"method", "route"},
	)

	readingsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "readings",
			Name:      "created_total",
			Help:      "Readings created, by category and whether recognition was conclusive.",
		},
		[]string{"category", "recognized"},
	)

	readingsConfirmed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "readings",
			Name:      "confirmed_total",
			Help:      "Readings confirmed, by category.",
		},
		[]string{"category"},
	)

	rejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "readings",
			Name:      "rejections_total",
			Help:      "Business rule rejections, by operation and error code.",
		},
		[]string{"operation", "code"},
	)

	recognitionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "recognition",
			Name:      "duration_seconds",
			Help:      "Duration of upload plus extraction at the recognition provider.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~50s
		},
		[]string{"status"},
	)

	anomalies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "readings",
			Name:      "suspect_total",
			Help:      "Readings flagged by the anomaly detector.",
		},
		[]string{"category"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		readingsCreated,
		readingsConfirmed,
		rejections,
		recognitionDuration,
		anomalies,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler records request count and latency per chi route pattern.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(ww, r)

		route := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// ReadingCreated counts a persisted reading.
func ReadingCreated(category string, recognized bool) {
	readingsCreated.WithLabelValues(category, strconv.FormatBool(recognized)).Inc()
}

// ReadingConfirmed counts a confirmed reading.
func ReadingConfirmed(category string) {
	readingsConfirmed.WithLabelValues(category).Inc()
}

// Rejected counts a business rule rejection.
func Rejected(operation, code string) {
	rejections.WithLabelValues(operation, code).Inc()
}

// ObserveRecognition records a recognition round trip.
func ObserveRecognition(status string, d time.Duration) {
	recognitionDuration.WithLabelValues(status).Observe(d.Seconds())
}

// SuspectReading counts a reading flagged by the anomaly detector.
func SuspectReading(category string) {
	anomalies.WithLabelValues(category).Inc()
}
