package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "countdown_http_request_duration_seconds",
		Help:    "HTTP request latencies in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	httpRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "countdown_http_requests_in_flight",
		Help: "Current number of HTTP requests being served",
	})

	shareResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "countdown_shares_total",
		Help: "Share attempts by result",
	}, []string{"result"})

	resolveResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "countdown_resolves_total",
		Help: "Shared countdown lookups by outcome",
	}, []string{"outcome"})

	activeStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "countdown_streams_active",
		Help: "Countdown event streams currently open",
	})
)

// Metrics records request duration and in-flight requests, labelled by chi
// route pattern to keep cardinality bounded.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequestDuration.WithLabelValues(r.Method, path, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
