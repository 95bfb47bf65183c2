package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "critic",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Admin HTTP requests handled.",
	}, []string{"method", "path", "status_class"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "critic",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Admin HTTP request latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status_class"})
)

func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Avoid recursive scrape accounting.
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		class := statusClass(rec.status)
		requestTotal.WithLabelValues(r.Method, r.URL.Path, class).Inc()
		requestDuration.WithLabelValues(r.Method, r.URL.Path, class).
			Observe(time.Since(start).Seconds())
	})
}

func metricsHandler() http.Handler {
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}

func jsonResponse(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
