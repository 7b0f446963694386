package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// Middleware records per-route request durations into the given registry
type Middleware struct {
	histRequestDuration *prometheus.HistogramVec
}

func New(reg prometheus.Registerer, buckets []float64) *Middleware {
	if buckets == nil {
		buckets = defaultBuckets
	}

	factory := promauto.With(reg)
	return &Middleware{
		histRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of response time per wrapped route in seconds",
			Buckets: buckets,
		}, []string{"route", "method", "status_code"}),
	}
}

func (m *Middleware) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		begin := time.Now()
		next.ServeHTTP(resp, r)

		m.histRequestDuration.With(prometheus.Labels{
			"route":       route,
			"method":      r.Method,
			"status_code": strconv.Itoa(resp.statusCode),
		}).Observe(time.Since(begin).Seconds())
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (r *responseWriter) WriteHeader(statusCode int) {
	r.ResponseWriter.WriteHeader(statusCode)
	r.statusCode = statusCode
}
