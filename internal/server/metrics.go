package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes server metrics in Prometheus format. Iteration-level
// metrics are recorded by the eigen package.
type Metrics struct {
	handler http.Handler
}

var (
	activeRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "keffcalc_http_active_requests",
		Help: "Current number of active requests",
	})
	totalRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "keffcalc_http_requests_total",
		Help: "Total number of requests received",
	})
	responses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keffcalc_http_responses_total",
		Help: "Responses by route and status code",
	}, []string{"route", "code"})
	solves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keffcalc_http_solves_total",
		Help: "Solve requests by problem and outcome",
	}, []string{"problem", "status"})
	solveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "keffcalc_http_solve_duration_seconds",
		Help:    "Duration of solve requests",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	})
)

// NewMetrics creates a new Metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{handler: promhttp.Handler()}
}

// IncrementActiveRequests increments the active requests gauge and the
// total requests counter.
func (m *Metrics) IncrementActiveRequests() {
	activeRequests.Inc()
	totalRequests.Inc()
}

// DecrementActiveRequests decrements the active requests gauge.
func (m *Metrics) DecrementActiveRequests() {
	activeRequests.Dec()
}

// ObserveResponse counts a response. Problem names are folded into one
// route label to keep cardinality bounded.
func (m *Metrics) ObserveResponse(path, code string) {
	if strings.HasPrefix(path, "/problems/") {
		path = "/problems/{name}"
	}
	responses.WithLabelValues(path, code).Inc()
}

// ObserveSolve records the outcome of one solve request.
func (m *Metrics) ObserveSolve(problem, status string, d time.Duration) {
	solves.WithLabelValues(problem, status).Inc()
	solveDuration.Observe(d.Seconds())
}

// WritePrometheus writes metrics in Prometheus text format.
func (m *Metrics) WritePrometheus(w http.ResponseWriter, r *http.Request) {
	m.handler.ServeHTTP(w, r)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.metrics.WritePrometheus(w, r)
}
