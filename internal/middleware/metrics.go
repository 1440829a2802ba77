package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores application metrics
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal      *prometheus.CounterVec
	requestsInProgress prometheus.Gauge
	requestDuration    *prometheus.HistogramVec

	runsTotal       *prometheus.CounterVec
	runDuration     prometheus.Histogram
	questionsTotal  *prometheus.CounterVec
	questionLatency prometheus.Histogram
	invocations     prometheus.Gauge
}

// NewMetrics registers every collector on a private registry, so tests can
// build as many instances as they like.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "survey_http_requests_total",
			Help: "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		requestsInProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "survey_http_requests_in_progress",
			Help: "HTTP requests currently being served.",
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "survey_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "survey_runs_total",
			Help: "Analysis runs by outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "survey_run_duration_seconds",
			Help:    "Wall time of a full analysis run.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		questionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "survey_questions_total",
			Help: "Analysed questions by outcome and detected sentiment.",
		}, []string{"outcome", "sentiment"}),
		questionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "survey_question_duration_seconds",
			Help:    "Latency of one question's model call.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
		}),
		invocations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "survey_invocations_in_flight",
			Help: "Model calls currently in flight.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestsTotal, m.requestsInProgress, m.requestDuration,
		m.runsTotal, m.runDuration, m.questionsTotal, m.questionLatency, m.invocations,
	)
	return m
}

// Registry exposes the underlying registry (tests, extra collectors).
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RunFinished implementasi survey.Observer
func (m *Metrics) RunFinished(outcome string, elapsed time.Duration) {
	m.runsTotal.WithLabelValues(outcome).Inc()
	m.runDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) QuestionFinished(outcome, sentiment string, elapsed time.Duration) {
	if sentiment == "" {
		sentiment = "unknown"
	}
	m.questionsTotal.WithLabelValues(outcome, sentiment).Inc()
	m.questionLatency.Observe(elapsed.Seconds())
}

func (m *Metrics) InvocationStarted() { m.invocations.Inc() }

func (m *Metrics) InvocationDone() { m.invocations.Dec() }

// Middleware tracks request metrics
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.requestsInProgress.Inc()
		defer m.requestsInProgress.Dec()
		start := time.Now()

		// Wrap response writer to capture status
		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		m.requestsTotal.WithLabelValues(r.Method, strconv.Itoa(wrapped.statusCode)).Inc()
		m.requestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
