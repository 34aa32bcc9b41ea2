package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors exported on /metrics.
type Metrics struct {
	registry *prometheus.Registry

	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	outboundCallsTotal   *prometheus.CounterVec
	outboundAttempts     *prometheus.HistogramVec
	outboundCallDuration *prometheus.HistogramVec

	authFailuresTotal *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		outboundCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbound_calls_total",
			Help: "Outbound calls to external services by target and outcome.",
		}, []string{"target", "outcome"}),
		outboundAttempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "outbound_call_attempts",
			Help:    "Attempts made per outbound call.",
			Buckets: []float64{0, 1, 2, 3, 5, 8},
		}, []string{"target"}),
		outboundCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "outbound_call_duration_seconds",
			Help:    "Outbound call latency including retries and backoff.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"target"}),
		authFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_failures_total",
			Help: "Authentication failures by reason.",
		}, []string{"reason"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpInFlight,
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.outboundCallsTotal,
		m.outboundAttempts,
		m.outboundCallDuration,
		m.authFailuresTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveCall records one outbound Execute.
func (m *Metrics) ObserveCall(target string, outcome string, attempts int, elapsed time.Duration) {
	m.outboundCallsTotal.WithLabelValues(target, outcome).Inc()
	m.outboundAttempts.WithLabelValues(target).Observe(float64(attempts))
	m.outboundCallDuration.WithLabelValues(target).Observe(elapsed.Seconds())
}

// ObserveAuthFailure counts a rejected authentication attempt.
func (m *Metrics) ObserveAuthFailure(reason string) {
	m.authFailuresTotal.WithLabelValues(reason).Inc()
}

// Instrument measures request rate, latency, and in-flight count. The route
// label is the chi route pattern so path parameters do not explode cardinality.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := strconv.Itoa(sw.code)

		m.httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		m.httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code        int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.code = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	if !w.wroteHeader {
		w.code = http.StatusSwitchingProtocols
		w.wroteHeader = true
	}
	return hijacker.Hijack()
}
