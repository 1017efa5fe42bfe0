package http11

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the Prometheus instrumentation surface for the protocol
// engine. A nil *Metrics is valid everywhere it is accepted; every
// method on it is a no-op in that case, so tests and the pure parser
// path never need a registry.
type Metrics struct {
	connectionsOpened  prometheus.Counter
	connectionsClosed  prometheus.Counter
	requestsTotal      *prometheus.CounterVec
	parseErrorsTotal   *prometheus.CounterVec
	requestsPerConn    prometheus.Histogram
	timeoutFiredTotal  *prometheus.CounterVec
}

// NewMetrics registers navajo_http11_* collectors against reg. Pass
// prometheus.DefaultRegisterer for the process-wide default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		connectionsOpened: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "navajo",
			Subsystem: "http11",
			Name:      "connections_opened_total",
			Help:      "Total number of connections accepted.",
		}),
		connectionsClosed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "navajo",
			Subsystem: "http11",
			Name:      "connections_closed_total",
			Help:      "Total number of connections closed.",
		}),
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "navajo",
			Subsystem: "http11",
			Name:      "requests_total",
			Help:      "Total number of request cycles completed, by method.",
		}, []string{"method"}),
		parseErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "navajo",
			Subsystem: "http11",
			Name:      "parse_errors_total",
			Help:      "Total number of requests rejected by error tag.",
		}, []string{"tag"}),
		requestsPerConn: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "navajo",
			Subsystem: "http11",
			Name:      "requests_per_connection",
			Help:      "Number of requests served on a connection before it closed.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100},
		}),
		timeoutFiredTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "navajo",
			Subsystem: "http11",
			Name:      "timeouts_fired_total",
			Help:      "Total number of REQUEST/KEEP_ALIVE timer expirations.",
		}, []string{"kind"}),
	}
}

// ConnectionOpened records a newly accepted connection.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connectionsOpened.Inc()
}

// ConnectionClosed records a connection closing after serving n requests.
func (m *Metrics) ConnectionClosed(requests int) {
	if m == nil {
		return
	}
	m.connectionsClosed.Inc()
	m.requestsPerConn.Observe(float64(requests))
}

// RequestCompleted records one finished request cycle for method.
func (m *Metrics) RequestCompleted(method string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method).Inc()
}

// ParseError records a request rejected with the given error tag name.
func (m *Metrics) ParseError(tag string) {
	if m == nil {
		return
	}
	m.parseErrorsTotal.WithLabelValues(tag).Inc()
}

// TimeoutFired records a REQUEST or KEEP_ALIVE timer expiring.
func (m *Metrics) TimeoutFired(kind string) {
	if m == nil {
		return
	}
	m.timeoutFiredTotal.WithLabelValues(kind).Inc()
}
