package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// FrigateMetrics tracks calls against the Frigate HTTP API.
type FrigateMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	transportErrors *prometheus.CounterVec
	responseSize    *prometheus.HistogramVec
	breakerState    prometheus.Gauge
}

// NewFrigateMetrics creates and registers Frigate API metrics.
func NewFrigateMetrics(registry *prometheus.Registry) (*FrigateMetrics, error) {
	m := &FrigateMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "frigate_api_requests_total",
			Help: "Total number of Frigate API requests",
		}, []string{"endpoint", "status_code"}), // endpoint: snapshot, sub_label, event
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "frigate_api_request_duration_seconds",
			Help:    "Latency of Frigate API requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		transportErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "frigate_api_transport_errors_total",
			Help: "Frigate API requests that failed before a response",
		}, []string{"endpoint"}),
		responseSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "frigate_api_response_size_bytes",
			Help:    "Declared size of Frigate API responses",
			Buckets: prometheus.ExponentialBuckets(BucketStart1KB, BucketFactor2, BucketCount12), // 1KB to ~4MB
		}, []string{"endpoint"}),
		breakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "frigate_api_circuit_state",
			Help: "Circuit breaker state for the Frigate API (0 closed, 1 half-open, 2 open)",
		}),
	}

	for _, c := range []prometheus.Collector{m.requestsTotal, m.requestDuration, m.transportErrors, m.responseSize, m.breakerState} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveResponse records a completed request. size < 0 means unknown.
func (m *FrigateMetrics) ObserveResponse(endpoint string, statusCode int, seconds float64, size int64) {
	m.requestsTotal.WithLabelValues(endpoint, strconv.Itoa(statusCode)).Inc()
	m.requestDuration.WithLabelValues(endpoint).Observe(seconds)
	if size >= 0 {
		m.responseSize.WithLabelValues(endpoint).Observe(float64(size))
	}
}

// ObserveTransportError records a request that got no response.
func (m *FrigateMetrics) ObserveTransportError(endpoint string, seconds float64) {
	m.transportErrors.WithLabelValues(endpoint).Inc()
	m.requestDuration.WithLabelValues(endpoint).Observe(seconds)
}

// SetBreakerState records the numeric circuit breaker state.
func (m *FrigateMetrics) SetBreakerState(state int) {
	m.breakerState.Set(float64(state))
}
