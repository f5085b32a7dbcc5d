package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OCRMetrics tracks calls to the recognition backend. The backend label is
// fixed at construction since only one backend is active per process.
type OCRMetrics struct {
	backend string

	invocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	errorsTotal *prometheus.CounterVec
}

// NewOCRMetrics creates and registers OCR metrics for backend.
func NewOCRMetrics(registry *prometheus.Registry, backend string) (*OCRMetrics, error) {
	m := &OCRMetrics{
		backend: backend,
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ocr_invocations_total",
			Help: "Total number of OCR backend calls",
		}, []string{"backend", "operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ocr_duration_seconds",
			Help:    "Latency of OCR backend calls",
			Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12), // 10ms to ~40s
		}, []string{"backend", "operation"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ocr_errors_total",
			Help: "Total number of OCR backend errors",
		}, []string{"backend", "operation", "error_type"}),
	}

	for _, c := range []prometheus.Collector{m.invocations, m.duration, m.errorsTotal} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordOperation implements Recorder.
func (m *OCRMetrics) RecordOperation(operation, status string) {
	m.invocations.WithLabelValues(m.backend, operation, status).Inc()
}

// RecordDuration implements Recorder.
func (m *OCRMetrics) RecordDuration(operation string, seconds float64) {
	m.duration.WithLabelValues(m.backend, operation).Observe(seconds)
}

// RecordError implements Recorder.
func (m *OCRMetrics) RecordError(operation, errorType string) {
	m.errorsTotal.WithLabelValues(m.backend, operation, errorType).Inc()
}
