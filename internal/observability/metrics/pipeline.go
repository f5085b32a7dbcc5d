package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics covers the event processing pipeline from queue to dispatch.
// All methods are safe to call on a nil receiver.
type PipelineMetrics struct {
	MessagesTotal      prometheus.Counter
	QueueDrops         prometheus.Counter
	QueueDepth         prometheus.Gauge
	SkipsTotal         *prometheus.CounterVec
	FailuresTotal      *prometheus.CounterVec
	RecognitionsTotal  *prometheus.CounterVec
	DispatchFailures   *prometheus.CounterVec
	ProcessingDuration prometheus.Histogram

	collectors []prometheus.Collector
}

// NewPipelineMetrics creates and registers pipeline metrics.
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *PipelineMetrics) initMetrics() {
	m.MessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_messages_total",
		Help: "Total number of Frigate event messages processed",
	})
	m.QueueDrops = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_queue_drops_total",
		Help: "Messages dropped because the processing queue was full",
	})
	m.QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pipeline_queue_depth",
		Help: "Messages waiting in the processing queue",
	})
	m.SkipsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_skips_total",
		Help: "Messages that stopped at a stage without error",
	}, []string{"stage", "reason"})
	m.FailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_failures_total",
		Help: "Messages that stopped at a stage with an error",
	}, []string{"stage"})
	m.RecognitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_recognitions_total",
		Help: "Accepted plate recognitions by watch-list match kind",
	}, []string{"match"}) // match: exact, fuzzy, none
	m.DispatchFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_dispatch_failures_total",
		Help: "Failed side effects after a recognition",
	}, []string{"step"}) // step: store, sublabel, publish, snapshot
	m.ProcessingDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pipeline_processing_duration_seconds",
		Help:    "Time spent processing a single message",
		Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12),
	})

	m.collectors = []prometheus.Collector{
		m.MessagesTotal, m.QueueDrops, m.QueueDepth, m.SkipsTotal,
		m.FailuresTotal, m.RecognitionsTotal, m.DispatchFailures, m.ProcessingDuration,
	}
}

// Describe implements the Collector interface
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}

func (m *PipelineMetrics) ObserveMessage(d time.Duration) {
	if m == nil {
		return
	}
	m.MessagesTotal.Inc()
	m.ProcessingDuration.Observe(d.Seconds())
}

func (m *PipelineMetrics) RecordSkip(stage, reason string) {
	if m == nil {
		return
	}
	m.SkipsTotal.WithLabelValues(stage, reason).Inc()
}

func (m *PipelineMetrics) RecordFailure(stage string) {
	if m == nil {
		return
	}
	m.FailuresTotal.WithLabelValues(stage).Inc()
}

func (m *PipelineMetrics) RecordRecognition(match string) {
	if m == nil {
		return
	}
	m.RecognitionsTotal.WithLabelValues(match).Inc()
}

func (m *PipelineMetrics) RecordDispatchFailure(step string) {
	if m == nil {
		return
	}
	m.DispatchFailures.WithLabelValues(step).Inc()
}

func (m *PipelineMetrics) RecordQueueDrop() {
	if m == nil {
		return
	}
	m.QueueDrops.Inc()
}

func (m *PipelineMetrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}
