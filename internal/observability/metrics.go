// Package observability provides metrics and health endpoints for frigate-ocr.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ocrwatch/frigate-ocr/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry  *prometheus.Registry
	MQTT      *metrics.MQTTMetrics
	Pipeline  *metrics.PipelineMetrics
	Frigate   *metrics.FrigateMetrics
	OCR       *metrics.OCRMetrics
	Datastore *metrics.DatastoreMetrics
}

// NewMetrics creates a new instance of Metrics on its own registry.
// ocrBackend labels the OCR collectors.
func NewMetrics(ocrBackend string) (*Metrics, error) {
	registry := prometheus.NewRegistry()

	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("failed to register go collector: %w", err)
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("failed to register process collector: %w", err)
	}

	mqttMetrics, err := metrics.NewMQTTMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create MQTT metrics: %w", err)
	}

	pipelineMetrics, err := metrics.NewPipelineMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}

	frigateMetrics, err := metrics.NewFrigateMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create Frigate metrics: %w", err)
	}

	ocrMetrics, err := metrics.NewOCRMetrics(registry, ocrBackend)
	if err != nil {
		return nil, fmt.Errorf("failed to create OCR metrics: %w", err)
	}

	datastoreMetrics, err := metrics.NewDatastoreMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create Datastore metrics: %w", err)
	}

	return &Metrics{
		registry:  registry,
		MQTT:      mqttMetrics,
		Pipeline:  pipelineMetrics,
		Frigate:   frigateMetrics,
		OCR:       ocrMetrics,
		Datastore: datastoreMetrics,
	}, nil
}

// Handler returns the Prometheus exposition handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}
