// Package supervisor runs the long-lived services under a suture tree.
package supervisor

import (
	"context"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/ocrwatch/frigate-ocr/internal/logger"
)

// TreeConfig holds supervisor tree configuration.
type TreeConfig struct {
	// FailureThreshold is the number of failures before entering backoff.
	FailureThreshold float64
	// FailureDecay is the rate at which failures decay, in seconds.
	FailureDecay    float64
	FailureBackoff  time.Duration
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig returns suture's own defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

func (c *TreeConfig) applyDefaults() {
	d := DefaultTreeConfig()
	if c.FailureThreshold == 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.FailureDecay == 0 {
		c.FailureDecay = d.FailureDecay
	}
	if c.FailureBackoff == 0 {
		c.FailureBackoff = d.FailureBackoff
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
}

// Tree has two layers: pipeline (MQTT ingest and the event processor) and
// api (the telemetry endpoint). A failing endpoint never restarts ingest.
type Tree struct {
	root     *suture.Supervisor
	pipeline *suture.Supervisor
	api      *suture.Supervisor
	config   TreeConfig
}

// NewTree creates the supervisor tree. Zero config fields take defaults.
func NewTree(config TreeConfig) *Tree {
	config.applyDefaults()

	spec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}
	rootSpec := spec
	rootSpec.EventHook = eventHook(GetLogger())

	root := suture.New("frigate-ocr", rootSpec)
	pipeline := suture.New("pipeline", spec)
	api := suture.New("api", spec)
	root.Add(pipeline)
	root.Add(api)

	return &Tree{root: root, pipeline: pipeline, api: api, config: config}
}

// AddPipelineService adds a service to the pipeline layer.
func (t *Tree) AddPipelineService(svc suture.Service) suture.ServiceToken {
	return t.pipeline.Add(svc)
}

// AddAPIService adds a service to the api layer.
func (t *Tree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// Serve blocks until ctx is canceled and every service has stopped or timed out.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// UnstoppedServiceReport lists services that ignored the shutdown timeout.
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}

func eventHook(log logger.Logger) suture.EventHook {
	return func(ev suture.Event) {
		switch e := ev.(type) {
		case suture.EventServicePanic:
			log.Error("service panicked",
				logger.String("supervisor", e.SupervisorName),
				logger.String("service", e.ServiceName),
				logger.String("panic", e.PanicMsg),
				logger.Float64("failures", e.CurrentFailures),
				logger.Bool("restarting", e.Restarting))
		case suture.EventServiceTerminate:
			log.Warn("service terminated",
				logger.String("supervisor", e.SupervisorName),
				logger.String("service", e.ServiceName),
				logger.Any("error", e.Err),
				logger.Float64("failures", e.CurrentFailures),
				logger.Bool("restarting", e.Restarting))
		case suture.EventBackoff:
			log.Warn("supervisor entering backoff", logger.String("supervisor", e.SupervisorName))
		case suture.EventResume:
			log.Info("supervisor resuming", logger.String("supervisor", e.SupervisorName))
		case suture.EventStopTimeout:
			log.Error("service did not stop in time",
				logger.String("supervisor", e.SupervisorName),
				logger.String("service", e.ServiceName))
		default:
			log.Debug(ev.String())
		}
	}
}
