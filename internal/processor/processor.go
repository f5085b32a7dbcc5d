// processor.go feeds MQTT messages through the pipeline on one goroutine.
package processor

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ocrwatch/frigate-ocr/internal/conf"
	"github.com/ocrwatch/frigate-ocr/internal/logger"
	"github.com/ocrwatch/frigate-ocr/internal/observability/metrics"
)

const minSweepInterval = time.Minute

type queuedMessage struct {
	payload  []byte
	received time.Time
}

// Processor owns the bounded message queue and its single consumer, so
// messages are handled strictly in delivery order.
type Processor struct {
	pipeline      *Pipeline
	queue         chan queuedMessage
	metrics       *metrics.PipelineMetrics
	sweepInterval time.Duration
}

// New creates a processor with a queue of queueSize messages.
func New(pipeline *Pipeline, queueSize int, ttl time.Duration, m *metrics.PipelineMetrics) *Processor {
	if queueSize <= 0 {
		queueSize = conf.DefaultQueueSize
	}
	sweep := ttl / 2
	if sweep < minSweepInterval {
		sweep = minSweepInterval
	}
	return &Processor{
		pipeline:      pipeline,
		queue:         make(chan queuedMessage, queueSize),
		metrics:       m,
		sweepInterval: sweep,
	}
}

// HandleMessage is the MQTT callback. It never blocks: when the queue is
// full the message is dropped.
func (p *Processor) HandleMessage(topic string, payload []byte) {
	msg := queuedMessage{payload: append([]byte(nil), payload...), received: time.Now()}
	select {
	case p.queue <- msg:
		p.metrics.SetQueueDepth(len(p.queue))
	default:
		p.metrics.RecordQueueDrop()
		GetLogger().Warn("processing queue full, dropping message",
			logger.String("topic", topic),
			logger.Int("capacity", cap(p.queue)))
	}
}

// Serve consumes the queue until ctx is done. It satisfies suture.Service.
func (p *Processor) Serve(ctx context.Context) error {
	GetLogger().Info("event processor started", logger.Int("queue_size", cap(p.queue)))

	sweep := time.NewTicker(p.sweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			GetLogger().Info("event processor stopped", logger.Int("pending", len(p.queue)))
			return ctx.Err()
		case <-sweep.C:
			p.pipeline.Tracker().Sweep()
		case msg := <-p.queue:
			p.metrics.SetQueueDepth(len(p.queue))
			p.process(ctx, msg)
		}
	}
}

func (p *Processor) process(ctx context.Context, msg queuedMessage) {
	ctx = logger.WithTraceID(ctx, uuid.NewString())
	res := p.pipeline.Process(ctx, msg.payload)
	GetLogger().WithContext(ctx).Trace("message handled",
		logger.String("stage", res.Stage),
		logger.String("verdict", res.Verdict.String()),
		logger.Duration("queued", time.Since(msg.received)))
}

func (p *Processor) String() string { return "event-processor" }
