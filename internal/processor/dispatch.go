// dispatch.go delivers an accepted recognition to the store, Frigate and MQTT.
package processor

import (
	"context"

	"github.com/ocrwatch/frigate-ocr/internal/datastore"
	"github.com/ocrwatch/frigate-ocr/internal/errors"
	"github.com/ocrwatch/frigate-ocr/internal/frigate"
	"github.com/ocrwatch/frigate-ocr/internal/logger"
	"github.com/ocrwatch/frigate-ocr/internal/mqtt"
	"github.com/ocrwatch/frigate-ocr/internal/observability/metrics"
)

// Dispatch steps, also used as metric labels.
const (
	StepStore    = "store"
	StepSubLabel = "sublabel"
	StepPublish  = "publish"
	StepSnapshot = "snapshot"
)

// PlateStore persists recognitions.
type PlateStore interface {
	DedupChecker
	Save(ctx context.Context, plate *datastore.Plate) error
}

// FrigateAPI is the part of the Frigate HTTP API the pipeline uses.
type FrigateAPI interface {
	GetSnapshot(ctx context.Context, camera, eventID string, crop bool) ([]byte, error)
	SetSubLabel(ctx context.Context, eventID, text string) error
	FinalAttributes(ctx context.Context, eventID string) ([]frigate.Attribute, error)
}

// Publisher sends result messages to the bus.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// SnapshotWriter stores annotated snapshots.
type SnapshotWriter interface {
	Save(png []byte, camera, plate string, box []float64) (string, error)
}

// DispatchOptions are the settings the dispatcher reads.
type DispatchOptions struct {
	// ResultTopic empty disables publishing.
	ResultTopic        string
	SaveSnapshots      bool
	AlwaysSaveSnapshot bool
	FrigatePlus        bool
}

// DispatchReport records what each step did. Errors holds failed steps only.
type DispatchReport struct {
	Stored          bool
	AlreadyRecorded bool
	SubLabeled      bool
	Published       bool
	SnapshotPath    string
	Errors          map[string]error
}

func (r *DispatchReport) failed(step string, err error) {
	if r.Errors == nil {
		r.Errors = make(map[string]error)
	}
	r.Errors[step] = err
}

// Dispatcher runs each step independently; one failing step never stops the
// next.
type Dispatcher struct {
	opts      DispatchOptions
	store     PlateStore
	frigate   FrigateAPI
	publisher Publisher
	snapshots SnapshotWriter
	metrics   *metrics.PipelineMetrics
}

// NewDispatcher wires the dispatcher. publisher and snapshots may be nil.
func NewDispatcher(opts DispatchOptions, store PlateStore, api FrigateAPI, publisher Publisher, snapshots SnapshotWriter, m *metrics.PipelineMetrics) *Dispatcher {
	return &Dispatcher{
		opts:      opts,
		store:     store,
		frigate:   api,
		publisher: publisher,
		snapshots: snapshots,
		metrics:   m,
	}
}

// Dispatch delivers outcome for event. A nil outcome only saves the snapshot,
// and only when always-save is configured.
func (d *Dispatcher) Dispatch(ctx context.Context, event *frigate.EventSnapshot, outcome *Outcome) DispatchReport {
	var report DispatchReport
	log := GetLogger().WithContext(ctx).With(
		logger.String("event_id", event.ID),
		logger.String("camera", event.Camera))

	if outcome != nil {
		startTime := event.FormattedStartTime()
		d.record(ctx, log, event, outcome, startTime, &report)
		d.subLabel(ctx, log, event, outcome, &report)
		d.publish(ctx, log, event, outcome, startTime, &report)
	}

	if d.opts.SaveSnapshots && (outcome != nil || d.opts.AlwaysSaveSnapshot) {
		plate := ""
		if outcome != nil {
			plate = outcome.Text
		}
		path, err := d.saveSnapshot(ctx, event, plate)
		if err != nil {
			d.stepFailed(log, &report, StepSnapshot, err)
		} else {
			report.SnapshotPath = path
		}
	}
	return report
}

func (d *Dispatcher) record(ctx context.Context, log logger.Logger, event *frigate.EventSnapshot, outcome *Outcome, startTime string, report *DispatchReport) {
	if d.store == nil {
		return
	}
	err := d.store.Save(ctx, &datastore.Plate{
		DetectionTime: startTime,
		Score:         outcome.Score,
		PlateNumber:   outcome.Text,
		FrigateEvent:  event.ID,
		CameraName:    event.Camera,
	})
	switch {
	case err == nil:
		report.Stored = true
		log.Info("plate recorded", logger.String("plate", outcome.Text))
	case errors.Is(err, datastore.ErrAlreadyRecorded):
		report.AlreadyRecorded = true
		log.Info("plate already recorded for event")
	default:
		d.stepFailed(log, report, StepStore, err)
	}
}

func (d *Dispatcher) subLabel(ctx context.Context, log logger.Logger, event *frigate.EventSnapshot, outcome *Outcome, report *DispatchReport) {
	if d.frigate == nil {
		return
	}
	if err := d.frigate.SetSubLabel(ctx, event.ID, outcome.Text); err != nil {
		d.stepFailed(log, report, StepSubLabel, err)
		return
	}
	report.SubLabeled = true
	fields := []logger.Field{logger.String("sub_label", frigate.SubLabel(outcome.Text))}
	if outcome.Score != nil {
		fields = append(fields, logger.Float64("score", *outcome.Score))
	}
	log.Info("sublabel set", fields...)
}

func (d *Dispatcher) publish(ctx context.Context, log logger.Logger, event *frigate.EventSnapshot, outcome *Outcome, startTime string, report *DispatchReport) {
	if d.opts.ResultTopic == "" || d.publisher == nil {
		return
	}
	dto := &mqtt.PlateResultDTO{
		OCRText:        outcome.Text,
		Score:          outcome.Score,
		FrigateEventID: event.ID,
		CameraName:     event.Camera,
		StartTime:      startTime,
	}
	if outcome.Watched() {
		dto.WatchedMatch = &mqtt.WatchedMatch{
			FuzzyScore:    outcome.Match.FuzzyScore,
			OriginalPlate: outcome.OCRText,
		}
	}
	payload, err := dto.Marshal()
	if err == nil {
		err = d.publisher.Publish(ctx, d.opts.ResultTopic, payload)
	}
	if err != nil {
		d.stepFailed(log, report, StepPublish, err)
		return
	}
	report.Published = true
}

// saveSnapshot fetches the uncropped clean snapshot and, with Frigate+, the
// final plate box to draw on it.
func (d *Dispatcher) saveSnapshot(ctx context.Context, event *frigate.EventSnapshot, plate string) (string, error) {
	if d.snapshots == nil || d.frigate == nil {
		return "", nil
	}

	var box []float64
	if d.opts.FrigatePlus {
		attrs, err := d.frigate.FinalAttributes(ctx, event.ID)
		if err != nil {
			GetLogger().Warn("final attributes unavailable, saving without plate box",
				logger.String("event_id", event.ID),
				logger.Error(err))
		} else if len(attrs) > 0 {
			box = attrs[0].Box
		}
	}

	img, err := d.frigate.GetSnapshot(ctx, event.Camera, event.ID, false)
	if err != nil {
		return "", err
	}
	return d.snapshots.Save(img, event.Camera, plate, box)
}

func (d *Dispatcher) stepFailed(log logger.Logger, report *DispatchReport, step string, err error) {
	report.failed(step, err)
	d.metrics.RecordDispatchFailure(step)
	log.Error("dispatch step failed", logger.String("step", step), logger.Error(err))
}
