// pipeline.go composes the stages that handle one event message.
package processor

import (
	"context"
	"time"

	"github.com/ocrwatch/frigate-ocr/internal/conf"
	"github.com/ocrwatch/frigate-ocr/internal/errors"
	"github.com/ocrwatch/frigate-ocr/internal/frigate"
	"github.com/ocrwatch/frigate-ocr/internal/logger"
	"github.com/ocrwatch/frigate-ocr/internal/observability/metrics"
	"github.com/ocrwatch/frigate-ocr/internal/ocr"
	"github.com/ocrwatch/frigate-ocr/internal/watchlist"
)

// Deps are the collaborators of a Pipeline. Recognizer, Publisher and
// Snapshots may be nil.
type Deps struct {
	Settings   *conf.Settings
	Store      PlateStore
	Frigate    FrigateAPI
	Recognizer ocr.Recognizer
	Publisher  Publisher
	Snapshots  SnapshotWriter
	Metrics    *metrics.PipelineMetrics
}

// Pipeline handles one message at a time: lifecycle, admission, state,
// fetch, recognize, dispatch.
type Pipeline struct {
	tracker      *Tracker
	admission    *Admission
	frigate      FrigateAPI
	orchestrator *Orchestrator
	dispatcher   *Dispatcher
	metrics      *metrics.PipelineMetrics
	maxAttempts  int
}

// NewPipeline wires the stages from deps.
func NewPipeline(deps Deps) *Pipeline {
	fs := &deps.Settings.Frigate
	return &Pipeline{
		tracker:      NewTracker(fs.EventTTL),
		admission:    NewAdmission(fs, deps.Store),
		frigate:      deps.Frigate,
		orchestrator: NewOrchestrator(deps.Recognizer, watchlist.New(fs.WatchedOCR, fs.FuzzyMatch), fs.MinScore),
		dispatcher: NewDispatcher(DispatchOptions{
			ResultTopic:        deps.Settings.ResultTopic(),
			SaveSnapshots:      fs.SaveCleanSnapshots,
			AlwaysSaveSnapshot: fs.AlwaysSaveCleanSnapshot,
			FrigatePlus:        fs.FrigatePlus,
		}, deps.Store, deps.Frigate, deps.Publisher, deps.Snapshots, deps.Metrics),
		metrics:     deps.Metrics,
		maxAttempts: fs.MaxAttempts,
	}
}

// Tracker exposes the event state, for sweeping and tests.
func (p *Pipeline) Tracker() *Tracker { return p.tracker }

// message carries per-message state between stages.
type message struct {
	msg     *frigate.EventMessage
	event   *frigate.EventSnapshot
	tracked bool
	image   []byte
	outcome *Outcome
	log     logger.Logger
}

// Process runs payload through every stage. It never panics on bad input
// and never returns an error; failures are reported in the Result.
func (p *Pipeline) Process(ctx context.Context, payload []byte) Result {
	start := time.Now()
	defer func() { p.metrics.ObserveMessage(time.Since(start)) }()

	log := GetLogger().WithContext(ctx)
	msg, err := frigate.ParseEventMessage(payload)
	if err != nil {
		// A malformed message still counts as the first one.
		p.admission.ConsumeFirst()
		log.Warn("discarding malformed event message", logger.Error(err))
		p.metrics.RecordFailure(StageLifecycle)
		return Result{Stage: StageLifecycle, StageResult: fail(err)}
	}

	m := &message{
		msg:   msg,
		event: msg.After,
		log: log.With(
			logger.String("event_id", msg.After.ID),
			logger.String("camera", msg.After.Camera),
			logger.String("type", string(msg.Type))),
	}

	unlock := p.tracker.Lock(m.event.ID)
	defer unlock()

	stages := []struct {
		name string
		run  func(context.Context, *message) StageResult
	}{
		{StageLifecycle, p.lifecycle},
		{StageAdmission, p.admit},
		{StageState, p.state},
		{StageFetch, p.fetch},
		{StageRecognize, p.recognize},
		{StageDispatch, p.dispatch},
	}

	for _, s := range stages {
		res := s.run(ctx, m)
		switch res.Verdict {
		case Skip:
			m.log.Debug("skipped", logger.String("stage", s.name), logger.String("reason", res.Reason))
			p.metrics.RecordSkip(s.name, res.Reason)
			return Result{Stage: s.name, StageResult: res, Outcome: m.outcome}
		case Fail:
			m.log.Error("stage failed", logger.String("stage", s.name), logger.Error(res.Err))
			p.metrics.RecordFailure(s.name)
			return Result{Stage: s.name, StageResult: res, Outcome: m.outcome}
		}
	}
	return Result{Stage: StageDispatch, StageResult: proceed(), Outcome: m.outcome}
}

// lifecycle ends tracking on a terminal message. The first-message guard is
// consumed here too so an end message cannot let a later stale one through.
func (p *Pipeline) lifecycle(_ context.Context, m *message) StageResult {
	m.tracked = p.tracker.Tracked(m.event.ID)
	if !m.msg.IsTerminal() {
		return proceed()
	}
	if m.tracked {
		m.log.Debug("clearing event", logger.Int("attempts", p.tracker.Attempts(m.event.ID)))
		p.tracker.Delete(m.event.ID)
	}
	p.admission.ConsumeFirst()
	return skip(ReasonEventEnded)
}

func (p *Pipeline) admit(ctx context.Context, m *message) StageResult {
	d := p.admission.Evaluate(ctx, m.msg, m.tracked)
	if !d.Eligible {
		return skip(d.Reason)
	}
	return proceed()
}

// state inserts the event and enforces the attempt budget.
func (p *Pipeline) state(_ context.Context, m *message) StageResult {
	p.tracker.Track(m.event.ID)
	if p.tracker.Exhausted(m.event.ID, p.maxAttempts) {
		m.log.Debug("maximum OCR attempts reached",
			logger.Int("attempts", p.tracker.Attempts(m.event.ID)),
			logger.Int("max_attempts", p.maxAttempts))
		return skip(ReasonBudgetExhausted)
	}
	return proceed()
}

// fetch gets the cropped clean snapshot. Failure resets the event so the
// next message starts a fresh budget.
func (p *Pipeline) fetch(ctx context.Context, m *message) StageResult {
	if p.frigate == nil {
		return fail(errors.Newf("frigate api client not configured").
			Component("processor").
			Category(errors.CategoryConfiguration).
			Build())
	}
	img, err := p.frigate.GetSnapshot(ctx, m.event.Camera, m.event.ID, true)
	if err != nil {
		p.tracker.Delete(m.event.ID)
		m.log.Info("clean snapshot not available yet", logger.Error(err))
		return skip(ReasonSnapshotNotReady)
	}
	m.image = img
	return proceed()
}

// recognize runs OCR. The attempt is counted whether or not OCR succeeds,
// but not when no backend exists.
func (p *Pipeline) recognize(ctx context.Context, m *message) StageResult {
	if !p.orchestrator.Available() {
		return fail(errors.New(ErrNoRecognizer).
			Component("processor").
			Category(errors.CategoryConfiguration).
			Context("event_id", m.event.ID).
			Build())
	}

	outcome, reason, err := p.orchestrator.Recognize(ctx, m.image)
	attempts := p.tracker.Increment(m.event.ID)
	m.log.Debug("OCR attempt", logger.Int("attempts", attempts))

	if err != nil {
		return fail(err)
	}
	if outcome == nil {
		if p.dispatcher.opts.AlwaysSaveSnapshot {
			// nothing to report, but the clean snapshot is still wanted
			p.dispatcher.Dispatch(ctx, m.event, nil)
		}
		return skip(reason)
	}

	m.outcome = outcome
	p.metrics.RecordRecognition(outcome.MatchKind())
	m.log.Info("plate recognized",
		logger.String("plate", outcome.Text),
		logger.String("ocr_text", outcome.OCRText),
		logger.String("match", outcome.MatchKind()))
	return proceed()
}

func (p *Pipeline) dispatch(ctx context.Context, m *message) StageResult {
	report := p.dispatcher.Dispatch(ctx, m.event, m.outcome)
	if len(report.Errors) > 0 {
		m.log.Warn("recognition delivered with errors", logger.Int("failed_steps", len(report.Errors)))
	}
	return proceed()
}
