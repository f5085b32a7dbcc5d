package processor

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocrwatch/frigate-ocr/internal/errors"
	"github.com/ocrwatch/frigate-ocr/internal/frigate"
	"github.com/ocrwatch/frigate-ocr/internal/observability/metrics"
	"github.com/ocrwatch/frigate-ocr/internal/watchlist"
)

type dispatchFixture struct {
	store     *fakeStore
	frigate   *fakeFrigate
	publisher *fakePublisher
	snapshots *fakeSnapshots
	metrics   *metrics.PipelineMetrics
}

func newDispatchFixture(t *testing.T) *dispatchFixture {
	t.Helper()
	m, err := metrics.NewPipelineMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	return &dispatchFixture{
		store:     newFakeStore(),
		frigate:   newFakeFrigate(),
		publisher: &fakePublisher{},
		snapshots: &fakeSnapshots{},
		metrics:   m,
	}
}

func (f *dispatchFixture) dispatcher(opts DispatchOptions) *Dispatcher {
	return NewDispatcher(opts, f.store, f.frigate, f.publisher, f.snapshots, f.metrics)
}

func plainOutcome() *Outcome {
	return &Outcome{Text: "XYZ987", OCRText: "XYZ987", Score: score(0.82)}
}

func TestDispatchAllSteps(t *testing.T) {
	t.Parallel()
	f := newDispatchFixture(t)
	d := f.dispatcher(DispatchOptions{ResultTopic: "frigate/plates", SaveSnapshots: true})
	ev := event(frigate.TypeUpdate, "N1", 0.8, 0.9).After

	report := d.Dispatch(t.Context(), ev, plainOutcome())
	assert.Empty(t, report.Errors)
	assert.True(t, report.Stored)
	assert.True(t, report.SubLabeled)
	assert.True(t, report.Published)
	assert.Equal(t, "/plates/XYZ987.png", report.SnapshotPath)

	plate, ok := f.store.get("N1")
	require.True(t, ok)
	assert.Equal(t, ev.FormattedStartTime(), plate.DetectionTime)
	assert.Equal(t, "XYZ987", plate.PlateNumber)
	assert.Equal(t, "driveway", plate.CameraName)

	require.Len(t, f.publisher.messages, 1)
	payload := f.publisher.messages[0].payload
	assert.Equal(t, "frigate/plates", f.publisher.messages[0].topic)
	assert.Equal(t, ev.FormattedStartTime(), payload["start_time"])
	assert.NotContains(t, payload, "fuzzy_score")
	assert.NotContains(t, payload, "original_plate")
	assert.Len(t, payload, 5)

	require.Len(t, f.snapshots.saved, 1)
	assert.Equal(t, "XYZ987", f.snapshots.saved[0].plate)
	assert.Nil(t, f.snapshots.saved[0].box)
	assert.False(t, f.frigate.snapshots[0].crop, "saved snapshots are uncropped")
}

func TestDispatchExactMatchPublishesNullFuzzyScore(t *testing.T) {
	t.Parallel()
	f := newDispatchFixture(t)
	d := f.dispatcher(DispatchOptions{ResultTopic: "frigate/plates"})

	outcome := &Outcome{
		Text:    "ABC123",
		OCRText: "ABC123",
		Match:   watchlist.Match{Entry: "abc123"},
	}
	d.Dispatch(t.Context(), event(frigate.TypeUpdate, "N2", 0.8, 0.9).After, outcome)

	require.Len(t, f.publisher.messages, 1)
	payload := f.publisher.messages[0].payload
	assert.Contains(t, payload, "fuzzy_score")
	assert.Nil(t, payload["fuzzy_score"])
	assert.Nil(t, payload["score"])
	assert.Equal(t, "ABC123", payload["original_plate"])
}

func TestDispatchAlreadyRecorded(t *testing.T) {
	t.Parallel()
	f := newDispatchFixture(t)
	d := f.dispatcher(DispatchOptions{ResultTopic: "frigate/plates"})
	ev := event(frigate.TypeUpdate, "N3", 0.8, 0.9).After

	d.Dispatch(t.Context(), ev, plainOutcome())
	report := d.Dispatch(t.Context(), ev, plainOutcome())

	assert.True(t, report.AlreadyRecorded)
	assert.False(t, report.Stored)
	assert.Empty(t, report.Errors, "a duplicate insert is not an error")
	assert.True(t, report.Published)
	assert.Equal(t, 1, f.store.count())
}

func TestDispatchStepsAreIsolated(t *testing.T) {
	t.Parallel()
	f := newDispatchFixture(t)
	f.store.saveErr = errors.NewStd("disk full")
	f.frigate.subLabelErr = &frigate.StatusError{Endpoint: "sub_label", StatusCode: 400}
	d := f.dispatcher(DispatchOptions{ResultTopic: "frigate/plates", SaveSnapshots: true})

	report := d.Dispatch(t.Context(), event(frigate.TypeUpdate, "N4", 0.8, 0.9).After, plainOutcome())

	assert.Contains(t, report.Errors, StepStore)
	assert.Contains(t, report.Errors, StepSubLabel)
	assert.True(t, report.Published)
	assert.NotEmpty(t, report.SnapshotPath)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.DispatchFailures.WithLabelValues(StepStore)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.DispatchFailures.WithLabelValues(StepSubLabel)), 0)
}

func TestDispatchWithoutResultTopic(t *testing.T) {
	t.Parallel()
	f := newDispatchFixture(t)
	d := f.dispatcher(DispatchOptions{})

	report := d.Dispatch(t.Context(), event(frigate.TypeUpdate, "N5", 0.8, 0.9).After, plainOutcome())
	assert.False(t, report.Published)
	assert.Empty(t, f.publisher.messages)
	assert.Empty(t, f.snapshots.saved, "snapshots are off unless save_clean_snapshots is set")
}

func TestDispatchSnapshotPolicy(t *testing.T) {
	t.Parallel()
	ev := event(frigate.TypeUpdate, "N6", 0.8, 0.9).After

	f := newDispatchFixture(t)
	f.dispatcher(DispatchOptions{SaveSnapshots: true}).Dispatch(t.Context(), ev, nil)
	assert.Empty(t, f.snapshots.saved, "no result and no always-save")

	f = newDispatchFixture(t)
	f.dispatcher(DispatchOptions{AlwaysSaveSnapshot: true}).Dispatch(t.Context(), ev, nil)
	assert.Empty(t, f.snapshots.saved, "always-save needs save_clean_snapshots")

	f = newDispatchFixture(t)
	report := f.dispatcher(DispatchOptions{SaveSnapshots: true, AlwaysSaveSnapshot: true}).Dispatch(t.Context(), ev, nil)
	require.Len(t, f.snapshots.saved, 1)
	assert.Empty(t, f.snapshots.saved[0].plate)
	assert.False(t, report.Stored)
	assert.Zero(t, f.store.count())
}

func TestDispatchSnapshotDrawsFinalPlateBox(t *testing.T) {
	t.Parallel()
	f := newDispatchFixture(t)
	f.frigate.attrs = []frigate.Attribute{{Label: frigate.LicensePlateLabel, Score: 0.9, Box: []float64{0.4, 0.5, 0.1, 0.05}}}
	d := f.dispatcher(DispatchOptions{SaveSnapshots: true, FrigatePlus: true})

	d.Dispatch(t.Context(), event(frigate.TypeUpdate, "N7", 0.8, 0.9).After, plainOutcome())
	require.Len(t, f.snapshots.saved, 1)
	assert.Equal(t, []float64{0.4, 0.5, 0.1, 0.05}, f.snapshots.saved[0].box)
}

func TestDispatchSnapshotFetchFailure(t *testing.T) {
	t.Parallel()
	f := newDispatchFixture(t)
	f.frigate.snapshotErr = frigate.ErrSnapshotNotReady
	d := f.dispatcher(DispatchOptions{SaveSnapshots: true})

	report := d.Dispatch(t.Context(), event(frigate.TypeUpdate, "N8", 0.8, 0.9).After, plainOutcome())
	assert.True(t, report.Stored)
	assert.ErrorIs(t, report.Errors[StepSnapshot], frigate.ErrSnapshotNotReady)
}
