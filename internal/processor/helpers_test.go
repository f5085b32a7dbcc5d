package processor

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ocrwatch/frigate-ocr/internal/conf"
	"github.com/ocrwatch/frigate-ocr/internal/datastore"
	"github.com/ocrwatch/frigate-ocr/internal/frigate"
	"github.com/ocrwatch/frigate-ocr/internal/observability/metrics"
	"github.com/ocrwatch/frigate-ocr/internal/ocr"
)

func score(v float64) *float64 { return &v }

// fakeStore is an in-memory PlateStore keyed by event id.
type fakeStore struct {
	mu        sync.Mutex
	plates    map[string]datastore.Plate
	lookups   int
	existsErr error
	saveErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{plates: make(map[string]datastore.Plate)}
}

func (s *fakeStore) Exists(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	if s.existsErr != nil {
		return false, s.existsErr
	}
	_, ok := s.plates[eventID]
	return ok, nil
}

func (s *fakeStore) Save(_ context.Context, plate *datastore.Plate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	if _, ok := s.plates[plate.FrigateEvent]; ok {
		return datastore.ErrAlreadyRecorded
	}
	s.plates[plate.FrigateEvent] = *plate
	return nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.plates)
}

func (s *fakeStore) get(eventID string) (datastore.Plate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plates[eventID]
	return p, ok
}

type snapshotCall struct {
	camera, eventID string
	crop            bool
}

// fakeFrigate records API calls. snapshotErr fails the next snapshot fetches.
type fakeFrigate struct {
	mu          sync.Mutex
	snapshot    []byte
	snapshotErr error
	subLabelErr error
	attrs       []frigate.Attribute
	snapshots   []snapshotCall
	subLabels   map[string]string
}

func newFakeFrigate() *fakeFrigate {
	return &fakeFrigate{snapshot: []byte("png"), subLabels: make(map[string]string)}
}

func (f *fakeFrigate) GetSnapshot(_ context.Context, camera, eventID string, crop bool) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, snapshotCall{camera, eventID, crop})
	if f.snapshotErr != nil {
		return nil, f.snapshotErr
	}
	return f.snapshot, nil
}

func (f *fakeFrigate) SetSubLabel(_ context.Context, eventID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subLabelErr != nil {
		return f.subLabelErr
	}
	f.subLabels[eventID] = frigate.SubLabel(text)
	return nil
}

func (f *fakeFrigate) FinalAttributes(context.Context, string) ([]frigate.Attribute, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attrs, nil
}

func (f *fakeFrigate) setSnapshotErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshotErr = err
}

// fakeRecognizer returns a fixed result and counts calls.
type fakeRecognizer struct {
	mu     sync.Mutex
	calls  int
	result *ocr.Result
	err    error
}

func (r *fakeRecognizer) Name() string { return "fake" }

func (r *fakeRecognizer) Recognize(context.Context, []byte) (*ocr.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.result, r.err
}

func (r *fakeRecognizer) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type published struct {
	topic   string
	payload map[string]any
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []published
	err      error
}

func (p *fakePublisher) Publish(_ context.Context, topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return err
	}
	p.messages = append(p.messages, published{topic, decoded})
	return nil
}

type savedSnapshot struct {
	camera, plate string
	box           []float64
}

type fakeSnapshots struct {
	mu    sync.Mutex
	saved []savedSnapshot
}

func (s *fakeSnapshots) Save(_ []byte, camera, plate string, box []float64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, savedSnapshot{camera, plate, box})
	return "/plates/" + plate + ".png", nil
}

func testSettings() *conf.Settings {
	return &conf.Settings{Frigate: conf.FrigateSettings{
		FrigateURL:  "http://frigate.test:5000",
		MainTopic:   "frigate",
		ReturnTopic: "plate_recognizer",
		Objects:     conf.DefaultObjects,
		FuzzyMatch:  conf.DefaultFuzzyMatch,
		EventTTL:    time.Hour,
	}}
}

// harness wires a pipeline to fakes.
type harness struct {
	t          *testing.T
	settings   *conf.Settings
	store      *fakeStore
	frigate    *fakeFrigate
	recognizer *fakeRecognizer
	publisher  *fakePublisher
	snapshots  *fakeSnapshots
	metrics    *metrics.PipelineMetrics
	pipeline   *Pipeline
}

func newHarness(t *testing.T, configure func(*conf.Settings)) *harness {
	t.Helper()
	settings := testSettings()
	if configure != nil {
		configure(settings)
	}
	m, err := metrics.NewPipelineMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	h := &harness{
		t:          t,
		settings:   settings,
		store:      newFakeStore(),
		frigate:    newFakeFrigate(),
		recognizer: &fakeRecognizer{result: &ocr.Result{Text: "abc123", Score: score(0.9)}},
		publisher:  &fakePublisher{},
		snapshots:  &fakeSnapshots{},
		metrics:    m,
	}
	h.pipeline = NewPipeline(Deps{
		Settings:   settings,
		Store:      h.store,
		Frigate:    h.frigate,
		Recognizer: h.recognizer,
		Publisher:  h.publisher,
		Snapshots:  h.snapshots,
		Metrics:    m,
	})
	return h
}

// prime consumes the first-message guard.
func (h *harness) prime() {
	h.t.Helper()
	res := h.pipeline.Process(h.t.Context(), []byte(`{"type":"new","after":{"id":"stale","camera":"x","label":"car"}}`))
	require.Equal(h.t, ReasonFirstMessage, res.Reason)
}

func (h *harness) send(msg *frigate.EventMessage) Result {
	h.t.Helper()
	payload, err := json.Marshal(msg)
	require.NoError(h.t, err)
	return h.pipeline.Process(h.t.Context(), payload)
}

// event builds a message for a car on the driveway camera.
func event(typ frigate.MessageType, id string, beforeScore, afterScore float64) *frigate.EventMessage {
	snap := func(s float64) *frigate.EventSnapshot {
		return &frigate.EventSnapshot{
			ID:           id,
			Camera:       "driveway",
			Label:        "car",
			TopScore:     score(s),
			StartTime:    1700000000,
			CurrentZones: []string{"driveway"},
		}
	}
	return &frigate.EventMessage{Type: typ, Before: snap(beforeScore), After: snap(afterScore)}
}
