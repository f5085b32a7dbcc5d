package ocr

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocrwatch/frigate-ocr/internal/observability/metrics"
)

type stubRecognizer struct {
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	delay    time.Duration
	result   *Result
	err      error
}

func (s *stubRecognizer) Name() string { return "stub" }

func (s *stubRecognizer) Recognize(ctx context.Context, _ []byte) (*Result, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		seen := s.maxSeen.Load()
		if n <= seen || s.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.result, s.err
}

type countingRecorder struct {
	mu         sync.Mutex
	operations map[string]int
	errors     map[string]int
	durations  int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{operations: map[string]int{}, errors: map[string]int{}}
}

func (r *countingRecorder) RecordOperation(operation, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.operations[operation+"/"+status]++
}

func (r *countingRecorder) RecordDuration(string, float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.durations++
}

func (r *countingRecorder) RecordError(operation, errorType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors[operation+"/"+errorType]++
}

func TestWorkerSerialisesCalls(t *testing.T) {
	t.Parallel()

	stub := &stubRecognizer{delay: 10 * time.Millisecond, result: &Result{Text: "ABC123"}}
	w := NewWorker(stub, nil)

	var wg sync.WaitGroup
	for range 5 {
		wg.Go(func() {
			res, err := w.Recognize(t.Context(), testPNG)
			assert.NoError(t, err)
			assert.Equal(t, "ABC123", res.Text)
		})
	}
	wg.Wait()

	assert.Equal(t, int32(1), stub.maxSeen.Load())
	assert.Equal(t, "stub", w.Name())
}

func TestWorkerRecordsMetrics(t *testing.T) {
	t.Parallel()

	rec := newCountingRecorder()
	ok := NewWorker(&stubRecognizer{result: &Result{Text: "X"}}, rec)
	_, err := ok.Recognize(t.Context(), testPNG)
	require.NoError(t, err)

	failing := NewWorker(&stubRecognizer{err: noText("stub")}, rec)
	_, err = failing.Recognize(t.Context(), testPNG)
	require.ErrorIs(t, err, ErrNoText)

	assert.Equal(t, 1, rec.operations[metrics.OpRecognize+"/"+metrics.StatusSuccess])
	assert.Equal(t, 1, rec.operations[metrics.OpRecognize+"/"+metrics.StatusError])
	assert.Equal(t, 1, rec.errors[metrics.OpRecognize+"/no_text"])
	assert.Equal(t, 2, rec.durations)
}

func TestWorkerAcquireHonoursContext(t *testing.T) {
	t.Parallel()

	stub := &stubRecognizer{delay: time.Second, result: &Result{Text: "SLOW"}}
	w := NewWorker(stub, nil)

	holding := make(chan struct{})
	done := make(chan struct{})
	ctx, cancel := context.WithCancel(t.Context())
	go func() {
		defer close(done)
		close(holding)
		_, _ = w.Recognize(ctx, testPNG)
	}()
	<-holding
	require.Eventually(t, func() bool { return stub.inFlight.Load() == 1 }, time.Second, time.Millisecond)

	waitCtx, waitCancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer waitCancel()
	_, err := w.Recognize(waitCtx, testPNG)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	cancel()
	<-done
}
