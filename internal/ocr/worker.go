package ocr

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ocrwatch/frigate-ocr/internal/errors"
	"github.com/ocrwatch/frigate-ocr/internal/logger"
	"github.com/ocrwatch/frigate-ocr/internal/observability/metrics"
)

// Worker serialises recognitions so at most one OCR call is in flight.
type Worker struct {
	recognizer Recognizer
	sem        *semaphore.Weighted
	metrics    metrics.Recorder
}

// NewWorker wraps r. A nil recorder discards metrics.
func NewWorker(r Recognizer, recorder metrics.Recorder) *Worker {
	if recorder == nil {
		recorder = metrics.NoOpRecorder{}
	}
	return &Worker{
		recognizer: r,
		sem:        semaphore.NewWeighted(1),
		metrics:    recorder,
	}
}

// Name returns the backend name.
func (w *Worker) Name() string { return w.recognizer.Name() }

// Recognize waits for the OCR slot and runs the recognizer.
func (w *Worker) Recognize(ctx context.Context, image []byte) (*Result, error) {
	if err := w.sem.Acquire(ctx, 1); err != nil {
		return nil, errors.New(err).
			Component("ocr").
			Category(errors.CategoryCancellation).
			Context("operation", "acquire_slot").
			Build()
	}
	defer w.sem.Release(1)

	start := time.Now()
	res, err := w.recognizer.Recognize(ctx, image)
	elapsed := time.Since(start)
	w.metrics.RecordDuration(metrics.OpRecognize, elapsed.Seconds())

	if err != nil {
		w.metrics.RecordOperation(metrics.OpRecognize, metrics.StatusError)
		w.metrics.RecordError(metrics.OpRecognize, errorType(err))
		return nil, err
	}

	w.metrics.RecordOperation(metrics.OpRecognize, metrics.StatusSuccess)
	GetLogger().Debug("recognized",
		logger.String("backend", w.recognizer.Name()),
		logger.String("text", res.Text),
		logger.Duration("elapsed", elapsed))
	return res, nil
}

func errorType(err error) string {
	switch {
	case errors.Is(err, ErrNoText):
		return "no_text"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.IsCategory(err, errors.CategoryNetwork):
		return "network"
	case errors.IsCategory(err, errors.CategoryLimit):
		return "rate_limit"
	default:
		return "backend"
	}
}
