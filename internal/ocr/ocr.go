// Package ocr runs license plate text recognition against an external
// inference backend.
package ocr

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/time/rate"

	"github.com/ocrwatch/frigate-ocr/internal/conf"
	"github.com/ocrwatch/frigate-ocr/internal/errors"
	"github.com/ocrwatch/frigate-ocr/internal/httpclient"
	"github.com/ocrwatch/frigate-ocr/internal/logger"
)

// Backend names accepted in ocr_recognizer.backend.
const (
	BackendEasyOCR         = "easyocr"
	BackendCodeProject     = "codeproject"
	BackendPlateRecognizer = "plate_recognizer"
	BackendNone            = "none"
)

// ErrNoText is returned when the backend answered but found nothing to read.
var ErrNoText = errors.NewStd("no text recognized")

// Result is the top candidate of one recognition.
type Result struct {
	Text string
	// Score is nil when the backend does not report a confidence.
	Score *float64
	// Candidates lists every text the backend returned, best first.
	Candidates []string
}

// Recognizer turns a PNG snapshot into plate text.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (*Result, error)
	Name() string
}

// New builds the recognizer selected in settings. It returns nil, nil when
// recognition is switched off with backend "none" or an empty URL.
func New(settings *conf.OCRSettings, client *httpclient.Client) (Recognizer, error) {
	backend := strings.ToLower(settings.Backend)
	if backend == BackendNone || settings.URL == "" {
		GetLogger().Warn("no OCR backend configured, events will not be recognized",
			logger.String("backend", backend))
		return nil, nil
	}
	if client == nil {
		client = httpclient.New(&httpclient.Config{DefaultTimeout: settings.Timeout})
	}
	baseURL := strings.TrimRight(settings.URL, "/")

	switch backend {
	case BackendEasyOCR, "":
		return &EasyOCR{baseURL: baseURL, http: client}, nil
	case BackendCodeProject:
		return &CodeProject{baseURL: baseURL, http: client}, nil
	case BackendPlateRecognizer:
		if settings.Token == "" {
			return nil, errors.Newf("plate_recognizer backend requires ocr_recognizer.token").
				Component("ocr").
				Category(errors.CategoryConfiguration).
				Build()
		}
		return &PlateRecognizer{
			baseURL: baseURL,
			token:   settings.Token,
			regions: settings.Regions,
			http:    client,
			limiter: newLimiter(settings.RateLimit),
		}, nil
	default:
		return nil, errors.Newf("unknown OCR backend %q", settings.Backend).
			Component("ocr").
			Category(errors.CategoryConfiguration).
			Context("backend", settings.Backend).
			Build()
	}
}

// newLimiter returns nil for an unlimited rate.
func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

// normalizeText drops whitespace so "ABC 1234" and "ABC1234" compare equal.
func normalizeText(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func floatPtr(v float64) *float64 { return &v }

// GetLogger returns the ocr module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("ocr")
}
