// recognize.go turns a snapshot into the plate text that gets reported.
package processor

import (
	"context"
	"strings"

	"github.com/ocrwatch/frigate-ocr/internal/errors"
	"github.com/ocrwatch/frigate-ocr/internal/logger"
	"github.com/ocrwatch/frigate-ocr/internal/ocr"
	"github.com/ocrwatch/frigate-ocr/internal/watchlist"
)

// ErrNoRecognizer means no OCR backend is configured.
var ErrNoRecognizer = errors.NewStd("no OCR backend configured")

// Outcome is an accepted recognition. Text is what gets stored and reported;
// OCRText is the raw top candidate. Both are upper-case.
type Outcome struct {
	Text    string
	OCRText string
	Score   *float64
	Match   watchlist.Match
}

// Watched reports whether the text came from the watch list.
func (o *Outcome) Watched() bool { return o.Match.Found() }

// MatchKind is exact, fuzzy or none.
func (o *Outcome) MatchKind() string {
	switch {
	case o.Match.Fuzzy():
		return "fuzzy"
	case o.Match.Found():
		return "exact"
	default:
		return "none"
	}
}

// Orchestrator runs OCR, reconciles the result with the watch list and
// applies the minimum score.
type Orchestrator struct {
	recognizer ocr.Recognizer
	matcher    *watchlist.Matcher
	minScore   float64
}

// NewOrchestrator builds an orchestrator. recognizer may be nil when OCR is
// not configured.
func NewOrchestrator(recognizer ocr.Recognizer, matcher *watchlist.Matcher, minScore float64) *Orchestrator {
	return &Orchestrator{recognizer: recognizer, matcher: matcher, minScore: minScore}
}

// Available reports whether an OCR backend is configured.
func (o *Orchestrator) Available() bool { return o.recognizer != nil }

// Recognize returns the outcome, or a nil outcome and a skip reason when the
// result was discarded. err is set only when the OCR call itself failed.
func (o *Orchestrator) Recognize(ctx context.Context, image []byte) (*Outcome, string, error) {
	if o.recognizer == nil {
		return nil, "", ErrNoRecognizer
	}

	res, err := o.recognizer.Recognize(ctx, image)
	if err != nil {
		if errors.Is(err, ocr.ErrNoText) {
			return nil, ReasonNoText, nil
		}
		return nil, "", err
	}
	if res == nil || strings.TrimSpace(res.Text) == "" {
		return nil, ReasonNoText, nil
	}

	match := o.matcher.Match(res.Text)
	if o.minScore > 0 && res.Score != nil && *res.Score < o.minScore && !match.Fuzzy() {
		GetLogger().Info("score below minimum, result discarded",
			logger.String("text", strings.ToUpper(res.Text)),
			logger.Float64("score", *res.Score),
			logger.Float64("min_score", o.minScore))
		return nil, ReasonScoreTooLow, nil
	}

	out := &Outcome{
		Text:    strings.ToUpper(res.Text),
		OCRText: strings.ToUpper(res.Text),
		Score:   res.Score,
		Match:   match,
	}
	if match.Found() {
		out.Text = strings.ToUpper(match.Entry)
	}
	return out, "", nil
}
