package frigate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/ocrwatch/frigate-ocr/internal/errors"
	"github.com/ocrwatch/frigate-ocr/internal/httpclient"
	"github.com/ocrwatch/frigate-ocr/internal/logger"
	"github.com/ocrwatch/frigate-ocr/internal/observability/metrics"
)

const (
	// SubLabelPrefix marks sublabels written by this service.
	SubLabelPrefix = "OCR:"
	// MaxSubLabelLength is Frigate's sublabel limit, prefix included.
	MaxSubLabelLength = 20

	maxResponseBytes = 32 << 20

	breakerName        = "frigate-api"
	breakerMaxRequests = 1
	breakerInterval    = time.Minute
	breakerTimeout     = 30 * time.Second
	breakerTripCount   = 5
)

// ErrSnapshotNotReady is returned when Frigate has no clean snapshot yet,
// usually because the event is still in progress.
var ErrSnapshotNotReady = errors.NewStd("clean snapshot not available")

// StatusError is a non-success HTTP response from the Frigate API.
type StatusError struct {
	Endpoint   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("frigate %s returned status %d", e.Endpoint, e.StatusCode)
}

// Config configures the API client.
type Config struct {
	BaseURL string
	// HTTP defaults to a new httpclient.Client.
	HTTP    *httpclient.Client
	Metrics *metrics.FrigateMetrics
}

// Client talks to the Frigate HTTP API through a circuit breaker.
type Client struct {
	baseURL string
	http    *httpclient.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	metrics *metrics.FrigateMetrics
}

// NewClient creates a Frigate API client.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = httpclient.New(nil)
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
		metrics: cfg.Metrics,
	}

	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: breakerMaxRequests,
		Interval:    breakerInterval,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTripCount
		},
		IsSuccessful: isBreakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			GetLogger().Warn("circuit breaker state change",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
			if c.metrics != nil {
				c.metrics.SetBreakerState(int(to))
			}
		},
	})

	httpClient.SetAfterResponseHook(func(req *http.Request, resp *http.Response, err error) {
		if err != nil {
			GetLogger().Debug("frigate request failed",
				logger.String("method", req.Method),
				logger.String("path", req.URL.Path),
				logger.Error(err))
			return
		}
		GetLogger().Trace("frigate request",
			logger.String("method", req.Method),
			logger.String("path", req.URL.Path),
			logger.Int("status", resp.StatusCode))
	})

	return c
}

// isBreakerSuccess counts only transport failures and 5xx answers against
// the breaker. A snapshot that is not ready yet is normal.
func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode < http.StatusInternalServerError
	}
	return false
}

// endpointLabel maps a request path onto a bounded metric label.
func endpointLabel(path string) string {
	switch {
	case strings.HasPrefix(path, "/clips/"):
		return "snapshot"
	case strings.HasSuffix(path, "/sub_label"):
		return "sub_label"
	case strings.HasPrefix(path, "/api/events/"):
		return "event"
	default:
		return "other"
	}
}

// execute performs req through the breaker and returns the body of a 2xx response.
func (c *Client) execute(ctx context.Context, req *http.Request) ([]byte, error) {
	endpoint := endpointLabel(req.URL.Path)

	body, err := c.breaker.Execute(func() ([]byte, error) {
		start := time.Now()
		resp, err := c.http.Do(ctx, req)
		if err != nil {
			if c.metrics != nil {
				c.metrics.ObserveTransportError(endpoint, time.Since(start).Seconds())
			}
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()

		if c.metrics != nil {
			c.metrics.ObserveResponse(endpoint, resp.StatusCode, time.Since(start).Seconds(), resp.ContentLength)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			return nil, &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode}
		}
		return io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	})
	return body, err
}

// GetSnapshot fetches the clean PNG snapshot for an event. Any non-200
// answer is reported as ErrSnapshotNotReady.
func (c *Client) GetSnapshot(ctx context.Context, camera, eventID string, crop bool) ([]byte, error) {
	q := url.Values{}
	q.Set("crop", strconv.FormatBool(crop))
	q.Set("quality", "100")
	target := fmt.Sprintf("%s/clips/%s-%s-clean.png?%s",
		c.baseURL, url.PathEscape(camera), url.PathEscape(eventID), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, c.requestError(err, "get_snapshot", eventID)
	}

	body, err := c.execute(ctx, req)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			return nil, errors.New(fmt.Errorf("%w: %w", ErrSnapshotNotReady, statusErr)).
				Component("frigate").
				Category(errors.CategoryImageFetch).
				Priority(errors.PriorityLow).
				Context("operation", "get_snapshot").
				Context("event_id", eventID).
				Context("status_code", statusErr.StatusCode).
				Build()
		}
		return nil, c.requestError(err, "get_snapshot", eventID)
	}
	if len(body) == 0 {
		return nil, errors.New(ErrSnapshotNotReady).
			Component("frigate").
			Category(errors.CategoryImageFetch).
			Context("operation", "get_snapshot").
			Context("event_id", eventID).
			Build()
	}
	return body, nil
}

// SubLabel formats text as a Frigate sublabel within MaxSubLabelLength.
func SubLabel(text string) string {
	label := SubLabelPrefix + strings.ToUpper(text)
	if len(label) > MaxSubLabelLength {
		label = label[:MaxSubLabelLength]
	}
	return label
}

// SetSubLabel posts the sublabel for text on the event.
func (c *Client) SetSubLabel(ctx context.Context, eventID, text string) error {
	payload, err := json.Marshal(map[string]string{"subLabel": SubLabel(text)})
	if err != nil {
		return c.requestError(err, "set_sub_label", eventID)
	}

	target := fmt.Sprintf("%s/api/events/%s/sub_label", c.baseURL, url.PathEscape(eventID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return c.requestError(err, "set_sub_label", eventID)
	}
	req.Header.Set("Content-Type", "application/json")

	if _, err := c.execute(ctx, req); err != nil {
		return c.requestError(err, "set_sub_label", eventID)
	}
	return nil
}

type eventResponse struct {
	Data struct {
		Attributes []Attribute `json:"attributes"`
	} `json:"data"`
}

// FinalAttributes returns the license plate attributes of the finished event.
// An event without plate attributes yields an empty slice.
func (c *Client) FinalAttributes(ctx context.Context, eventID string) ([]Attribute, error) {
	target := fmt.Sprintf("%s/api/events/%s", c.baseURL, url.PathEscape(eventID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, c.requestError(err, "get_event", eventID)
	}

	body, err := c.execute(ctx, req)
	if err != nil {
		return nil, c.requestError(err, "get_event", eventID)
	}

	var event eventResponse
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, errors.New(err).
			Component("frigate").
			Category(errors.CategoryValidation).
			Context("operation", "decode_event").
			Context("event_id", eventID).
			Build()
	}

	var plates []Attribute
	for _, a := range event.Data.Attributes {
		if a.Label == LicensePlateLabel {
			plates = append(plates, a)
		}
	}
	return plates, nil
}

func (c *Client) requestError(err error, operation, eventID string) error {
	category := errors.CategoryHTTP
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		category = errors.CategoryNetwork
	}
	return errors.New(err).
		Component("frigate").
		Category(category).
		Context("operation", operation).
		Context("event_id", eventID).
		NetworkContext(c.baseURL, 0).
		Build()
}
