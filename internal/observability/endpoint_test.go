package observability

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocrwatch/frigate-ocr/internal/conf"
	"github.com/ocrwatch/frigate-ocr/internal/datastore"
	"github.com/ocrwatch/frigate-ocr/internal/errors"
)

type stubPlates struct {
	plates    []datastore.Plate
	err       error
	lastLimit int
}

func (s *stubPlates) Recent(_ context.Context, limit int) ([]datastore.Plate, error) {
	s.lastLimit = limit
	return s.plates, s.err
}

func newTestEndpoint(t *testing.T, plates PlateLister) *Endpoint {
	t.Helper()
	m, err := NewMetrics("easyocr")
	require.NoError(t, err)
	settings := &conf.Settings{Telemetry: conf.TelemetrySettings{Enabled: true, Listen: "127.0.0.1:0"}}
	e, err := NewEndpoint(settings, m, plates)
	require.NoError(t, err)
	return e
}

func get(t *testing.T, e *Endpoint, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequestWithContext(t.Context(), http.MethodGet, target, http.NoBody)
	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, req)
	return rec
}

func TestNewEndpointRequiresTelemetry(t *testing.T) {
	t.Parallel()
	m, err := NewMetrics("none")
	require.NoError(t, err)

	_, err = NewEndpoint(&conf.Settings{}, m, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestMetricsRoute(t *testing.T) {
	t.Parallel()
	e := newTestEndpoint(t, nil)
	e.GetMetrics().Pipeline.RecordQueueDrop()

	rec := get(t, e, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
	assert.Contains(t, rec.Body.String(), "pipeline_queue_drops_total")
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	e := newTestEndpoint(t, nil)

	rec := get(t, e, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)

	e.AddHealthCheck("database", func(context.Context) error { return nil })
	e.AddHealthCheck("mqtt", func(context.Context) error { return errors.NewStd("not connected") })

	rec = get(t, e, "/healthz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, map[string]string{"database": "ok", "mqtt": "not connected"}, body.Checks)
}

func TestRecentPlates(t *testing.T) {
	t.Parallel()
	plates := &stubPlates{plates: []datastore.Plate{{ID: 2, PlateNumber: "ABC123", FrigateEvent: "e2"}}}
	e := newTestEndpoint(t, plates)

	rec := get(t, e, "/api/v1/plates?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, plates.lastLimit)

	var got []datastore.Plate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "ABC123", got[0].PlateNumber)

	get(t, e, "/api/v1/plates")
	assert.Equal(t, datastore.DefaultRecentLimit, plates.lastLimit)

	get(t, e, "/api/v1/plates?limit=100000")
	assert.Equal(t, maxPlatesLimit, plates.lastLimit)

	assert.Equal(t, http.StatusBadRequest, get(t, e, "/api/v1/plates?limit=abc").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, e, "/api/v1/plates?limit=-1").Code)
}

func TestRecentPlatesEmptyAndFailing(t *testing.T) {
	t.Parallel()
	plates := &stubPlates{}
	e := newTestEndpoint(t, plates)

	rec := get(t, e, "/api/v1/plates")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	plates.err = errors.NewStd("db down")
	assert.Equal(t, http.StatusInternalServerError, get(t, e, "/api/v1/plates").Code)
}

func TestPlatesRouteAbsentWithoutStore(t *testing.T) {
	t.Parallel()
	e := newTestEndpoint(t, nil)
	assert.Equal(t, http.StatusNotFound, get(t, e, "/api/v1/plates").Code)
}

func TestServeStopsOnCancel(t *testing.T) {
	t.Parallel()
	e := newTestEndpoint(t, nil)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- e.Serve(ctx) }()

	require.Eventually(t, func() bool {
		addr := e.echo.ListenerAddr()
		if addr == nil {
			return false
		}
		conn, err := net.DialTimeout("tcp", addr.String(), 100*time.Millisecond)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	assert.Equal(t, "telemetry-endpoint", e.String())
}

func TestServeReportsListenError(t *testing.T) {
	t.Parallel()
	m, err := NewMetrics("none")
	require.NoError(t, err)
	settings := &conf.Settings{Telemetry: conf.TelemetrySettings{Enabled: true, Listen: "256.0.0.1:bad"}}
	e, err := NewEndpoint(settings, m, nil)
	require.NoError(t, err)

	err = e.Serve(t.Context())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNetwork))
}
