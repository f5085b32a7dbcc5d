package observability

import (
	"context"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/ocrwatch/frigate-ocr/internal/conf"
	"github.com/ocrwatch/frigate-ocr/internal/datastore"
	"github.com/ocrwatch/frigate-ocr/internal/errors"
	"github.com/ocrwatch/frigate-ocr/internal/logger"
	metricspkg "github.com/ocrwatch/frigate-ocr/internal/observability/metrics"
)

const (
	healthCheckTimeout = 2 * time.Second
	maxPlatesLimit     = 500
)

// PlateLister is the read side of the plate store.
type PlateLister interface {
	Recent(ctx context.Context, limit int) ([]datastore.Plate, error)
}

// HealthCheck returns nil when its component is healthy.
type HealthCheck func(ctx context.Context) error

// Endpoint serves /metrics, /healthz and the recent plates API.
type Endpoint struct {
	echo          *echo.Echo
	listenAddress string
	metrics       *Metrics
	plates        PlateLister

	mu     sync.RWMutex
	checks map[string]HealthCheck
}

// NewEndpoint creates the telemetry endpoint. It fails when telemetry is
// disabled. plates may be nil, which leaves the plates API unregistered.
func NewEndpoint(settings *conf.Settings, metrics *Metrics, plates PlateLister) (*Endpoint, error) {
	if !settings.Telemetry.Enabled {
		return nil, errors.Newf("telemetry not enabled in settings").
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	e := &Endpoint{
		echo:          echo.New(),
		listenAddress: settings.Telemetry.Listen,
		metrics:       metrics,
		plates:        plates,
		checks:        make(map[string]HealthCheck),
	}
	e.echo.HideBanner = true
	e.echo.HidePort = true
	e.echo.Use(middleware.Recover())
	e.echo.Use(requestLogger())

	e.echo.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	e.echo.GET("/healthz", e.health)
	if plates != nil {
		e.echo.GET("/api/v1/plates", e.recentPlates)
	}
	return e, nil
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []logger.Field{
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.Int("status", v.Status),
				logger.String("ip", v.RemoteIP),
				logger.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, logger.Error(v.Error))
			}
			GetLogger().WithContext(c.Request().Context()).Debug("request", fields...)
			return nil
		},
	})
}

// AddHealthCheck registers check under name, replacing any previous one.
func (e *Endpoint) AddHealthCheck(name string, check HealthCheck) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.checks[name] = check
}

// Handler exposes the router, mainly for tests.
func (e *Endpoint) Handler() http.Handler {
	return e.echo
}

// GetMetrics returns the Metrics instance associated with this Endpoint.
func (e *Endpoint) GetMetrics() *Metrics {
	return e.metrics
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (e *Endpoint) health(c echo.Context) error {
	e.mu.RLock()
	checks := maps.Clone(e.checks)
	e.mu.RUnlock()

	ctx, cancel := context.WithTimeout(c.Request().Context(), healthCheckTimeout)
	defer cancel()

	resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(checks))}
	for _, name := range slices.Sorted(maps.Keys(checks)) {
		if err := checks[name](ctx); err != nil {
			resp.Status = "unhealthy"
			resp.Checks[name] = err.Error()
			continue
		}
		resp.Checks[name] = "ok"
	}

	code := http.StatusOK
	if resp.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, resp)
}

func (e *Endpoint) recentPlates(c echo.Context) error {
	limit := datastore.DefaultRecentLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = min(n, maxPlatesLimit)
	}

	plates, err := e.plates.Recent(c.Request().Context(), limit)
	if err != nil {
		GetLogger().Error("listing plates failed", logger.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list plates")
	}
	if plates == nil {
		plates = []datastore.Plate{}
	}
	return c.JSON(http.StatusOK, plates)
}

// Serve runs the HTTP server until ctx is done. It satisfies suture.Service.
func (e *Endpoint) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		GetLogger().Info("telemetry endpoint starting", logger.String("address", e.listenAddress))
		errCh <- e.echo.Start(e.listenAddress)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.New(err).
			Component("telemetry").
			Category(errors.CategoryNetwork).
			Context("listen", e.listenAddress).
			Build()
	case <-ctx.Done():
	}

	GetLogger().Info("stopping telemetry endpoint")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), metricspkg.ShutdownTimeout)
	defer cancel()
	if err := e.echo.Shutdown(shutdownCtx); err != nil {
		GetLogger().Error("telemetry endpoint shutdown error", logger.Error(err))
	}
	<-errCh
	return ctx.Err()
}

func (e *Endpoint) String() string { return "telemetry-endpoint" }
