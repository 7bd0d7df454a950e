package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/tabline/internal/config"
	"github.com/Additional-Code/tabline/internal/observability"
	"github.com/Additional-Code/tabline/internal/presentation/http/response"
	"github.com/Additional-Code/tabline/pkg/errorbank"
)

// Module exposes the HTTP server lifecycle to Fx.
var Module = fx.Module("http_server",
	fx.Provide(NewEcho),
	fx.Invoke(Run),
)

// NewEcho configures the Echo router. Every error, including unknown routes,
// is rendered in the response envelope.
func NewEcho(cfg config.Config, obs *observability.Manager, level zap.AtomicLevel, logger *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		logRequestError(logger, c, err)
		response.ErrorHandler(err, c)
	}
	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())

	if obs != nil && obs.TracingEnabled() {
		e.Use(otelecho.Middleware(cfg.Observability.ServiceName))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	if obs != nil && obs.MetricsEnabled() && obs.MetricsHandler() != nil {
		e.GET(cfg.Observability.PrometheusPath, echo.WrapHandler(obs.MetricsHandler()))
	}

	if path := cfg.Observability.LogLevelPath; path != "" {
		e.GET(path, echo.WrapHandler(level))
		e.PUT(path, echo.WrapHandler(level))
	}

	return e
}

// logRequestError logs infrastructure failures at error level and rejected
// requests at warn level.
func logRequestError(logger *zap.Logger, c echo.Context, err error) {
	fields := []zap.Field{
		zap.String("method", c.Request().Method),
		zap.String("path", c.Path()),
		zap.Error(err),
	}
	if errorbank.IsKind(err, errorbank.KindInternal) {
		logger.Error("http request failed", fields...)
		return
	}
	logger.Warn("http request rejected", fields...)
}

// Run starts the HTTP server and ties it to the Fx lifecycle.
func Run(lc fx.Lifecycle, cfg config.Config, e *echo.Echo, logger *zap.Logger) {
	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)

	server := &http.Server{
		Addr:    addr,
		Handler: e,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting HTTP server", zap.String("addr", addr))
			go func() {
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping HTTP server")
			return server.Shutdown(ctx)
		},
	})
}
