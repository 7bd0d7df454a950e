// Package activity exposes the activity log over HTTP.
package activity

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.uber.org/fx"

	"github.com/Additional-Code/tabline/internal/presentation/http/response"
	"github.com/Additional-Code/tabline/internal/service/audit"
	"github.com/Additional-Code/tabline/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/tabline/transport/http/activity")

// Module wires the activity handler.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)

// Handler serves GET /activity.
type Handler struct {
	svc *audit.Service
}

// NewHandler constructs an activity Handler.
func NewHandler(svc *audit.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	e.GET("/activity", h.list)
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	q := audit.Query{Search: c.QueryParam("search")}
	for name, dst := range map[string]*int{"limit": &q.Limit, "offset": &q.Offset} {
		v := c.QueryParam(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return b.WithError(errorbank.BadRequest("invalid "+name, errorbank.WithCause(err))).Build()
		}
		*dst = n
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "activity.list")
	defer span.End()

	logs, err := h.svc.RecentLogs(ctx, q)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(logs).Build()
}
