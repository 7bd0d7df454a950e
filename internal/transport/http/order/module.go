package order

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	catalogsvc "github.com/Additional-Code/tabline/internal/service/catalog"
)

// Module wires HTTP order handlers.
var Module = fx.Options(
	fx.Provide(func(c *catalogsvc.Service) PriceLookup { return c }),
	fx.Provide(NewHandler),
	fx.Invoke(func(e *echo.Echo, h *Handler) {
		Register(e, h)
	}),
)
