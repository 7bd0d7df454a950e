// Package catalog exposes tables and products over HTTP.
package catalog

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.uber.org/fx"

	"github.com/Additional-Code/tabline/internal/presentation/http/response"
	service "github.com/Additional-Code/tabline/internal/service/catalog"
	"github.com/Additional-Code/tabline/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/tabline/transport/http/catalog")

// Module wires HTTP catalog handlers.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)

// Handler serves the catalog endpoints.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a catalog Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	e.GET("/tables", h.listTables)
	e.POST("/tables", h.createTable)
	e.GET("/products", h.listProducts)
	e.POST("/products", h.createProduct)
	e.GET("/products/:id", h.getProduct)
}

func (h *Handler) listTables(c echo.Context) error {
	b := response.New(c)
	ctx, span := httpTracer.Start(c.Request().Context(), "tables.list")
	defer span.End()

	tables, err := h.svc.ListTablesWithStatus(ctx)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(tables).Build()
}

func (h *Handler) createTable(c echo.Context) error {
	b := response.New(c)

	var payload struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "tables.create")
	defer span.End()

	table, err := h.svc.CreateTable(ctx, payload.Name)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(table).Build()
}

func (h *Handler) listProducts(c echo.Context) error {
	b := response.New(c)
	ctx, span := httpTracer.Start(c.Request().Context(), "products.list")
	defer span.End()

	products, err := h.svc.ListProducts(ctx)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(products).Build()
}

func (h *Handler) createProduct(c echo.Context) error {
	b := response.New(c)

	var payload struct {
		Name  string `json:"name"`
		Price int64  `json:"price"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "products.create")
	defer span.End()

	product, err := h.svc.CreateProduct(ctx, payload.Name, payload.Price)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(product).Build()
}

func (h *Handler) getProduct(c echo.Context) error {
	b := response.New(c)
	ctx, span := httpTracer.Start(c.Request().Context(), "products.get")
	defer span.End()

	product, err := h.svc.GetProduct(ctx, c.Param("id"))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(product).Build()
}
