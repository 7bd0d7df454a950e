package order

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/tabline/internal/dto"
	"github.com/Additional-Code/tabline/internal/entity"
	"github.com/Additional-Code/tabline/internal/presentation/http/response"
	service "github.com/Additional-Code/tabline/internal/service/order"
	"github.com/Additional-Code/tabline/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/tabline/transport/http/order")

// PriceLookup resolves the current catalog price of a product.
type PriceLookup interface {
	GetProduct(ctx context.Context, id string) (*dto.Product, error)
}

// Handler exposes order, item and payment endpoints over HTTP.
type Handler struct {
	core     *service.CoreService
	payments *service.PaymentService
	tables   *service.TableService
	prices   PriceLookup
}

// NewHandler constructs an order Handler.
func NewHandler(core *service.CoreService, payments *service.PaymentService, tables *service.TableService, prices PriceLookup) *Handler {
	return &Handler{core: core, payments: payments, tables: tables, prices: prices}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	e.GET("/tables/:id/order", h.openOrder)
	e.POST("/tables/:id/order", h.createOrder)

	g := e.Group("/orders")
	g.GET("/history", h.history)
	g.GET("/:id", h.getByID)
	g.PATCH("/:id", h.update)
	g.DELETE("/:id", h.delete)
	g.POST("/:id/close", h.close)
	g.POST("/:id/lock", h.lock)
	g.POST("/:id/items", h.addItem)
	g.POST("/:id/payments", h.pay)
	g.POST("/:id/transfer", h.transfer)
	g.POST("/:id/merge", h.merge)

	items := e.Group("/items")
	items.POST("/paid", h.markPaid)
	items.PATCH("/:id", h.updateItem)
	items.DELETE("/:id", h.removeItem)
}

func (h *Handler) span(c echo.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return httpTracer.Start(c.Request().Context(), name, trace.WithAttributes(attrs...))
}

func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return errorbank.BadRequest("invalid payload", errorbank.WithCause(err))
	}
	return nil
}

func (h *Handler) openOrder(c echo.Context) error {
	b := response.New(c)
	ctx, span := h.span(c, "orders.openForTable", attribute.String("table.id", c.Param("id")))
	defer span.End()

	order, err := h.core.GetOpenOrderForTable(ctx, c.Param("id"))
	if err != nil {
		return b.WithError(err).Build()
	}
	if order == nil {
		return b.WithData(nil).Build()
	}
	return b.WithData(order).Build()
}

func (h *Handler) createOrder(c echo.Context) error {
	b := response.New(c)
	ctx, span := h.span(c, "orders.create", attribute.String("table.id", c.Param("id")))
	defer span.End()

	order, err := h.core.CreateOrder(ctx, c.Param("id"))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(order).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)
	ctx, span := h.span(c, "orders.getByID", attribute.String("order.id", c.Param("id")))
	defer span.End()

	order, err := h.core.GetOrderDetails(ctx, c.Param("id"))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(order).Build()
}

func (h *Handler) history(c echo.Context) error {
	b := response.New(c)

	q, err := historyQuery(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := h.span(c, "orders.history")
	defer span.End()

	page, err := h.core.GetOrderHistory(ctx, q)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(page).Build()
}

func historyQuery(c echo.Context) (service.HistoryQuery, error) {
	var q service.HistoryQuery
	var err error
	if v := c.QueryParam("limit"); v != "" {
		if q.Limit, err = strconv.Atoi(v); err != nil {
			return q, errorbank.BadRequest("invalid limit", errorbank.WithCause(err))
		}
	}
	if v := c.QueryParam("offset"); v != "" {
		if q.Offset, err = strconv.Atoi(v); err != nil {
			return q, errorbank.BadRequest("invalid offset", errorbank.WithCause(err))
		}
	}
	if q.From, err = parseDate(c.QueryParam("from"), false); err != nil {
		return q, err
	}
	if q.To, err = parseDate(c.QueryParam("to"), true); err != nil {
		return q, err
	}
	return q, nil
}

// parseDate accepts RFC 3339 timestamps or plain dates. A plain "to" date
// covers the whole day.
func parseDate(v string, endOfDay bool) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, errorbank.BadRequest("invalid date", errorbank.WithDetail("value", v))
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func (h *Handler) update(c echo.Context) error {
	b := response.New(c)

	var payload struct {
		Status   *string `json:"status"`
		IsLocked *bool   `json:"isLocked"`
	}
	if err := bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}
	in := service.UpdateOrderInput{IsLocked: payload.IsLocked}
	if payload.Status != nil {
		status := entity.OrderStatus(*payload.Status)
		in.Status = &status
	}

	ctx, span := h.span(c, "orders.update", attribute.String("order.id", c.Param("id")))
	defer span.End()

	order, err := h.core.UpdateOrder(ctx, c.Param("id"), in)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(order).Build()
}

func (h *Handler) delete(c echo.Context) error {
	b := response.New(c)
	ctx, span := h.span(c, "orders.delete", attribute.String("order.id", c.Param("id")))
	defer span.End()

	if err := h.core.DeleteOrder(ctx, c.Param("id")); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(map[string]string{"id": c.Param("id")}).Build()
}

func (h *Handler) close(c echo.Context) error {
	b := response.New(c)
	ctx, span := h.span(c, "orders.close", attribute.String("order.id", c.Param("id")))
	defer span.End()

	order, err := h.core.CloseOrder(ctx, c.Param("id"))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(order).Build()
}

func (h *Handler) lock(c echo.Context) error {
	b := response.New(c)

	var payload struct {
		IsLocked *bool `json:"isLocked"`
	}
	if err := bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}
	if payload.IsLocked == nil {
		return b.WithError(errorbank.BadRequest("isLocked is required")).Build()
	}

	ctx, span := h.span(c, "orders.lock", attribute.String("order.id", c.Param("id")))
	defer span.End()

	order, err := h.tables.ToggleLock(ctx, c.Param("id"), *payload.IsLocked)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(order).Build()
}

func (h *Handler) addItem(c echo.Context) error {
	b := response.New(c)

	var payload struct {
		ProductID string `json:"productId"`
		Quantity  int64  `json:"quantity"`
		UnitPrice *int64 `json:"unitPrice"`
	}
	if err := bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := h.span(c, "orders.addItem",
		attribute.String("order.id", c.Param("id")),
		attribute.String("product.id", payload.ProductID),
	)
	defer span.End()

	in := service.AddItemInput{OrderID: c.Param("id"), ProductID: payload.ProductID, Quantity: payload.Quantity}
	if payload.UnitPrice != nil {
		in.UnitPrice = *payload.UnitPrice
	} else {
		if payload.ProductID == "" {
			return b.WithError(errorbank.BadRequest("productId is required")).Build()
		}
		product, err := h.prices.GetProduct(ctx, payload.ProductID)
		if err != nil {
			return b.WithError(err).Build()
		}
		in.UnitPrice = product.Price
	}

	order, err := h.core.AddItem(ctx, in)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(order).Build()
}

func (h *Handler) updateItem(c echo.Context) error {
	b := response.New(c)

	var payload struct {
		Quantity *int64 `json:"quantity"`
	}
	if err := bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}
	if payload.Quantity == nil {
		return b.WithError(errorbank.BadRequest("quantity is required")).Build()
	}

	ctx, span := h.span(c, "items.update", attribute.String("item.id", c.Param("id")))
	defer span.End()

	order, err := h.core.UpdateItem(ctx, c.Param("id"), *payload.Quantity)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(order).Build()
}

func (h *Handler) removeItem(c echo.Context) error {
	b := response.New(c)
	ctx, span := h.span(c, "items.remove", attribute.String("item.id", c.Param("id")))
	defer span.End()

	order, err := h.core.RemoveItem(ctx, c.Param("id"))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(order).Build()
}

type itemPayload struct {
	ID       string `json:"id"`
	Quantity int64  `json:"quantity"`
}

func toItemPayments(items []itemPayload) []service.ItemPayment {
	out := make([]service.ItemPayment, 0, len(items))
	for _, it := range items {
		out = append(out, service.ItemPayment{ItemID: it.ID, Quantity: it.Quantity})
	}
	return out
}

func (h *Handler) pay(c echo.Context) error {
	b := response.New(c)

	var payload struct {
		Amount  int64         `json:"amount"`
		Method  string        `json:"method"`
		Items   []itemPayload `json:"items"`
		SkipLog bool          `json:"skipLog"`
	}
	if err := bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := h.span(c, "orders.pay",
		attribute.String("order.id", c.Param("id")),
		attribute.Int64("payment.amount", payload.Amount),
	)
	defer span.End()

	res, err := h.payments.ProcessPayment(ctx, service.PaymentInput{
		OrderID:         c.Param("id"),
		Amount:          payload.Amount,
		Method:          entity.PaymentMethod(payload.Method),
		ItemsToMarkPaid: toItemPayments(payload.Items),
		SkipLog:         payload.SkipLog,
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(res).Build()
}

func (h *Handler) markPaid(c echo.Context) error {
	b := response.New(c)

	var payload struct {
		Items   []itemPayload `json:"items"`
		Payment *struct {
			Amount int64  `json:"amount"`
			Method string `json:"method"`
		} `json:"payment"`
	}
	if err := bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}
	var details *service.PaymentDetails
	if payload.Payment != nil {
		details = &service.PaymentDetails{Amount: payload.Payment.Amount, Method: entity.PaymentMethod(payload.Payment.Method)}
	}

	ctx, span := h.span(c, "items.markPaid", attribute.Int("items.count", len(payload.Items)))
	defer span.End()

	order, err := h.payments.MarkItemsPaid(ctx, toItemPayments(payload.Items), details)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(order).Build()
}

func (h *Handler) transfer(c echo.Context) error {
	b := response.New(c)

	var payload struct {
		TableID string `json:"tableId"`
	}
	if err := bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := h.span(c, "orders.transfer",
		attribute.String("order.id", c.Param("id")),
		attribute.String("table.target", payload.TableID),
	)
	defer span.End()

	order, err := h.tables.TransferTable(ctx, c.Param("id"), payload.TableID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(order).Build()
}

func (h *Handler) merge(c echo.Context) error {
	b := response.New(c)

	var payload struct {
		TargetOrderID string `json:"targetOrderId"`
	}
	if err := bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := h.span(c, "orders.merge",
		attribute.String("order.source", c.Param("id")),
		attribute.String("order.target", payload.TargetOrderID),
	)
	defer span.End()

	order, err := h.tables.MergeTables(ctx, c.Param("id"), payload.TargetOrderID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(order).Build()
}
