// Package response renders the {success, data | error} envelope every HTTP
// endpoint returns.
package response

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/tabline/pkg/errorbank"
)

// Builder helps construct consistent HTTP responses.
type Builder struct {
	ctx    echo.Context
	status int
	data   any
	err    error
	meta   map[string]any
}

// New instantiates a Builder for the provided request context.
func New(ctx echo.Context) *Builder {
	return &Builder{ctx: ctx, status: http.StatusOK}
}

// WithStatus overrides the response status code.
func (b *Builder) WithStatus(status int) *Builder {
	if status > 0 {
		b.status = status
	}
	return b
}

// WithData attaches a success payload. A nil payload renders as null.
func (b *Builder) WithData(data any) *Builder {
	b.data = data
	return b
}

// WithError records an error to be rendered.
func (b *Builder) WithError(err error) *Builder {
	b.err = err
	return b
}

// WithMeta appends auxiliary metadata to the response.
func (b *Builder) WithMeta(key string, value any) *Builder {
	if key == "" {
		return b
	}
	if b.meta == nil {
		b.meta = make(map[string]any)
	}
	b.meta[key] = value
	return b
}

// WithPage records paging metadata.
func (b *Builder) WithPage(limit, offset int, total int, hasMore bool) *Builder {
	return b.WithMeta("page", map[string]any{
		"limit":   limit,
		"offset":  offset,
		"total":   total,
		"hasMore": hasMore,
	})
}

// Build finalises and emits the HTTP response.
func (b *Builder) Build() error {
	if b.err != nil {
		return b.buildError()
	}
	return b.buildSuccess()
}

type successPayload struct {
	Success bool           `json:"success"`
	Data    any            `json:"data"`
	Meta    map[string]any `json:"meta,omitempty"`
}

type errorBody struct {
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type errorPayload struct {
	Success bool           `json:"success"`
	Error   errorBody      `json:"error"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func (b *Builder) buildSuccess() error {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.ctx.JSON(b.status, successPayload{Success: true, Data: b.data, Meta: b.meta})
}

func (b *Builder) buildError() error {
	appErr := errorbank.From(b.err)
	status := b.status
	if status < 400 {
		status = appErr.StatusCode()
	}
	return b.ctx.JSON(status, errorPayload{
		Success: false,
		Error: errorBody{
			Kind:    string(appErr.Kind()),
			Message: appErr.Message(),
			Details: appErr.Details(),
		},
		Meta: b.meta,
	})
}

// ErrorHandler renders router-level failures (unknown routes, bad methods,
// binder errors) in the same envelope as handler errors.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		kind := errorbank.KindBadRequest
		switch {
		case he.Code == http.StatusNotFound:
			kind = errorbank.KindNotFound
		case he.Code >= http.StatusInternalServerError:
			kind = errorbank.KindInternal
		}
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok && m != "" {
			msg = m
		}
		err = errorbank.New(kind, msg)
		_ = New(c).WithStatus(he.Code).WithError(err).Build()
		return
	}
	_ = New(c).WithError(err).Build()
}
