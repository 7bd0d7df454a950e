package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/tabline/pkg/errorbank"
)

func render(t *testing.T, fn func(c echo.Context) error) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	require.NoError(t, fn(c))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestBuildSuccessKeepsNullData(t *testing.T) {
	rec, body := render(t, func(c echo.Context) error { return New(c).WithData(nil).Build() })
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	data, present := body["data"]
	assert.True(t, present)
	assert.Nil(t, data)
}

func TestBuildErrorUsesKindStatus(t *testing.T) {
	rec, body := render(t, func(c echo.Context) error {
		return New(c).WithError(errorbank.Unprocessable("order is closed")).Build()
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, false, body["success"])
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "order is closed", errObj["message"])
	assert.Equal(t, "unprocessable_entity", errObj["kind"])
}

func TestBuildErrorHidesRawCause(t *testing.T) {
	rec, body := render(t, func(c echo.Context) error {
		return New(c).WithError(errors.New("pq: connection refused")).Build()
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	errObj := body["error"].(map[string]any)
	assert.NotContains(t, errObj["message"], "pq:")
}

func TestWithPage(t *testing.T) {
	_, body := render(t, func(c echo.Context) error {
		return New(c).WithData([]int{1}).WithPage(10, 20, 31, true).Build()
	})
	page := body["meta"].(map[string]any)["page"].(map[string]any)
	assert.Equal(t, float64(31), page["total"])
	assert.Equal(t, true, page["hasMore"])
}

func TestErrorHandlerWrapsEchoErrors(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/nowhere", nil), rec)
	ErrorHandler(echo.ErrNotFound, c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not_found", body["error"].(map[string]any)["kind"])
}
