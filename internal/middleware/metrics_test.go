package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"sidecar-api/internal/ctx"
	"sidecar-api/internal/shared"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newEcho() *echo.Echo {
	log := zap.NewNop().Sugar()
	e := echo.New()
	e.HTTPErrorHandler = NewErrorHandler(log)
	base := e.Group("")
	base.Use(NewTrackMiddleware(log))
	base.Use(NewRecoverMiddleware(log))

	base.GET("/ok", func(c echo.Context) error {
		cc, isCtx := c.(*ctx.Context)
		if !isCtx {
			return errors.New("missing request context")
		}
		return c.String(200, cc.Reqid)
	})
	base.GET("/panic", func(c echo.Context) error {
		panic("boom")
	})
	base.GET("/invalid", func(c echo.Context) error {
		return shared.NewValidationError("Prompt is required.")
	})
	return e
}

func serve(e *echo.Echo, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) shared.ErrorResponse {
	t.Helper()
	var body shared.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestTrackAssignsRequestID(t *testing.T) {
	rec := serve(newEcho(), "GET", "/ok")
	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "req_"))
	assert.Equal(t, rec.Body.String(), rec.Header().Get(echo.HeaderXRequestID))
}

func TestRecoverAnswersJSON(t *testing.T) {
	rec := serve(newEcho(), "GET", "/panic")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decodeError(t, rec).Error)
}

func TestReturnedErrorsUseErrorShape(t *testing.T) {
	rec := serve(newEcho(), "GET", "/invalid")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Prompt is required.", decodeError(t, rec).Error)
}

func TestNotFoundIsJSON(t *testing.T) {
	rec := serve(newEcho(), "GET", "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found - /nope", decodeError(t, rec).Error)
}
