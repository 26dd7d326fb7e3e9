// Package middleware holds the echo middleware shared by every route.
package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"sidecar-api/internal/ctx"
	"sidecar-api/internal/metrics"
	"sidecar-api/internal/shared"

	"github.com/aidarkhanov/nanoid"
	"github.com/labstack/echo/v4"
	emw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func NewTrackMiddleware(log *zap.SugaredLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			reqID, _ := nanoid.Generate("0123456789abcdefghijklmnopqrstuvwxyz", 28)
			reqID = "req_" + reqID
			externalID := c.Request().Header.Get(echo.HeaderXRequestID)
			logger := log.With("request_id", reqID)
			if externalID != "" {
				logger = logger.With("externalid", externalID)
			}
			c.Response().Header().Set(echo.HeaderXRequestID, reqID)

			cc := &ctx.Context{
				Context: c,
				Log:     logger,
				Reqid:   reqID,
				LogValues: &ctx.ContextLogValues{
					RequestID:  reqID,
					ExternalID: externalID,
					StartTime:  time.Now(),
					Path:       c.Request().URL.Path,
				},
			}
			err := next(cc)
			if err != nil {
				// Let echo write the response now so the status below is final.
				cc.LogValues.AddError(err)
				c.Error(err)
			}

			cc.LogValues.RequestDuration = time.Since(cc.LogValues.StartTime)
			cc.LogValues.StatusCode = cc.Response().Status
			log.Desugar().Check(cc.LogValues.Level(), "end_of_request").Write(zap.Object("request", cc.LogValues))

			path := cc.Path()
			if path == "" {
				path = "unmatched"
			}
			metrics.ResponseCodes.WithLabelValues(path, fmt.Sprintf("%d", cc.Response().Status)).Inc()
			return nil
		}
	}
}

func NewRecoverMiddleware(log *zap.SugaredLogger) echo.MiddlewareFunc {
	return emw.RecoverWithConfig(emw.RecoverConfig{
		StackSize: 1 << 10, // 1 KB
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			defer func() {
				_ = log.Sync()
			}()
			log.Errorw("Api Panic", "error", err.Error(), "stack", string(stack))
			if c.Response().Committed {
				return nil
			}
			return c.JSON(http.StatusInternalServerError, shared.ErrorResponse{Error: shared.ErrInternalServerError.Err.Error()})
		},
	})
}

// NewErrorHandler answers errors that escape a handler, including echo's own
// 404 and 405, with the JSON error shape.
func NewErrorHandler(log *zap.SugaredLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		var he *echo.HTTPError
		status := shared.StatusFor(err)
		body := shared.ErrorBody(err)
		if errors.As(err, &he) {
			status = he.Code
			body = shared.ErrorResponse{Error: fmt.Sprint(he.Message)}
			if status == http.StatusNotFound {
				body.Error = fmt.Sprintf("Not Found - %s", c.Request().URL.Path)
			}
		}
		if status >= 500 {
			log.Errorw("Unhandled error", "error", err, "path", c.Request().URL.Path)
		}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, body)
	}
}
