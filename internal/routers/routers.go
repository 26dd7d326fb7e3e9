// Package routers mounts the HTTP surface: service routes under /api/v1, the
// banner and service listing, and the lifecycle control routes.
package routers

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"sidecar-api/internal/ctx"
	"sidecar-api/internal/metrics"
	"sidecar-api/internal/shared"
)

func readRequestBody(c *ctx.Context) ([]byte, error) {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		c.Log.Errorw("Failed to read request body", "error", err.Error())
		return nil, err
	}
	return body, nil
}

// writeError answers with the JSON error shape. Only valid before anything
// has been written.
func writeError(c *ctx.Context, err error) error {
	c.LogValues.AddError(err)
	status := shared.StatusFor(err)
	if status >= http.StatusInternalServerError {
		c.LogValues.LogLevel = "ERROR"
	}
	metrics.ErrorCount.WithLabelValues(c.LogValues.Service, shared.ErrorCode(err)).Inc()
	return c.JSON(status, shared.ErrorBody(err))
}

func badBody(c *ctx.Context, err error) error {
	c.LogValues.AddError(err)
	return writeError(c, shared.ErrInvalidRequest)
}

// begin tags the request with its service and returns the func that records
// its metrics once the response is done.
func begin(c *ctx.Context, service string) func() {
	c.LogValues.Service = service
	start := time.Now()
	return func() {
		stream := strconv.FormatBool(c.LogValues.Stream)
		metrics.RequestDuration.WithLabelValues(service, stream).Observe(time.Since(start).Seconds())
		metrics.RequestCount.WithLabelValues(service, strconv.Itoa(c.Response().Status)).Inc()
	}
}
