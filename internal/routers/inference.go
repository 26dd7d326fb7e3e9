package routers

import (
	"errors"

	"sidecar-api/internal/ctx"
	"sidecar-api/internal/handlers/inference"
	"sidecar-api/internal/metrics"
	"sidecar-api/internal/relay"
	"sidecar-api/internal/shared"

	"github.com/labstack/echo/v4"
)

type InferenceRouter struct {
	ih *inference.InferenceHandler
}

func (ir *InferenceRouter) ChatRequest(cc echo.Context) error {
	c := ctx.From(cc)
	defer begin(c, shared.SERVICES.CHAT)()

	body, err := readRequestBody(c)
	if err != nil {
		return badBody(c, err)
	}
	out, err := ir.ih.Chat(c.Request().Context(), inference.ChatInput{Body: body, RequestID: c.Reqid})
	if err != nil {
		return writeError(c, err)
	}

	if out.Stream == nil {
		return c.JSONBlob(200, out.Response)
	}

	c.LogValues.Stream = true
	frames, err := relay.Stream(c.Request().Context(), relay.NewEchoResponder(c), out.Stream, c.Log)
	c.LogValues.Frames = frames
	metrics.StreamFrames.WithLabelValues(shared.SERVICES.CHAT).Add(float64(frames))
	if err != nil {
		// Headers are already out; the error can only be logged.
		c.LogValues.AddError(err)
		var fault *shared.StreamFault
		if errors.As(err, &fault) {
			c.LogValues.LogLevel = "ERROR"
			metrics.ErrorCount.WithLabelValues(shared.SERVICES.CHAT, shared.ErrorCode(err)).Inc()
		}
	}
	return nil
}

func (ir *InferenceRouter) EmbeddingRequest(cc echo.Context) error {
	c := ctx.From(cc)
	defer begin(c, shared.SERVICES.EMBEDDINGS)()

	body, err := readRequestBody(c)
	if err != nil {
		return badBody(c, err)
	}
	out, err := ir.ih.Embeddings(c.Request().Context(), inference.EmbeddingsInput{Body: body, RequestID: c.Reqid})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSONBlob(200, out)
}
