package inference

import (
	"context"
	"encoding/json"
	"time"

	"sidecar-api/internal/adapter"
	"sidecar-api/internal/backends"
	"sidecar-api/internal/metrics"
	"sidecar-api/internal/shared"
)

type ChatInput struct {
	Body      []byte
	RequestID string
}

// ChatOutput holds exactly one of Stream or Response.
type ChatOutput struct {
	Model    string
	Stream   backends.ChunkStream
	Response json.RawMessage
}

// Chat validates and adapts the request, then calls the runtime. For
// streaming requests the upstream is already open when Chat returns, so any
// failure up to that point can still be answered with a JSON error.
func (ih *InferenceHandler) Chat(ctx context.Context, input ChatInput) (*ChatOutput, error) {
	req, err := adapter.Decode(input.Body)
	if err != nil {
		return nil, err
	}
	payload, err := adapter.AdaptChat(req)
	if err != nil {
		return nil, err
	}

	log := logWithFields(ih.Log, map[string]string{"request_id": input.RequestID, "model": payload.Model})
	start := time.Now()
	defer func() {
		metrics.BackendDuration.WithLabelValues(shared.SERVICES.CHAT).Observe(time.Since(start).Seconds())
	}()

	if payload.Stream {
		stream, err := ih.Runtime.ChatStream(ctx, payload)
		if err != nil {
			log.Warnw("Failed to open chat stream", "error", err)
			return nil, err
		}
		return &ChatOutput{Model: payload.Model, Stream: stream}, nil
	}

	res, err := ih.Runtime.Chat(ctx, payload)
	if err != nil {
		log.Warnw("Chat request failed", "error", err)
		return nil, err
	}
	return &ChatOutput{Model: payload.Model, Response: res}, nil
}
