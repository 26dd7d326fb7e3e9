// Package inference handles chat completions and embeddings against the
// chat runtime.
package inference

import (
	"context"
	"encoding/json"

	"sidecar-api/internal/adapter"
	"sidecar-api/internal/backends"
	"sidecar-api/internal/cache"

	"go.uber.org/zap"
)

// Runtime is the chat and embedding engine.
type Runtime interface {
	Chat(ctx context.Context, p *adapter.ChatPayload) (json.RawMessage, error)
	ChatStream(ctx context.Context, p *adapter.ChatPayload) (backends.ChunkStream, error)
	Embed(ctx context.Context, p *adapter.EmbedPayload) (json.RawMessage, error)
}

type InferenceHandler struct {
	Runtime Runtime
	// Cache is optional; nil disables embedding caching.
	Cache cache.EmbeddingCache
	Log   *zap.SugaredLogger
}

func NewInferenceHandler(rt Runtime, c cache.EmbeddingCache, log *zap.SugaredLogger) *InferenceHandler {
	return &InferenceHandler{Runtime: rt, Cache: c, Log: log}
}

func logWithFields(logger *zap.SugaredLogger, fields map[string]string) *zap.SugaredLogger {
	if len(fields) == 0 {
		return logger
	}
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return logger.With(args...)
}
