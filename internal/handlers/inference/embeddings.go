package inference

import (
	"context"
	"encoding/json"
	"time"

	"sidecar-api/internal/adapter"
	"sidecar-api/internal/cache"
	"sidecar-api/internal/metrics"
	"sidecar-api/internal/shared"
)

type EmbeddingsInput struct {
	Body      []byte
	RequestID string
}

// Embeddings returns the runtime's response object: model, embeddings and
// its timing counters. Identical adapted payloads are served from the cache
// when one is configured.
func (ih *InferenceHandler) Embeddings(ctx context.Context, input EmbeddingsInput) (json.RawMessage, error) {
	req, err := adapter.Decode(input.Body)
	if err != nil {
		return nil, err
	}
	payload, err := adapter.AdaptEmbeddings(req)
	if err != nil {
		return nil, err
	}

	var key string
	if ih.Cache != nil {
		if raw, err := json.Marshal(payload); err == nil {
			key = cache.Key(raw)
			if hit, ok := ih.Cache.Get(ctx, key); ok {
				return hit, nil
			}
		}
	}

	start := time.Now()
	res, err := ih.Runtime.Embed(ctx, payload)
	metrics.BackendDuration.WithLabelValues(shared.SERVICES.EMBEDDINGS).Observe(time.Since(start).Seconds())
	if err != nil {
		logWithFields(ih.Log, map[string]string{"request_id": input.RequestID, "model": payload.Model}).
			Warnw("Embedding request failed", "error", err)
		return nil, err
	}
	if key != "" {
		ih.Cache.Set(ctx, key, res)
	}
	return res, nil
}
