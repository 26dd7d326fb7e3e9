package inference

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"sidecar-api/internal/adapter"
	"sidecar-api/internal/backends"
	"sidecar-api/internal/cache"
	"sidecar-api/internal/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRuntime struct {
	chat       func(ctx context.Context, p *adapter.ChatPayload) (json.RawMessage, error)
	chatStream func(ctx context.Context, p *adapter.ChatPayload) (backends.ChunkStream, error)
	embed      func(ctx context.Context, p *adapter.EmbedPayload) (json.RawMessage, error)
	calls      int
}

func (f *fakeRuntime) Chat(ctx context.Context, p *adapter.ChatPayload) (json.RawMessage, error) {
	f.calls++
	return f.chat(ctx, p)
}

func (f *fakeRuntime) ChatStream(ctx context.Context, p *adapter.ChatPayload) (backends.ChunkStream, error) {
	f.calls++
	return f.chatStream(ctx, p)
}

func (f *fakeRuntime) Embed(ctx context.Context, p *adapter.EmbedPayload) (json.RawMessage, error) {
	f.calls++
	return f.embed(ctx, p)
}

type sliceStream struct{ chunks []string }

func (s *sliceStream) Read(context.Context) (json.RawMessage, error) {
	if len(s.chunks) == 0 {
		return nil, io.EOF
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return json.RawMessage(c), nil
}

func (s *sliceStream) Close() error { return nil }

func newHandler(rt Runtime, c cache.EmbeddingCache) *InferenceHandler {
	return NewInferenceHandler(rt, c, zap.NewNop().Sugar())
}

func TestChatMissingFieldsNeverCallsRuntime(t *testing.T) {
	rt := &fakeRuntime{}
	ih := newHandler(rt, nil)
	for _, body := range []string{`{}`, `{"model":"m"}`, `{"messages":[]}`, `[]`, `nope`} {
		_, err := ih.Chat(context.Background(), ChatInput{Body: []byte(body)})
		require.Error(t, err, body)
		assert.Equal(t, 400, shared.StatusFor(err), body)
	}
	assert.Equal(t, 0, rt.calls)
}

func TestChatSingleShot(t *testing.T) {
	rt := &fakeRuntime{chat: func(_ context.Context, p *adapter.ChatPayload) (json.RawMessage, error) {
		assert.Equal(t, "llama3", p.Model)
		require.NotNil(t, p.Format)
		assert.Equal(t, "json", *p.Format)
		return json.RawMessage(`{"message":{"role":"assistant","content":"hi"},"done":true}`), nil
	}}
	out, err := newHandler(rt, nil).Chat(context.Background(), ChatInput{
		Body: []byte(`{"model":"llama3","messages":[{"role":"user","content":"hi"}],"response_format":"json"}`),
	})
	require.NoError(t, err)
	assert.Nil(t, out.Stream)
	assert.JSONEq(t, `{"message":{"role":"assistant","content":"hi"},"done":true}`, string(out.Response))
}

func TestChatStreamOpensUpstream(t *testing.T) {
	rt := &fakeRuntime{chatStream: func(_ context.Context, p *adapter.ChatPayload) (backends.ChunkStream, error) {
		assert.True(t, p.Stream)
		return &sliceStream{chunks: []string{`{"done":false}`, `{"done":true}`}}, nil
	}}
	out, err := newHandler(rt, nil).Chat(context.Background(), ChatInput{
		Body: []byte(`{"model":"m","messages":[],"stream":true}`),
	})
	require.NoError(t, err)
	require.NotNil(t, out.Stream)
	assert.Nil(t, out.Response)
}

func TestChatBackendErrorPassesThrough(t *testing.T) {
	rt := &fakeRuntime{chatStream: func(context.Context, *adapter.ChatPayload) (backends.ChunkStream, error) {
		return nil, &shared.BackendError{Backend: "ollama", Message: `model "m" not found`}
	}}
	_, err := newHandler(rt, nil).Chat(context.Background(), ChatInput{
		Body: []byte(`{"model":"m","messages":[],"stream":true}`),
	})
	require.Error(t, err)
	assert.Equal(t, 500, shared.StatusFor(err))
	assert.Equal(t, `model "m" not found`, shared.ErrorBody(err).Error)
}

func TestEmbeddingsValidation(t *testing.T) {
	rt := &fakeRuntime{}
	_, err := newHandler(rt, nil).Embeddings(context.Background(), EmbeddingsInput{Body: []byte(`{"model":"m"}`)})
	require.Error(t, err)
	assert.Equal(t, "Missing required parameters: model, input", shared.ErrorBody(err).Error)
	assert.Equal(t, 0, rt.calls)
}

func TestEmbeddingsCached(t *testing.T) {
	const res = `{"model":"m","embeddings":[[0.1,0.2]],"total_duration":1,"load_duration":1,"prompt_eval_count":2}`
	rt := &fakeRuntime{embed: func(_ context.Context, p *adapter.EmbedPayload) (json.RawMessage, error) {
		assert.Equal(t, "m", p.Model)
		return json.RawMessage(res), nil
	}}
	ih := newHandler(rt, cache.NewMemoryCache(time.Hour))
	body := []byte(`{"model":"m","input":"hello"}`)

	first, err := ih.Embeddings(context.Background(), EmbeddingsInput{Body: body})
	require.NoError(t, err)
	second, err := ih.Embeddings(context.Background(), EmbeddingsInput{Body: body})
	require.NoError(t, err)

	assert.JSONEq(t, res, string(first))
	assert.JSONEq(t, res, string(second))
	assert.Equal(t, 1, rt.calls)

	_, err = ih.Embeddings(context.Background(), EmbeddingsInput{Body: []byte(`{"model":"m","input":"other"}`)})
	require.NoError(t, err)
	assert.Equal(t, 2, rt.calls)
}
