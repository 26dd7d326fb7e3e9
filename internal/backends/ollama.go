package backends

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"sidecar-api/internal/adapter"

	"go.uber.org/zap"
)

const ollamaBackend = "ollama"

// Ollama is the chat and embeddings facade. It talks to an already running
// Ollama server over its REST API.
type Ollama struct {
	host   string
	client *http.Client
	log    *zap.SugaredLogger
}

func NewOllama(host string, client *http.Client, log *zap.SugaredLogger) *Ollama {
	return &Ollama{host: strings.TrimRight(host, "/"), client: client, log: log}
}

// Chat sends a single-shot chat request and returns the runtime's response
// object untouched.
func (o *Ollama) Chat(ctx context.Context, p *adapter.ChatPayload) (json.RawMessage, error) {
	single := *p
	single.Stream = false
	return o.do(ctx, "/api/chat", &single)
}

// ChatStream opens a streaming chat request. The returned stream must be
// closed; closing it aborts the upstream request.
func (o *Ollama) ChatStream(ctx context.Context, p *adapter.ChatPayload) (ChunkStream, error) {
	streamed := *p
	streamed.Stream = true

	ctx, cancel := context.WithCancel(ctx)
	res, err := postJSON(ctx, o.client, o.host+"/api/chat", &streamed)
	if err != nil {
		cancel()
		return nil, backendError(ollamaBackend, err)
	}
	if res.StatusCode != http.StatusOK {
		defer cancel()
		defer res.Body.Close()
		return nil, statusError(ollamaBackend, res)
	}

	scanner := bufio.NewScanner(res.Body)
	scanner.Buffer(make([]byte, 0, 64<<10), 8<<20)
	return &OllamaStream{body: res.Body, scanner: scanner, cancel: cancel}, nil
}

// Embed calls /api/embed. The response carries model, embeddings and the
// runtime's timing fields.
func (o *Ollama) Embed(ctx context.Context, p *adapter.EmbedPayload) (json.RawMessage, error) {
	return o.do(ctx, "/api/embed", p)
}

func (o *Ollama) do(ctx context.Context, path string, payload any) (json.RawMessage, error) {
	res, err := postJSON(ctx, o.client, o.host+path, payload)
	if err != nil {
		return nil, backendError(ollamaBackend, err)
	}
	defer func() {
		if closeErr := res.Body.Close(); closeErr != nil {
			o.log.Warnw("Failed to close response body", "error", closeErr)
		}
	}()
	if res.StatusCode != http.StatusOK {
		return nil, statusError(ollamaBackend, res)
	}
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, backendError(ollamaBackend, fmt.Errorf("failed to read response body: %w", err))
	}
	if !json.Valid(body) {
		return nil, backendError(ollamaBackend, fmt.Errorf("invalid JSON from runtime"))
	}
	return body, nil
}

// ChunkStream is a lazy, finite sequence of response chunks. Read returns
// io.EOF once the sequence is exhausted.
type ChunkStream interface {
	Read(ctx context.Context) (json.RawMessage, error)
	Close() error
}

// OllamaStream reads newline delimited JSON chunks from a streaming chat.
// It is lazy, finite and cannot be restarted.
type OllamaStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	cancel  context.CancelFunc
	done    bool
	closed  bool
}

// Read returns the next chunk, or io.EOF once the runtime reports done or the
// body ends.
func (s *OllamaStream) Read(ctx context.Context) (json.RawMessage, error) {
	if s.done || s.closed {
		return nil, io.EOF
	}
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if !s.scanner.Scan() {
			s.done = true
			if err := s.scanner.Err(); err != nil {
				return nil, backendError(ollamaBackend, fmt.Errorf("failed to read stream: %w", err))
			}
			return nil, io.EOF
		}
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" {
			continue
		}

		var head struct {
			Error string `json:"error"`
			Done  bool   `json:"done"`
		}
		if err := json.Unmarshal([]byte(line), &head); err != nil {
			s.done = true
			return nil, backendError(ollamaBackend, fmt.Errorf("failed to parse stream chunk: %w", err))
		}
		if head.Error != "" {
			s.done = true
			return nil, backendError(ollamaBackend, fmt.Errorf("%s", head.Error))
		}
		if head.Done {
			// the final chunk still carries stats the client wants
			s.done = true
		}
		return json.RawMessage(line), nil
	}
}

func (s *OllamaStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.cancel()
	return s.body.Close()
}
