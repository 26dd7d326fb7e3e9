package relay

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"sidecar-api/internal/shared"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sliceSource struct {
	chunks []json.RawMessage
	err    error
	pos    int
	closed bool
}

func (s *sliceSource) Read(ctx context.Context) (json.RawMessage, error) {
	if s.pos < len(s.chunks) {
		c := s.chunks[s.pos]
		s.pos++
		return c, nil
	}
	if s.err != nil {
		return nil, s.err
	}
	return nil, io.EOF
}

func (s *sliceSource) Close() error {
	s.closed = true
	return nil
}

func newEcho(t *testing.T) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/completions", nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func parseFrames(t *testing.T, body string) []string {
	t.Helper()
	var frames []string
	for _, block := range strings.Split(body, "\n\n") {
		if block == "" {
			continue
		}
		require.True(t, strings.HasPrefix(block, "data: "), "frame %q", block)
		data := strings.TrimPrefix(block, "data: ")
		require.True(t, json.Valid([]byte(data)), "frame %q", data)
		frames = append(frames, data)
	}
	return frames
}

func TestStreamFramesInOrder(t *testing.T) {
	for _, n := range []int{1, 2, 7, 50} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			c, rec := newEcho(t)
			src := &sliceSource{}
			var want []string
			for i := 0; i < n; i++ {
				chunk := fmt.Sprintf(`{"index":%d,"message":{"content":"tok%d"}}`, i, i)
				src.chunks = append(src.chunks, json.RawMessage(chunk))
				want = append(want, chunk)
			}

			frames, err := Stream(context.Background(), NewEchoResponder(c), src, zap.NewNop().Sugar())
			require.NoError(t, err)
			assert.Equal(t, n, frames)
			assert.Equal(t, want, parseFrames(t, rec.Body.String()))
			assert.True(t, src.closed)
			assert.True(t, strings.HasSuffix(rec.Body.String(), "\n\n"))
		})
	}
}

func TestStreamEmptySequenceCommitsHeaders(t *testing.T) {
	c, rec := newEcho(t)
	src := &sliceSource{}

	frames, err := Stream(context.Background(), NewEchoResponder(c), src, zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.Equal(t, 0, frames)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", rec.Header().Get("Connection"))
	assert.Empty(t, rec.Body.String())
	assert.True(t, rec.Flushed)
	assert.True(t, src.closed)
}

func TestStreamCompactsMultilineChunks(t *testing.T) {
	c, rec := newEcho(t)
	src := &sliceSource{chunks: []json.RawMessage{json.RawMessage("{\n  \"a\": 1\n}")}}

	_, err := Stream(context.Background(), NewEchoResponder(c), src, zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.Equal(t, "data: {\"a\":1}\n\n", rec.Body.String())
}

func TestStreamMidStreamFaultClosesWithoutErrorFrame(t *testing.T) {
	c, rec := newEcho(t)
	src := &sliceSource{
		chunks: []json.RawMessage{json.RawMessage(`{"n":1}`), json.RawMessage(`{"n":2}`)},
		err:    &shared.BackendError{Backend: "ollama", Message: "runner crashed"},
	}

	frames, err := Stream(context.Background(), NewEchoResponder(c), src, zap.NewNop().Sugar())
	var fault *shared.StreamFault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, 2, frames)
	assert.Equal(t, 2, fault.Frames)
	var berr *shared.BackendError
	assert.ErrorAs(t, err, &berr)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{`{"n":1}`, `{"n":2}`}, parseFrames(t, rec.Body.String()))
	assert.NotContains(t, rec.Body.String(), "runner crashed")
	assert.True(t, src.closed)
}

func TestStreamInvalidChunkIsFault(t *testing.T) {
	c, rec := newEcho(t)
	src := &sliceSource{chunks: []json.RawMessage{json.RawMessage(`{"ok":true}`), json.RawMessage(`{broken`)}}

	frames, err := Stream(context.Background(), NewEchoResponder(c), src, zap.NewNop().Sugar())
	var fault *shared.StreamFault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, 1, frames)
	assert.Equal(t, "data: {\"ok\":true}\n\n", rec.Body.String())
}

func TestStreamStopsWhenClientGone(t *testing.T) {
	c, _ := newEcho(t)
	ctx, cancel := context.WithCancel(context.Background())
	src := &cancelSource{cancel: cancel}

	frames, err := Stream(ctx, NewEchoResponder(c), src, zap.NewNop().Sugar())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, frames)
	assert.Equal(t, 1, src.reads)
	assert.True(t, src.closed)
}

// cancelSource hands out one chunk and then simulates the client leaving.
type cancelSource struct {
	cancel context.CancelFunc
	reads  int
	closed bool
}

func (s *cancelSource) Read(ctx context.Context) (json.RawMessage, error) {
	s.reads++
	s.cancel()
	return json.RawMessage(`{"n":1}`), nil
}

func (s *cancelSource) Close() error {
	s.closed = true
	return nil
}

type failingResponder struct {
	writes int
}

func (f *failingResponder) SetHeader(key, value string) {}
func (f *failingResponder) WriteHeader(status int)      {}
func (f *failingResponder) Flush() error                { return nil }
func (f *failingResponder) SendChunk(data []byte) error {
	f.writes++
	return errors.New("broken pipe")
}

func TestStreamStopsOnWriteError(t *testing.T) {
	src := &sliceSource{chunks: []json.RawMessage{json.RawMessage(`{}`), json.RawMessage(`{}`), json.RawMessage(`{}`)}}
	w := &failingResponder{}

	frames, err := Stream(context.Background(), w, src, zap.NewNop().Sugar())
	assert.EqualError(t, err, "broken pipe")
	assert.Equal(t, 0, frames)
	assert.Equal(t, 1, w.writes)
	assert.True(t, src.closed)
}

func TestStreamOverRealConnection(t *testing.T) {
	e := echo.New()
	e.GET("/stream", func(c echo.Context) error {
		src := &sliceSource{chunks: []json.RawMessage{json.RawMessage(`{"a":1}`), json.RawMessage(`{"a":2}`)}}
		_, err := Stream(c.Request().Context(), NewEchoResponder(c), src, zap.NewNop().Sugar())
		return err
	})
	srv := httptest.NewServer(e)
	defer srv.Close()

	res, err := http.Get(srv.URL + "/stream")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, "text/event-stream", res.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(res.Body)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	assert.Equal(t, []string{`data: {"a":1}`, "", `data: {"a":2}`, ""}, lines)
}
