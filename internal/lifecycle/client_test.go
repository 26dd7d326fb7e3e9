package lifecycle

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unusedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestClientUnreachable(t *testing.T) {
	cl := NewClient(unusedPort(t), "")
	assert.Equal(t, Status{Status: StatusStopped}, cl.Status(context.Background()))
	assert.Equal(t, Status{Status: StatusNotRunning}, cl.Stop(context.Background(), nil))
}

func TestClientStatusAndStop(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/lifecycle/status":
			_ = json.NewEncoder(w).Encode(Status{Status: StatusRunning, URL: "https://x.test"})
		case r.Method == http.MethodPost && r.URL.Path == "/lifecycle/stop":
			_ = json.NewEncoder(w).Encode(Status{Status: StatusStopping})
			go func() {
				time.Sleep(50 * time.Millisecond)
				srv.CloseClientConnections()
				srv.Listener.Close()
			}()
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cl := &Client{BaseURL: srv.URL, HTTP: &http.Client{Timeout: time.Second}, PollWait: 5 * time.Second}
	assert.Equal(t, Status{Status: StatusRunning, URL: "https://x.test"}, cl.Status(context.Background()))

	st := cl.Stop(context.Background(), map[string]any{"a": "b"})
	assert.Equal(t, StatusStopped, st.Status)
	assert.Equal(t, map[string]any{"a": "b"}, st.Params)
}
