// Package backends holds one facade per backend kind. Facades wrap the
// external runtime call and surface every runtime fault as a
// shared.BackendError carrying the runtime's own message. Nothing here
// retries.
package backends

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"sidecar-api/internal/shared"
)

// NewHTTPClient returns the client used to reach local runtimes.
func NewHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: shared.DefaultDialTimeout,
		}).DialContext,
		TLSHandshakeTimeout: shared.DefaultDialTimeout,
		DisableKeepAlives:   false,
	}
	return &http.Client{Transport: tr, Timeout: timeout}
}

func postJSON(ctx context.Context, client *http.Client, url string, body any) (*http.Response, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed marshalling request: %w", err)
	}
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed building request: %w", err)
	}
	r.Header.Set("Content-Type", "application/json")
	return client.Do(r)
}

// statusError turns a non-2xx runtime reply into a BackendError, preferring
// the runtime's own error text.
func statusError(backend string, res *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	msg := errorMessage(body)
	if msg == "" {
		msg = fmt.Sprintf("%s responded with status %d", backend, res.StatusCode)
	}
	return &shared.BackendError{
		Backend: backend,
		Message: msg,
		Cause:   fmt.Errorf("status %d", res.StatusCode),
	}
}

// errorMessage extracts the error text from the shapes runtimes use:
// {"error": "..."}, {"error": {"message": "..."}}, {"detail": "..."}.
func errorMessage(body []byte) string {
	var shape struct {
		Error  json.RawMessage `json:"error"`
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &shape); err != nil {
		return strings.TrimSpace(string(body))
	}
	for _, raw := range []json.RawMessage{shape.Error, shape.Detail} {
		if len(raw) == 0 {
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return s
		}
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
		return string(raw)
	}
	return ""
}

// backendError wraps err as a BackendError unless it already is one or the
// caller's context ended.
func backendError(backend string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var berr *shared.BackendError
	if errors.As(err, &berr) {
		return err
	}
	return &shared.BackendError{Backend: backend, Message: err.Error(), Cause: err}
}
