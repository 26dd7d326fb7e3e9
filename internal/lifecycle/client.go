package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"sidecar-api/internal/shared"
)

// Client talks to a running instance through its /lifecycle routes, for
// stop and status invocations from a separate process.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	// Key is sent as a bearer token when set.
	Key string
	// PollWait bounds how long Stop waits for the instance to go away.
	PollWait time.Duration
}

func NewClient(port int, key string) *Client {
	return &Client{
		BaseURL:  fmt.Sprintf("http://127.0.0.1:%d", port),
		Key:      key,
		HTTP:     &http.Client{Timeout: 2 * time.Second},
		PollWait: shared.DefaultLifecyclePollWait,
	}
}

// Status reports the remote instance, or stopped when nothing answers.
func (cl *Client) Status(ctx context.Context) Status {
	st, err := cl.call(ctx, http.MethodGet, "/lifecycle/status")
	if err != nil {
		return Status{Status: StatusStopped}
	}
	return st
}

// Stop asks the remote instance to exit and waits until it stops answering.
func (cl *Client) Stop(ctx context.Context, params map[string]any) Status {
	if _, err := cl.call(ctx, http.MethodPost, "/lifecycle/stop"); err != nil {
		return Status{Status: StatusNotRunning}
	}

	ctx, cancel := context.WithTimeout(ctx, cl.PollWait)
	defer cancel()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		if _, err := cl.call(ctx, http.MethodGet, "/lifecycle/status"); err != nil && ctx.Err() == nil {
			return Status{Status: StatusStopped, Params: params}
		}
		select {
		case <-ctx.Done():
			return errorStatus("instance did not stop within %s", cl.PollWait)
		case <-ticker.C:
		}
	}
}

func (cl *Client) call(ctx context.Context, method, path string) (Status, error) {
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(cl.BaseURL, "/")+path, nil)
	if err != nil {
		return Status{}, err
	}
	if cl.Key != "" {
		req.Header.Set("Authorization", "Bearer "+cl.Key)
	}
	res, err := cl.HTTP.Do(req)
	if err != nil {
		return Status{}, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return Status{}, fmt.Errorf("unexpected status %d", res.StatusCode)
	}
	var st Status
	if err := json.NewDecoder(res.Body).Decode(&st); err != nil {
		return Status{}, err
	}
	return st, nil
}
