// Package lifecycle owns the process-wide listener and tunnel. Start, Stop
// and Status are safe to call from any goroutine and every reply is a single
// status object a parent process can parse.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"sidecar-api/internal/shared"
)

const (
	StatusStarted        = "started"
	StatusAlreadyRunning = "already_running"
	StatusRunning        = "running"
	StatusStopping       = "stopping"
	StatusStopped        = "stopped"
	StatusNotRunning     = "not_running"
	StatusError          = "error"
)

type Status struct {
	Status  string         `json:"status"`
	URL     string         `json:"url,omitempty"`
	Params  map[string]any `json:"params,omitempty"`
	Message string         `json:"message,omitempty"`
}

func errorStatus(format string, args ...any) Status {
	return Status{Status: StatusError, Message: fmt.Sprintf(format, args...)}
}

type Config struct {
	// Build returns the handler served by one start. params are the start
	// parameters, which may override configured settings.
	Build  func(params map[string]any) (http.Handler, error)
	Tunnel Tunnel
	// Port is used when params carry none. Zero picks a free port.
	Port            int
	ShutdownTimeout time.Duration
	Log             *zap.SugaredLogger
}

type Controller struct {
	cfg Config

	// op serializes Start and Stop. Status only takes mu so it never waits
	// on a shutdown in progress.
	op sync.Mutex

	mu   sync.Mutex
	srv  *http.Server
	addr net.Addr
	url  string
	done chan struct{}

	quitOnce sync.Once
	quit     chan struct{}
}

func NewController(cfg Config) *Controller {
	if cfg.Tunnel == nil {
		cfg.Tunnel = LocalTunnel{}
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = shared.DefaultShutdownTimeout
	}
	return &Controller{cfg: cfg, quit: make(chan struct{})}
}

// Start binds the listener and opens the tunnel. When already running it
// reports the existing URL without rebinding.
func (c *Controller) Start(ctx context.Context, params map[string]any) Status {
	c.op.Lock()
	defer c.op.Unlock()

	if st, running := c.running(); running {
		return Status{Status: StatusAlreadyRunning, URL: st.URL}
	}

	port, err := PortFrom(params, c.cfg.Port)
	if err != nil {
		return errorStatus("%s", err)
	}
	handler, err := c.cfg.Build(params)
	if err != nil {
		return errorStatus("failed to build server: %s", err)
	}
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return errorStatus("failed to listen on port %d: %s", port, err)
	}
	bound := ln.Addr().(*net.TCPAddr).Port

	url, err := c.cfg.Tunnel.Open(ctx, bound)
	if err != nil {
		_ = ln.Close()
		return errorStatus("failed to open tunnel: %s", err)
	}

	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 30 * time.Second}
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.cfg.Log.Errorw("Server stopped unexpectedly", "error", err)
		}
	}()

	c.mu.Lock()
	c.srv, c.addr, c.url, c.done = srv, ln.Addr(), url, done
	c.mu.Unlock()

	c.cfg.Log.Infow("Server started", "port", bound, "url", url)
	return Status{Status: StatusStarted, URL: url, Params: params}
}

// Stop drains in-flight requests, closes the listener and the tunnel.
// Stopping a stopped controller is a no-op.
func (c *Controller) Stop(ctx context.Context, params map[string]any) Status {
	c.op.Lock()
	defer c.op.Unlock()

	c.mu.Lock()
	srv, done := c.srv, c.done
	c.mu.Unlock()
	if srv == nil {
		return Status{Status: StatusNotRunning}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		c.cfg.Log.Warnw("Graceful shutdown failed, closing", "error", err)
		_ = srv.Close()
	}
	<-done
	if err := c.cfg.Tunnel.Close(); err != nil {
		c.cfg.Log.Warnw("Failed to close tunnel", "error", err)
	}

	c.mu.Lock()
	c.srv, c.addr, c.url, c.done = nil, nil, "", nil
	c.mu.Unlock()

	c.cfg.Log.Info("Server stopped")
	return Status{Status: StatusStopped, Params: params}
}

func (c *Controller) Status() Status {
	if st, running := c.running(); running {
		return st
	}
	return Status{Status: StatusStopped}
}

// Addr is the bound listener address, nil when stopped.
func (c *Controller) Addr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addr
}

// RequestQuit asks the owning process to stop and exit. It returns
// immediately so it can be called from a request served by this controller.
func (c *Controller) RequestQuit() Status {
	c.quitOnce.Do(func() { close(c.quit) })
	return Status{Status: StatusStopping}
}

// Quit is closed once RequestQuit has been called.
func (c *Controller) Quit() <-chan struct{} {
	return c.quit
}

func (c *Controller) running() (Status, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.srv == nil {
		return Status{}, false
	}
	return Status{Status: StatusRunning, URL: c.url}, true
}

// PortFrom prefers a port given in params, then the configured port.
func PortFrom(params map[string]any, def int) (int, error) {
	v, ok := params["port"]
	if !ok || !shared.Truthy(v) {
		return def, nil
	}
	var port int
	switch t := v.(type) {
	case float64:
		port = int(t)
		if float64(port) != t {
			return 0, fmt.Errorf("invalid port %v", v)
		}
	case string:
		p, err := strconv.Atoi(t)
		if err != nil {
			return 0, fmt.Errorf("invalid port %q", t)
		}
		port = p
	default:
		return 0, fmt.Errorf("invalid port %v", v)
	}
	if port < 0 || port > 65535 {
		return 0, fmt.Errorf("invalid port %d", port)
	}
	return port, nil
}
