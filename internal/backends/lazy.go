package backends

import (
	"context"
	"fmt"
	"sync"

	"sidecar-api/internal/metrics"
)

// Lazy is a single-initialization future for a heavy shared object. The first
// Get starts the loader; every concurrent Get waits for that same outcome.
// A failed load is handed to all of its waiters and the next Get tries again,
// so nobody ever sees a half-built value.
type Lazy[T any] struct {
	load func(ctx context.Context) (T, error)

	mu   sync.Mutex
	call *lazyCall[T]
}

type lazyCall[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func NewLazy[T any](load func(ctx context.Context) (T, error)) *Lazy[T] {
	return &Lazy[T]{load: load}
}

// Get returns the loaded value, starting the load if needed. ctx only bounds
// how long this caller waits; the load itself is not tied to any one caller.
func (l *Lazy[T]) Get(ctx context.Context) (T, error) {
	l.mu.Lock()
	c := l.call
	if c == nil {
		c = &lazyCall[T]{done: make(chan struct{})}
		l.call = c
		go l.run(c)
	}
	l.mu.Unlock()

	select {
	case <-c.done:
		return c.val, c.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Ready reports whether a load finished successfully.
func (l *Lazy[T]) Ready() bool {
	l.mu.Lock()
	c := l.call
	l.mu.Unlock()
	if c == nil {
		return false
	}
	select {
	case <-c.done:
		return c.err == nil
	default:
		return false
	}
}

func (l *Lazy[T]) run(c *lazyCall[T]) {
	defer close(c.done)
	defer func() {
		if r := recover(); r != nil {
			var zero T
			c.val, c.err = zero, fmt.Errorf("pipeline load panicked: %v", r)
		}
		if c.err != nil {
			l.mu.Lock()
			if l.call == c {
				l.call = nil
			}
			l.mu.Unlock()
		}
	}()
	c.val, c.err = l.load(context.Background())
}

// countLoads records every load attempt of a pipeline by outcome.
func countLoads[T any](service string, load func(ctx context.Context) (T, error)) func(ctx context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		v, err := load(ctx)
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.PipelineLoads.WithLabelValues(service, status).Inc()
		return v, err
	}
}
