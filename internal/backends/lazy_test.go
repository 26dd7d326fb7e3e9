package backends

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLazyLoadsOnceForConcurrentCallers(t *testing.T) {
	var loads atomic.Int32
	release := make(chan struct{})
	l := NewLazy(func(ctx context.Context) (string, error) {
		loads.Add(1)
		<-release
		return "pipeline", nil
	})

	var wg sync.WaitGroup
	results := make([]string, 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := l.Get(context.Background())
			assert.NoError(t, err)
			results[i] = v
		}()
	}
	assert.False(t, l.Ready())
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), loads.Load())
	for _, r := range results {
		assert.Equal(t, "pipeline", r)
	}
	assert.True(t, l.Ready())
}

func TestLazyRetriesAfterFailure(t *testing.T) {
	var loads atomic.Int32
	l := NewLazy(func(ctx context.Context) (int, error) {
		if loads.Add(1) == 1 {
			return 0, errors.New("weights missing")
		}
		return 7, nil
	})

	_, err := l.Get(context.Background())
	require.EqualError(t, err, "weights missing")
	assert.False(t, l.Ready())

	v, err := l.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, int32(2), loads.Load())
}

func TestLazyWaiterHonoursContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	l := NewLazy(func(ctx context.Context) (int, error) {
		<-release
		return 1, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := l.Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLazyLoaderPanicFailsWaiters(t *testing.T) {
	var loads atomic.Int32
	l := NewLazy(func(ctx context.Context) (string, error) {
		if loads.Add(1) == 1 {
			panic("cuda out of memory")
		}
		return "pipeline", nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := l.Get(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "cuda out of memory")
	assert.False(t, l.Ready())

	v, err := l.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pipeline", v)
}
