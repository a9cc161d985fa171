package api

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPoolRequests(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{MaxRequests: 2, MaxStreams: 1})

	require.NoError(t, pool.Acquire(context.Background()))
	assert.Equal(t, int64(1), pool.Stats().ActiveRequests)

	pool.Release()
	stats := pool.Stats()
	assert.Equal(t, int64(0), stats.ActiveRequests)
	assert.Equal(t, int64(1), stats.TotalRequests)
}

func TestWorkerPoolStreams(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{MaxRequests: 10, MaxStreams: 2})

	assert.True(t, pool.TryAcquireStream())
	assert.True(t, pool.TryAcquireStream())
	assert.False(t, pool.TryAcquireStream(), "third stream must be refused")
	assert.Equal(t, int64(2), pool.Stats().ActiveStreams)

	pool.ReleaseStream()
	pool.ReleaseStream()
	stats := pool.Stats()
	assert.Equal(t, int64(2), stats.TotalStreams)
	assert.Equal(t, int64(1), stats.Rejected)
}

func TestWorkerPoolContextCancellation(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{MaxRequests: 1})
	require.NoError(t, pool.Acquire(context.Background()))
	defer pool.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, pool.Acquire(ctx), context.Canceled)
}

func TestWorkerPoolTimeout(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{MaxRequests: 1})
	require.NoError(t, pool.Acquire(context.Background()))
	defer pool.Release()

	err := pool.AcquireWithTimeout(context.Background(), 10*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWorkerPoolConcurrency(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{MaxRequests: 5})

	var (
		wg      sync.WaitGroup
		running int64
		peak    int64
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := pool.Acquire(context.Background()); err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			n := atomic.AddInt64(&running, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt64(&running, -1)
			pool.Release()
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak, int64(5))
	assert.Equal(t, int64(20), pool.Stats().TotalRequests)
}

func TestWorkerPoolDefaults(t *testing.T) {
	stats := NewWorkerPool(PoolConfig{}).Stats()
	assert.Equal(t, 100, stats.MaxRequests)
	assert.Equal(t, 256, stats.MaxStreams)
}
