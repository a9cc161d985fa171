package api

import (
	"context"
	"sync/atomic"
	"time"
)

// WorkerPool bounds concurrent request handling. Short requests (actions,
// snapshots) and long-lived streams (SSE, WebSocket) have separate limits so
// idle spectators cannot starve players.
type WorkerPool struct {
	requestSem     chan struct{}
	streamSem      chan struct{}
	queuedRequests int64
	activeRequests int64
	totalRequests  int64
	activeStreams  int64
	totalStreams   int64
	rejected       int64
}

// PoolConfig configures the worker pool.
type PoolConfig struct {
	MaxRequests int // concurrent short requests (default 100)
	MaxStreams  int // concurrent event streams (default 256)
}

// DefaultPoolConfig returns a PoolConfig with sensible defaults.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxRequests: 100,
		MaxStreams:  256,
	}
}

// NewWorkerPool creates a worker pool; non-positive limits use the defaults.
func NewWorkerPool(config PoolConfig) *WorkerPool {
	def := DefaultPoolConfig()
	if config.MaxRequests <= 0 {
		config.MaxRequests = def.MaxRequests
	}
	if config.MaxStreams <= 0 {
		config.MaxStreams = def.MaxStreams
	}
	return &WorkerPool{
		requestSem: make(chan struct{}, config.MaxRequests),
		streamSem:  make(chan struct{}, config.MaxStreams),
	}
}

// Acquire waits for a request slot.
// Returns an error if the context is cancelled while waiting.
func (p *WorkerPool) Acquire(ctx context.Context) error {
	atomic.AddInt64(&p.queuedRequests, 1)
	defer atomic.AddInt64(&p.queuedRequests, -1)

	select {
	case p.requestSem <- struct{}{}:
		atomic.AddInt64(&p.activeRequests, 1)
		return nil
	case <-ctx.Done():
		atomic.AddInt64(&p.rejected, 1)
		return ctx.Err()
	}
}

// AcquireWithTimeout waits at most timeout for a request slot.
func (p *WorkerPool) AcquireWithTimeout(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Acquire(ctx)
}

// Release frees a request slot.
func (p *WorkerPool) Release() {
	atomic.AddInt64(&p.activeRequests, -1)
	atomic.AddInt64(&p.totalRequests, 1)
	<-p.requestSem
}

// TryAcquireStream takes a stream slot without waiting. Streams hold their
// slot for the connection lifetime, so a full pool refuses immediately.
func (p *WorkerPool) TryAcquireStream() bool {
	select {
	case p.streamSem <- struct{}{}:
		atomic.AddInt64(&p.activeStreams, 1)
		return true
	default:
		atomic.AddInt64(&p.rejected, 1)
		return false
	}
}

// ReleaseStream frees a stream slot.
func (p *WorkerPool) ReleaseStream() {
	atomic.AddInt64(&p.activeStreams, -1)
	atomic.AddInt64(&p.totalStreams, 1)
	<-p.streamSem
}

// PoolStats is a point-in-time view of the pool.
type PoolStats struct {
	ActiveRequests int64 `json:"active_requests"`
	QueuedRequests int64 `json:"queued_requests"`
	TotalRequests  int64 `json:"total_requests"`
	ActiveStreams  int64 `json:"active_streams"`
	TotalStreams   int64 `json:"total_streams"`
	Rejected       int64 `json:"rejected"`
	MaxRequests    int   `json:"max_requests"`
	MaxStreams     int   `json:"max_streams"`
}

// Stats returns current pool statistics.
func (p *WorkerPool) Stats() PoolStats {
	return PoolStats{
		ActiveRequests: atomic.LoadInt64(&p.activeRequests),
		QueuedRequests: atomic.LoadInt64(&p.queuedRequests),
		TotalRequests:  atomic.LoadInt64(&p.totalRequests),
		ActiveStreams:  atomic.LoadInt64(&p.activeStreams),
		TotalStreams:   atomic.LoadInt64(&p.totalStreams),
		Rejected:       atomic.LoadInt64(&p.rejected),
		MaxRequests:    cap(p.requestSem),
		MaxStreams:     cap(p.streamSem),
	}
}
