package sandbox

import (
	"context"
	"sync"
	"time"

	"github.com/GriffinCanCode/uihost/internal/abi"
)

// Pool manages a pool of reusable JavaScript runtimes
type Pool struct {
	config   Config
	runtimes chan *JSRuntime
	size     int
	mu       sync.RWMutex
	closed   bool
}

// NewPool creates a runtime pool
func NewPool(config Config) (*Pool, error) {
	size := config.JSPoolSize
	if size <= 0 {
		size = 4
	}

	pool := &Pool{
		config:   config,
		runtimes: make(chan *JSRuntime, size),
		size:     size,
	}

	for i := 0; i < size; i++ {
		rt, err := NewJSRuntime(config)
		if err != nil {
			pool.Close()
			return nil, err
		}
		pool.runtimes <- rt
	}

	return pool, nil
}

// Acquire gets a runtime from the pool, waiting at most CallTimeout
func (p *Pool) Acquire(ctx context.Context) (*JSRuntime, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	wait := p.config.CallTimeout
	if wait <= 0 {
		wait = 5 * time.Second
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case rt := <-p.runtimes:
		return rt, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrTimeout
	}
}

// Release resets rt and returns it to the pool
func (p *Pool) Release(rt *JSRuntime) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return rt.Close()
	}

	if err := rt.Reset(); err != nil {
		rt.Close()
		if fresh, ferr := NewJSRuntime(p.config); ferr == nil {
			p.runtimes <- fresh
		}
		return err
	}

	select {
	case p.runtimes <- rt:
		return nil
	default:
		return rt.Close()
	}
}

// Load acquires a runtime and binds script to host. Closing the returned
// instance hands the runtime back.
func (p *Pool) Load(ctx context.Context, script string, host *abi.Host) (Instance, error) {
	rt, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	inst := rt.Load(script, host).(*jsInstance)
	inst.release = func(rt *JSRuntime) { p.Release(rt) }
	return inst, nil
}

// Close closes the pool and all idle runtimes
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true
	close(p.runtimes)

	for rt := range p.runtimes {
		rt.Close()
	}

	return nil
}

// PoolStats reports pool occupancy
type PoolStats struct {
	Size      int  `json:"size"`
	Available int  `json:"available"`
	InUse     int  `json:"in_use"`
	Closed    bool `json:"closed"`
}

// Stats returns pool statistics
func (p *Pool) Stats() PoolStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return PoolStats{
		Size:      p.size,
		Available: len(p.runtimes),
		InUse:     p.size - len(p.runtimes),
		Closed:    p.closed,
	}
}
