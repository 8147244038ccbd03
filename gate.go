package auth

import (
	"context"
	"sync"
)

// Gate bounds the number of concurrently in-flight authenticated calls.
// Overflow is queued and serviced strictly in arrival order; a failing
// call still releases its slot. The queue depth is unbounded.
//
// It exists because unconstrained concurrent profile and refresh calls
// exhaust the browser's per-host connection budget; the server sees the
// same pressure from native clients.
type Gate struct {
	mu       sync.Mutex
	capacity int
	active   int
	queue    []*gateWaiter
}

type gateWaiter struct {
	ready   chan struct{}
	granted bool
}

// NewGate creates a gate with the given capacity. A non-positive
// capacity falls back to DefaultGateCapacity.
func NewGate(capacity int) *Gate {
	if capacity <= 0 {
		capacity = DefaultGateCapacity
	}
	return &Gate{capacity: capacity}
}

// Do runs fn once a concurrency slot is available. Callers already
// holding no slot block in FIFO order behind earlier arrivals. The
// context only covers the wait: once fn starts it runs to completion.
func (g *Gate) Do(ctx context.Context, fn func() error) error {
	if err := g.acquire(ctx); err != nil {
		return err
	}
	defer g.release()
	return fn()
}

// Active returns the number of in-flight calls.
func (g *Gate) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// QueueDepth returns the number of callers waiting for a slot.
func (g *Gate) QueueDepth() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.queue)
}

func (g *Gate) acquire(ctx context.Context) error {
	g.mu.Lock()
	if g.active < g.capacity && len(g.queue) == 0 {
		g.active++
		g.mu.Unlock()
		return nil
	}

	w := &gateWaiter{ready: make(chan struct{})}
	g.queue = append(g.queue, w)
	g.mu.Unlock()

	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
		g.mu.Lock()
		if w.granted {
			// The slot was handed over while we were cancelling; give
			// it back so the next waiter is not starved.
			g.mu.Unlock()
			g.release()
			return ctx.Err()
		}
		for i, queued := range g.queue {
			if queued == w {
				g.queue = append(g.queue[:i], g.queue[i+1:]...)
				break
			}
		}
		g.mu.Unlock()
		return ctx.Err()
	}
}

func (g *Gate) release() {
	g.mu.Lock()
	if len(g.queue) > 0 {
		// Hand the slot to the head of the queue; active stays constant.
		w := g.queue[0]
		g.queue = g.queue[1:]
		w.granted = true
		close(w.ready)
		g.mu.Unlock()
		return
	}
	g.active--
	g.mu.Unlock()
}
