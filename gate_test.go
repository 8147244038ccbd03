package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	auth "github.com/autoresum/autoresum-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateLimitsConcurrency(t *testing.T) {
	gate := auth.NewGate(3)

	var mu sync.Mutex
	var current, peak int

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = gate.Do(context.Background(), func() error {
				mu.Lock()
				current++
				if current > peak {
					peak = current
				}
				mu.Unlock()

				time.Sleep(20 * time.Millisecond)

				mu.Lock()
				current--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak, 3)
	assert.Equal(t, 0, gate.Active())
	assert.Equal(t, 0, gate.QueueDepth())
}

func TestGateFIFOOrdering(t *testing.T) {
	gate := auth.NewGate(1)

	// Occupy the only slot, then queue three waiters in a known order.
	holding := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = gate.Do(context.Background(), func() error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 1; i <= 3; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = gate.Do(context.Background(), func() error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}()
		// Let each waiter enqueue before starting the next.
		require.Eventually(t, func() bool {
			return gate.QueueDepth() == i
		}, time.Second, time.Millisecond)
	}

	close(release)
	wg.Wait()

	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestGateReleasesSlotOnError(t *testing.T) {
	gate := auth.NewGate(1)

	boom := errors.New("boom")
	err := gate.Do(context.Background(), func() error { return boom })
	assert.ErrorIs(t, err, boom)

	// The failed call must not leak its slot.
	err = gate.Do(context.Background(), func() error { return nil })
	assert.NoError(t, err)
	assert.Equal(t, 0, gate.Active())
}

func TestGateWaitCancellation(t *testing.T) {
	gate := auth.NewGate(1)

	holding := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = gate.Do(context.Background(), func() error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		errs <- gate.Do(ctx, func() error { return nil })
	}()
	require.Eventually(t, func() bool {
		return gate.QueueDepth() == 1
	}, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errs, context.Canceled)
	assert.Equal(t, 0, gate.QueueDepth())

	close(release)
	require.Eventually(t, func() bool {
		return gate.Active() == 0
	}, time.Second, time.Millisecond)
}

func TestGateDefaultCapacity(t *testing.T) {
	gate := auth.NewGate(0)
	// Three calls run without queueing.
	for i := 0; i < auth.DefaultGateCapacity; i++ {
		assert.NoError(t, gate.Do(context.Background(), func() error { return nil }))
	}
}
