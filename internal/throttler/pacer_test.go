package throttler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestIntervalPacer(t *testing.T) {
	t.Run("spaces_call_starts_by_interval", func(t *testing.T) {
		const interval = 50 * time.Millisecond
		p := NewIntervalPacer("test", interval)

		var starts []time.Time
		for i := 0; i < 3; i++ {
			release, err := p.Acquire(context.Background())
			require.NoError(t, err)
			starts = append(starts, time.Now())
			release()
		}

		for i := 1; i < len(starts); i++ {
			require.GreaterOrEqual(t, starts[i].Sub(starts[i-1]), interval-5*time.Millisecond)
		}
	})

	t.Run("allows_one_call_in_flight", func(t *testing.T) {
		p := NewIntervalPacer("test", 0)

		var inFlight, maxInFlight atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				release, err := p.Acquire(context.Background())
				require.NoError(t, err)
				n := inFlight.Add(1)
				for {
					m := maxInFlight.Load()
					if n <= m || maxInFlight.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				inFlight.Add(-1)
				release()
			}()
		}
		wg.Wait()

		require.Equal(t, int32(1), maxInFlight.Load())
	})

	t.Run("cancelled_waiter_frees_slot", func(t *testing.T) {
		p := NewIntervalPacer("test", time.Hour)

		release, err := p.Acquire(context.Background())
		require.NoError(t, err)
		release()

		// the next token is an hour away
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err = p.Acquire(ctx)
		require.Error(t, err)

		// the semaphore must be free again
		require.True(t, p.slot.TryAcquire(1))
		p.slot.Release(1)
	})

	t.Run("cancelled_before_slot", func(t *testing.T) {
		p := NewIntervalPacer("test", 0)
		release, err := p.Acquire(context.Background())
		require.NoError(t, err)
		defer release()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = p.Acquire(ctx)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestNoopPacer(t *testing.T) {
	release, err := NoopPacer{}.Acquire(context.Background())
	require.NoError(t, err)
	release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NoopPacer{}.Acquire(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
