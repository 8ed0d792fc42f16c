package lazy

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScheduler_DefaultSlots(t *testing.T) {
	s := NewScheduler(0)
	assert.Greater(t, s.Slots(), 0)
	assert.Equal(t, 3, NewScheduler(3).Slots())
}

func TestSubmit_RunsOnWorker(t *testing.T) {
	s := NewScheduler(2)
	f := Submit(context.Background(), s, func(ctx context.Context) (bool, error) {
		return OnWorker(ctx) && SchedulerFrom(ctx) == s, nil
	})

	got, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, got)
	assert.False(t, OnWorker(context.Background()))
	assert.Nil(t, SchedulerFrom(context.Background()))
}

func TestSubmit_ErrorAndPanic(t *testing.T) {
	s := NewScheduler(1)
	boom := errors.New("boom")

	_, err := Submit(context.Background(), s, func(context.Context) (int, error) {
		return 0, boom
	}).Wait(context.Background())
	assert.ErrorIs(t, err, boom)

	_, err = Submit(context.Background(), s, func(context.Context) (int, error) {
		panic("worker crashed")
	}).Wait(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "worker crashed")

	s.Wait()
}

func TestSubmit_BoundedConcurrency(t *testing.T) {
	s := NewScheduler(2)
	var running, peak atomic.Int32

	futures := make([]*Future[struct{}], 6)
	for i := range futures {
		futures[i] = Submit(context.Background(), s, func(context.Context) (struct{}, error) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return struct{}{}, nil
		})
	}
	for _, f := range futures {
		_, err := f.Wait(context.Background())
		require.NoError(t, err)
	}

	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestSubmit_CancelledBeforeSlot(t *testing.T) {
	s := NewScheduler(1)
	release := make(chan struct{})
	running := make(chan struct{})
	blocker := Submit(context.Background(), s, func(context.Context) (int, error) {
		close(running)
		<-release
		return 1, nil
	})
	<-running

	ctx, cancel := context.WithCancel(context.Background())
	var ran atomic.Bool
	pending := Submit(ctx, s, func(context.Context) (int, error) {
		ran.Store(true)
		return 2, nil
	})
	cancel()

	_, err := pending.Wait(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran.Load())

	close(release)
	_, err = blocker.Wait(context.Background())
	require.NoError(t, err)
}

func TestPersist_RealizesNodes(t *testing.T) {
	s := NewScheduler(2)
	var calls atomic.Int32
	a := Delay(func(context.Context) (int, error) {
		calls.Add(1)
		return 1, nil
	})
	b := Map(a, func(_ context.Context, x int) (int, error) { return x + 1, nil })

	Persist(context.Background(), s, a, b, Of(7))
	s.Wait()

	assert.True(t, a.Realized())
	assert.True(t, b.Realized())
	assert.Equal(t, int32(1), calls.Load())
}

func TestAwait_SingleSlotDoesNotDeadlock(t *testing.T) {
	s := NewScheduler(1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	f := Submit(ctx, s, func(ctx context.Context) (int, error) {
		total := 0
		for i := 0; i < 5; i++ {
			started := make(chan struct{})
			sub := Delay(func(context.Context) (int, error) {
				close(started)
				return i, nil
			})
			Persist(ctx, s, sub)

			// Give the persisted task a chance to need the only slot.
			time.Sleep(time.Millisecond)

			v, err := Await(ctx, sub)
			if err != nil {
				return 0, err
			}
			<-started
			total += v
		}
		return total, nil
	})

	got, err := f.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0+1+2+3+4, got)
	s.Wait()
}

func TestSecedeRejoin(t *testing.T) {
	assert.False(t, Secede(context.Background()))
	assert.ErrorIs(t, Rejoin(context.Background()), ErrNotOnWorker)

	s := NewScheduler(1)
	f := Submit(context.Background(), s, func(ctx context.Context) (bool, error) {
		if !Secede(ctx) {
			return false, nil
		}
		// The slot is free while seceded, so a sibling task can run.
		_, err := Submit(ctx, s, func(context.Context) (int, error) { return 1, nil }).Wait(ctx)
		if err != nil {
			return false, err
		}
		if Secede(ctx) {
			return false, nil
		}
		return true, Rejoin(ctx)
	})

	ok, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	s.Wait()
}

// A persisted realization that finds its value already being computed must
// not keep its slot while it waits.
func TestPersist_WaitingRealizationReleasesSlot(t *testing.T) {
	s := NewScheduler(1)

	got, err := Submit(context.Background(), s, func(ctx context.Context) (int, error) {
		v := Delay(func(ctx context.Context) (int, error) {
			f := Submit(ctx, s, func(context.Context) (int, error) {
				return 9, nil
			})
			seceded := Secede(ctx)
			got, err := f.Wait(ctx)
			if seceded {
				if rerr := Rejoin(ctx); rerr != nil {
					return 0, rerr
				}
			}
			return got, err
		})
		Persist(ctx, s, v)
		return Await(ctx, v)
	}).Wait(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 9, got)
	s.Wait()
}
