package lazy

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrNotOnWorker is returned by Rejoin when the context does not belong to a
// scheduler task.
var ErrNotOnWorker = errors.New("lazy: context does not belong to a scheduler task")

// Scheduler runs tasks with bounded concurrency. Each running task holds one
// execution slot.
type Scheduler struct {
	slots *semaphore.Weighted
	size  int
	wg    sync.WaitGroup
}

// NewScheduler returns a Scheduler with the given number of execution slots.
// slots <= 0 means runtime.NumCPU().
func NewScheduler(slots int) *Scheduler {
	if slots <= 0 {
		slots = runtime.NumCPU()
	}
	return &Scheduler{
		slots: semaphore.NewWeighted(int64(slots)),
		size:  slots,
	}
}

// Slots returns the number of execution slots.
func (s *Scheduler) Slots() int { return s.size }

// Wait blocks until every task submitted so far has returned.
func (s *Scheduler) Wait() { s.wg.Wait() }

// Future is the pending result of a task started with Submit.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Wait blocks until the task finishes or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done returns a channel that is closed when the task has finished.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Submit starts fn as a task on s and returns immediately. The task waits for
// a free slot before running; if ctx is cancelled first, the Future resolves
// with the context error and fn never runs. The context passed to fn marks it
// as running on s (see OnWorker).
func Submit[T any](ctx context.Context, s *Scheduler, fn func(context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(f.done)

		if err := s.slots.Acquire(ctx, 1); err != nil {
			f.err = err
			return
		}
		w := &worker{sched: s, held: true}
		defer func() {
			if w.held {
				s.slots.Release(1)
			}
		}()
		defer func() {
			if r := recover(); r != nil {
				f.err = fmt.Errorf("lazy: task panicked: %v", r)
			}
		}()
		f.val, f.err = fn(context.WithValue(ctx, workerKey{}, w))
	}()
	return f
}

// Persist schedules the realization of each node as a separate task on s and
// returns without waiting. Nodes that are already realized are skipped.
// Failures are recorded in the nodes themselves and surface from Compute.
func Persist(ctx context.Context, s *Scheduler, nodes ...Node) {
	for _, n := range nodes {
		if n.Realized() {
			continue
		}
		Submit(ctx, s, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, n.realize(ctx)
		})
	}
}

// worker is the per-task slot bookkeeping. It is only touched by the task's
// own goroutine.
type worker struct {
	sched *Scheduler
	held  bool
}

type workerKey struct{}

func workerFrom(ctx context.Context) *worker {
	w, _ := ctx.Value(workerKey{}).(*worker)
	return w
}

// OnWorker reports whether ctx belongs to a task started by a Scheduler.
func OnWorker(ctx context.Context) bool { return workerFrom(ctx) != nil }

// SchedulerFrom returns the scheduler running the task that owns ctx, or nil.
func SchedulerFrom(ctx context.Context) *Scheduler {
	if w := workerFrom(ctx); w != nil {
		return w.sched
	}
	return nil
}

// Secede releases the execution slot held by the task owning ctx so other
// tasks can run while it blocks. It reports whether a slot was released.
func Secede(ctx context.Context) bool {
	w := workerFrom(ctx)
	if w == nil || !w.held {
		return false
	}
	w.sched.slots.Release(1)
	w.held = false
	return true
}

// Rejoin reacquires an execution slot for a task that seceded. It is a no-op
// for a task that still holds its slot.
func Rejoin(ctx context.Context) error {
	w := workerFrom(ctx)
	if w == nil {
		return ErrNotOnWorker
	}
	if w.held {
		return nil
	}
	if err := w.sched.slots.Acquire(ctx, 1); err != nil {
		return err
	}
	w.held = true
	return nil
}

// Await realizes v. When ctx belongs to a scheduler task, the task's slot is
// released while v is being computed elsewhere and reclaimed before Await
// returns. Outside a task it is equivalent to v.Compute(ctx).
func Await[T any](ctx context.Context, v *Value[T]) (T, error) {
	if !Secede(ctx) {
		return v.Compute(ctx)
	}
	val, err := v.Compute(ctx)
	if rerr := Rejoin(ctx); rerr != nil && err == nil {
		err = rerr
	}
	return val, err
}
