package cgc

import (
	"context"
	"errors"

	"github.com/TrevorS/cgc/lazy"
)

// ExecutionMode selects how an engine waits at its per-iteration barrier.
type ExecutionMode string

const (
	// ModeAuto uses ModeWorker when the run's context belongs to a scheduler
	// task and ModeCaller otherwise.
	ModeAuto ExecutionMode = "auto"

	// ModeCaller blocks the calling goroutine until the iteration's results
	// are realized.
	ModeCaller ExecutionMode = "caller"

	// ModeWorker is for runs dispatched as a scheduler task. The task gives
	// up its execution slot while waiting so the sub-computations it
	// dispatched can use it.
	ModeWorker ExecutionMode = "worker"
)

// ErrNotOnWorker is returned when ModeWorker is requested outside a
// scheduler task.
var ErrNotOnWorker = errors.New("cgc: ModeWorker requires a context from a scheduler task")

// selectMode resolves ModeAuto into a concrete mode and validates that a
// forced ModeWorker is actually running on a worker.
func selectMode(ctx context.Context, mode ExecutionMode) (ExecutionMode, error) {
	onWorker := lazy.OnWorker(ctx)
	switch mode {
	case ModeAuto:
		if onWorker {
			return ModeWorker, nil
		}
		return ModeCaller, nil
	case ModeWorker:
		if !onWorker {
			return "", ErrNotOnWorker
		}
	}
	return mode, nil
}

// selectScheduler picks the scheduler that realizes iteration results.
func selectScheduler(ctx context.Context, cfg *Config) *lazy.Scheduler {
	if cfg.Scheduler != nil {
		return cfg.Scheduler
	}
	if s := lazy.SchedulerFrom(ctx); s != nil {
		return s
	}
	return lazy.NewScheduler(cfg.Workers)
}

// barrier schedules the realization of nodes and waits for the scalar error.
// In worker mode the wait releases the task's execution slot.
func barrier(ctx context.Context, mode ExecutionMode, sched *lazy.Scheduler, e *lazy.Value[float64], nodes ...lazy.Node) (float64, error) {
	lazy.Persist(ctx, sched, append(nodes, e)...)
	if mode == ModeWorker {
		return lazy.Await(ctx, e)
	}
	return e.Compute(ctx)
}
