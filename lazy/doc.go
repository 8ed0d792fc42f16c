// Package lazy is a small deferred-evaluation runtime for iterative numeric
// code.
//
// A computation is described as a graph of [Value] nodes. Nothing runs until a
// node is realized, either by calling [Value.Compute] directly or by handing it
// to [Persist], which schedules the realization as a task on a [Scheduler].
// A realized Value drops the closure that produced it, so the nodes it was
// built from become unreachable once the caller keeps only the result.
//
// Iterative callers build one iteration's graph on top of concrete values
// ([Of]), realize the handful of values the next iteration needs, and rebind
// them as concrete values again:
//
//	rows := lazy.Of(initial)
//	for !done {
//		next := lazy.Map(rows, step)
//		lazy.Persist(ctx, sched, next)
//		r, err := lazy.Await(ctx, next)
//		if err != nil {
//			return err
//		}
//		rows = lazy.Of(r)
//	}
//
// # Worker slots
//
// A Scheduler runs at most Slots tasks at a time. A task that blocks on work it
// dispatched to the same scheduler would starve the pool, so [Await] releases
// the calling task's slot for the duration of the wait ([Secede]) and takes
// one back before returning ([Rejoin]). Likewise, a task started by [Persist]
// that finds its value already being computed elsewhere waits without a slot.
package lazy
