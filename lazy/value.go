package lazy

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Node is a realizable element of a computation graph. It is implemented by
// *Value[T] for every T.
type Node interface {
	realize(ctx context.Context) error
	Realized() bool
}

// Value is a deferred computation producing a T. The computation runs at most
// once; every caller of Compute observes the same result.
type Value[T any] struct {
	claimed atomic.Bool
	fn      func(context.Context) (T, error)
	done    chan struct{}
	val     T
	err     error
}

// Delay returns an unevaluated Value backed by fn.
func Delay[T any](fn func(context.Context) (T, error)) *Value[T] {
	return &Value[T]{fn: fn, done: make(chan struct{})}
}

// Of returns an already-realized Value holding v.
func Of[T any](v T) *Value[T] {
	x := &Value[T]{val: v, done: make(chan struct{})}
	x.claimed.Store(true)
	close(x.done)
	return x
}

// Map returns a Value computing fn over the realized value of a.
func Map[A, B any](a *Value[A], fn func(context.Context, A) (B, error)) *Value[B] {
	return Delay(func(ctx context.Context) (B, error) {
		av, err := a.Compute(ctx)
		if err != nil {
			var zero B
			return zero, err
		}
		return fn(ctx, av)
	})
}

// Map2 returns a Value computing fn over the realized values of a and b.
func Map2[A, B, C any](a *Value[A], b *Value[B], fn func(context.Context, A, B) (C, error)) *Value[C] {
	return Delay(func(ctx context.Context) (C, error) {
		var zero C
		av, err := a.Compute(ctx)
		if err != nil {
			return zero, err
		}
		bv, err := b.Compute(ctx)
		if err != nil {
			return zero, err
		}
		return fn(ctx, av, bv)
	})
}

// Compute realizes v and returns its result. If another goroutine is already
// computing v, Compute blocks until that computation finishes. The context of
// the first caller is the one the computation runs with.
func (v *Value[T]) Compute(ctx context.Context) (T, error) {
	if v.claimed.CompareAndSwap(false, true) {
		v.run(ctx)
	} else {
		<-v.done
	}
	return v.val, v.err
}

func (v *Value[T]) run(ctx context.Context) {
	fn := v.fn
	v.fn = nil
	defer close(v.done)
	defer func() {
		if r := recover(); r != nil {
			v.err = fmt.Errorf("lazy: computation panicked: %v", r)
		}
	}()
	v.val, v.err = fn(ctx)
}

// Realized reports whether v has finished computing.
func (v *Value[T]) Realized() bool {
	select {
	case <-v.done:
		return true
	default:
		return false
	}
}

// realize is the scheduled form of Compute. When v is already being computed
// by someone else, the task gives up its slot until that computation ends.
func (v *Value[T]) realize(ctx context.Context) error {
	if v.claimed.CompareAndSwap(false, true) {
		v.run(ctx)
		return v.err
	}
	if v.Realized() {
		return v.err
	}
	seceded := Secede(ctx)
	<-v.done
	if seceded {
		if err := Rejoin(ctx); err != nil {
			return err
		}
	}
	return v.err
}
