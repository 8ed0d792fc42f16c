package cgc

import (
	"context"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// span is the half-open index range [lo, hi) of one chunk along an axis.
type span struct {
	lo, hi int
}

func (s span) len() int { return s.hi - s.lo }

// chunkSpans splits an axis of length n into contiguous chunks of size
// elements. size <= 0 splits it into (at most) workers chunks.
func chunkSpans(n, size, workers int) []span {
	if size <= 0 {
		if workers < 1 {
			workers = 1
		}
		size = (n + workers - 1) / workers
	}
	if size < 1 {
		size = 1
	}
	spans := make([]span, 0, (n+size-1)/size)
	for lo := 0; lo < n; lo += size {
		spans = append(spans, span{lo: lo, hi: min(lo+size, n)})
	}
	return spans
}

// forEachSpan runs fn for every span using at most workers goroutines. fn
// must only write to state owned by its span index. The first error cancels
// the remaining spans and is returned.
func forEachSpan(ctx context.Context, workers int, spans []span, fn func(ctx context.Context, i int, s span) error) error {
	if workers <= 1 || len(spans) <= 1 {
		for i, s := range spans {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(ctx, i, s); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, s := range spans {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i, s)
		})
	}
	return g.Wait()
}

// sumInOrder adds partial results in span order so the total does not depend
// on which goroutine finished first.
func sumInOrder(parts []*mat.Dense) *mat.Dense {
	var total mat.Dense
	total.CloneFrom(parts[0])
	for _, p := range parts[1:] {
		total.Add(&total, p)
	}
	return &total
}
