package cgc

import (
	"context"
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/TrevorS/cgc/lazy"
)

// Tricluster simultaneously clusters the bands, rows and columns of the
// nonnegative cube z. z is never modified.
//
// Within an iteration the rows are reassigned first, then the columns using
// the new rows, then the bands using the new rows and columns. The reported
// objective is the residual of the band step only.
func Tricluster(ctx context.Context, z *Cube, cfg Config) (*TriclusteringResult, error) {
	applyDefaults(&cfg)
	if err := validateConfig(&cfg, 3); err != nil {
		return nil, err
	}
	mode, err := selectMode(ctx, cfg.Mode)
	if err != nil {
		return nil, err
	}

	d, m, n := z.Dims()
	if d == 0 || m == 0 || n == 0 {
		return nil, fmt.Errorf("%w: %d×%d×%d cube", ErrEmptyData, d, m, n)
	}
	if floats.Min(z.data) < 0 {
		return nil, ErrNegativeData
	}

	rows, err := startAssignment("row", cfg.InitialRowClusters, m, cfg.RowClusters, cfg.Rand)
	if err != nil {
		return nil, err
	}
	cols, err := startAssignment("column", cfg.InitialColClusters, n, cfg.ColClusters, cfg.Rand)
	if err != nil {
		return nil, err
	}
	bands, err := startAssignment("band", cfg.InitialBandClusters, d, cfg.BandClusters, cfg.Rand)
	if err != nil {
		return nil, err
	}

	tc := &triclusterer{
		z:         z,
		d:         d,
		m:         m,
		n:         n,
		kb:        cfg.BandClusters,
		kr:        cfg.RowClusters,
		kc:        cfg.ColClusters,
		eps:       cfg.Epsilon,
		gavg:      stat.Mean(z.data, nil),
		workers:   cfg.Workers,
		bandSpans: chunkSpans(d, cfg.ChunkSize, cfg.Workers),
		rowSpans:  chunkSpans(m, cfg.ChunkSize, cfg.Workers),
		colSpans:  chunkSpans(n, cfg.ChunkSize, cfg.Workers),
		logger:    cfg.Logger,
	}
	return tc.run(ctx, mode, selectScheduler(ctx, &cfg), newMonitor(cfg.Errobj, cfg.MaxIterations), bands, rows, cols)
}

// SubmitTricluster dispatches a whole Tricluster run as one task on s.
func SubmitTricluster(ctx context.Context, s *lazy.Scheduler, z *Cube, cfg Config) *lazy.Future[*TriclusteringResult] {
	return lazy.Submit(ctx, s, func(ctx context.Context) (*TriclusteringResult, error) {
		return Tricluster(ctx, z, cfg)
	})
}

type triclusterer struct {
	z          *Cube
	d, m, n    int
	kb, kr, kc int
	eps, gavg  float64

	workers   int
	bandSpans []span
	rowSpans  []span
	colSpans  []span

	logger *slog.Logger
}

// triAverages holds the tri-cluster averages shifted by ε, and their logs.
type triAverages struct {
	shifted *Cube
	logs    *Cube
}

func (tc *triclusterer) run(ctx context.Context, mode ExecutionMode, sched *lazy.Scheduler, mon *monitor, bands, rows, cols []int) (*TriclusteringResult, error) {
	for mon.proceed() {
		b0, r0, c0 := bands, rows, cols

		avg := lazy.Delay(func(ctx context.Context) (*triAverages, error) {
			return tc.averages(ctx, b0, r0, c0)
		})
		nextRows := lazy.Map(avg, func(ctx context.Context, a *triAverages) ([]int, error) {
			return tc.assignRows(ctx, a, b0, c0)
		})
		nextCols := lazy.Map2(avg, nextRows, func(ctx context.Context, a *triAverages, r []int) ([]int, error) {
			return tc.assignCols(ctx, a, b0, r)
		})
		dBand := lazy.Delay(func(ctx context.Context) (*mat.Dense, error) {
			a, err := avg.Compute(ctx)
			if err != nil {
				return nil, err
			}
			r, err := nextRows.Compute(ctx)
			if err != nil {
				return nil, err
			}
			c, err := nextCols.Compute(ctx)
			if err != nil {
				return nil, err
			}
			return tc.bandDistances(ctx, a, r, c)
		})
		nextBands := lazy.Map(dBand, func(_ context.Context, d *mat.Dense) ([]int, error) {
			return argminRows(d), nil
		})
		errV := lazy.Map(dBand, func(_ context.Context, d *mat.Dense) (float64, error) {
			return sumRowMins(d), nil
		})

		e, err := barrier(ctx, mode, sched, errV, nextRows, nextCols, nextBands)
		if err != nil {
			return nil, err
		}
		if rows, err = nextRows.Compute(ctx); err != nil {
			return nil, err
		}
		if cols, err = nextCols.Compute(ctx); err != nil {
			return nil, err
		}
		if bands, err = nextBands.Compute(ctx); err != nil {
			return nil, err
		}

		mon.observe(e)
		tc.logger.DebugContext(ctx, "triclustering iteration",
			"iteration", mon.iters,
			"error", e,
			"delta", mon.delta(),
		)
	}

	if mon.converged {
		tc.logger.DebugContext(ctx, "triclustering converged", "iterations", mon.iters, "error", mon.e)
	} else {
		tc.logger.DebugContext(ctx, "triclustering not converged", "iterations", mon.iters, "error", mon.e)
	}
	return &TriclusteringResult{
		Converged:    mon.converged,
		Iterations:   mon.iters,
		RowClusters:  rows,
		ColClusters:  cols,
		BandClusters: bands,
		Error:        mon.e,
		Errors:       mon.history,
	}, nil
}

// averages sums the data of every (band, row, column) cluster triple, then
// regularizes: (sum + Gavg·ε) / (occupancy + ε), where the occupancy tensor
// is the outer product of the three cluster sizes.
func (tc *triclusterer) averages(ctx context.Context, bands, rows, cols []int) (*triAverages, error) {
	nb := occupancy(bands, tc.kb)
	nr := occupancy(rows, tc.kr)
	nc := occupancy(cols, tc.kc)
	tc.logger.DebugContext(ctx, "populated clusters",
		"row", populated(nr),
		"col", populated(nc),
		"band", populated(nb),
	)

	r := IndicatorMatrix(tc.kr, rows)
	c := IndicatorMatrix(tc.kc, cols)

	parts := make([]*Cube, len(tc.bandSpans))
	err := forEachSpan(ctx, tc.workers, tc.bandSpans, func(_ context.Context, i int, s span) error {
		part := NewCube(tc.kb, tc.kr, tc.kc, nil)
		var rz, sum mat.Dense
		for b := s.lo; b < s.hi; b++ {
			rz.Mul(r.T(), tc.z.Band(b))
			sum.Mul(&rz, c)
			slab := part.Band(bands[b])
			slab.Add(slab, &sum)
		}
		parts[i] = part
		return nil
	})
	if err != nil {
		return nil, err
	}

	shifted := parts[0]
	for _, p := range parts[1:] {
		floats.Add(shifted.data, p.data)
	}
	reg := tc.gavg * tc.eps
	for b := 0; b < tc.kb; b++ {
		for i := 0; i < tc.kr; i++ {
			for j := 0; j < tc.kc; j++ {
				v := (shifted.At(b, i, j) + reg) / (nb[b]*nr[i]*nc[j] + tc.eps)
				shifted.Set(b, i, j, v+tc.eps)
			}
		}
	}
	logs := NewCube(tc.kb, tc.kr, tc.kc, logShifted(shifted.data, 0))
	return &triAverages{shifted: shifted, logs: logs}, nil
}

// assignRows reconstructs the cube with rows as the free axis, expanding the
// averages along the current band and column assignments.
func (tc *triclusterer) assignRows(ctx context.Context, a *triAverages, bands, cols []int) ([]int, error) {
	first := a.shifted.contract(1, occupancy(bands, tc.kb), occupancy(cols, tc.kc))

	c := IndicatorMatrix(tc.kc, cols)
	expand := make([]*mat.Dense, tc.kb)
	for b := range expand {
		var l mat.Dense
		l.Mul(c, a.logs.Band(b).T()) // n × kr
		expand[b] = &l
	}

	d := mat.NewDense(tc.m, tc.kr, nil)
	err := forEachSpan(ctx, tc.workers, tc.rowSpans, func(_ context.Context, _ int, s span) error {
		dst := d.Slice(s.lo, s.hi, 0, tc.kr).(*mat.Dense)
		var part mat.Dense
		for i := 0; i < tc.d; i++ {
			part.Mul(tc.z.Band(i).Slice(s.lo, s.hi, 0, tc.n), expand[bands[i]])
			dst.Add(dst, &part)
		}
		dst.Apply(func(_, l int, v float64) float64 { return first[l] - v }, dst)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return argminRows(d), nil
}

// assignCols reconstructs the cube with columns as the free axis, expanding
// the averages along the current bands and the updated rows.
func (tc *triclusterer) assignCols(ctx context.Context, a *triAverages, bands, rows []int) ([]int, error) {
	first := a.shifted.contract(2, occupancy(bands, tc.kb), occupancy(rows, tc.kr))

	r := IndicatorMatrix(tc.kr, rows)
	expand := make([]*mat.Dense, tc.kb)
	for b := range expand {
		var l mat.Dense
		l.Mul(r, a.logs.Band(b)) // m × kc
		expand[b] = &l
	}

	d := mat.NewDense(tc.n, tc.kc, nil)
	err := forEachSpan(ctx, tc.workers, tc.colSpans, func(_ context.Context, _ int, s span) error {
		dst := d.Slice(s.lo, s.hi, 0, tc.kc).(*mat.Dense)
		var part mat.Dense
		for i := 0; i < tc.d; i++ {
			part.Mul(tc.z.Band(i).Slice(0, tc.m, s.lo, s.hi).T(), expand[bands[i]])
			dst.Add(dst, &part)
		}
		dst.Apply(func(_, l int, v float64) float64 { return first[l] - v }, dst)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return argminRows(d), nil
}

// bandDistances scores every band against each band cluster, expanding the
// averages along the updated rows and columns.
func (tc *triclusterer) bandDistances(ctx context.Context, a *triAverages, rows, cols []int) (*mat.Dense, error) {
	first := a.shifted.contract(0, occupancy(rows, tc.kr), occupancy(cols, tc.kc))

	r := IndicatorMatrix(tc.kr, rows)
	c := IndicatorMatrix(tc.kc, cols)
	slab := tc.kr * tc.kc

	d := mat.NewDense(tc.d, tc.kb, nil)
	err := forEachSpan(ctx, tc.workers, tc.bandSpans, func(_ context.Context, _ int, s span) error {
		var rz, sum mat.Dense
		for i := s.lo; i < s.hi; i++ {
			rz.Mul(r.T(), tc.z.Band(i))
			sum.Mul(&rz, c)
			sums := sum.RawMatrix().Data
			row := d.RawRowView(i)
			for b := range row {
				row[b] = first[b] - floats.Dot(sums, a.logs.data[b*slab:(b+1)*slab])
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}
