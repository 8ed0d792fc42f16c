package cgc

import (
	"context"
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/TrevorS/cgc/lazy"
)

// Cocluster simultaneously clusters the rows and columns of the m×n
// nonnegative matrix z. z is never modified.
//
// Each iteration computes the co-cluster averages from the current
// assignments, reassigns every row against those averages, then reassigns
// every column using the rows it just updated. The iteration's new
// assignments and objective are realized before the next iteration starts.
func Cocluster(ctx context.Context, z mat.Matrix, cfg Config) (*CoclusteringResult, error) {
	applyDefaults(&cfg)
	if err := validateConfig(&cfg, 2); err != nil {
		return nil, err
	}
	mode, err := selectMode(ctx, cfg.Mode)
	if err != nil {
		return nil, err
	}

	m, n := z.Dims()
	if m == 0 || n == 0 {
		return nil, fmt.Errorf("%w: %d×%d matrix", ErrEmptyData, m, n)
	}
	zd, ok := z.(*mat.Dense)
	if !ok {
		zd = mat.DenseCopyOf(z)
	}
	for i := 0; i < m; i++ {
		if floats.Min(zd.RawRowView(i)) < 0 {
			return nil, fmt.Errorf("%w: row %d", ErrNegativeData, i)
		}
	}

	rows, err := startAssignment("row", cfg.InitialRowClusters, m, cfg.RowClusters, cfg.Rand)
	if err != nil {
		return nil, err
	}
	cols, err := startAssignment("column", cfg.InitialColClusters, n, cfg.ColClusters, cfg.Rand)
	if err != nil {
		return nil, err
	}

	cc := &coclusterer{
		z:        zd,
		m:        m,
		n:        n,
		kr:       cfg.RowClusters,
		kc:       cfg.ColClusters,
		eps:      cfg.Epsilon,
		gavg:     mat.Sum(zd) / float64(m*n),
		workers:  cfg.Workers,
		rowSpans: chunkSpans(m, cfg.ChunkSize, cfg.Workers),
		colSpans: chunkSpans(n, cfg.ChunkSize, cfg.Workers),
		logger:   cfg.Logger,
	}
	return cc.run(ctx, mode, selectScheduler(ctx, &cfg), newMonitor(cfg.Errobj, cfg.MaxIterations), rows, cols)
}

// SubmitCocluster dispatches a whole Cocluster run as one task on s. Unless
// cfg says otherwise, the run realizes its iterations on s and gives up its
// slot while waiting for them.
func SubmitCocluster(ctx context.Context, s *lazy.Scheduler, z mat.Matrix, cfg Config) *lazy.Future[*CoclusteringResult] {
	return lazy.Submit(ctx, s, func(ctx context.Context) (*CoclusteringResult, error) {
		return Cocluster(ctx, z, cfg)
	})
}

type coclusterer struct {
	z         *mat.Dense
	m, n      int
	kr, kc    int
	eps, gavg float64

	workers  int
	rowSpans []span
	colSpans []span

	logger *slog.Logger
}

func (cc *coclusterer) run(ctx context.Context, mode ExecutionMode, sched *lazy.Scheduler, mon *monitor, rows, cols []int) (*CoclusteringResult, error) {
	rowsV, colsV := lazy.Of(rows), lazy.Of(cols)

	for mon.proceed() {
		avg := lazy.Map2(rowsV, colsV, cc.averages)
		nextRows := lazy.Map2(avg, colsV, cc.assignRows)
		dCol := lazy.Map2(avg, nextRows, cc.colDistances)
		nextCols := lazy.Map(dCol, func(_ context.Context, d *mat.Dense) ([]int, error) {
			return argminRows(d), nil
		})
		// The objective is the column-pass residual of the best fit.
		errV := lazy.Map(dCol, func(_ context.Context, d *mat.Dense) (float64, error) {
			return sumRowMins(d), nil
		})

		e, err := barrier(ctx, mode, sched, errV, nextRows, nextCols)
		if err != nil {
			return nil, err
		}
		if rows, err = nextRows.Compute(ctx); err != nil {
			return nil, err
		}
		if cols, err = nextCols.Compute(ctx); err != nil {
			return nil, err
		}
		rowsV, colsV = lazy.Of(rows), lazy.Of(cols)

		mon.observe(e)
		cc.logger.DebugContext(ctx, "coclustering iteration",
			"iteration", mon.iters,
			"error", e,
			"delta", mon.delta(),
		)
	}

	cc.logger.DebugContext(ctx, "coclustering finished",
		"converged", mon.converged,
		"iterations", mon.iters,
		"error", mon.e,
	)
	return &CoclusteringResult{
		Converged:   mon.converged,
		Iterations:  mon.iters,
		RowClusters: rows,
		ColClusters: cols,
		Error:       mon.e,
		Errors:      mon.history,
	}, nil
}

// averages computes (Rᵗ·Z·C + Gavg·ε) / (Rᵗ·1·C + ε). Rᵗ·1·C is the outer
// product of the row and column cluster sizes, so empty co-clusters are pulled
// to the global mean instead of dividing by zero.
func (cc *coclusterer) averages(ctx context.Context, rows, cols []int) (*mat.Dense, error) {
	r := IndicatorMatrix(cc.kr, rows)
	c := IndicatorMatrix(cc.kc, cols)

	parts := make([]*mat.Dense, len(cc.rowSpans))
	err := forEachSpan(ctx, cc.workers, cc.rowSpans, func(_ context.Context, i int, s span) error {
		var rz, p mat.Dense
		rz.Mul(r.Slice(s.lo, s.hi, 0, cc.kr).T(), cc.z.Slice(s.lo, s.hi, 0, cc.n))
		p.Mul(&rz, c)
		parts[i] = &p
		return nil
	})
	if err != nil {
		return nil, err
	}

	avg := sumInOrder(parts)
	nr, nc := occupancy(rows, cc.kr), occupancy(cols, cc.kc)
	reg := cc.gavg * cc.eps
	avg.Apply(func(i, j int, v float64) float64 {
		return (v + reg) / (nr[i]*nc[j] + cc.eps)
	}, avg)
	return avg, nil
}

// assignRows moves every row to the row cluster whose reconstruction C·avgᵗ
// has the smallest divergence from it.
func (cc *coclusterer) assignRows(ctx context.Context, avg *mat.Dense, cols []int) ([]int, error) {
	var y mat.Dense
	y.Mul(IndicatorMatrix(cc.kc, cols), avg.T())
	rc := newReconstruction(&y, cc.eps)

	d := mat.NewDense(cc.m, cc.kr, nil)
	err := forEachSpan(ctx, cc.workers, cc.rowSpans, func(_ context.Context, _ int, s span) error {
		rc.score(d.Slice(s.lo, s.hi, 0, cc.kr).(*mat.Dense), cc.z.Slice(s.lo, s.hi, 0, cc.n))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return argminRows(d), nil
}

// colDistances scores every column against the reconstruction R·avg built
// from the freshly updated rows.
func (cc *coclusterer) colDistances(ctx context.Context, avg *mat.Dense, rows []int) (*mat.Dense, error) {
	var y mat.Dense
	y.Mul(IndicatorMatrix(cc.kr, rows), avg)
	rc := newReconstruction(&y, cc.eps)

	d := mat.NewDense(cc.n, cc.kc, nil)
	err := forEachSpan(ctx, cc.workers, cc.colSpans, func(_ context.Context, _ int, s span) error {
		rc.score(d.Slice(s.lo, s.hi, 0, cc.kc).(*mat.Dense), cc.z.Slice(0, cc.m, s.lo, s.hi).T())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}
