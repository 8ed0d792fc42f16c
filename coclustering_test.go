package cgc

import (
	"bytes"
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/TrevorS/cgc/lazy"
)

// blockMatrix builds a 6×6 matrix with two row blocks and two column blocks:
// diagonal blocks near 10, off-diagonal blocks near 1.
func blockMatrix() *mat.Dense {
	z := mat.NewDense(6, 6, nil)
	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			base := 1.0
			if i/3 == j/3 {
				base = 10
			}
			z.Set(i, j, blockValue(base, i, j, 0))
		}
	}
	return z
}

func coConfig(kr, kc int) Config {
	cfg := DefaultConfig()
	cfg.RowClusters = kr
	cfg.ColClusters = kc
	cfg.Rand = rand.New(rand.NewPCG(7, 7))
	return cfg
}

func constMatrix(m, n int, v float64) *mat.Dense {
	data := make([]float64, m*n)
	for i := range data {
		data[i] = v
	}
	return mat.NewDense(m, n, data)
}

func assertInRange(t *testing.T, assignment []int, n, k int) {
	t.Helper()
	require.Len(t, assignment, n)
	for i, c := range assignment {
		assert.True(t, c >= 0 && c < k, "assignment[%d] = %d, want [0, %d)", i, c, k)
	}
}

func assertNonIncreasing(t *testing.T, errs []float64) {
	t.Helper()
	for i := 1; i < len(errs); i++ {
		tol := 1e-9 * math.Max(1, math.Abs(errs[i-1]))
		assert.LessOrEqual(t, errs[i], errs[i-1]+tol, "objective rose at iteration %d: %v", i, errs)
	}
}

func TestCocluster_ConstantMatrix(t *testing.T) {
	res, err := Cocluster(context.Background(), constMatrix(4, 4, 1), coConfig(2, 2))
	require.NoError(t, err)

	assert.True(t, res.Converged)
	assert.LessOrEqual(t, res.Iterations, 3)
	assertInRange(t, res.RowClusters, 4, 2)
	assertInRange(t, res.ColClusters, 4, 2)
	// Every reconstruction equals the data, leaving Σ(1+ε) − Σ log(1+ε) ≈ 16.
	assert.InDelta(t, 16, res.Error, 1e-6)
	assert.Len(t, res.Errors, res.Iterations)
	assert.Equal(t, res.Error, res.Errors[len(res.Errors)-1])
}

func TestCocluster_UniformValue(t *testing.T) {
	const v = 3.5
	res, err := Cocluster(context.Background(), constMatrix(5, 3, v), coConfig(2, 2))
	require.NoError(t, err)

	assert.True(t, res.Converged)
	assert.InDelta(t, 15*(v-v*math.Log(v)), res.Error, 1e-5)
}

func TestCocluster_BlockStructureIsFixedPoint(t *testing.T) {
	cfg := coConfig(2, 2)
	cfg.InitialRowClusters = []int{0, 0, 0, 1, 1, 1}
	cfg.InitialColClusters = []int{0, 0, 0, 1, 1, 1}

	res, err := Cocluster(context.Background(), blockMatrix(), cfg)
	require.NoError(t, err)

	assert.True(t, res.Converged)
	assert.Equal(t, cfg.InitialRowClusters, res.RowClusters)
	assert.Equal(t, cfg.InitialColClusters, res.ColClusters)
}

func TestCocluster_RecoversMisassignedRow(t *testing.T) {
	cfg := coConfig(2, 2)
	cfg.InitialRowClusters = []int{1, 0, 0, 1, 1, 1}
	cfg.InitialColClusters = []int{0, 0, 0, 1, 1, 1}

	res, err := Cocluster(context.Background(), blockMatrix(), cfg)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 0, 0, 1, 1, 1}, res.RowClusters)
	assert.Equal(t, []int{0, 0, 0, 1, 1, 1}, res.ColClusters)
	assertNonIncreasing(t, res.Errors)
}

func TestCocluster_DoesNotModifyInputs(t *testing.T) {
	z := blockMatrix()
	before := mat.DenseCopyOf(z)
	initRows := []int{1, 0, 0, 1, 1, 1}

	cfg := coConfig(2, 2)
	cfg.InitialRowClusters = initRows
	_, err := Cocluster(context.Background(), z, cfg)
	require.NoError(t, err)

	assert.True(t, mat.Equal(before, z))
	assert.Equal(t, []int{1, 0, 0, 1, 1, 1}, initRows)
}

func TestCocluster_ObjectiveNeverIncreases(t *testing.T) {
	cfg := coConfig(4, 3)
	cfg.MaxIterations = 30
	res, err := Cocluster(context.Background(), generateMatrix(40, 25), cfg)
	require.NoError(t, err)

	assertInRange(t, res.RowClusters, 40, 4)
	assertInRange(t, res.ColClusters, 25, 3)
	assertNonIncreasing(t, res.Errors)
}

func TestCocluster_DeterministicGivenInitialAssignments(t *testing.T) {
	z := generateMatrix(30, 20)
	cfg := coConfig(3, 4)
	cfg.InitialRowClusters = InitialAssignment(30, 3, rand.New(rand.NewPCG(1, 2)))
	cfg.InitialColClusters = InitialAssignment(20, 4, rand.New(rand.NewPCG(3, 4)))

	first, err := Cocluster(context.Background(), z, cfg)
	require.NoError(t, err)
	second, err := Cocluster(context.Background(), z, cfg)
	require.NoError(t, err)

	assert.Equal(t, first.RowClusters, second.RowClusters)
	assert.Equal(t, first.ColClusters, second.ColClusters)
	assert.Equal(t, first.Errors, second.Errors)
}

func TestCocluster_ChunkingDoesNotChangeResult(t *testing.T) {
	z := blockMatrix()
	base := coConfig(2, 2)
	base.InitialRowClusters = []int{1, 0, 0, 1, 1, 1}
	base.InitialColClusters = []int{0, 1, 0, 1, 1, 1}
	base.Workers = 1

	want, err := Cocluster(context.Background(), z, base)
	require.NoError(t, err)

	for _, tc := range []struct{ workers, chunk int }{{4, 1}, {2, 0}, {3, 2}} {
		cfg := base
		cfg.Workers = tc.workers
		cfg.ChunkSize = tc.chunk
		got, err := Cocluster(context.Background(), z, cfg)
		require.NoError(t, err)

		assert.Equal(t, want.RowClusters, got.RowClusters, "workers=%d chunk=%d", tc.workers, tc.chunk)
		assert.Equal(t, want.ColClusters, got.ColClusters, "workers=%d chunk=%d", tc.workers, tc.chunk)
		require.Len(t, got.Errors, len(want.Errors))
		for i := range want.Errors {
			assert.InDelta(t, want.Errors[i], got.Errors[i], 1e-9*math.Abs(want.Errors[i]))
		}
	}
}

func TestCocluster_IterationCap(t *testing.T) {
	cfg := coConfig(3, 3)
	cfg.MaxIterations = 1
	res, err := Cocluster(context.Background(), generateMatrix(20, 20), cfg)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Iterations)
	assert.False(t, res.Converged)
	assert.Len(t, res.Errors, 1)
}

func TestCocluster_NonDenseInput(t *testing.T) {
	z := blockMatrix()
	cfg := coConfig(2, 2)
	cfg.InitialRowClusters = []int{0, 1, 0, 1, 0, 1}
	cfg.InitialColClusters = []int{1, 1, 0, 0, 1, 0}

	want, err := Cocluster(context.Background(), mat.DenseCopyOf(z.T()), cfg)
	require.NoError(t, err)
	got, err := Cocluster(context.Background(), z.T(), cfg)
	require.NoError(t, err)

	assert.Equal(t, want.RowClusters, got.RowClusters)
	assert.Equal(t, want.ColClusters, got.ColClusters)
	assert.Equal(t, want.Errors, got.Errors)
}

func TestCocluster_InvalidInput(t *testing.T) {
	ctx := context.Background()

	_, err := Cocluster(ctx, mat.NewDense(2, 2, []float64{1, -1, 0, 2}), coConfig(2, 2))
	assert.ErrorIs(t, err, ErrNegativeData)

	cfg := coConfig(2, 2)
	cfg.InitialRowClusters = []int{0, 1, 2}
	_, err = Cocluster(ctx, constMatrix(3, 3, 1), cfg)
	assert.ErrorIs(t, err, ErrInvalidAssignment)

	cfg = coConfig(2, 2)
	cfg.InitialColClusters = []int{0, 1}
	_, err = Cocluster(ctx, constMatrix(3, 3, 1), cfg)
	assert.ErrorIs(t, err, ErrInvalidAssignment)

	_, err = Cocluster(ctx, constMatrix(3, 3, 1), coConfig(0, 2))
	assert.Error(t, err)

	cfg = coConfig(2, 2)
	cfg.Mode = ModeWorker
	_, err = Cocluster(ctx, constMatrix(3, 3, 1), cfg)
	assert.ErrorIs(t, err, ErrNotOnWorker)
}

func TestCocluster_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Cocluster(ctx, generateMatrix(10, 10), coConfig(2, 2))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSubmitCocluster_SingleSlot(t *testing.T) {
	s := lazy.NewScheduler(1)
	z := blockMatrix()
	cfg := coConfig(2, 2)
	cfg.InitialRowClusters = []int{1, 0, 0, 1, 1, 1}
	cfg.InitialColClusters = []int{0, 0, 0, 1, 1, 1}

	res, err := SubmitCocluster(context.Background(), s, z, cfg).Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 0, 1, 1, 1}, res.RowClusters)

	cfg.Mode = ModeCaller
	caller, err := Cocluster(context.Background(), z, cfg)
	require.NoError(t, err)
	assert.Equal(t, caller.RowClusters, res.RowClusters)
	assert.Equal(t, caller.ColClusters, res.ColClusters)
	assert.Equal(t, caller.Errors, res.Errors)

	s.Wait()
}

func TestSubmitCocluster_Concurrent(t *testing.T) {
	s := lazy.NewScheduler(2)
	z := generateMatrix(20, 12)

	futures := make([]*lazy.Future[*CoclusteringResult], 4)
	for i := range futures {
		cfg := coConfig(2, 3)
		cfg.Workers = 2
		cfg.Rand = rand.New(rand.NewPCG(uint64(i), 9))
		futures[i] = SubmitCocluster(context.Background(), s, z, cfg)
	}
	for _, f := range futures {
		res, err := f.Wait(context.Background())
		require.NoError(t, err)
		assertInRange(t, res.RowClusters, 20, 2)
		assertInRange(t, res.ColClusters, 12, 3)
	}
	s.Wait()
}

func TestCocluster_LogsIterations(t *testing.T) {
	var buf bytes.Buffer
	cfg := coConfig(2, 2)
	cfg.Logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	res, err := Cocluster(context.Background(), constMatrix(4, 4, 1), cfg)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "coclustering iteration")
	assert.Contains(t, out, "coclustering finished")
	assert.Equal(t, res.Iterations, bytes.Count(buf.Bytes(), []byte("coclustering iteration")))
}
