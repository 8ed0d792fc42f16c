package cgc

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"runtime"

	"github.com/TrevorS/cgc/lazy"
)

var (
	// ErrInvalidAssignment is returned when a caller-supplied initial
	// assignment does not match its axis length or cluster count.
	ErrInvalidAssignment = errors.New("cgc: invalid initial assignment")

	// ErrNegativeData is returned when the input array has a negative entry.
	ErrNegativeData = errors.New("cgc: data must be nonnegative")

	// ErrEmptyData is returned when an axis of the input array has length zero.
	ErrEmptyData = errors.New("cgc: data has an empty axis")
)

// Config controls a co-clustering or tri-clustering run.
// Start with [DefaultConfig] and override the fields you need.
type Config struct {
	// RowClusters is the number of row clusters. Must be >= 1.
	RowClusters int

	// ColClusters is the number of column clusters. Must be >= 1.
	ColClusters int

	// BandClusters is the number of band clusters. Only used by Tricluster,
	// where it must be >= 1.
	BandClusters int

	// Errobj is the convergence threshold: a run stops once the objective
	// changes by less than Errobj between two iterations. Must be > 0.
	// Default: 1e-5.
	Errobj float64

	// MaxIterations caps the number of iterations. Must be >= 1. Default: 100.
	MaxIterations int

	// Epsilon regularizes the cluster averages and shifts reconstructions away
	// from zero before taking logarithms. Must be > 0. Default: 1e-8.
	Epsilon float64

	// InitialRowClusters, InitialColClusters and InitialBandClusters seed the
	// assignments. A nil slice means a balanced random start. A non-nil slice
	// must have one entry per element of its axis, each in [0, k).
	InitialRowClusters  []int
	InitialColClusters  []int
	InitialBandClusters []int

	// Mode selects how realization barriers wait. Default: ModeAuto.
	Mode ExecutionMode

	// Scheduler runs the per-iteration realizations. nil means the scheduler
	// of the enclosing task when running on one, otherwise a new scheduler
	// with Workers slots.
	Scheduler *lazy.Scheduler

	// Workers bounds the goroutines used for chunk kernels.
	// 0 means runtime.NumCPU(). Default: 0 (auto).
	Workers int

	// ChunkSize is the number of elements per chunk along each axis.
	// 0 splits every axis into Workers contiguous chunks. Default: 0.
	ChunkSize int

	// Rand drives the random initial assignments. nil uses the auto-seeded
	// global source, so runs without initial assignments are not reproducible.
	Rand *rand.Rand

	// Logger receives per-iteration debug records. nil discards them.
	Logger *slog.Logger
}

// CoclusteringResult is the outcome of [Cocluster].
type CoclusteringResult struct {
	// Converged reports whether the objective change fell below Errobj before
	// MaxIterations was reached.
	Converged bool

	// Iterations is the number of iterations performed.
	Iterations int

	// RowClusters and ColClusters hold the final assignment of every row and
	// column.
	RowClusters []int
	ColClusters []int

	// Error is the final value of the objective.
	Error float64

	// Errors is the objective after each iteration.
	Errors []float64
}

// TriclusteringResult is the outcome of [Tricluster].
type TriclusteringResult struct {
	Converged    bool
	Iterations   int
	RowClusters  []int
	ColClusters  []int
	BandClusters []int

	// Error is the final objective, computed from the band axis only.
	Error  float64
	Errors []float64
}

// DefaultConfig returns a Config with reasonable defaults. Cluster counts are
// left at zero and must be set.
func DefaultConfig() Config {
	return Config{
		Errobj:        1e-5,
		MaxIterations: 100,
		Epsilon:       1e-8,
		Mode:          ModeAuto,
	}
}

// applyDefaults fills in zero-valued config fields with their defaults.
func applyDefaults(cfg *Config) {
	if cfg.Mode == "" {
		cfg.Mode = ModeAuto
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
}

// validateConfig checks that cfg fields are valid for a run over the given
// number of clustered axes (2 or 3).
func validateConfig(cfg *Config, axes int) error {
	if cfg.RowClusters < 1 {
		return fmt.Errorf("cgc: RowClusters must be >= 1, got %d", cfg.RowClusters)
	}
	if cfg.ColClusters < 1 {
		return fmt.Errorf("cgc: ColClusters must be >= 1, got %d", cfg.ColClusters)
	}
	if axes == 3 && cfg.BandClusters < 1 {
		return fmt.Errorf("cgc: BandClusters must be >= 1, got %d", cfg.BandClusters)
	}
	if !(cfg.Errobj > 0) {
		return fmt.Errorf("cgc: Errobj must be > 0, got %g", cfg.Errobj)
	}
	if cfg.MaxIterations < 1 {
		return fmt.Errorf("cgc: MaxIterations must be >= 1, got %d", cfg.MaxIterations)
	}
	if !(cfg.Epsilon > 0) {
		return fmt.Errorf("cgc: Epsilon must be > 0, got %g", cfg.Epsilon)
	}
	if cfg.Workers < 0 {
		return fmt.Errorf("cgc: Workers must be >= 0, got %d", cfg.Workers)
	}
	if cfg.ChunkSize < 0 {
		return fmt.Errorf("cgc: ChunkSize must be >= 0, got %d", cfg.ChunkSize)
	}
	switch cfg.Mode {
	case ModeAuto, ModeCaller, ModeWorker:
		// valid
	default:
		return fmt.Errorf("cgc: invalid Mode %q", cfg.Mode)
	}
	return nil
}

// startAssignment returns a private copy of init after checking it against
// the axis, or a fresh random assignment when init is nil.
func startAssignment(axis string, init []int, n, k int, rng *rand.Rand) ([]int, error) {
	if init == nil {
		return InitialAssignment(n, k, rng), nil
	}
	if len(init) != n {
		return nil, fmt.Errorf("%w: %s assignment has length %d, axis has %d elements",
			ErrInvalidAssignment, axis, len(init), n)
	}
	for i, c := range init {
		if c < 0 || c >= k {
			return nil, fmt.Errorf("%w: %s assignment[%d] = %d, want [0, %d)",
				ErrInvalidAssignment, axis, i, c, k)
		}
	}
	return append([]int(nil), init...), nil
}
