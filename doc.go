// Package cgc implements co-clustering and tri-clustering of nonnegative
// arrays by alternating minimization of a generalized I-divergence.
//
// Co-clustering partitions the rows and columns of a matrix at the same time;
// tri-clustering partitions the bands, rows and columns of a cube. Each
// iteration computes the average of every cluster combination, then moves each
// element of one axis at a time to the cluster whose reconstruction fits it
// best. Later axes see the assignments already updated earlier in the same
// iteration.
//
// Basic usage:
//
//	cfg := cgc.DefaultConfig()
//	cfg.RowClusters = 4
//	cfg.ColClusters = 3
//	result, err := cgc.Cocluster(ctx, z, cfg)
//	// result.RowClusters[i] is the cluster of row i
//	// result.ColClusters[j] is the cluster of column j
//	// result.Converged reports whether the objective settled before MaxIterations
//
// For a bands × rows × cols cube:
//
//	cube := cgc.NewCube(bands, rows, cols, data)
//	cfg.BandClusters = 2
//	result, err := cgc.Tricluster(ctx, cube, cfg)
//
// # Execution
//
// Every iteration is described as a graph of deferred values (package lazy)
// over chunks of the input. At the end of the iteration the new assignments
// and the objective are realized on a [lazy.Scheduler] and the graph is
// dropped, so memory stays bounded no matter how many iterations run.
//
// A run can also be dispatched as a scheduler task of its own with
// [SubmitCocluster] or [SubmitTricluster]. In that case the task gives up its
// execution slot while it waits for an iteration to be realized, so a
// scheduler with a single slot still makes progress.
//
// Use [EstimateCoclusteringMemory] to size chunks before running.
package cgc
