package cli

import (
	"github.com/spf13/cobra"

	"github.com/TrevorS/cgc"
)

type coclusterOutput struct {
	Converged   bool      `yaml:"converged" json:"converged"`
	Iterations  int       `yaml:"iterations" json:"iterations"`
	Error       float64   `yaml:"error" json:"error"`
	Errors      []float64 `yaml:"errors" json:"errors"`
	RowClusters []int     `yaml:"row_clusters" json:"row_clusters"`
	ColClusters []int     `yaml:"col_clusters" json:"col_clusters"`
}

func (a *app) newCoclusterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cocluster <matrix.csv>",
		Short: "Co-cluster the rows and columns of a matrix",
		Long: `Co-cluster the rows and columns of a nonnegative matrix stored as CSV.

Every record is one row; every record must have the same number of fields.
Lines starting with '#' are ignored.`,
		Args: cobra.ExactArgs(1),
		RunE: a.runCocluster,
	}
	addClusteringFlags(cmd.Flags(), false)
	return cmd
}

func (a *app) runCocluster(cmd *cobra.Command, args []string) error {
	z, err := readMatrix(args[0])
	if err != nil {
		return err
	}
	m, n := z.Dims()
	a.logger.Info("coclustering", "file", args[0], "rows", m, "cols", n,
		"row_clusters", a.cfg.Clustering.RowClusters,
		"col_clusters", a.cfg.Clustering.ColClusters,
	)

	res, err := cgc.Cocluster(cmd.Context(), z, a.cfg.Clustering.EngineConfig(a.logger))
	if err != nil {
		return err
	}
	a.logger.Info("coclustering done", "converged", res.Converged, "iterations", res.Iterations, "error", res.Error)

	return writeResult(cmd.OutOrStdout(), a.cfg.Output.Format, coclusterOutput{
		Converged:   res.Converged,
		Iterations:  res.Iterations,
		Error:       res.Error,
		Errors:      res.Errors,
		RowClusters: res.RowClusters,
		ColClusters: res.ColClusters,
	})
}
