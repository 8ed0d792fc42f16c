package cli

import (
	"github.com/spf13/cobra"

	"github.com/TrevorS/cgc"
)

type triclusterOutput struct {
	coclusterOutput `yaml:",inline"`
	BandClusters    []int `yaml:"band_clusters" json:"band_clusters"`
}

func (a *app) newTriclusterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tricluster <band.csv>...",
		Short: "Tri-cluster the bands, rows and columns of a stack of matrices",
		Long: `Tri-cluster a stack of nonnegative matrices. Each CSV file is one band;
all bands must have the same shape.`,
		Args: cobra.MinimumNArgs(1),
		RunE: a.runTricluster,
	}
	addClusteringFlags(cmd.Flags(), true)
	return cmd
}

func (a *app) runTricluster(cmd *cobra.Command, args []string) error {
	z, err := readCube(args)
	if err != nil {
		return err
	}
	d, m, n := z.Dims()
	a.logger.Info("triclustering", "bands", d, "rows", m, "cols", n,
		"band_clusters", a.cfg.Clustering.BandClusters,
		"row_clusters", a.cfg.Clustering.RowClusters,
		"col_clusters", a.cfg.Clustering.ColClusters,
	)

	res, err := cgc.Tricluster(cmd.Context(), z, a.cfg.Clustering.EngineConfig(a.logger))
	if err != nil {
		return err
	}
	a.logger.Info("triclustering done", "converged", res.Converged, "iterations", res.Iterations, "error", res.Error)

	return writeResult(cmd.OutOrStdout(), a.cfg.Output.Format, triclusterOutput{
		coclusterOutput: coclusterOutput{
			Converged:   res.Converged,
			Iterations:  res.Iterations,
			Error:       res.Error,
			Errors:      res.Errors,
			RowClusters: res.RowClusters,
			ColClusters: res.ColClusters,
		},
		BandClusters: res.BandClusters,
	})
}
