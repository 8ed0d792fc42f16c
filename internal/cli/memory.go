package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/TrevorS/cgc"
)

type memoryOutput struct {
	Size  float64 `yaml:"size" json:"size"`
	Unit  string  `yaml:"unit" json:"unit"`
	Peak  int     `yaml:"peak" json:"peak"`
	Bytes int64   `yaml:"bytes" json:"bytes"`
}

func (a *app) newMemoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Estimate the peak memory of a co-clustering run",
		Long: `Estimate the peak memory of a single-chunk co-clustering run over a
matrix of the given shape. Peak 1 is the row pass, peak 2 the column pass.`,
		Args: cobra.NoArgs,
		RunE: a.runMemory,
	}
	fs := cmd.Flags()
	d := Default().Clustering
	fs.Int("rows", 0, "number of matrix rows")
	fs.Int("cols", 0, "number of matrix columns")
	fs.IntP("row-clusters", "r", d.RowClusters, "number of row clusters")
	fs.IntP("col-clusters", "k", d.ColClusters, "number of column clusters")
	fs.String("unit", "", "output unit: B, KB, MB or GB (default: largest that keeps size >= 1)")
	_ = cmd.MarkFlagRequired("rows")
	_ = cmd.MarkFlagRequired("cols")
	return cmd
}

func (a *app) runMemory(cmd *cobra.Command, _ []string) error {
	rows, _ := cmd.Flags().GetInt("rows")
	cols, _ := cmd.Flags().GetInt("cols")
	unit, _ := cmd.Flags().GetString("unit")

	est, err := cgc.EstimateCoclusteringMemory(rows, cols,
		a.cfg.Clustering.RowClusters, a.cfg.Clustering.ColClusters,
		cgc.MemoryUnit(strings.ToUpper(unit)))
	if err != nil {
		return err
	}
	return writeResult(cmd.OutOrStdout(), a.cfg.Output.Format, memoryOutput{
		Size:  est.Size,
		Unit:  string(est.Unit),
		Peak:  est.Peak,
		Bytes: est.Bytes,
	})
}
