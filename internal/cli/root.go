package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "CGC"

// flagKeys maps flag names to configuration keys. Every command binds the
// flags it has.
var flagKeys = map[string]string{
	"row-clusters":   "clustering.row_clusters",
	"col-clusters":   "clustering.col_clusters",
	"band-clusters":  "clustering.band_clusters",
	"errobj":         "clustering.errobj",
	"max-iterations": "clustering.max_iterations",
	"epsilon":        "clustering.epsilon",
	"workers":        "clustering.workers",
	"chunk-size":     "clustering.chunk_size",
	"mode":           "clustering.mode",
	"seed":           "clustering.seed",
	"log-level":      "logging.level",
	"format":         "output.format",
}

// app carries the state shared by the commands of one invocation.
type app struct {
	v      *viper.Viper
	cfg    *Config
	logger *slog.Logger
}

// NewRootCmd builds the cgc command tree. Each call returns an independent
// tree with its own viper instance.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	defaults := Default()

	root := &cobra.Command{
		Use:   "cgc",
		Short: "Co-clustering and tri-clustering of nonnegative arrays",
		Long: `cgc clusters the rows and columns of a matrix, or the bands, rows and
columns of a stack of matrices, by minimizing the generalized I-divergence
between the data and its block reconstruction.

Matrices are read from CSV files. Results are printed to stdout as YAML or
JSON; diagnostics go to stderr.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.initConfig,
	}

	pf := root.PersistentFlags()
	pf.StringP("config", "c", "", "config file (default is $HOME/.config/cgc/cgc.yaml)")
	pf.String("log-level", defaults.Logging.Level, "log level: debug, info, warn or error")
	pf.String("format", defaults.Output.Format, "output format: yaml or json")

	root.AddCommand(a.newCoclusterCmd(), a.newTriclusterCmd(), a.newMemoryCmd())
	return root
}

func (a *app) initConfig(cmd *cobra.Command, _ []string) error {
	SetDefaults(a.v)

	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok && bindErr == nil {
			bindErr = a.v.BindPFlag(key, f)
		}
	})
	if bindErr != nil {
		return bindErr
	}

	a.v.SetEnvPrefix(envPrefix)
	// CGC_CLUSTERING_ROW_CLUSTERS sets clustering.row_clusters
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		a.v.SetConfigFile(path)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		a.v.SetConfigName("cgc")
		a.v.SetConfigType("yaml")
		a.v.AddConfigPath(ConfigDir())
		a.v.AddConfigPath(".")
		if err := a.v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg, err := Load(a.v)
	if err != nil {
		return err
	}
	logger, err := cfg.Logging.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.cfg, a.logger = cfg, logger
	return nil
}

// addClusteringFlags registers the engine flags. Defaults shown in help come
// from Default(); the effective values are resolved through viper.
func addClusteringFlags(fs *pflag.FlagSet, bands bool) {
	d := Default().Clustering
	fs.IntP("row-clusters", "r", d.RowClusters, "number of row clusters")
	fs.IntP("col-clusters", "k", d.ColClusters, "number of column clusters")
	if bands {
		fs.IntP("band-clusters", "b", d.BandClusters, "number of band clusters")
	}
	fs.Float64("errobj", d.Errobj, "convergence threshold on the change of the objective")
	fs.Int("max-iterations", d.MaxIterations, "maximum number of iterations")
	fs.Float64("epsilon", d.Epsilon, "regularization of averages and logarithms")
	fs.Int("workers", d.Workers, "goroutines per chunk kernel (0 = number of CPUs)")
	fs.Int("chunk-size", d.ChunkSize, "elements per chunk along each axis (0 = one chunk per worker)")
	fs.String("mode", d.Mode, "barrier mode: auto, caller or worker")
	fs.Uint64("seed", d.Seed, "seed for the random initial assignments (0 = random)")
}
