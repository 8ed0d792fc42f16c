package cli

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/viper"

	"github.com/TrevorS/cgc"
)

// Config is the command-line configuration. It is assembled by viper from
// defaults, an optional config file, CGC_* environment variables and flags,
// in increasing order of precedence.
type Config struct {
	Clustering ClusteringConfig `mapstructure:"clustering"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Output     OutputConfig     `mapstructure:"output"`
}

// ClusteringConfig mirrors the engine options that make sense on the
// command line.
type ClusteringConfig struct {
	RowClusters   int     `mapstructure:"row_clusters"`
	ColClusters   int     `mapstructure:"col_clusters"`
	BandClusters  int     `mapstructure:"band_clusters"`
	Errobj        float64 `mapstructure:"errobj"`
	MaxIterations int     `mapstructure:"max_iterations"`
	Epsilon       float64 `mapstructure:"epsilon"`
	Workers       int     `mapstructure:"workers"`
	ChunkSize     int     `mapstructure:"chunk_size"`
	// Mode is one of "auto", "caller" or "worker".
	Mode string `mapstructure:"mode"`
	// Seed makes the random initial assignments reproducible. 0 picks a
	// fresh seed on every run.
	Seed uint64 `mapstructure:"seed"`
}

// LoggingConfig controls the diagnostic log written to stderr.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
}

// OutputConfig controls how results are printed.
type OutputConfig struct {
	// Format is "yaml" or "json".
	Format string `mapstructure:"format"`
}

// Default returns a Config with the engine defaults and two clusters per axis.
func Default() *Config {
	engine := cgc.DefaultConfig()
	return &Config{
		Clustering: ClusteringConfig{
			RowClusters:   2,
			ColClusters:   2,
			BandClusters:  2,
			Errobj:        engine.Errobj,
			MaxIterations: engine.MaxIterations,
			Epsilon:       engine.Epsilon,
			Mode:          string(engine.Mode),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Output: OutputConfig{
			Format: "yaml",
		},
	}
}

// SetDefaults registers default values with v.
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("clustering.row_clusters", defaults.Clustering.RowClusters)
	v.SetDefault("clustering.col_clusters", defaults.Clustering.ColClusters)
	v.SetDefault("clustering.band_clusters", defaults.Clustering.BandClusters)
	v.SetDefault("clustering.errobj", defaults.Clustering.Errobj)
	v.SetDefault("clustering.max_iterations", defaults.Clustering.MaxIterations)
	v.SetDefault("clustering.epsilon", defaults.Clustering.Epsilon)
	v.SetDefault("clustering.workers", defaults.Clustering.Workers)
	v.SetDefault("clustering.chunk_size", defaults.Clustering.ChunkSize)
	v.SetDefault("clustering.mode", defaults.Clustering.Mode)
	v.SetDefault("clustering.seed", defaults.Clustering.Seed)

	v.SetDefault("logging.level", defaults.Logging.Level)

	v.SetDefault("output.format", defaults.Output.Format)
}

// Load reads the configuration from v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields the engine does not check itself.
func (c *Config) Validate() error {
	if !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("output.format: must be one of %v, got %q", validFormats, c.Output.Format)
	}
	if _, err := c.Logging.level(); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}

var validFormats = []string{"yaml", "json"}

func (c LoggingConfig) level() (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(c.Level))
	return l, err
}

// NewLogger returns a text logger writing to w at the configured level.
func (c LoggingConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	l, err := c.level()
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})), nil
}

// EngineConfig converts c into an engine configuration logging to logger.
func (c ClusteringConfig) EngineConfig(logger *slog.Logger) cgc.Config {
	cfg := cgc.DefaultConfig()
	cfg.RowClusters = c.RowClusters
	cfg.ColClusters = c.ColClusters
	cfg.BandClusters = c.BandClusters
	cfg.Errobj = c.Errobj
	cfg.MaxIterations = c.MaxIterations
	cfg.Epsilon = c.Epsilon
	cfg.Workers = c.Workers
	cfg.ChunkSize = c.ChunkSize
	cfg.Mode = cgc.ExecutionMode(c.Mode)
	if c.Seed != 0 {
		cfg.Rand = rand.New(rand.NewPCG(c.Seed, c.Seed))
	}
	cfg.Logger = logger
	return cfg
}

// ConfigDir returns the directory searched for cgc.yaml when no --config
// flag is given.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "cgc")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cgc"
	}
	return filepath.Join(home, ".config", "cgc")
}
