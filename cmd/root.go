package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pgdbml/pgdbml/internal/config"
	"github.com/pgdbml/pgdbml/internal/logging"
)

var (
	cfgFile  string
	logLevel string
	version  = "dev"
	commit   = "none"
	date     = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "pgdbml",
	Short: "Convert PostgreSQL schemas to DBML",
	Long: `pgdbml converts PostgreSQL DDL dumps into DBML diagram sources.

Extraction is tolerant: malformed or unsupported statements degrade into
report entries instead of aborting, and every construct is accounted for
in the conversion report.`,
	SilenceUsage: true,
}

func Execute() {
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.pgdbml/pgdbml.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

// loadConfig returns the file config when present, defaults otherwise.
// A missing default file is not an error; an explicit --config that fails
// to load is.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		if cfgFile != "" {
			return nil, err
		}
		cfg = config.Default()
	}
	return cfg, nil
}

// setupLogging wires the default slog logger from config and flags.
func setupLogging(cfg *config.Config) {
	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	logger, err := logging.Setup(level, cfg.Logging.Directory)
	if err != nil {
		// logging must never block a conversion
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	slog.SetDefault(logger)
}
