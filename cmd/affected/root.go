package main

import (
	"affected/internal/config"
	"affected/internal/logging"
	"affected/internal/version"

	"github.com/spf13/cobra"
)

var (
	// repoRootFlag overrides the repository root for config discovery
	repoRootFlag string
)

var rootCmd = &cobra.Command{
	Use:   "affected",
	Short: "affected - build target impact determination",
	Long: `affected computes which build targets a change impacts by comparing two
build-graph snapshots and propagating through reverse dependencies. Its
output feeds CI schedulers that only want to build and test what a change
can actually affect.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("affected version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&repoRootFlag, "repo-root", ".",
		"Repository root containing the .affected directory")
}

// loadConfig loads and validates the repository configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(repoRootFlag)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.RepoRoot = repoRootFlag
	return cfg, nil
}

// newLogger builds the configured logger. Logs go to stderr so stdout stays
// reserved for results.
func newLogger(cfg *config.Config) *logging.Logger {
	return logging.NewLogger(logging.Config{
		Format: logging.Format(cfg.Logging.Format),
		Level:  logging.LogLevel(cfg.Logging.Level),
	})
}
