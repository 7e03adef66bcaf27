package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"affected/internal/cells"
	"affected/internal/config"
	"affected/internal/errors"
)

var (
	initForce bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize repository configuration",
	Long:  "Creates a .affected/ directory with a default config.json and cells.toml in the repository root",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite existing configuration")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := filepath.Join(repoRootFlag, ".affected")
	if _, statErr := os.Stat(filepath.Join(dir, "config.json")); statErr == nil && !initForce {
		// Idempotent behavior: already initialized is success (CI-friendly)
		fmt.Fprintln(cmd.OutOrStdout(), "Already initialized.")
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration at: %s\n", filepath.Join(dir, "config.json"))
		fmt.Fprintln(cmd.OutOrStdout(), "\nRun 'affected init --force' to overwrite.")
		return nil
	}

	cfg := config.DefaultConfig()
	if err := cfg.Save(repoRootFlag); err != nil {
		return errors.Wrap(errors.IOError, err, "writing config.json")
	}
	if err := cells.WriteDefault(repoRootFlag); err != nil {
		return errors.Wrap(errors.IOError, err, "writing cells.toml")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s\n", dir)
	return nil
}
