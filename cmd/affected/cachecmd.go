package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"affected/internal/cache"
)

var (
	cacheGCMaxAgeDays int
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the extraction cache",
}

var cacheGCCmd = &cobra.Command{
	Use:   "gc",
	Short: "Prune old extraction cache entries",
	RunE:  runCacheGC,
}

func init() {
	cacheGCCmd.Flags().IntVar(&cacheGCMaxAgeDays, "max-age-days", 0, "Prune entries older than this (default from config)")
	cacheCmd.AddCommand(cacheGCCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheGC(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	maxAgeDays := cacheGCMaxAgeDays
	if maxAgeDays <= 0 {
		maxAgeDays = cfg.Cache.MaxAgeDays
	}

	store, err := cache.Open(cachePath(cfg), logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	removed, err := store.GC(time.Duration(maxAgeDays) * 24 * time.Hour)
	if err != nil {
		return err
	}
	remaining, err := store.Len()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d entries, %d remaining\n", removed, remaining)
	return nil
}
