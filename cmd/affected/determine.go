package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"affected/internal/cache"
	"affected/internal/cells"
	"affected/internal/changes"
	"affected/internal/check"
	"affected/internal/config"
	"affected/internal/determinator"
	"affected/internal/errors"
	"affected/internal/extract"
	"affected/internal/labels"
	"affected/internal/logging"
	"affected/internal/output"
	"affected/internal/scope"
	"affected/internal/snapshot"
)

var (
	determineBase       string
	determineDiff       string
	determineChanges    string
	determineScope      string
	determineDepth      int
	determineFormat     string
	determineWorkers    int
	determineDryRun     bool
	determineCheckEdges bool
	determineErrorsFile string
	determineUseCache   bool
	determineCacheKey   string
	determineGraphSize  bool
)

var determineCmd = &cobra.Command{
	Use:   "determine [PATTERN...]",
	Short: "Determine which targets a change impacts",
	Long: `Compares the base and diff build-graph snapshots, classifies directly
changed targets from the changed-file list, and propagates impact through
reverse dependencies. Optional PATTERN arguments narrow the reported
universe, e.g. 'cell//dir/...' or 'cell//dir:'.

When --diff is omitted the diff snapshot is produced by running the
configured extraction command against the working tree. --dry-run prints
that command instead of running it; with --diff supplied there is nothing
to extract and the full determination runs.`,
	RunE: runDetermine,
}

func init() {
	determineCmd.Flags().StringVar(&determineBase, "base", "", "Base snapshot file (required; .zst accepted)")
	determineCmd.Flags().StringVar(&determineDiff, "diff", "", "Diff snapshot file; omit to extract the working tree")
	determineCmd.Flags().StringVar(&determineChanges, "changes", "", "Changed-file list (required)")
	determineCmd.Flags().StringVar(&determineScope, "scope", "", "Scope file with universe patterns")
	determineCmd.Flags().IntVar(&determineDepth, "depth", -2, "Maximum propagation depth, -1 for unlimited (default from config)")
	determineCmd.Flags().StringVar(&determineFormat, "format", "", "Output format: text, json or json-lines (default from config)")
	determineCmd.Flags().IntVar(&determineWorkers, "workers", 0, "Worker goroutines, 0 for GOMAXPROCS (default from config)")
	determineCmd.Flags().BoolVar(&determineDryRun, "dry-run", false, "Print the extraction command instead of running it")
	determineCmd.Flags().BoolVar(&determineCheckEdges, "check-dangling", false, "Fail when the diff snapshot has dangling dependency edges")
	determineCmd.Flags().StringVar(&determineErrorsFile, "write-errors-to-file", "", "Write all diff-snapshot package errors to this file as JSON lines")
	determineCmd.Flags().BoolVar(&determineUseCache, "cache", false, "Cache extraction output keyed by --cache-key")
	determineCmd.Flags().StringVar(&determineCacheKey, "cache-key", "", "Cache key for the extracted diff snapshot, e.g. the commit hash")
	determineCmd.Flags().BoolVar(&determineGraphSize, "graph-size", false, "Log snapshot sizes alongside the summary")
	_ = determineCmd.MarkFlagRequired("base")
	_ = determineCmd.MarkFlagRequired("changes")
	rootCmd.AddCommand(determineCmd)
}

func runDetermine(cmd *cobra.Command, args []string) error {
	start := time.Now()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg).With(map[string]interface{}{
		"run_id": uuid.NewString(),
	})

	universe, err := buildUniverse(args, determineScope)
	if err != nil {
		return errors.Wrap(errors.ConfigInvalid, err, "invalid universe")
	}

	mapping, err := cells.LoadOrDefault(cfg.RepoRoot)
	if err != nil {
		return errors.Wrap(errors.ConfigInvalid, err, "loading cell mapping")
	}

	changed, err := changes.Load(determineChanges, mapping)
	if err != nil {
		return err
	}

	// Resolve defaults from config for flags the user left unset
	depth := determineDepth
	if depth == -2 {
		depth = cfg.Determine.Depth
	}
	format := determineFormat
	if format == "" {
		format = cfg.Determine.Format
	}
	workers := determineWorkers
	if workers == 0 {
		workers = cfg.Determine.Workers
	}

	if determineDryRun {
		if determineDiff == "" {
			argv, err := extractionCommandLine(cfg, universe, logger)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(argv, " "))
			return nil
		}
		logger.Warn("--dry-run has no extraction to print when --diff is supplied, running determination", nil)
	}

	base, diff, err := loadSnapshots(cmd, cfg, universe, logger)
	if err != nil {
		return err
	}

	findings := check.Errors(base, diff, changed, logger)
	if determineErrorsFile != "" {
		// Collect instead of abort: CI attaches the dump and decides itself
		if err := writeErrorsFile(determineErrorsFile, diff); err != nil {
			return err
		}
		for _, f := range findings {
			logger.Warn(check.Describe(f), nil)
		}
	} else {
		for _, f := range check.Fatal(findings) {
			logger.Error(check.Describe(f), nil)
		}
		if err := check.AsError(findings); err != nil {
			return err
		}
		for _, f := range findings {
			logger.Warn(check.Describe(f), nil)
		}
	}

	if determineCheckEdges {
		dangling := check.Dangling(diff)
		for _, f := range dangling {
			logger.Error(check.Describe(f), nil)
		}
		if len(dangling) > 0 {
			return errors.New(errors.DanglingEdges, "%d dangling dependency edge(s) in the diff snapshot", len(dangling))
		}
	}

	direct := determinator.DirectChanges(base, diff, changed)
	impacted := determinator.Propagate(diff, direct, depth, workers)
	impacted = filterUniverse(impacted, universe)

	if err := output.Write(cmd.OutOrStdout(), format, output.FromImpacted(impacted)); err != nil {
		return err
	}

	logSummary(logger, base, diff, impacted, time.Since(start))
	return nil
}

// buildUniverse merges pattern arguments with the scope file's universe.
func buildUniverse(args []string, scopePath string) ([]labels.Pattern, error) {
	patterns, err := scope.ParseUniverse(args)
	if err != nil {
		return nil, err
	}
	if scopePath != "" {
		sc, err := scope.Load(scopePath)
		if err != nil {
			return nil, err
		}
		fromScope, err := sc.Patterns()
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, fromScope...)
	}
	return patterns, nil
}

func extractionCommandLine(cfg *config.Config, universe []labels.Pattern, logger *logging.Logger) ([]string, error) {
	ex, err := newExtractor(cfg, logger)
	if err != nil {
		return nil, err
	}
	return ex.CommandLine(patternStrings(universe)), nil
}

func newExtractor(cfg *config.Config, logger *logging.Logger) (*extract.Extractor, error) {
	return extract.New(cfg.Extract.Command, time.Duration(cfg.Extract.TimeoutMs)*time.Millisecond, logger)
}

func patternStrings(universe []labels.Pattern) []string {
	out := make([]string, len(universe))
	for i, p := range universe {
		out[i] = p.String()
	}
	return out
}

// loadSnapshots loads base from its file and diff from either its file or a
// live extraction, the latter optionally through the cache.
func loadSnapshots(cmd *cobra.Command, cfg *config.Config, universe []labels.Pattern, logger *logging.Logger) (*snapshot.Snapshot, *snapshot.Snapshot, error) {
	loadBase := func() (*snapshot.Snapshot, error) { return snapshot.Load(determineBase) }

	var loadDiff func() (*snapshot.Snapshot, error)
	if determineDiff != "" {
		loadDiff = func() (*snapshot.Snapshot, error) { return snapshot.Load(determineDiff) }
	} else {
		loadDiff = func() (*snapshot.Snapshot, error) {
			stream, err := extractDiff(cmd, cfg, universe, logger)
			if err != nil {
				return nil, err
			}
			return snapshot.Read(bytes.NewReader(stream))
		}
	}

	return snapshot.LoadPair(cmd.Context(), loadBase, loadDiff)
}

func extractDiff(cmd *cobra.Command, cfg *config.Config, universe []labels.Pattern, logger *logging.Logger) ([]byte, error) {
	useCache := determineUseCache || cfg.Cache.Enabled
	var store *cache.Cache
	if useCache && determineCacheKey != "" {
		var err error
		store, err = cache.Open(cachePath(cfg), logger)
		if err != nil {
			return nil, err
		}
		defer func() { _ = store.Close() }()

		if data, ok, err := store.Get(determineCacheKey); err != nil {
			return nil, err
		} else if ok {
			logger.Info("extraction cache hit", map[string]interface{}{
				"key": determineCacheKey,
			})
			return data, nil
		}
	}

	ex, err := newExtractor(cfg, logger)
	if err != nil {
		return nil, err
	}
	stream, err := ex.Run(cmd.Context(), patternStrings(universe))
	if err != nil {
		return nil, err
	}

	if store != nil {
		if err := store.Put(determineCacheKey, stream); err != nil {
			// A failed cache write costs a future hit, not this run
			logger.Warn("extraction cache write failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	return stream, nil
}

func writeErrorsFile(path string, diff *snapshot.Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(errors.IOError, err, "creating error dump %s", path)
	}
	defer func() { _ = f.Close() }()
	return check.DumpErrors(f, diff)
}

// filterUniverse drops impacted targets outside the requested universe. An
// empty universe keeps everything.
func filterUniverse(impacted []determinator.Impacted, universe []labels.Pattern) []determinator.Impacted {
	if len(universe) == 0 {
		return impacted
	}
	out := impacted[:0]
	for _, r := range impacted {
		if labels.AnyMatch(universe, r.Target.Label()) {
			out = append(out, r)
		}
	}
	return out
}

func logSummary(logger *logging.Logger, base, diff *snapshot.Snapshot, impacted []determinator.Impacted, elapsed time.Duration) {
	byReason := make(map[string]interface{})
	maxDepth := 0
	for _, r := range impacted {
		key := "reason_" + string(r.Reason)
		if n, ok := byReason[key].(int); ok {
			byReason[key] = n + 1
		} else {
			byReason[key] = 1
		}
		if r.Depth > maxDepth {
			maxDepth = r.Depth
		}
	}

	fields := map[string]interface{}{
		"impacted":    len(impacted),
		"max_depth":   maxDepth,
		"duration_ms": elapsed.Milliseconds(),
	}
	for k, v := range byReason {
		fields[k] = v
	}
	if determineGraphSize {
		fields["base_targets"] = base.NumTargets()
		fields["base_edges"] = base.NumEdges()
		fields["diff_targets"] = diff.NumTargets()
		fields["diff_edges"] = diff.NumEdges()
		fields["diff_errors"] = diff.NumErrors()
	}
	logger.Info("determination finished", fields)
}

func cachePath(cfg *config.Config) string {
	if filepath.IsAbs(cfg.Cache.Path) {
		return cfg.Cache.Path
	}
	return filepath.Join(cfg.RepoRoot, cfg.Cache.Path)
}
