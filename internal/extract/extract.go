// Package extract runs the external graph-extraction command and captures
// its snapshot stream. The tool itself never evaluates build files; it
// shells out to whatever the repository configures (buck2 by default) and
// treats stdout as the stream.
package extract

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"affected/internal/errors"
	"affected/internal/logging"
)

// Extractor runs the configured extraction command.
type Extractor struct {
	command []string
	timeout time.Duration
	logger  *logging.Logger
}

// New builds an Extractor. command is the base argv; target patterns are
// appended per run. timeout of zero means no limit.
func New(command []string, timeout time.Duration, logger *logging.Logger) (*Extractor, error) {
	if len(command) == 0 {
		return nil, errors.New(errors.ConfigInvalid, "extraction command is empty")
	}
	return &Extractor{command: command, timeout: timeout, logger: logger}, nil
}

// CommandLine returns the full argv for the given patterns, for dry runs
// and logging.
func (e *Extractor) CommandLine(patterns []string) []string {
	argv := make([]string, 0, len(e.command)+len(patterns))
	argv = append(argv, e.command...)
	if len(patterns) == 0 {
		// With no universe narrowing, extract everything
		argv = append(argv, "//...")
		return argv
	}
	return append(argv, patterns...)
}

// Run executes the extraction command and returns its stdout, the snapshot
// stream. Stderr is captured and folded into the error on failure; on
// success it is logged at debug level since some tools chat on stderr even
// when healthy.
func (e *Extractor) Run(ctx context.Context, patterns []string) ([]byte, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	argv := e.CommandLine(patterns)
	e.logger.Info("running extraction", map[string]interface{}{
		"command": strings.Join(argv, " "),
	})
	start := time.Now()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, errors.Wrap(errors.ExtractionFailed, err, "extraction command failed: %s", truncate(msg, 2000))
	}

	e.logger.Info("extraction finished", map[string]interface{}{
		"duration_ms": time.Since(start).Milliseconds(),
		"bytes":       stdout.Len(),
	})
	if stderr.Len() > 0 {
		e.logger.Debug("extraction stderr", map[string]interface{}{
			"stderr": truncate(stderr.String(), 2000),
		})
	}
	return stdout.Bytes(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
