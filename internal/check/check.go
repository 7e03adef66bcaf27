// Package check validates a snapshot pair before impact computation runs.
// Validation separates the fatal conditions (packages that broke in the
// diff) from the advisory ones (pre-existing breakage the change touches,
// dangling edges), so the command layer can decide what stops a run.
package check

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"affected/internal/changes"
	"affected/internal/errors"
	"affected/internal/labels"
	"affected/internal/logging"
	"affected/internal/snapshot"
)

// Kind classifies one validation finding.
type Kind string

const (
	// KindPackageFailed marks a package healthy in base and erroring in
	// diff: the change broke it.
	KindPackageFailed Kind = "package-failed"
	// KindPreexistingFailure marks a package erroring in both snapshots
	// whose directory the change touches.
	KindPreexistingFailure Kind = "preexisting-failure"
	// KindDanglingEdge marks a dependency label that resolves to no target
	// in the diff snapshot.
	KindDanglingEdge Kind = "dangling-edge"
)

// Finding is one validation result.
type Finding struct {
	Kind    Kind           `json:"kind"`
	Package labels.Package `json:"package,omitempty"`
	// Source is the target declaring a dangling edge.
	Source labels.Label `json:"source,omitempty"`
	// Dep is the unresolvable dependency label.
	Dep     labels.Label `json:"dep,omitempty"`
	Message string       `json:"message,omitempty"`
}

// Errors compares package error states across the snapshot pair.
//
// Newly erroring packages are returned as findings; callers treat them as
// fatal unless told otherwise. Packages erroring in both snapshots are only
// logged: even when the two messages differ, a package that was broken and
// stays broken is not this change's fault. Pre-existing failures the change
// touches come back as advisory findings so CI can warn the author they are
// editing inside a broken package; a changed file counts as touching the
// nearest enclosing erroring package, not just a literal directory entry.
func Errors(base, diff *snapshot.Snapshot, changed *changes.Set, log *logging.Logger) []Finding {
	var out []Finding
	preexisting := make(map[labels.Package]string)

	for _, e := range diff.Errors() {
		baseMsg, baseErrored := base.PackageError(e.Package)
		if !baseErrored {
			out = append(out, Finding{
				Kind:    KindPackageFailed,
				Package: e.Package,
				Message: e.Message,
			})
			continue
		}
		if baseMsg != e.Message {
			log.Warn("package error message changed but package was already broken", map[string]interface{}{
				"package": string(e.Package),
			})
		}
		preexisting[e.Package] = e.Message
	}

	touched := make(map[labels.Package]bool)
	for _, p := range changed.Paths() {
		if pkg, ok := nearestErrorPackage(p, preexisting); ok {
			touched[pkg] = true
		}
	}
	for pkg := range touched {
		out = append(out, Finding{
			Kind:    KindPreexistingFailure,
			Package: pkg,
			Message: preexisting[pkg],
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Package < out[j].Package })
	return out
}

// nearestErrorPackage resolves a changed path to the closest enclosing
// package that is in error state. The path itself is tried first (a listed
// directory may be the package), then each parent directory up to the cell
// root.
func nearestErrorPackage(p labels.CellPath, errored map[labels.Package]string) (labels.Package, bool) {
	s := string(p)
	i := strings.Index(s, "//")
	if i < 0 {
		return "", false
	}
	for {
		if _, ok := errored[labels.Package(s)]; ok {
			return labels.Package(s), true
		}
		j := strings.LastIndexByte(s, '/')
		if j <= i+1 {
			break
		}
		s = s[:j]
	}
	// Cell-root package, e.g. `cell//`
	root := labels.Package(s[:i+2])
	if _, ok := errored[root]; ok {
		return root, true
	}
	return "", false
}

// Dangling scans every dependency edge of the diff snapshot and reports
// those that resolve to no target. Packages in error state are skipped as
// resolution roots; their targets are not in the index to begin with.
func Dangling(diff *snapshot.Snapshot) []Finding {
	var out []Finding
	for _, t := range diff.Targets() {
		for _, d := range t.Deps {
			if diff.Contains(d) {
				continue
			}
			if _, errored := diff.PackageError(d.Package()); errored {
				// The dep's package failed to evaluate; the package-failed
				// finding already covers it.
				continue
			}
			out = append(out, Finding{
				Kind:   KindDanglingEdge,
				Source: t.Label(),
				Dep:    d,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Dep < out[j].Dep
	})
	return out
}

// Fatal returns the subset of findings that should stop a run.
func Fatal(findings []Finding) []Finding {
	var out []Finding
	for _, f := range findings {
		if f.Kind == KindPackageFailed {
			out = append(out, f)
		}
	}
	return out
}

// AsError folds fatal findings into a single error, or nil if none.
func AsError(findings []Finding) error {
	fatal := Fatal(findings)
	if len(fatal) == 0 {
		return nil
	}
	return errors.New(errors.NewGraphErrors, "%d package(s) broke in this change, first: %s: %s",
		len(fatal), fatal[0].Package, fatal[0].Message)
}

// DumpErrors writes every diff-snapshot package error to w as JSON lines,
// sorted by package. CI attaches the dump to the run so broken packages are
// visible without re-running extraction.
func DumpErrors(w io.Writer, diff *snapshot.Snapshot) error {
	errs := diff.Errors()
	sort.Slice(errs, func(i, j int) bool { return errs[i].Package < errs[j].Package })

	enc := json.NewEncoder(w)
	for _, e := range errs {
		if err := enc.Encode(e); err != nil {
			return errors.Wrap(errors.IOError, err, "writing error dump")
		}
	}
	return nil
}

// Describe renders a finding for human-readable logs.
func Describe(f Finding) string {
	switch f.Kind {
	case KindDanglingEdge:
		return fmt.Sprintf("%s depends on %s which does not exist", f.Source, f.Dep)
	case KindPreexistingFailure:
		return fmt.Sprintf("package %s was already broken and this change touches it: %s", f.Package, f.Message)
	default:
		return fmt.Sprintf("package %s failed to evaluate: %s", f.Package, f.Message)
	}
}
