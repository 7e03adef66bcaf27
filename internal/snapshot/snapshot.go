// Package snapshot builds the in-memory index of one build-graph snapshot.
// A snapshot stream is a sequence of per-package records, each carrying
// either the package's target definitions or its evaluation error. Two
// snapshots exist per run (base and diff); once built they are read-only.
package snapshot

import (
	"affected/internal/labels"
)

// Target is one buildable unit as reported by the extraction tool.
// Targets are immutable once loaded into a snapshot.
type Target struct {
	Name   string            `json:"name"`
	Type   string            `json:"type,omitempty"`
	Deps   []labels.Label    `json:"deps,omitempty"`
	Inputs []labels.CellPath `json:"inputs,omitempty"`
	// Hash is an opaque fingerprint of the target's attributes, sufficient
	// to detect changes between snapshots without deep comparison.
	Hash   string   `json:"hash,omitempty"`
	Labels []string `json:"labels,omitempty"`

	// Package is filled in from the owning record during indexing.
	Package labels.Package `json:"-"`
}

// Label returns the target's fully qualified label.
func (t *Target) Label() labels.Label {
	return labels.New(t.Package, t.Name)
}

// PackageError records a package that failed to evaluate. The failure is
// data, not a fatal condition: the rest of the graph is still indexed.
type PackageError struct {
	Package labels.Package `json:"package"`
	Message string         `json:"error"`
}

// Snapshot is the queryable index over one snapshot stream.
type Snapshot struct {
	byLabel  map[labels.Label]*Target
	targets  []*Target // stream order, for deterministic iteration
	errors   map[labels.Package]string
	packages map[labels.Package]bool // every package seen, healthy or not
	numEdges int
}

func newSnapshot() *Snapshot {
	return &Snapshot{
		byLabel:  make(map[labels.Label]*Target),
		errors:   make(map[labels.Package]string),
		packages: make(map[labels.Package]bool),
	}
}

// Target looks up a target record by label.
func (s *Snapshot) Target(l labels.Label) (*Target, bool) {
	t, ok := s.byLabel[l]
	return t, ok
}

// Contains reports whether the label exists in this snapshot.
func (s *Snapshot) Contains(l labels.Label) bool {
	_, ok := s.byLabel[l]
	return ok
}

// Targets returns all targets in stream order. Callers must not mutate.
func (s *Snapshot) Targets() []*Target {
	return s.targets
}

// PackageError returns the evaluation error for a package, if any.
func (s *Snapshot) PackageError(pkg labels.Package) (string, bool) {
	msg, ok := s.errors[pkg]
	return msg, ok
}

// Errors returns all package errors as records. Order is unspecified;
// callers that serialize must sort.
func (s *Snapshot) Errors() []PackageError {
	res := make([]PackageError, 0, len(s.errors))
	for pkg, msg := range s.errors {
		res = append(res, PackageError{Package: pkg, Message: msg})
	}
	return res
}

// NumTargets returns the number of targets in the snapshot.
func (s *Snapshot) NumTargets() int { return len(s.targets) }

// NumEdges returns the number of declared dependency edges.
func (s *Snapshot) NumEdges() int { return s.numEdges }

// NumErrors returns the number of packages in error state.
func (s *Snapshot) NumErrors() int { return len(s.errors) }

// ReverseDeps builds the inverted dependency index of the snapshot:
// dependency label to the targets that declare it. Labels that do not
// resolve within the snapshot still appear as keys; they simply have no
// record and propagate nothing further.
func (s *Snapshot) ReverseDeps() map[labels.Label][]*Target {
	rdeps := make(map[labels.Label][]*Target, len(s.byLabel))
	for _, t := range s.targets {
		for _, d := range t.Deps {
			rdeps[d] = append(rdeps[d], t)
		}
	}
	return rdeps
}
