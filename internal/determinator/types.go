// Package determinator computes which targets a change impacts: it
// classifies the directly changed targets by comparing the base and diff
// snapshots against the changed-file set, then propagates impact outward
// through the reverse-dependency graph of the diff snapshot, assigning each
// reached target its minimal depth.
package determinator

import (
	"affected/internal/labels"
	"affected/internal/snapshot"
)

// Reason records why a target is in the result set.
type Reason string

const (
	// ReasonAdded marks a target present only in the diff snapshot.
	ReasonAdded Reason = "added"
	// ReasonRemoved marks a target present only in the base snapshot.
	// Removed targets are reported at depth 0 but propagate nothing:
	// they have no edges in the diff graph.
	ReasonRemoved Reason = "removed"
	// ReasonAttributes marks a fingerprint or dependency-set change.
	ReasonAttributes Reason = "attributes"
	// ReasonInputs marks a target with a declared input file in the
	// changed set.
	ReasonInputs Reason = "inputs"
	// ReasonPackage marks a target whose package directory itself is in
	// the changed set.
	ReasonPackage Reason = "package"
	// ReasonErrorTransition marks a target whose package flipped between
	// healthy and error state.
	ReasonErrorTransition Reason = "error-transition"
	// ReasonTransitive marks a target reached by propagation only.
	ReasonTransitive Reason = "transitive"
)

// DirectChange is one entry of the depth-0 set.
type DirectChange struct {
	// Target is the diff-state record, or the base-state record when
	// Removed is set.
	Target *snapshot.Target
	Reason Reason
	// Removed targets exist only in the base snapshot.
	Removed bool
}

// Label returns the changed target's label.
func (d DirectChange) Label() labels.Label { return d.Target.Label() }

// Impacted is one entry of the final result: a target, its minimal
// reverse-dependency distance from the direct changes, and its reason.
type Impacted struct {
	Target *snapshot.Target
	Depth  int
	Reason Reason
	// Removed carries through from the depth-0 classification.
	Removed bool
}
