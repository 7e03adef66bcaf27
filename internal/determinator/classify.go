package determinator

import (
	"sort"

	"affected/internal/changes"
	"affected/internal/labels"
	"affected/internal/snapshot"
)

// DirectChanges computes the depth-0 set: every target whose own definition
// differs between the snapshots or whose declared inputs intersect the
// changed-file set. The result is sorted by label so downstream consumers
// see a stable order regardless of stream order.
//
// Classification runs per target against the diff snapshot first, then
// sweeps the base snapshot for removals. A package that errors in both
// snapshots contributes nothing even when the two messages differ: an
// already-broken package that stays broken is not a new change.
func DirectChanges(base, diff *snapshot.Snapshot, changed *changes.Set) []DirectChange {
	var out []DirectChange

	for _, t := range diff.Targets() {
		if r, ok := classifyDiffTarget(base, t, changed); ok {
			out = append(out, DirectChange{Target: t, Reason: r})
		}
	}

	for _, t := range base.Targets() {
		if diff.Contains(t.Label()) {
			continue
		}
		reason := ReasonRemoved
		if _, errored := diff.PackageError(t.Package); errored {
			// The whole package stopped evaluating; its targets are gone
			// because of the error, not an intentional deletion.
			reason = ReasonErrorTransition
		}
		out = append(out, DirectChange{Target: t, Reason: reason, Removed: true})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Label() < out[j].Label()
	})
	return out
}

// classifyDiffTarget decides whether one diff-snapshot target is directly
// changed, and why. Reasons are checked from most to least specific; the
// first match wins.
func classifyDiffTarget(base *snapshot.Snapshot, t *snapshot.Target, changed *changes.Set) (Reason, bool) {
	old, existed := base.Target(t.Label())

	if !existed {
		if _, errored := base.PackageError(t.Package); errored {
			// The package was broken before and evaluates now; every one of
			// its targets surfaces, since nothing is known about its prior
			// shape.
			return ReasonErrorTransition, true
		}
		return ReasonAdded, true
	}

	if changed.ContainsPackage(t.Package) {
		return ReasonPackage, true
	}
	if old.Hash != t.Hash || !sameDeps(old.Deps, t.Deps) {
		return ReasonAttributes, true
	}
	for _, in := range t.Inputs {
		if changed.Contains(in) {
			return ReasonInputs, true
		}
	}
	return "", false
}

// sameDeps compares dependency lists as sets. Extraction tools do not
// guarantee a stable attribute order across runs, so a reordering alone is
// not a change.
func sameDeps(a, b []labels.Label) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	seen := make(map[labels.Label]int, len(a))
	for _, d := range a {
		seen[d]++
	}
	for _, d := range b {
		seen[d]--
		if seen[d] < 0 {
			return false
		}
	}
	return true
}
