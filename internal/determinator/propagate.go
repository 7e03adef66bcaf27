package determinator

import (
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"affected/internal/labels"
	"affected/internal/snapshot"
)

// Propagate expands the direct changes through the diff snapshot's
// reverse-dependency graph. Every reachable target gets the minimal number
// of reverse edges between it and a direct change; targets already in the
// depth-0 set keep their classification reason, everything reached later is
// transitive.
//
// Removed targets appear in the result at depth 0 but are never used as
// propagation seeds: they have no node in the diff graph, so nothing can
// depend on them there.
//
// maxDepth bounds the result: levels above it are cut. A negative maxDepth
// means unlimited. workers caps the goroutines used per frontier; zero or
// negative picks GOMAXPROCS.
func Propagate(diff *snapshot.Snapshot, direct []DirectChange, maxDepth, workers int) []Impacted {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	seen := make(map[labels.Label]bool, len(direct)*2)
	out := make([]Impacted, 0, len(direct))

	var frontier []*snapshot.Target
	for _, d := range direct {
		seen[d.Label()] = true
		out = append(out, Impacted{Target: d.Target, Depth: 0, Reason: d.Reason, Removed: d.Removed})
		if !d.Removed {
			frontier = append(frontier, d.Target)
		}
	}

	rdeps := diff.ReverseDeps()

	depth := 0
	for len(frontier) > 0 {
		depth++
		if maxDepth >= 0 && depth > maxDepth {
			break
		}

		next := expandFrontier(rdeps, frontier, workers)

		frontier = frontier[:0]
		for _, t := range next {
			if seen[t.Label()] {
				continue
			}
			seen[t.Label()] = true
			out = append(out, Impacted{Target: t, Depth: depth, Reason: ReasonTransitive})
			frontier = append(frontier, t)
		}
	}

	Sort(out)
	return out
}

// expandFrontier collects the dependents of every frontier target. The
// lookup per target is independent, so the frontier is chunked across
// workers; candidates may repeat across chunks and are deduplicated by the
// caller's seen map. Merge order does not affect results: level-synchronous
// expansion gives every target the same minimal depth no matter which chunk
// reaches it.
func expandFrontier(rdeps map[labels.Label][]*snapshot.Target, frontier []*snapshot.Target, workers int) []*snapshot.Target {
	if len(frontier) < 2*workers || workers == 1 {
		var next []*snapshot.Target
		for _, t := range frontier {
			next = append(next, rdeps[t.Label()]...)
		}
		return next
	}

	chunk := (len(frontier) + workers - 1) / workers
	var mu sync.Mutex
	var next []*snapshot.Target

	var g errgroup.Group
	for start := 0; start < len(frontier); start += chunk {
		end := start + chunk
		if end > len(frontier) {
			end = len(frontier)
		}
		part := frontier[start:end]
		g.Go(func() error {
			var local []*snapshot.Target
			for _, t := range part {
				local = append(local, rdeps[t.Label()]...)
			}
			mu.Lock()
			next = append(next, local...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers never return errors
	return next
}

// Sort orders impacted targets by depth, then label. This is the one
// canonical order of the tool: two runs over the same inputs produce
// byte-identical output.
func Sort(res []Impacted) {
	sort.Slice(res, func(i, j int) bool {
		if res[i].Depth != res[j].Depth {
			return res[i].Depth < res[j].Depth
		}
		return res[i].Target.Label() < res[j].Target.Label()
	})
}
