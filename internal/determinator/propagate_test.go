package determinator

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
)

// chain: leaf <- mid <- top, plus a bystander with no path to leaf.
const chainStream = `{"package":"root//lib","targets":[{"name":"leaf","hash":"h"}]}
{"package":"root//mid","targets":[{"name":"mid","hash":"h","deps":["root//lib:leaf"]}]}
{"package":"root//top","targets":[{"name":"top","hash":"h","deps":["root//mid:mid"]}]}
{"package":"root//other","targets":[{"name":"bystander","hash":"h"}]}
`

func depths(res []Impacted) map[string]int {
	m := make(map[string]int, len(res))
	for _, r := range res {
		m[string(r.Target.Label())] = r.Depth
	}
	return m
}

func TestPropagateChain(t *testing.T) {
	base := mustSnapshot(t, chainStream)
	diff := mustSnapshot(t, `{"package":"root//lib","targets":[{"name":"leaf","hash":"h2"}]}
{"package":"root//mid","targets":[{"name":"mid","hash":"h","deps":["root//lib:leaf"]}]}
{"package":"root//top","targets":[{"name":"top","hash":"h","deps":["root//mid:mid"]}]}
{"package":"root//other","targets":[{"name":"bystander","hash":"h"}]}
`)

	direct := DirectChanges(base, diff, mustChanges(t, ""))
	res := Propagate(diff, direct, -1, 1)

	want := map[string]int{
		"root//lib:leaf": 0,
		"root//mid:mid":  1,
		"root//top:top":  2,
	}
	if got := depths(res); !reflect.DeepEqual(got, want) {
		t.Errorf("depths = %v, want %v", got, want)
	}
	for _, r := range res {
		if r.Depth > 0 && r.Reason != ReasonTransitive {
			t.Errorf("%s at depth %d has reason %s", r.Target.Label(), r.Depth, r.Reason)
		}
	}
}

func TestPropagateMinimalDepth(t *testing.T) {
	// top depends on leaf both directly and through mid; the direct edge wins.
	diff := mustSnapshot(t, `{"package":"root//lib","targets":[{"name":"leaf","hash":"h2"}]}
{"package":"root//mid","targets":[{"name":"mid","hash":"h","deps":["root//lib:leaf"]}]}
{"package":"root//top","targets":[{"name":"top","hash":"h","deps":["root//mid:mid","root//lib:leaf"]}]}
`)
	base := mustSnapshot(t, `{"package":"root//lib","targets":[{"name":"leaf","hash":"h"}]}
{"package":"root//mid","targets":[{"name":"mid","hash":"h","deps":["root//lib:leaf"]}]}
{"package":"root//top","targets":[{"name":"top","hash":"h","deps":["root//mid:mid","root//lib:leaf"]}]}
`)

	direct := DirectChanges(base, diff, mustChanges(t, ""))
	got := depths(Propagate(diff, direct, -1, 0))
	if got["root//top:top"] != 1 {
		t.Errorf("top at depth %d, want minimal depth 1", got["root//top:top"])
	}
}

func TestPropagateDepthBound(t *testing.T) {
	base := mustSnapshot(t, chainStream)
	diff := mustSnapshot(t, `{"package":"root//lib","targets":[{"name":"leaf","hash":"h2"}]}
{"package":"root//mid","targets":[{"name":"mid","hash":"h","deps":["root//lib:leaf"]}]}
{"package":"root//top","targets":[{"name":"top","hash":"h","deps":["root//mid:mid"]}]}
{"package":"root//other","targets":[{"name":"bystander","hash":"h"}]}
`)
	direct := DirectChanges(base, diff, mustChanges(t, ""))

	tests := []struct {
		maxDepth int
		want     int
	}{
		{0, 1},  // only the direct change
		{1, 2},  // plus its dependents
		{2, 3},  // whole chain
		{9, 3},  // bound past the frontier is a no-op
		{-1, 3}, // unlimited
	}
	for _, tt := range tests {
		if got := len(Propagate(diff, direct, tt.maxDepth, 1)); got != tt.want {
			t.Errorf("maxDepth %d: %d results, want %d", tt.maxDepth, got, tt.want)
		}
	}
}

func TestPropagateRemovedDoesNotSeed(t *testing.T) {
	// gone exists only in base; dangler still references it in diff.
	base := mustSnapshot(t, `{"package":"root//lib","targets":[{"name":"gone","hash":"h"}]}
{"package":"root//app","targets":[{"name":"dangler","hash":"h","deps":["root//lib:gone"]}]}
`)
	diff := mustSnapshot(t, `{"package":"root//lib","targets":[]}
{"package":"root//app","targets":[{"name":"dangler","hash":"h","deps":["root//lib:gone"]}]}
`)

	direct := DirectChanges(base, diff, mustChanges(t, ""))
	got := depths(Propagate(diff, direct, -1, 1))

	if d, ok := got["root//lib:gone"]; !ok || d != 0 {
		t.Errorf("removed target depth = %d (present %v), want 0", d, ok)
	}
	if _, ok := got["root//app:dangler"]; ok {
		t.Error("removed target propagated impact through a stale edge")
	}
}

func TestPropagateCycleTerminates(t *testing.T) {
	base := mustSnapshot(t, `{"package":"root//a","targets":[{"name":"x","hash":"h","deps":["root//b:y"]}]}
{"package":"root//b","targets":[{"name":"y","hash":"h","deps":["root//a:x"]}]}
`)
	diff := mustSnapshot(t, `{"package":"root//a","targets":[{"name":"x","hash":"h2","deps":["root//b:y"]}]}
{"package":"root//b","targets":[{"name":"y","hash":"h","deps":["root//a:x"]}]}
`)

	direct := DirectChanges(base, diff, mustChanges(t, ""))
	got := depths(Propagate(diff, direct, -1, 1))

	want := map[string]int{"root//a:x": 0, "root//b:y": 1}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("depths = %v, want %v", got, want)
	}
}

func TestPropagateDeterministicAcrossWorkerCounts(t *testing.T) {
	// Wide fan-out so the parallel path actually engages.
	var b strings.Builder
	b.WriteString(`{"package":"root//lib","targets":[{"name":"core","hash":"CORE"}]}` + "\n")
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&b, `{"package":"root//app%02d","targets":[{"name":"t","hash":"h","deps":["root//lib:core"]}]}`+"\n", i)
	}
	stream := b.String()

	base := mustSnapshot(t, strings.Replace(stream, "CORE", "h1", 1))
	diff := mustSnapshot(t, strings.Replace(stream, "CORE", "h2", 1))
	direct := DirectChanges(base, diff, mustChanges(t, ""))

	var runs [][]string
	for _, workers := range []int{1, 4, 16} {
		res := Propagate(diff, direct, -1, workers)
		labels := make([]string, len(res))
		for i, r := range res {
			labels[i] = string(r.Target.Label())
		}
		runs = append(runs, labels)
	}
	if !reflect.DeepEqual(runs[0], runs[1]) || !reflect.DeepEqual(runs[1], runs[2]) {
		t.Error("result order varies with worker count")
	}
}

func TestPropagateOutputSorted(t *testing.T) {
	base := mustSnapshot(t, chainStream)
	diff := mustSnapshot(t, `{"package":"root//lib","targets":[{"name":"leaf","hash":"h2"}]}
{"package":"root//mid","targets":[{"name":"mid","hash":"h2","deps":["root//lib:leaf"]}]}
{"package":"root//top","targets":[{"name":"top","hash":"h","deps":["root//mid:mid"]}]}
{"package":"root//other","targets":[{"name":"bystander","hash":"h2"}]}
`)

	direct := DirectChanges(base, diff, mustChanges(t, ""))
	res := Propagate(diff, direct, -1, 1)

	for i := 1; i < len(res); i++ {
		prev, cur := res[i-1], res[i]
		if prev.Depth > cur.Depth {
			t.Fatalf("depth order broken at %d: %d after %d", i, cur.Depth, prev.Depth)
		}
		if prev.Depth == cur.Depth && prev.Target.Label() >= cur.Target.Label() {
			t.Fatalf("label order broken at %d: %s after %s", i, cur.Target.Label(), prev.Target.Label())
		}
	}
}
