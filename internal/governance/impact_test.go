package governance

import (
	"fmt"
	"reflect"
	"testing"

	"organvm/internal/registry"
	"organvm/internal/seed"
)

func seedGraph(t *testing.T, docs ...string) *seed.Graph {
	t.Helper()
	var in []seed.Document
	for i, d := range docs {
		in = append(in, seed.Document{Path: fmt.Sprintf("doc-%d", i), Content: []byte(d)})
	}
	g := seed.BuildGraph(in)
	if len(g.Errors) != 0 {
		t.Fatalf("seed errors: %v", g.Errors)
	}
	return g
}

func TestCalculateImpact_Diamond(t *testing.T) {
	snap := registry.Snapshot{
		unit("o/a"),
		unit("o/c", "o/a"),
		unit("o/d", "o/a"),
	}

	got := CalculateImpact("a", snap, nil)
	if !reflect.DeepEqual(got.Affected, []string{"c", "d"}) {
		t.Fatalf("Affected(a) = %v", got.Affected)
	}
	if !reflect.DeepEqual(got.ImpactGraph["a"], []string{"c", "d"}) {
		t.Fatalf("ImpactGraph[a] = %v", got.ImpactGraph["a"])
	}
	for _, n := range []string{"c", "d"} {
		if succ, ok := got.ImpactGraph[n]; !ok || len(succ) != 0 {
			t.Fatalf("ImpactGraph[%s] = %v, %v; want visited with no successors", n, succ, ok)
		}
	}

	leaf := CalculateImpact("c", snap, nil)
	if len(leaf.Affected) != 0 {
		t.Fatalf("Affected(c) = %v", leaf.Affected)
	}
	if _, ok := leaf.ImpactGraph["c"]; !ok {
		t.Fatalf("start should be recorded in ImpactGraph")
	}
}

func TestCalculateImpact_ExcludesStartOnCycle(t *testing.T) {
	snap := registry.Snapshot{
		unit("o/a", "o/b"),
		unit("o/b", "o/a"),
	}
	got := CalculateImpact("o/a", snap, nil)
	if got.Source != "a" || !reflect.DeepEqual(got.Affected, []string{"b"}) {
		t.Fatalf("unexpected report %+v", got)
	}
}

func TestCalculateImpact_MergesSeedEdges(t *testing.T) {
	snap := registry.Snapshot{
		unit("o/core"),
		unit("o/app", "o/core"),
	}
	g := seedGraph(t,
		"org: o\nrepo: app\nproduces:\n  - type: metrics\n",
		"org: x\nrepo: dashboard\nconsumes:\n  - type: metrics\n",
	)

	got := CalculateImpact("core", snap, g)
	if !reflect.DeepEqual(got.Affected, []string{"app", "dashboard"}) {
		t.Fatalf("Affected = %v", got.Affected)
	}
	steps := got.Propagation()
	want := []PropagationStep{{Depth: 1, Repo: "app"}, {Depth: 2, Repo: "dashboard"}}
	if !reflect.DeepEqual(steps, want) {
		t.Fatalf("Propagation = %+v, want %+v", steps, want)
	}
}

func TestCalculateImpact_BareNamesMerge(t *testing.T) {
	snap := registry.Snapshot{
		unit("org-1/shared"),
		unit("org-2/shared"),
		unit("o/uses-qualified", "org-1/shared"),
		unit("o/uses-bare", "shared"),
	}
	got := CalculateImpact("org-2/shared", snap, nil)
	if !reflect.DeepEqual(got.Affected, []string{"uses-bare", "uses-qualified"}) {
		t.Fatalf("Affected = %v", got.Affected)
	}
}

func TestCalculateImpact_UnknownStart(t *testing.T) {
	got := CalculateImpact("nobody", registry.Snapshot{unit("o/a")}, nil)
	if len(got.Affected) != 0 || len(got.ImpactGraph) != 1 {
		t.Fatalf("unexpected report %+v", got)
	}
	if got.Propagation() != nil {
		t.Fatalf("expected empty propagation")
	}
}

func TestImpactReport_PropagationFirstDiscovery(t *testing.T) {
	snap := registry.Snapshot{
		unit("o/root"),
		unit("o/left", "o/root"),
		unit("o/right", "o/root"),
		unit("o/join", "o/left", "o/right"),
	}
	got := CalculateImpact("root", snap, nil).Propagation()
	want := []PropagationStep{
		{Depth: 1, Repo: "left"},
		{Depth: 1, Repo: "right"},
		{Depth: 2, Repo: "join"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Propagation = %+v, want %+v", got, want)
	}
}
