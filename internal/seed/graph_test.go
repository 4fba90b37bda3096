package seed

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"organvm/internal/registry"
)

func doc(path, org, repo, body string) Document {
	return Document{
		Path:    path,
		Content: []byte(fmt.Sprintf("org: %s\nrepo: %s\n%s", org, repo, body)),
	}
}

func edgeStrings(g *Graph) []string {
	var out []string
	for _, e := range g.Edges {
		out = append(out, fmt.Sprintf("%s -[%s]-> %s", e.Producer, e.ArtifactType, e.Consumer))
	}
	return out
}

func TestBuildGraph_TypedMatch(t *testing.T) {
	g := BuildGraph([]Document{
		doc("a", "org-a", "producer", "produces:\n  - type: schema\n"),
		doc("b", "org-b", "consumer", "consumes:\n  - type: schema\n"),
	})
	want := []string{"org-a/producer -[schema]-> org-b/consumer"}
	if got := edgeStrings(g); !reflect.DeepEqual(got, want) {
		t.Fatalf("edges = %v, want %v", got, want)
	}
	if len(g.Nodes) != 2 || len(g.Errors) != 0 {
		t.Fatalf("unexpected nodes=%v errors=%v", g.Nodes, g.Errors)
	}
}

func TestBuildGraph_UnrelatedProducerAddsNoEdge(t *testing.T) {
	g := BuildGraph([]Document{
		doc("a", "org-a", "producer", "produces:\n  - type: schema\n"),
		doc("b", "org-b", "consumer", "consumes:\n  - type: schema\n"),
		doc("c", "org-c", "other", "produces:\n  - type: dataset\n"),
	})
	if len(g.Edges) != 1 {
		t.Fatalf("expected 1 edge, got %v", edgeStrings(g))
	}
}

func TestBuildGraph_ExcludesSelf(t *testing.T) {
	g := BuildGraph([]Document{
		doc("a", "org-a", "loop", "produces:\n  - type: schema\nconsumes:\n  - type: schema\n"),
	})
	if len(g.Edges) != 0 {
		t.Fatalf("expected no self edge, got %v", edgeStrings(g))
	}
}

func TestBuildGraph_SourceFilter(t *testing.T) {
	producers := []Document{
		doc("1", "org-x", "repo-y", "produces:\n  - type: schema\n"),
		doc("2", "org-x", "repo-z", "produces:\n  - type: schema\n"),
		doc("3", "org-w", "repo-y", "produces:\n  - type: schema\n"),
	}

	tests := []struct {
		name   string
		source string
		want   []string
	}{
		{
			name:   "exact identity",
			source: "org-x/repo-y",
			want:   []string{"org-x/repo-y -[schema]-> org-c/consumer"},
		},
		{
			name:   "owning org",
			source: "org-x",
			want: []string{
				"org-x/repo-y -[schema]-> org-c/consumer",
				"org-x/repo-z -[schema]-> org-c/consumer",
			},
		},
		{
			name:   "bare repo name does not match",
			source: "repo-y",
			want:   nil,
		},
		{
			name:   "no filter",
			source: "",
			want: []string{
				"org-x/repo-y -[schema]-> org-c/consumer",
				"org-x/repo-z -[schema]-> org-c/consumer",
				"org-w/repo-y -[schema]-> org-c/consumer",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := "consumes:\n  - type: schema\n"
			if tt.source != "" {
				body += "    source: " + tt.source + "\n"
			}
			docs := append(append([]Document(nil), producers...), doc("c", "org-c", "consumer", body))
			got := edgeStrings(BuildGraph(docs))
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("edges = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildGraph_UntypedEntriesMatchAsUnknown(t *testing.T) {
	g := BuildGraph([]Document{
		doc("a", "org", "producer", "produces:\n  - artifact.json\n"),
		doc("b", "org", "consumer", "consumes:\n  - whatever.txt\n"),
		doc("c", "org", "typed-unknown", "consumes:\n  - type: unknown\n"),
	})
	want := []string{
		"org/producer -[unknown]-> org/consumer",
		"org/producer -[unknown]-> org/typed-unknown",
	}
	if got := edgeStrings(g); !reflect.DeepEqual(got, want) {
		t.Fatalf("edges = %v, want %v", got, want)
	}
	if len(g.Produces[registry.NewRepoID("org", "producer")]) != 1 {
		t.Fatalf("produces not recorded: %v", g.Produces)
	}
}

func TestBuildGraph_ParseFailuresAreIsolated(t *testing.T) {
	readErr := errors.New("permission denied")
	g := BuildGraph([]Document{
		doc("good-a", "org-a", "producer", "produces:\n  - type: schema\n"),
		{Path: "broken", Content: []byte("produces: [\n")},
		{Path: "unreadable", Err: readErr},
		{Path: "list", Content: []byte("- a\n")},
		doc("good-b", "org-b", "consumer", "consumes:\n  - type: schema\n"),
	})

	if len(g.Errors) != 3 {
		t.Fatalf("expected 3 errors, got %v", g.Errors)
	}
	paths := []string{g.Errors[0].Path, g.Errors[1].Path, g.Errors[2].Path}
	if !reflect.DeepEqual(paths, []string{"broken", "unreadable", "list"}) {
		t.Fatalf("unexpected error paths %v", paths)
	}
	if !errors.Is(g.Errors[1], readErr) {
		t.Fatalf("expected wrapped read error, got %v", g.Errors[1])
	}
	if !strings.HasPrefix(g.Errors[0].Error(), "broken: ") {
		t.Fatalf("unexpected error text %q", g.Errors[0].Error())
	}
	if len(g.Nodes) != 2 || len(g.Edges) != 1 {
		t.Fatalf("good documents should still build: nodes=%v edges=%v", g.Nodes, edgeStrings(g))
	}
}

func TestBuildGraph_DuplicateIdentityLaterWins(t *testing.T) {
	g := BuildGraph([]Document{
		doc("1", "org", "dup", "produces:\n  - type: old\n"),
		doc("2", "org", "consumer", "consumes:\n  - type: new\n  - type: old\n"),
		doc("3", "org", "dup", "produces:\n  - type: new\n"),
	})
	want := []string{"org/dup -[new]-> org/consumer"}
	if got := edgeStrings(g); !reflect.DeepEqual(got, want) {
		t.Fatalf("edges = %v, want %v", got, want)
	}
	if len(g.Nodes) != 2 || g.Nodes[0].Name != "dup" {
		t.Fatalf("unexpected nodes %v", g.Nodes)
	}
}

func TestBuildGraph_Deterministic(t *testing.T) {
	docs := []Document{
		doc("a", "o", "p1", "produces:\n  - type: t\n  - x\n"),
		doc("b", "o", "p2", "produces:\n  - type: t\n"),
		doc("c", "o", "c1", "consumes:\n  - type: t\n  - y\n"),
	}
	first := edgeStrings(BuildGraph(docs))
	for i := 0; i < 5; i++ {
		if got := edgeStrings(BuildGraph(docs)); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs: %v vs %v", i, got, first)
		}
	}
}

func TestProducersAndConsumersOf(t *testing.T) {
	g := BuildGraph([]Document{
		doc("a", "o", "p", "produces:\n  - type: t\n"),
		doc("b", "o", "c1", "consumes:\n  - type: t\n"),
		doc("c", "o", "c2", "consumes:\n  - type: t\n"),
	})
	if n := len(g.ConsumersOf(registry.NewRepoID("o", "p"))); n != 2 {
		t.Fatalf("ConsumersOf = %d", n)
	}
	if n := len(g.ProducersOf(registry.NewRepoID("o", "c1"))); n != 1 {
		t.Fatalf("ProducersOf = %d", n)
	}
}

func TestRouteEvent(t *testing.T) {
	g := BuildGraph([]Document{
		doc("a", "o", "listener", "subscriptions:\n  - event: theory.published\n    source: ORGAN-I\n    action: rebuild\n  - event: other\n    source: ORGAN-I\n    action: skip\n"),
		doc("b", "o", "wrong-source", "subscriptions:\n  - event: theory.published\n    source: ORGAN-II\n    action: nope\n"),
	})
	got := RouteEvent(g, "theory.published", "ORGAN-I")
	want := []Route{{Repo: registry.NewRepoID("o", "listener"), Event: "theory.published", Action: "rebuild"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("RouteEvent = %+v, want %+v", got, want)
	}
	if RouteEvent(nil, "x", "y") != nil {
		t.Fatalf("nil graph should route nowhere")
	}
}
