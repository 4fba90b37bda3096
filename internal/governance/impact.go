package governance

import (
	"sort"

	"organvm/internal/registry"
	"organvm/internal/seed"
)

// ImpactReport is the blast radius of a change to Source.
//
// Identities are bare repository names, so same-named repositories owned by
// different orgs share one node.
type ImpactReport struct {
	Source   string   `json:"source"`
	Affected []string `json:"affected"`
	// ImpactGraph holds the direct successors of every visited node, Source included.
	ImpactGraph map[string][]string `json:"impact_graph"`
}

// PropagationStep is one line of the first-discovery tree.
type PropagationStep struct {
	Depth int    `json:"depth"`
	Repo  string `json:"repo"`
}

type adjacency struct {
	order map[string][]string
	seen  map[string]map[string]bool
}

func newAdjacency() *adjacency {
	return &adjacency{
		order: make(map[string][]string),
		seen:  make(map[string]map[string]bool),
	}
}

func (a *adjacency) add(from, to string) {
	s := a.seen[from]
	if s == nil {
		s = make(map[string]bool)
		a.seen[from] = s
	}
	if s[to] {
		return
	}
	s[to] = true
	a.order[from] = append(a.order[from], to)
}

// CalculateImpact walks everything a change to start could reach. Explicit
// dependencies are reversed (a change to B affects every A that depends on
// B); seed edges already point from producer to consumer. seeds may be nil.
func CalculateImpact(start string, snap registry.Snapshot, seeds *seed.Graph) *ImpactReport {
	adj := newAdjacency()
	for _, u := range snap {
		for _, d := range u.Dependencies {
			adj.add(d.Name, u.ID.Name)
		}
	}
	if seeds != nil {
		for _, e := range seeds.Edges {
			adj.add(e.Producer.Name, e.Consumer.Name)
		}
	}

	source := registry.ParseRepoID(start).Name
	report := &ImpactReport{
		Source:      source,
		Affected:    []string{},
		ImpactGraph: make(map[string][]string),
	}

	visited := map[string]bool{source: true}
	queue := []string{source}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		downstream := append([]string{}, adj.order[current]...)
		report.ImpactGraph[current] = downstream
		for _, n := range downstream {
			if visited[n] {
				continue
			}
			visited[n] = true
			report.Affected = append(report.Affected, n)
			queue = append(queue, n)
		}
	}
	sort.Strings(report.Affected)
	return report
}

// Propagation renders the report as a tree in which every affected repository
// appears once, under the first node that reached it. Source is not included.
func (r *ImpactReport) Propagation() []PropagationStep {
	type item struct {
		repo  string
		depth int
	}
	var out []PropagationStep
	visited := map[string]bool{r.Source: true}
	queue := []item{{repo: r.Source}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth > 0 {
			out = append(out, PropagationStep{Depth: cur.depth, Repo: cur.repo})
		}

		direct := make(map[string]bool, len(r.ImpactGraph[cur.repo]))
		for _, n := range r.ImpactGraph[cur.repo] {
			direct[n] = true
		}
		for _, child := range r.Affected {
			if direct[child] && !visited[child] {
				visited[child] = true
				queue = append(queue, item{repo: child, depth: cur.depth + 1})
			}
		}
	}
	return out
}
