package seed

import (
	"fmt"

	"organvm/internal/registry"
)

// Edge is an inferred data-flow relationship: Producer emits an artifact of
// ArtifactType that Consumer declares it consumes.
type Edge struct {
	Producer     registry.RepoID `json:"producer"`
	Consumer     registry.RepoID `json:"consumer"`
	ArtifactType string          `json:"artifact_type"`
}

type ParseError struct {
	Path string
	Err  error
}

func (e ParseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e ParseError) Unwrap() error {
	return e.Err
}

// Graph holds the produces/consumes relationships across all parsed seeds.
type Graph struct {
	Nodes    []registry.RepoID
	Seeds    map[registry.RepoID]*Seed
	Produces map[registry.RepoID][]Artifact
	Consumes map[registry.RepoID][]Artifact
	Edges    []Edge
	Errors   []ParseError
}

// BuildGraph parses docs and infers producer -> consumer edges by matching
// artifact types. A document that fails to parse contributes nothing and is
// recorded in Errors; the rest of the build is unaffected.
//
// When two documents declare the same identity the later one replaces the
// earlier one's declarations but keeps its position.
func BuildGraph(docs []Document) *Graph {
	g := &Graph{
		Seeds:    make(map[registry.RepoID]*Seed),
		Produces: make(map[registry.RepoID][]Artifact),
		Consumes: make(map[registry.RepoID][]Artifact),
	}

	for _, d := range docs {
		if d.Err != nil {
			g.Errors = append(g.Errors, ParseError{Path: d.Path, Err: d.Err})
			continue
		}
		s, err := Parse(d.Content)
		if err != nil {
			g.Errors = append(g.Errors, ParseError{Path: d.Path, Err: err})
			continue
		}
		id := s.Identity()
		if _, seen := g.Seeds[id]; !seen {
			g.Nodes = append(g.Nodes, id)
		}
		g.Seeds[id] = s
	}

	producersByType := make(map[string][]registry.RepoID)
	for _, id := range g.Nodes {
		for _, p := range g.Seeds[id].Produces {
			g.Produces[id] = append(g.Produces[id], p)
			t := p.ArtifactType()
			producersByType[t] = append(producersByType[t], id)
		}
	}

	for _, id := range g.Nodes {
		for _, c := range g.Seeds[id].Consumes {
			g.Consumes[id] = append(g.Consumes[id], c)
			t := c.ArtifactType()
			source := ""
			if c.IsTyped() {
				source = c.Source
			}
			for _, producer := range producersByType[t] {
				if producer == id {
					continue
				}
				if source != "" && !sourceMatches(source, producer) {
					continue
				}
				g.Edges = append(g.Edges, Edge{Producer: producer, Consumer: id, ArtifactType: t})
			}
		}
	}

	return g
}

// sourceMatches reports whether a consumer's source filter names the producer
// exactly or names the producer's owning organization.
func sourceMatches(source string, producer registry.RepoID) bool {
	if source == producer.String() {
		return true
	}
	return producer.Qualified() && source == producer.Org
}

// ProducersOf lists the producers feeding consumer, in edge order.
func (g *Graph) ProducersOf(consumer registry.RepoID) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.Consumer == consumer {
			out = append(out, e)
		}
	}
	return out
}

// ConsumersOf lists the consumers fed by producer, in edge order.
func (g *Graph) ConsumersOf(producer registry.RepoID) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.Producer == producer {
			out = append(out, e)
		}
	}
	return out
}
