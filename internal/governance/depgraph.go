// Package governance validates the explicit dependency graph of a registry,
// gates promotion status changes, and computes downstream change impact.
package governance

import (
	"fmt"
	"strings"

	"organvm/internal/registry"
)

// LevelResolver maps a GitHub org to its ordinal organ level and reports which
// levels take part in flow-direction enforcement.
type LevelResolver interface {
	Level(org string) (int, bool)
	Restricted(level int) bool
}

type MissingTarget struct {
	From registry.RepoID `json:"from"`
	To   registry.RepoID `json:"to"`
}

// BackEdge is a dependency from a lower restricted level to a higher one.
type BackEdge struct {
	From    registry.RepoID `json:"from"`
	To      registry.RepoID `json:"to"`
	FromOrg string          `json:"from_org"`
	ToOrg   string          `json:"to_org"`
}

// Cycle is a DFS path suffix; the first node is repeated at the end.
type Cycle []registry.RepoID

func (c Cycle) String() string {
	parts := make([]string, len(c))
	for i, id := range c {
		parts[i] = id.String()
	}
	return strings.Join(parts, " -> ")
}

type DependencyResult struct {
	TotalEdges     int               `json:"total_edges"`
	MissingTargets []MissingTarget   `json:"missing_targets"`
	SelfDeps       []registry.RepoID `json:"self_deps"`
	BackEdges      []BackEdge        `json:"back_edges"`
	Cycles         []Cycle           `json:"cycles"`
	// CrossOrgan counts edges per "fromOrg -> toOrg" direction. A bare target
	// counts under its name. Diagnostic only.
	CrossOrgan map[string]int `json:"cross_organ"`
}

func (r *DependencyResult) Passed() bool {
	return len(r.MissingTargets) == 0 &&
		len(r.SelfDeps) == 0 &&
		len(r.BackEdges) == 0 &&
		len(r.Cycles) == 0
}

// Violations flattens every finding into one line each, grouped by kind.
func (r *DependencyResult) Violations() []string {
	var out []string
	for _, m := range r.MissingTargets {
		out = append(out, fmt.Sprintf("Missing target: %s -> %s", m.From, m.To))
	}
	for _, s := range r.SelfDeps {
		out = append(out, fmt.Sprintf("Self-dep: %s", s))
	}
	for _, b := range r.BackEdges {
		out = append(out, fmt.Sprintf("Back-edge: %s -> %s (%s -> %s)", b.From, b.To, b.FromOrg, b.ToOrg))
	}
	for _, c := range r.Cycles {
		out = append(out, fmt.Sprintf("Cycle: %s", c))
	}
	return out
}

type edge struct {
	from registry.RepoID
	to   registry.RepoID
}

func buildEdges(snap registry.Snapshot) []edge {
	var edges []edge
	for _, u := range snap {
		for _, d := range u.Dependencies {
			edges = append(edges, edge{from: u.ID, to: d})
		}
	}
	return edges
}

// ValidateDependencies runs every structural check over snap. No check stops
// another; findings are reported in snapshot order.
func ValidateDependencies(snap registry.Snapshot, levels LevelResolver) *DependencyResult {
	edges := buildEdges(snap)
	known := snap.Index()

	res := &DependencyResult{
		TotalEdges: len(edges),
		CrossOrgan: make(map[string]int),
	}

	for _, e := range edges {
		if _, ok := known[e.to]; !ok {
			res.MissingTargets = append(res.MissingTargets, MissingTarget{From: e.from, To: e.to})
		}
	}

	for _, e := range edges {
		if e.from == e.to {
			res.SelfDeps = append(res.SelfDeps, e.from)
		}
	}

	if levels != nil {
		for _, e := range edges {
			fromLevel, ok := levels.Level(e.from.Org)
			if !ok {
				continue
			}
			toLevel, ok := levels.Level(e.to.Org)
			if !ok {
				continue
			}
			if levels.Restricted(fromLevel) && levels.Restricted(toLevel) && fromLevel < toLevel {
				res.BackEdges = append(res.BackEdges, BackEdge{
					From: e.from, To: e.to, FromOrg: e.from.Org, ToOrg: e.to.Org,
				})
			}
		}
	}

	res.Cycles = findCycles(snap, edges)

	for _, e := range edges {
		// A bare target stands in for its own org.
		toOrg := e.to.Org
		if !e.to.Qualified() {
			toOrg = e.to.Name
		}
		if e.from.Org != toOrg {
			res.CrossOrgan[e.from.Org+" -> "+toOrg]++
		}
	}

	return res
}

type color uint8

const (
	white color = iota
	gray
	black
)

type frame struct {
	node registry.RepoID
	next int
}

// findCycles is a three-color DFS rooted at each still-white unit in snapshot
// order. Nodes colored under an earlier root are never re-entered, so at most
// one cycle per cluster of overlapping cycles is guaranteed.
func findCycles(snap registry.Snapshot, edges []edge) []Cycle {
	adj := make(map[registry.RepoID][]registry.RepoID)
	for _, e := range edges {
		adj[e.from] = append(adj[e.from], e.to)
	}

	colors := make(map[registry.RepoID]color)
	var cycles []Cycle

	for _, u := range snap {
		if colors[u.ID] != white {
			continue
		}
		colors[u.ID] = gray
		stack := []frame{{node: u.ID}}

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			succ := adj[top.node]
			if top.next >= len(succ) {
				colors[top.node] = black
				stack = stack[:len(stack)-1]
				continue
			}
			n := succ[top.next]
			top.next++

			switch colors[n] {
			case gray:
				cycles = append(cycles, cycleFrom(stack, n))
			case white:
				colors[n] = gray
				stack = append(stack, frame{node: n})
			}
		}
	}
	return cycles
}

// cycleFrom returns the stack suffix starting at the first frame for n, closed by n.
func cycleFrom(stack []frame, n registry.RepoID) Cycle {
	start := 0
	for i, f := range stack {
		if f.node == n {
			start = i
			break
		}
	}
	c := make(Cycle, 0, len(stack)-start+1)
	for _, f := range stack[start:] {
		c = append(c, f.node)
	}
	return append(c, n)
}
