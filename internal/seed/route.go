package seed

import "organvm/internal/registry"

// Route is one subscription matched by an event.
type Route struct {
	Repo   registry.RepoID `json:"repo"`
	Event  string          `json:"event"`
	Action string          `json:"action"`
}

// RouteEvent returns every subscription in g that listens for event from
// sourceOrgan, in node order.
func RouteEvent(g *Graph, event, sourceOrgan string) []Route {
	if g == nil {
		return nil
	}
	var out []Route
	for _, id := range g.Nodes {
		for _, sub := range g.Seeds[id].Subscriptions {
			if sub.Event == event && sub.Source == sourceOrgan {
				out = append(out, Route{Repo: id, Event: event, Action: sub.Action})
			}
		}
	}
	return out
}
