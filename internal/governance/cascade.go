package governance

import "organvm/internal/registry"

// PlanCascade lists, in breadth-first discovery order, every unit that
// transitively depends on start. Identities are matched exactly as declared,
// so a dependency written as a bare name only links to a bare start.
func PlanCascade(snap registry.Snapshot, start registry.RepoID) []registry.RepoID {
	dependents := make(map[registry.RepoID][]registry.RepoID)
	for _, u := range snap {
		for _, d := range u.Dependencies {
			dependents[d] = append(dependents[d], u.ID)
		}
	}

	var order []registry.RepoID
	visited := map[registry.RepoID]bool{start: true}
	queue := []registry.RepoID{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, d := range dependents[current] {
			if visited[d] {
				continue
			}
			visited[d] = true
			order = append(order, d)
			queue = append(queue, d)
		}
	}
	return order
}
