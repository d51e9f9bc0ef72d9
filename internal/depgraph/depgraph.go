// Package depgraph computes the dependency evaluation order for a
// service graph and propagates failure-cascade suppression, spec.md
// §4.H.2.
package depgraph

import (
	"fmt"

	"github.com/ocochard/monit/internal/model"
)

// Order returns service IDs topologically sorted so that every
// dependency appears before the services that depend on it, using Kahn's
// algorithm. Ties are broken by configuration order to keep the
// evaluation order stable across cycles.
func Order(g *model.Graph) ([]model.ID, error) {
	configOrder := g.ConfigOrder()
	indegree := make(map[model.ID]int, len(configOrder))
	dependents := make(map[model.ID][]model.ID, len(configOrder))

	for _, id := range configOrder {
		svc := g.Get(id)
		for _, depID := range g.DependencyIDs(svc) {
			indegree[id]++
			dependents[depID] = append(dependents[depID], id)
		}
	}

	var queue []model.ID
	for _, id := range configOrder {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	ordered := make([]model.ID, 0, len(configOrder))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		ordered = append(ordered, id)
		for _, dep := range dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(ordered) != len(configOrder) {
		return nil, fmt.Errorf("depgraph: dependency cycle detected among services")
	}
	return ordered, nil
}

// MarkCascade sets Visited on every transitive dependant of a failed
// service so the scheduler's skip policy (spec.md §4.H.1) suppresses
// their reports this cycle rather than reporting each as an independent
// failure.
func MarkCascade(g *model.Graph, failed model.ID) {
	dependents := make(map[model.ID][]model.ID)
	for _, id := range g.ConfigOrder() {
		svc := g.Get(id)
		for _, depID := range g.DependencyIDs(svc) {
			dependents[depID] = append(dependents[depID], id)
		}
	}

	var walk func(model.ID)
	seen := map[model.ID]bool{}
	walk = func(id model.ID) {
		for _, dependant := range dependents[id] {
			if seen[dependant] {
				continue
			}
			seen[dependant] = true
			g.Get(dependant).Visited = true
			walk(dependant)
		}
	}
	walk(failed)
}

// ResetVisited clears the Visited flag on every service, called at the
// start of each validation cycle before dependency evaluation begins.
func ResetVisited(g *model.Graph) {
	for _, svc := range g.All() {
		svc.Visited = false
	}
}
