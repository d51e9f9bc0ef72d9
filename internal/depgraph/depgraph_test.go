package depgraph

import (
	"testing"

	"github.com/ocochard/monit/internal/model"
)

func buildGraph(t *testing.T) *model.Graph {
	t.Helper()
	services := []*model.Service{
		{Name: "db", Type: model.TypeProcess},
		{Name: "cache", Type: model.TypeProcess, DependsOn: []string{"db"}},
		{Name: "webapp", Type: model.TypeProcess, DependsOn: []string{"db", "cache"}},
	}
	g, err := model.NewGraph(services)
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	return g
}

func TestOrderRespectsDependencies(t *testing.T) {
	g := buildGraph(t)
	order, err := Order(g)
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	pos := map[string]int{}
	for i, id := range order {
		pos[g.Get(id).Name] = i
	}
	if pos["db"] > pos["cache"] || pos["cache"] > pos["webapp"] {
		t.Fatalf("expected db < cache < webapp, got order %v", order)
	}
}

func TestOrderDetectsCycle(t *testing.T) {
	a := &model.Service{Name: "a", DependsOn: []string{"b"}}
	b := &model.Service{Name: "b", DependsOn: []string{"a"}}
	g, err := model.NewGraph([]*model.Service{a, b})
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	if _, err := Order(g); err == nil {
		t.Fatalf("expected cycle detection error")
	}
}

func TestMarkCascadeSuppressesDependants(t *testing.T) {
	g := buildGraph(t)
	dbSvc, _ := g.Lookup("db")
	ResetVisited(g)
	MarkCascade(g, dbSvc.ID)

	cache, _ := g.Lookup("cache")
	webapp, _ := g.Lookup("webapp")
	if !cache.Visited || !webapp.Visited {
		t.Fatalf("expected both dependants visited, got cache=%v webapp=%v", cache.Visited, webapp.Visited)
	}
	if dbSvc.Visited {
		t.Fatalf("expected the failed service itself to remain unvisited by cascade")
	}
}
