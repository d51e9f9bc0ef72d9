package model

import "fmt"

// Graph owns every Service in the supervised configuration. It is built
// once per configuration load (by the out-of-scope configuration parser,
// or by internal/config's minimal test/demo loader) and swapped atomically
// by the scheduler on SIGHUP, per spec.md §3 Ownership rules.
type Graph struct {
	services []*Service
	byName   map[string]ID
	// order is the configuration order (insertion order); the dependency
	// resolver computes a separate evaluation order from this.
	order []ID
}

// NewGraph builds a Graph from services in configuration order, resolving
// each DependsOn name to an ID. It returns an error if a dependency name
// is unknown or if a service name is duplicated.
func NewGraph(services []*Service) (*Graph, error) {
	g := &Graph{byName: make(map[string]ID, len(services))}
	for i, s := range services {
		s.ID = ID(i)
		if _, dup := g.byName[s.Name]; dup {
			return nil, fmt.Errorf("duplicate service name %q", s.Name)
		}
		g.byName[s.Name] = s.ID
		g.services = append(g.services, s)
		g.order = append(g.order, s.ID)
	}
	for _, s := range services {
		for _, dep := range s.DependsOn {
			if _, ok := g.byName[dep]; !ok {
				return nil, fmt.Errorf("service %q depends on unknown service %q", s.Name, dep)
			}
		}
	}
	return g, nil
}

func (g *Graph) Get(id ID) *Service { return g.services[id] }

func (g *Graph) Lookup(name string) (*Service, bool) {
	id, ok := g.byName[name]
	if !ok {
		return nil, false
	}
	return g.services[id], true
}

func (g *Graph) All() []*Service { return g.services }

// ConfigOrder returns services in the order they were declared.
func (g *Graph) ConfigOrder() []ID { return append([]ID(nil), g.order...) }

// DependencyIDs resolves a service's DependsOn names to IDs.
func (g *Graph) DependencyIDs(s *Service) []ID {
	ids := make([]ID, 0, len(s.DependsOn))
	for _, name := range s.DependsOn {
		if id, ok := g.byName[name]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}
