package schema

import (
	"strings"
)

// DependencyGraph entity type -> entity types it references through non-polymorphic references
type DependencyGraph struct {
	nodes        map[string]*Descriptor
	names        []string
	dependencies map[string][]string
}

// ParseDependencies builds the graph of descriptors, recursing into the entities they reference.
// Without descriptors every registered entity is used
func ParseDependencies(r *Registry, descriptors ...*Descriptor) (*DependencyGraph, error) {
	if len(descriptors) == 0 {
		descriptors = r.Descriptors()
	}

	g := &DependencyGraph{nodes: map[string]*Descriptor{}, dependencies: map[string][]string{}}
	for _, d := range descriptors {
		if err := g.parse(r, d); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (g *DependencyGraph) parse(r *Registry, d *Descriptor) error {
	if _, ok := g.nodes[d.Name]; ok {
		return nil
	}
	g.nodes[d.Name] = d
	g.names = append(g.names, d.Name)
	g.dependencies[d.Name] = nil

	for _, f := range d.Fields {
		if f.Kind != Reference || strings.EqualFold(f.Target, d.Name) {
			continue
		}

		target, ok := r.Lookup(f.Target)
		if !ok {
			return configErr(d.Name, f.Name, "unknown referenced entity %s", f.Target)
		}
		if !containsString(g.dependencies[d.Name], target.Name) {
			g.dependencies[d.Name] = append(g.dependencies[d.Name], target.Name)
		}
		if err := g.parse(r, target); err != nil {
			return err
		}
	}
	return nil
}

// DependenciesOf entities referenced by entity
func (g *DependencyGraph) DependenciesOf(entity string) []string {
	return append([]string(nil), g.dependencies[entity]...)
}

// Order peels entities without unresolved dependencies off one at a time, so referenced entities
// come before their referrers. A cycle is returned as a *ConfigurationError wrapping a *CycleError
func (g *DependencyGraph) Order() ([]*Descriptor, error) {
	var (
		remaining  = make(map[string]int, len(g.names))
		dependents = map[string][]string{}
		roots      []string
		ordered    = make([]*Descriptor, 0, len(g.names))
	)

	for _, name := range g.names {
		remaining[name] = len(g.dependencies[name])
		for _, dep := range g.dependencies[name] {
			dependents[dep] = append(dependents[dep], name)
		}
		if remaining[name] == 0 {
			roots = append(roots, name)
		}
	}

	for len(roots) > 0 {
		root := roots[0]
		roots = roots[1:]
		ordered = append(ordered, g.nodes[root])
		delete(remaining, root)

		for _, dependent := range dependents[root] {
			remaining[dependent]--
			if remaining[dependent] == 0 {
				roots = append(roots, dependent)
			}
		}
	}

	if len(remaining) > 0 {
		path := g.findCycle(remaining)
		return nil, &ConfigurationError{Entity: path[0], Err: &CycleError{Path: path}}
	}
	return ordered, nil
}

// findCycle walks unresolved dependencies until an entity repeats, every unresolved entity has
// at least one unresolved dependency
func (g *DependencyGraph) findCycle(remaining map[string]int) []string {
	var start string
	for _, name := range g.names {
		if _, ok := remaining[name]; ok {
			start = name
			break
		}
	}

	var (
		path    []string
		visited = map[string]int{}
		current = start
	)
	for {
		if idx, ok := visited[current]; ok {
			return append(path[idx:], current)
		}
		visited[current] = len(path)
		path = append(path, current)

		for _, dep := range g.dependencies[current] {
			if _, ok := remaining[dep]; ok {
				current = dep
				break
			}
		}
	}
}

func containsString(elems []string, elem string) bool {
	for _, e := range elems {
		if e == elem {
			return true
		}
	}
	return false
}
