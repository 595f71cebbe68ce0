package framework

import "fmt"

// dependencyGraph holds the registered components and compiles them into load
// paths. It is owned by the orchestrator and mutated only under the
// orchestrator's lock.
type dependencyGraph struct {
	components ComponentRegistry
	order      []string // registration order, for deterministic output
}

func newDependencyGraph() *dependencyGraph {
	return &dependencyGraph{components: make(ComponentRegistry)}
}

func (g *dependencyGraph) add(c Component) error {
	if c == nil {
		return ErrComponentNil
	}
	name := c.Name()
	if _, exists := g.components[name]; exists {
		return fmt.Errorf("%w: %s", ErrComponentExists, name)
	}
	g.components[name] = c
	g.order = append(g.order, name)
	return nil
}

// dependenciesOf returns the declared dependency list of a component, in
// declaration order. Components that are not DependencyAware have none.
func dependenciesOf(c Component) []string {
	if da, ok := c.(DependencyAware); ok {
		return da.Dependencies()
	}
	return nil
}

// validate checks that every declared dependency resolves to a registered
// component and that the graph is acyclic. Either failure is a configuration
// error raised before any component starts.
func (g *dependencyGraph) validate() error {
	for _, name := range g.order {
		for _, dep := range dependenciesOf(g.components[name]) {
			if _, exists := g.components[dep]; !exists {
				return fmt.Errorf("%w: %s depends on %s", ErrUnknownDependency, name, dep)
			}
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(g.order))

	var visit func(string) error
	visit = func(name string) error {
		switch state[name] {
		case visiting:
			return fmt.Errorf("%w: %s", ErrCircularDependency, name)
		case done:
			return nil
		}
		state[name] = visiting
		for _, dep := range dependenciesOf(g.components[name]) {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[name] = done
		return nil
	}

	for _, name := range g.order {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}

// entryNodes returns the components no other registered component depends on,
// in registration order. Each entry node anchors one load path.
func (g *dependencyGraph) entryNodes() []string {
	dependedOn := make(map[string]bool)
	for _, name := range g.order {
		for _, dep := range dependenciesOf(g.components[name]) {
			dependedOn[dep] = true
		}
	}

	var entries []string
	for _, name := range g.order {
		if !dependedOn[name] {
			entries = append(entries, name)
		}
	}
	return entries
}

// loadPaths compiles the graph into one ordered chain per entry node. Within a
// path every dependency precedes its dependents and duplicates are removed,
// first occurrence winning. Paths are not deduplicated against each other: a
// component reachable from two independent entries appears on both paths and
// relies on the orchestrator's idempotency claims to execute once.
func (g *dependencyGraph) loadPaths() ([][]string, error) {
	if err := g.validate(); err != nil {
		return nil, err
	}

	var paths [][]string
	for _, entry := range g.entryNodes() {
		seen := make(map[string]bool)
		var path []string

		var visit func(string)
		visit = func(name string) {
			if seen[name] {
				return
			}
			seen[name] = true
			for _, dep := range dependenciesOf(g.components[name]) {
				visit(dep)
			}
			path = append(path, name)
		}
		visit(entry)

		paths = append(paths, path)
	}
	return paths, nil
}
