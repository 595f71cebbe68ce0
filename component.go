// Package framework provides a dependency-aware lifecycle orchestrator for Go.
// It starts and stops long-running components in dependency order, fires module
// boundary hooks at the correct points of a grouping tree, and escalates
// failures through a hierarchical error manager.
//
// Applications are composed of components that declare dependencies on one
// another by name. Components are grouped into a tree of modules, each of which
// can observe lifecycle boundaries through hooks. The orchestrator compiles the
// dependency graph into load paths, drives them concurrently, and guarantees
// that every dependency is active before its dependents start and inactive only
// after they stop.
//
// Basic usage:
//
//	root := framework.NewModule("app",
//		framework.WithComponents(db, cache),
//	)
//	orch, err := framework.NewOrchestrator(root, framework.WithLogger(logger))
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := orch.Run(); err != nil {
//		log.Fatal(err)
//	}
package framework

import "context"

// Component represents a startable and stoppable unit managed by the
// orchestrator. Implementations encapsulate one piece of runtime functionality
// such as a connection pool, a listener, or a background worker.
type Component interface {
	// Name returns the unique identifier for this component.
	// The name is used for dependency resolution and must be unique
	// within the orchestrator.
	//
	// Example: "database", "cache", "api"
	Name() string

	// Start begins the component's runtime operations. Start is called in
	// dependency order along the component's load path: every dependency is
	// active before Start runs. The provided context is cancelled when the
	// orchestration scope aborts.
	Start(ctx context.Context) error

	// Stop performs graceful shutdown. Stop is called in reverse dependency
	// order, so dependents stop before their dependencies, and only for
	// components whose Start succeeded. The context carries the
	// orchestrator's stop timeout; implementations should return promptly
	// when it expires.
	Stop(ctx context.Context) error
}

// Registrable is an optional interface for components that need a one-time
// registration step. Register is invoked at most once per process lifetime,
// before the component's first Start; it is never repeated even when the
// component is stopped and started again.
type Registrable interface {
	Register(ctx context.Context) error
}

// DependencyAware is an optional interface for components that depend on other
// components. The orchestrator uses this information to compile load paths so
// that dependencies start before dependents.
//
// Dependencies are resolved by component name and must be exact matches.
// A dependency on an unregistered name fails orchestration before any
// component starts, as does a dependency cycle.
type DependencyAware interface {
	// Dependencies returns names of other components this component depends
	// on, in declaration order.
	Dependencies() []string
}

// ComponentRegistry represents the set of registered components keyed by name.
// It is owned by a single orchestrator instance; there is no process-wide
// registry state.
type ComponentRegistry map[string]Component
