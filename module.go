package framework

import "context"

// HookFunc is a module boundary callback. Hooks receive the context of the
// lifecycle operation that triggered them; an error returned from a hook is
// escalated as a critical failure of the owning orchestration scope.
type HookFunc func(ctx context.Context) error

// Module is a grouping node in the module tree. A module owns zero or more
// components and zero or more child modules, and exposes hooks that fire at
// lifecycle boundaries:
//
//   - OnRegister fires once, when the module is linked into an orchestrator's
//     tree, before any of its components start.
//   - BeforeStart fires at most once, the first time any owned-or-descendant
//     component is about to start. Ancestors fire root-to-leaf.
//   - AfterStart fires exactly once, when every component the module owns,
//     directly or through descendants, has become active.
//   - BeforeStop and AfterStop mirror the start hooks in reverse.
//
// The module tree is independent of the dependency graph: grouping expresses
// ownership and scoping, not ordering. A module's position in the tree is
// fixed once it is constructed.
type Module struct {
	name       string
	parent     *Module
	components []Component
	children   []*Module

	onRegister  HookFunc
	beforeStart HookFunc
	afterStart  HookFunc
	beforeStop  HookFunc
	afterStop   HookFunc
}

// ModuleOption configures a module during construction.
type ModuleOption func(*Module)

// NewModule creates a module with the given name and options.
func NewModule(name string, opts ...ModuleOption) *Module {
	m := &Module{name: name}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// WithComponents adds components owned directly by the module.
func WithComponents(components ...Component) ModuleOption {
	return func(m *Module) {
		m.components = append(m.components, components...)
	}
}

// WithSubmodules links child modules under the module. The children's parent
// pointers are fixed here and cannot be reassigned later.
func WithSubmodules(children ...*Module) ModuleOption {
	return func(m *Module) {
		for _, child := range children {
			child.parent = m
			m.children = append(m.children, child)
		}
	}
}

// WithOnRegister sets the hook fired once when the module is linked into an
// orchestrator's tree.
func WithOnRegister(h HookFunc) ModuleOption {
	return func(m *Module) { m.onRegister = h }
}

// WithBeforeStart sets the hook fired before the first owned-or-descendant
// component starts.
func WithBeforeStart(h HookFunc) ModuleOption {
	return func(m *Module) { m.beforeStart = h }
}

// WithAfterStart sets the hook fired once all deep-owned components are active.
func WithAfterStart(h HookFunc) ModuleOption {
	return func(m *Module) { m.afterStart = h }
}

// WithBeforeStop sets the hook fired before the first owned-or-descendant
// component stops.
func WithBeforeStop(h HookFunc) ModuleOption {
	return func(m *Module) { m.beforeStop = h }
}

// WithAfterStop sets the hook fired once all deep-owned components are
// inactive.
func WithAfterStop(h HookFunc) ModuleOption {
	return func(m *Module) { m.afterStop = h }
}

// Name returns the module's name.
func (m *Module) Name() string { return m.name }

// Parent returns the module's parent, or nil for the root.
func (m *Module) Parent() *Module { return m.parent }

// Components returns the components owned directly by the module.
func (m *Module) Components() []Component {
	out := make([]Component, len(m.components))
	copy(out, m.components)
	return out
}

// Submodules returns the module's direct children.
func (m *Module) Submodules() []*Module {
	out := make([]*Module, len(m.children))
	copy(out, m.children)
	return out
}

// ancestry returns the chain from the root down to m, inclusive.
func (m *Module) ancestry() []*Module {
	var chain []*Module
	for node := m; node != nil; node = node.parent {
		chain = append(chain, node)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// walk visits m and every descendant module in depth-first order.
func (m *Module) walk(fn func(*Module)) {
	fn(m)
	for _, child := range m.children {
		child.walk(fn)
	}
}

// deepComponents returns the names of every component owned by m directly or
// through descendant modules. Pass-through modules with no direct components
// still aggregate their children's components.
func (m *Module) deepComponents() []string {
	var names []string
	m.walk(func(node *Module) {
		for _, c := range node.components {
			names = append(names, c.Name())
		}
	})
	return names
}
