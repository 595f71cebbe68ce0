package framework

import (
	"context"
	"os"
)

// Option configures an orchestrator during construction.
type Option func(*Orchestrator) error

// WithLogger sets the orchestrator's logger.
func WithLogger(logger Logger) Option {
	return func(o *Orchestrator) error {
		o.logger = logger
		return nil
	}
}

// WithConfig sets the orchestrator configuration.
func WithConfig(cfg *Config) Option {
	return func(o *Orchestrator) error {
		if cfg == nil {
			return ErrConfigNil
		}
		o.cfg = cfg
		return nil
	}
}

// WithConfigFile loads the orchestrator configuration from a YAML or TOML
// file (chosen by extension), with FRAMEWORK_-prefixed environment variables
// applied on top.
func WithConfigFile(path string) Option {
	return func(o *Orchestrator) error {
		cfg := DefaultConfig()
		if err := LoadConfig(cfg, FileFeeder(path), EnvFeeder{Prefix: "FRAMEWORK"}); err != nil {
			return err
		}
		o.cfg = cfg
		return nil
	}
}

// WithObserver registers an observer for lifecycle events, optionally
// filtered to the given event types.
func WithObserver(observer Observer, eventTypes ...string) Option {
	return func(o *Orchestrator) error {
		return o.RegisterObserver(observer, eventTypes...)
	}
}

// WithExitFunc overrides the function used to terminate the process after a
// terminal error. Tests use this to observe aborts without exiting.
func WithExitFunc(exit func(int)) Option {
	return func(o *Orchestrator) error {
		o.exit = exit
		return nil
	}
}

// NewOrchestrator builds an orchestrator around the given module tree. Every
// component owned by the tree is registered, each module's OnRegister hook
// fires once, and the root error manager is bound to the orchestrator's
// escalation policy.
func NewOrchestrator(root *Module, opts ...Option) (*Orchestrator, error) {
	if root == nil {
		return nil, ErrModuleNil
	}

	o := &Orchestrator{
		graph:      newDependencyGraph(),
		root:       root,
		owner:      make(map[string]*Module),
		registered: make(map[string]bool),
		active:     make(map[string]bool),
		hooks:      make(map[*Module]*hookState),
		pathsDirty: true,
		phase:      PhaseIdle,
		fatal:      make(chan error, 1),
		exit:       os.Exit,
		observers:  make(map[string]*observerRegistration),
	}

	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	if o.cfg == nil {
		o.cfg = DefaultConfig()
	}
	if o.logger == nil {
		o.logger = newDefaultLogger(o.cfg.LogLevel)
	}

	o.errs = NewErrorManager("orchestrator", o.logger)
	o.errs.OnCritical(o.onCriticalEvent)

	var adoptErr error
	root.walk(func(m *Module) {
		o.hooks[m] = &hookState{}
		for _, c := range m.components {
			if err := o.graph.add(c); err != nil {
				if adoptErr == nil {
					adoptErr = err
				}
				continue
			}
			o.owner[c.Name()] = m
		}
	})
	if adoptErr != nil {
		return nil, adoptErr
	}

	// register-time hooks fire once per module, before any component starts
	ctx := context.Background()
	root.walk(func(m *Module) {
		if m.onRegister != nil {
			o.logger.Debug("Firing register hook", "module", m.name)
			if err := m.onRegister(ctx); err != nil {
				o.errs.EmitPassive(&LifecycleError{Component: m.name, Op: "register hook", Err: err})
			}
		}
		o.emitEvent(ctx, EventTypeModuleRegistered, map[string]any{"module": m.name})
	})

	return o, nil
}
