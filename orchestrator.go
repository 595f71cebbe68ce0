package framework

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"
)

// Phase describes the orchestration scope's position in its lifecycle.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseStarting Phase = "starting"
	PhaseRunning  Phase = "running"
	PhaseStopping Phase = "stopping"
	PhaseStopped  Phase = "stopped"
)

// hookState tracks which boundary hooks have fired for a module. A hook fires
// at most once per request direction regardless of how many components
// trigger the check.
type hookState struct {
	beforeStart bool
	afterStart  bool
	beforeStop  bool
	afterStop   bool
}

type hookKind int

const (
	hookBeforeStart hookKind = iota
	hookAfterStart
	hookBeforeStop
	hookAfterStop
)

// Orchestrator drives start and stop of every registered component along its
// load path, interleaves module hook firing at the correct tree boundaries,
// and enforces idempotency through claim-before-work bookkeeping. Failures
// are escalated through the root error manager, which in turn can command the
// orchestrator to unwind.
//
// All registry state belongs to the orchestrator instance; two orchestrators
// share nothing.
type Orchestrator struct {
	mu    sync.Mutex
	graph *dependencyGraph
	root  *Module
	owner map[string]*Module

	registered map[string]bool
	active     map[string]bool
	hooks      map[*Module]*hookState

	paths      [][]string
	pathsDirty bool

	phase  Phase
	cancel context.CancelCauseFunc

	stopping chan struct{}
	stopErr  error
	fatal    chan error

	cfg    *Config
	logger Logger
	errs   *ErrorManager
	exit   func(int)

	observers     map[string]*observerRegistration
	observerMutex sync.RWMutex
}

// Errors returns the orchestrator's root error manager. Components and
// collaborators create child nodes from it to report failures into the tree.
func (o *Orchestrator) Errors() *ErrorManager { return o.errs }

// Logger returns the orchestrator's logger.
func (o *Orchestrator) Logger() Logger { return o.logger }

// Phase returns the current lifecycle phase.
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// IsActive reports whether the named component is currently active.
func (o *Orchestrator) IsActive(name string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active[name]
}

// IsRegistered reports whether the named component's one-time registration
// step has run.
func (o *Orchestrator) IsRegistered(name string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.registered[name]
}

// RegisterComponent adds a component to the orchestrator after construction.
// The component is owned by the root module. Registration invalidates the
// cached load paths.
func (o *Orchestrator) RegisterComponent(c Component) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.graph.add(c); err != nil {
		return err
	}
	o.root.components = append(o.root.components, c)
	o.owner[c.Name()] = o.root
	o.pathsDirty = true
	o.logger.Debug("Registered component", "component", c.Name())
	return nil
}

// LoadPaths compiles (or returns the cached) load paths: one ordered chain of
// component names per entry node, dependencies first.
func (o *Orchestrator) LoadPaths() ([][]string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	paths, err := o.loadPathsLocked()
	if err != nil {
		return nil, err
	}
	out := make([][]string, len(paths))
	for i, p := range paths {
		out[i] = append([]string(nil), p...)
	}
	return out, nil
}

func (o *Orchestrator) loadPathsLocked() ([][]string, error) {
	if o.pathsDirty || o.paths == nil {
		paths, err := o.graph.loadPaths()
		if err != nil {
			return nil, err
		}
		o.paths = paths
		o.pathsDirty = false
		o.logger.Debug("Compiled load paths", "paths", paths)
	}
	return o.paths, nil
}

// StartAll starts every component along its load path. One task runs per
// path; paths execute concurrently while each path stays strictly ordered.
// The first critical error abandons the remaining work, stops whatever is
// already active and leaves the scope in a non-running terminal state.
func (o *Orchestrator) StartAll(ctx context.Context) error {
	o.mu.Lock()
	if o.phase == PhaseStarting || o.phase == PhaseRunning || o.phase == PhaseStopping {
		o.mu.Unlock()
		return ErrAlreadyStarted
	}
	paths, err := o.loadPathsLocked()
	if err != nil {
		o.mu.Unlock()
		return err
	}
	o.phase = PhaseStarting
	runCtx, cancel := context.WithCancelCause(ctx)
	o.cancel = cancel
	o.mu.Unlock()

	o.logger.Info("Starting components", "paths", len(paths))

	g, gctx := errgroup.WithContext(runCtx)
	for _, path := range paths {
		path := path
		g.Go(func() error {
			for _, name := range path {
				if gctx.Err() != nil {
					// another path failed or the scope was aborted; this
					// path is abandoned at the next component boundary
					return nil
				}
				if err := o.StartComponent(gctx, name); err != nil {
					return err
				}
			}
			return nil
		})
	}
	err = g.Wait()
	cause := context.Cause(runCtx)
	cancel(nil)
	o.mu.Lock()
	o.cancel = nil
	o.mu.Unlock()

	// a critical escalated from outside the path tasks (or the caller
	// cancelled) aborts the start even when every task returned nil
	if err == nil && cause != nil {
		err = cause
	}

	if err != nil {
		terminal := abortCause(err)
		o.setPhase(PhaseStopping)
		stopCtx, stopCancel := context.WithTimeout(context.Background(), o.cfg.StopTimeout.Std())
		if stopErr := o.stopPaths(stopCtx, paths); stopErr != nil {
			o.logger.Error("Error during rollback stop", "error", abortCause(stopErr))
		}
		stopCancel()
		o.setPhase(PhaseStopped)
		o.emitEvent(ctx, EventTypeOrchestratorFailed, map[string]any{"error": terminal.Error()})
		if o.cfg.ExitOnError {
			o.logger.Error("Aborting after failed start", "error", terminal)
			o.exit(1)
		}
		return terminal
	}

	o.setPhase(PhaseRunning)
	o.emitEvent(ctx, EventTypeOrchestratorStarted, nil)
	return nil
}

// StopAll stops every active component in reverse load path order. A stop
// request issued while another stop is in flight awaits the same completion
// instead of starting a duplicate shutdown. Stopping an orchestrator that was
// never started returns ErrNotStarted.
func (o *Orchestrator) StopAll(ctx context.Context) error {
	o.mu.Lock()
	if o.stopping != nil {
		done := o.stopping
		o.mu.Unlock()
		<-done
		o.mu.Lock()
		defer o.mu.Unlock()
		return o.stopErr
	}
	if o.phase == PhaseIdle {
		o.mu.Unlock()
		return ErrNotStarted
	}
	done := make(chan struct{})
	o.stopping = done
	paths, err := o.loadPathsLocked()
	if err != nil {
		o.stopping = nil
		o.mu.Unlock()
		close(done)
		return err
	}
	o.phase = PhaseStopping
	stopScope, cancelStop := context.WithCancelCause(ctx)
	o.cancel = cancelStop
	o.mu.Unlock()

	o.logger.Info("Stopping components", "paths", len(paths))

	stopCtx, cancel := context.WithTimeout(stopScope, o.cfg.StopTimeout.Std())
	defer cancel()

	stopErr := o.stopPaths(stopCtx, paths)

	if !o.errs.Drain(stopCtx, o.cfg.DrainTimeout.Std()) {
		o.logger.Warn("Timed out draining outstanding operations", "timeout", o.cfg.DrainTimeout)
	}

	cause := context.Cause(stopScope)
	cancelStop(nil)

	// a critical escalated during the stop cut it short; surface that even
	// when every stop task returned nil
	if stopErr == nil && cause != nil {
		stopErr = cause
	}

	terminal := abortCause(stopErr)
	o.mu.Lock()
	o.cancel = nil
	o.phase = PhaseStopped
	o.stopErr = terminal
	o.stopping = nil
	o.mu.Unlock()
	close(done)

	o.emitEvent(ctx, EventTypeOrchestratorStopped, nil)
	return terminal
}

// stopPaths runs one stop task per load path, each walking its path in
// reverse. Path tasks never cancel each other: one path's stop failure does
// not prevent the others from stopping what they already have in flight. Only
// a critical escalation (or the stop timeout) cancels the shared context.
func (o *Orchestrator) stopPaths(ctx context.Context, paths [][]string) error {
	var g errgroup.Group
	for _, path := range paths {
		path := path
		g.Go(func() error {
			for i := len(path) - 1; i >= 0; i-- {
				if err := o.StopComponent(ctx, path[i]); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// StartComponent starts a single component: ancestor before-start hooks fire
// first, then the active claim is taken, the one-time registration step runs
// if it never has, Start executes, and finally the after-start conditions of
// the ancestor chain are checked. Starting an already-active component is a
// no-op. A registration or start failure releases the active claim, so the
// component is not stopped during rollback.
func (o *Orchestrator) StartComponent(ctx context.Context, name string) error {
	o.mu.Lock()
	c, ok := o.graph.components[name]
	if !ok {
		o.mu.Unlock()
		return &LifecycleError{Component: name, Op: "start", Err: ErrComponentNotFound}
	}
	mod := o.owner[name]
	o.mu.Unlock()

	for _, m := range mod.ancestry() {
		if o.claimHook(m, hookBeforeStart) && m.beforeStart != nil {
			o.logger.Debug("Firing before-start hook", "module", m.name)
			if err := m.beforeStart(ctx); err != nil {
				return o.errs.Abort(&LifecycleError{Component: m.name, Op: "before-start hook", Err: err})
			}
		}
	}

	o.mu.Lock()
	if o.active[name] {
		o.mu.Unlock()
		o.logger.Debug("Component already active, skipping start", "component", name)
		return nil
	}
	o.active[name] = true
	needsRegister := !o.registered[name]
	if needsRegister {
		o.registered[name] = true
	}
	o.mu.Unlock()

	if needsRegister {
		if r, ok := c.(Registrable); ok {
			o.logger.Debug("Registering component", "component", name)
			if err := r.Register(ctx); err != nil {
				o.releaseActive(name)
				return o.errs.Abort(&LifecycleError{Component: name, Op: "registration", Err: err})
			}
		}
		o.emitEvent(ctx, EventTypeComponentRegistered, map[string]any{"component": name})
	}

	o.logger.Info("Starting component", "component", name)
	if err := c.Start(ctx); err != nil {
		o.releaseActive(name)
		o.emitEvent(ctx, EventTypeComponentFailed, map[string]any{"component": name, "error": err.Error()})
		return o.errs.Abort(&LifecycleError{Component: name, Op: "start", Err: err})
	}
	o.emitEvent(ctx, EventTypeComponentStarted, map[string]any{"component": name})

	for m := mod; m != nil; m = m.parent {
		if !o.deepActive(m) {
			break
		}
		if o.claimHook(m, hookAfterStart) && m.afterStart != nil {
			o.logger.Debug("Firing after-start hook", "module", m.name)
			if err := m.afterStart(ctx); err != nil {
				return o.errs.Abort(&LifecycleError{Component: m.name, Op: "after-start hook", Err: err})
			}
		}
	}
	return nil
}

// StopComponent stops a single component, mirroring StartComponent in
// reverse. The one-time registration step is never reversed. Stopping a
// component that is not active is a no-op.
func (o *Orchestrator) StopComponent(ctx context.Context, name string) error {
	o.mu.Lock()
	c, ok := o.graph.components[name]
	if !ok {
		o.mu.Unlock()
		return &LifecycleError{Component: name, Op: "stop", Err: ErrComponentNotFound}
	}
	mod := o.owner[name]
	o.mu.Unlock()

	ancestors := mod.ancestry()
	for i := len(ancestors) - 1; i >= 0; i-- {
		m := ancestors[i]
		if o.claimHook(m, hookBeforeStop) && m.beforeStop != nil {
			o.logger.Debug("Firing before-stop hook", "module", m.name)
			if err := m.beforeStop(ctx); err != nil {
				return o.errs.Abort(&LifecycleError{Component: m.name, Op: "before-stop hook", Err: err})
			}
		}
	}

	o.mu.Lock()
	if !o.active[name] {
		o.mu.Unlock()
		o.logger.Debug("Component not active, skipping stop", "component", name)
		return nil
	}
	delete(o.active, name)
	o.mu.Unlock()

	o.logger.Info("Stopping component", "component", name)
	if err := c.Stop(ctx); err != nil {
		o.emitEvent(ctx, EventTypeComponentFailed, map[string]any{"component": name, "error": err.Error()})
		return o.errs.Abort(&LifecycleError{Component: name, Op: "stop", Err: err})
	}
	o.emitEvent(ctx, EventTypeComponentStopped, map[string]any{"component": name})

	for m := mod; m != nil; m = m.parent {
		if !o.deepInactive(m) {
			break
		}
		if o.claimHook(m, hookAfterStop) && m.afterStop != nil {
			o.logger.Debug("Firing after-stop hook", "module", m.name)
			if err := m.afterStop(ctx); err != nil {
				return o.errs.Abort(&LifecycleError{Component: m.name, Op: "after-stop hook", Err: err})
			}
		}
	}
	return nil
}

// releaseActive drops the active claim of a component whose registration or
// start failed, so rollback never stops a component that did not start.
func (o *Orchestrator) releaseActive(name string) {
	o.mu.Lock()
	delete(o.active, name)
	o.mu.Unlock()
}

// claimHook atomically claims a module hook, returning true exactly once per
// module and kind. The claim is taken under the orchestrator lock so that
// concurrently running load paths cannot fire the same hook twice.
func (o *Orchestrator) claimHook(m *Module, kind hookKind) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	hs := o.hooks[m]
	if hs == nil {
		hs = &hookState{}
		o.hooks[m] = hs
	}
	switch kind {
	case hookBeforeStart:
		if hs.beforeStart {
			return false
		}
		hs.beforeStart = true
	case hookAfterStart:
		if hs.afterStart {
			return false
		}
		hs.afterStart = true
	case hookBeforeStop:
		if hs.beforeStop {
			return false
		}
		hs.beforeStop = true
	case hookAfterStop:
		if hs.afterStop {
			return false
		}
		hs.afterStop = true
	}
	return true
}

// deepActive reports whether every component the module owns, directly or
// through descendants, is active.
func (o *Orchestrator) deepActive(m *Module) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, name := range m.deepComponents() {
		if !o.active[name] {
			return false
		}
	}
	return true
}

// deepInactive reports whether no component the module owns, directly or
// through descendants, remains active.
func (o *Orchestrator) deepInactive(m *Module) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, name := range m.deepComponents() {
		if o.active[name] {
			return false
		}
	}
	return true
}

func (o *Orchestrator) setPhase(p Phase) {
	o.mu.Lock()
	o.phase = p
	o.mu.Unlock()
	o.logger.Debug("Phase changed", "phase", p)
}

// onCriticalEvent is the root error manager's escalation policy, keyed by the
// scope's current phase: a critical while running shuts everything down and
// terminates; a critical while starting or stopping short-circuits the
// in-flight operation; a critical after the scope has fully stopped is a
// programming-safety violation that forces hard termination.
func (o *Orchestrator) onCriticalEvent(event *ErrorEvent) {
	o.mu.Lock()
	phase := o.phase
	cancel := o.cancel
	o.mu.Unlock()

	switch phase {
	case PhaseRunning:
		go func() {
			if err := o.StopAll(context.Background()); err != nil {
				o.logger.Error("Error stopping after critical failure", "error", err)
			}
			o.terminate(event.Err())
		}()
	case PhaseStarting, PhaseStopping:
		if cancel != nil {
			cancel(event.Err())
		}
	case PhaseStopped:
		o.logger.Error("Critical error reported after shutdown, terminating", "error", event.Err())
		o.exit(1)
	case PhaseIdle:
		// nothing in flight; the manager has already recorded and logged it
	}
}

// terminate ends the process with a non-zero status, or surfaces the terminal
// error to Run when exit-on-error is disabled.
func (o *Orchestrator) terminate(err error) {
	if o.cfg.ExitOnError {
		o.logger.Error("Terminal error, exiting", "error", err)
		o.exit(1)
		return
	}
	select {
	case o.fatal <- err:
	default:
	}
}

// Run starts all components and blocks until a termination signal arrives or
// a critical error escalates, then stops all components.
func (o *Orchestrator) Run() error {
	ctx := context.Background()
	if err := o.StartAll(ctx); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		o.logger.Info("Received signal, shutting down", "signal", sig)
		return o.StopAll(ctx)
	case err := <-o.fatal:
		// shutdown already ran as part of the escalation
		return err
	}
}
