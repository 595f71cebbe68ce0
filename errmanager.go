package framework

import (
	"context"
	"strings"
	"sync"
	"time"
)

// ErrorEvent is a failure report travelling through the error manager tree.
// It carries a chain of cause values, innermost first, the sender that
// produced it, and two flags listeners may clear to stop propagation to
// parent managers or suppress log output.
type ErrorEvent struct {
	sender    string
	critical  bool
	chain     []error
	propagate bool
	output    bool
}

// Sender returns the name of the manager node that produced the event.
func (e *ErrorEvent) Sender() string { return e.sender }

// Critical reports whether the event was emitted through the critical path.
func (e *ErrorEvent) Critical() bool { return e.critical }

// Chain returns the cause chain, innermost first.
func (e *ErrorEvent) Chain() []error {
	out := make([]error, len(e.chain))
	copy(out, e.chain)
	return out
}

// Err collapses the chain into a single error whose message reads outermost
// to innermost.
func (e *ErrorEvent) Err() error {
	return &chainError{chain: e.Chain()}
}

// StopPropagation prevents the event from being forwarded to parent managers.
func (e *ErrorEvent) StopPropagation() { e.propagate = false }

// StopOutput suppresses log output for the event.
func (e *ErrorEvent) StopOutput() { e.output = false }

// Transform replaces the event's terminal (outermost) value while keeping the
// rest of the cause chain intact.
func (e *ErrorEvent) Transform(outer error) {
	if outer == nil || len(e.chain) == 0 {
		return
	}
	e.chain[len(e.chain)-1] = outer
}

// chainError renders a cause chain outermost first, ": " separated, and
// unwraps to every link so errors.Is and errors.As see the whole chain.
type chainError struct {
	chain []error // innermost first
}

func (c *chainError) Error() string {
	parts := make([]string, 0, len(c.chain))
	for i := len(c.chain) - 1; i >= 0; i-- {
		parts = append(parts, c.chain[i].Error())
	}
	return strings.Join(parts, ": ")
}

func (c *chainError) Unwrap() []error { return c.chain }

// ErrorListener observes error events delivered to a manager node.
type ErrorListener func(event *ErrorEvent)

// ErrorReporter is a legacy event-style error source. The manager watches its
// error channel repeatedly until explicitly detached; callers must detach to
// avoid retaining the reporter indefinitely.
type ErrorReporter interface {
	Errors() <-chan error
}

// ErrorManager is a node in the hierarchical error-reporting tree. Each node
// classifies incoming failures as passive or critical, delivers them to its
// own listeners, and forwards them to its parents unless a listener stops
// propagation. The tree is isomorphic to, but administratively separate from,
// the module tree.
//
// Passive errors are recorded and logged but never interrupt scheduling.
// Critical errors escalate: the orchestrator installs a critical listener on
// its root manager that aborts the owning scope.
type ErrorManager struct {
	mu       sync.Mutex
	sender   string
	logger   Logger
	parents  []*ErrorManager
	passive  []ErrorListener
	critical []ErrorListener
	watched  map[string]chan struct{}
	pending  sync.WaitGroup
}

// NewErrorManager creates a root error manager node for the given sender.
func NewErrorManager(sender string, logger Logger) *ErrorManager {
	return &ErrorManager{
		sender:  sender,
		logger:  logger,
		watched: make(map[string]chan struct{}),
	}
}

// CreateChild returns a new manager node pre-attached to this node as its
// parent. Events emitted on the child propagate upward unless stopped.
func (em *ErrorManager) CreateChild(sender string) *ErrorManager {
	child := NewErrorManager(sender, em.logger)
	child.parents = append(child.parents, em)
	return child
}

// AttachParent registers an additional parent node to forward events to.
func (em *ErrorManager) AttachParent(parent *ErrorManager) {
	if parent == nil || parent == em {
		return
	}
	em.mu.Lock()
	defer em.mu.Unlock()
	em.parents = append(em.parents, parent)
}

// OnError registers a listener for passive error events on this node.
func (em *ErrorManager) OnError(l ErrorListener) {
	em.mu.Lock()
	defer em.mu.Unlock()
	em.passive = append(em.passive, l)
}

// OnCritical registers a listener for critical error events on this node.
func (em *ErrorManager) OnCritical(l ErrorListener) {
	em.mu.Lock()
	defer em.mu.Unlock()
	em.critical = append(em.critical, l)
}

// EmitPassive reports a non-fatal failure. Optional causes are recorded
// innermost first beneath value; a cause that already carries a chain is
// spliced in whole. Passive errors never interrupt orchestration.
func (em *ErrorManager) EmitPassive(value error, causes ...error) {
	em.deliver(newErrorEvent(em.sender, false, value, causes))
}

// EmitCriticalError reports a fatal failure. The event escalates through the
// tree; at an orchestrator root it aborts the owning scope.
func (em *ErrorManager) EmitCriticalError(value error, causes ...error) {
	em.deliver(newErrorEvent(em.sender, true, value, causes))
}

// Abort reports a fatal failure and returns the internal unwind signal. The
// nearest orchestrator boundary recognises the signal, stops further work on
// that path and does not report it a second time.
func (em *ErrorManager) Abort(value error, causes ...error) error {
	event := newErrorEvent(em.sender, true, value, causes)
	if event == nil {
		return nil
	}
	em.deliver(event)
	return &abortError{err: event.Err()}
}

func newErrorEvent(sender string, critical bool, value error, causes []error) *ErrorEvent {
	var chain []error
	for _, cause := range causes {
		if cause == nil {
			continue
		}
		if ce, ok := cause.(*chainError); ok {
			chain = append(chain, ce.chain...)
			continue
		}
		chain = append(chain, cause)
	}
	if value != nil {
		chain = append(chain, value)
	}
	if len(chain) == 0 {
		return nil
	}
	return &ErrorEvent{
		sender:    sender,
		critical:  critical,
		chain:     chain,
		propagate: true,
		output:    true,
	}
}

// deliver runs this node's listeners for the event's severity, emits log
// output at the tree root, then forwards the event to parents unless a
// listener stopped propagation.
func (em *ErrorManager) deliver(event *ErrorEvent) {
	if event == nil {
		return
	}
	em.mu.Lock()
	var listeners []ErrorListener
	if event.critical {
		listeners = append(listeners, em.critical...)
	} else {
		listeners = append(listeners, em.passive...)
	}
	parents := make([]*ErrorManager, len(em.parents))
	copy(parents, em.parents)
	em.mu.Unlock()

	for _, l := range listeners {
		l(event)
	}

	if len(parents) == 0 {
		if event.output && em.logger != nil {
			if event.critical {
				em.logger.Error("Critical error", "sender", event.sender, "error", event.Err())
			} else {
				em.logger.Warn("Error", "sender", event.sender, "error", event.Err())
			}
		}
		return
	}

	if event.propagate {
		for _, parent := range parents {
			parent.deliver(event)
		}
	}
}

// Watch adapts a pending asynchronous operation into the tree. The first
// value received from errs, if non-nil, is emitted exactly once (passive by
// default, critical when flagged); the watch then detaches itself. Watched
// operations count toward Drain.
func (em *ErrorManager) Watch(name string, errs <-chan error, critical bool) {
	stop := em.attach(name)
	if stop == nil {
		return
	}
	em.pending.Add(1)
	go func() {
		defer em.pending.Done()
		defer em.Detach(name)
		select {
		case err, ok := <-errs:
			if ok && err != nil {
				if critical {
					em.EmitCriticalError(err)
				} else {
					em.EmitPassive(err)
				}
			}
		case <-stop:
		}
	}()
}

// WatchEmitter adapts a legacy event-style emitter. Every error received is
// emitted as a passive event until Detach is called or the channel closes.
// Emitter watches do not count toward Drain.
func (em *ErrorManager) WatchEmitter(name string, reporter ErrorReporter) {
	stop := em.attach(name)
	if stop == nil {
		return
	}
	go func() {
		for {
			select {
			case err, ok := <-reporter.Errors():
				if !ok {
					em.Detach(name)
					return
				}
				if err != nil {
					em.EmitPassive(err)
				}
			case <-stop:
				return
			}
		}
	}()
}

// Detach stops watching the named collaborator. It is idempotent.
func (em *ErrorManager) Detach(name string) {
	em.mu.Lock()
	defer em.mu.Unlock()
	if stop, ok := em.watched[name]; ok {
		close(stop)
		delete(em.watched, name)
	}
}

// attach registers a watch handle, returning nil when the name is taken.
func (em *ErrorManager) attach(name string) chan struct{} {
	em.mu.Lock()
	defer em.mu.Unlock()
	if _, exists := em.watched[name]; exists {
		return nil
	}
	stop := make(chan struct{})
	em.watched[name] = stop
	return stop
}

// Drain waits up to timeout for outstanding watched operations to settle.
// It resolves to a success/timeout boolean rather than an error: draining is
// best effort, unlike the abort-on-error policy of lifecycle failures.
func (em *ErrorManager) Drain(ctx context.Context, timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		em.pending.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}
