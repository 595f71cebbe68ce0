package framework

import (
	"errors"
	"fmt"
)

// Orchestration errors
var (
	// Configuration errors: any of these fails orchestration before a single
	// component starts.
	ErrComponentNil       = errors.New("component is nil")
	ErrComponentExists    = errors.New("component already registered")
	ErrComponentNotFound  = errors.New("component not found")
	ErrUnknownDependency  = errors.New("component depends on unregistered component")
	ErrCircularDependency = errors.New("circular dependency detected")
	ErrModuleNil          = errors.New("module is nil")

	// Orchestrator state errors
	ErrAlreadyStarted = errors.New("orchestrator already started")
	ErrNotStarted     = errors.New("orchestrator not started")

	// Config errors
	ErrConfigNil           = errors.New("config is nil")
	ErrConfigNotPointer    = errors.New("config must be a non-nil pointer")
	ErrConfigNotStruct     = errors.New("config must be a struct")
	ErrConfigFieldReadOnly = errors.New("config field cannot be set")

	// Watcher errors
	ErrWatcherClosed = errors.New("config watcher already closed")
)

// LifecycleError wraps a failure of a component lifecycle operation with the
// component and operation that failed. It is always escalated as critical.
type LifecycleError struct {
	Component string
	Op        string // "register", "start", "stop" or a hook name
	Err       error
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("component '%s' %s failed: %v", e.Component, e.Op, e.Err)
}

func (e *LifecycleError) Unwrap() error {
	return e.Err
}

// abortError is the internal unwind signal raised after a critical error has
// been reported. It carries the already-reported cause so orchestrator
// boundaries can surface it without reporting it a second time. It is control
// flow only and is never logged or shown to a user.
type abortError struct {
	err error
}

func (e *abortError) Error() string { return e.err.Error() }

func (e *abortError) Unwrap() error { return e.err }

// IsAborted reports whether err is the orchestrator's internal unwind signal.
// Callers that run component work inside their own goroutines can use this to
// distinguish an already-escalated failure from a fresh one.
func IsAborted(err error) bool {
	var a *abortError
	return errors.As(err, &a)
}

// abortCause unwraps the reported cause from an abort signal. For any other
// error it returns the error unchanged.
func abortCause(err error) error {
	var a *abortError
	if errors.As(err, &a) {
		return a.err
	}
	return err
}
