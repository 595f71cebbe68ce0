// Package framework provides Observer pattern interfaces for lifecycle event
// notification. Events use the CloudEvents specification for standardized
// format and interoperability with external systems.
package framework

import (
	"context"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// Observer is notified of lifecycle events emitted by the orchestrator.
// Observers should handle events quickly to avoid blocking others.
type Observer interface {
	// OnEvent is called when an event the observer subscribed to occurs.
	OnEvent(ctx context.Context, event cloudevents.Event) error

	// ObserverID returns a unique identifier for this observer, used for
	// registration tracking and debugging.
	ObserverID() string
}

// Subject is an event emitter that observers can register with.
type Subject interface {
	// RegisterObserver adds an observer, optionally filtered by event type.
	// An empty filter receives all events.
	RegisterObserver(observer Observer, eventTypes ...string) error

	// UnregisterObserver removes an observer. Idempotent.
	UnregisterObserver(observer Observer) error

	// NotifyObservers sends an event to all interested observers without
	// blocking the caller.
	NotifyObservers(ctx context.Context, event cloudevents.Event) error

	// GetObservers returns information about registered observers.
	GetObservers() []ObserverInfo
}

// ObserverInfo describes a registered observer for debugging and monitoring.
type ObserverInfo struct {
	ID           string    `json:"id"`
	EventTypes   []string  `json:"eventTypes"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// CloudEvent types emitted by the orchestrator, in reverse domain notation
// per the CloudEvents specification.
const (
	EventTypeModuleRegistered = "com.framework.module.registered"

	EventTypeComponentRegistered = "com.framework.component.registered"
	EventTypeComponentStarted    = "com.framework.component.started"
	EventTypeComponentStopped    = "com.framework.component.stopped"
	EventTypeComponentFailed     = "com.framework.component.failed"

	EventTypeOrchestratorStarted = "com.framework.orchestrator.started"
	EventTypeOrchestratorStopped = "com.framework.orchestrator.stopped"
	EventTypeOrchestratorFailed  = "com.framework.orchestrator.failed"

	EventTypeConfigChanged = "com.framework.config.changed"
)

// FunctionalObserver wraps a handler function as an Observer, for quick
// observer creation without defining a struct.
type FunctionalObserver struct {
	id      string
	handler func(ctx context.Context, event cloudevents.Event) error
}

// NewFunctionalObserver creates an observer that delegates to handler.
func NewFunctionalObserver(id string, handler func(ctx context.Context, event cloudevents.Event) error) Observer {
	return &FunctionalObserver{id: id, handler: handler}
}

func (f *FunctionalObserver) OnEvent(ctx context.Context, event cloudevents.Event) error {
	return f.handler(ctx, event)
}

func (f *FunctionalObserver) ObserverID() string {
	return f.id
}
