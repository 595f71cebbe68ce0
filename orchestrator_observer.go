package framework

import (
	"context"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// observerRegistration holds a registered observer and its event type filter.
type observerRegistration struct {
	observer     Observer
	eventTypes   map[string]bool
	registeredAt time.Time
}

// RegisterObserver adds an observer to receive lifecycle notifications,
// optionally filtered by event type. An empty filter receives all events.
func (o *Orchestrator) RegisterObserver(observer Observer, eventTypes ...string) error {
	o.observerMutex.Lock()
	defer o.observerMutex.Unlock()

	eventTypeMap := make(map[string]bool)
	for _, eventType := range eventTypes {
		eventTypeMap[eventType] = true
	}

	o.observers[observer.ObserverID()] = &observerRegistration{
		observer:     observer,
		eventTypes:   eventTypeMap,
		registeredAt: time.Now(),
	}
	return nil
}

// UnregisterObserver removes an observer. Idempotent.
func (o *Orchestrator) UnregisterObserver(observer Observer) error {
	o.observerMutex.Lock()
	defer o.observerMutex.Unlock()
	delete(o.observers, observer.ObserverID())
	return nil
}

// NotifyObservers sends a CloudEvent to all interested observers. Delivery
// happens in goroutines so the caller never blocks; observer errors and
// panics are logged and contained.
func (o *Orchestrator) NotifyObservers(ctx context.Context, event cloudevents.Event) error {
	o.observerMutex.RLock()
	defer o.observerMutex.RUnlock()

	if event.Time().IsZero() {
		event.SetTime(time.Now())
	}
	if err := ValidateLifecycleEvent(event); err != nil {
		o.logger.Error("Invalid CloudEvent", "eventType", event.Type(), "error", err)
		return err
	}

	for _, registration := range o.observers {
		if len(registration.eventTypes) > 0 && !registration.eventTypes[event.Type()] {
			continue
		}

		go func(registration *observerRegistration) {
			defer func() {
				if r := recover(); r != nil {
					o.logger.Error("Observer panicked",
						"observerID", registration.observer.ObserverID(),
						"event", event.Type(), "panic", r)
				}
			}()
			if err := registration.observer.OnEvent(ctx, event); err != nil {
				o.logger.Error("Observer error",
					"observerID", registration.observer.ObserverID(),
					"event", event.Type(), "error", err)
			}
		}(registration)
	}
	return nil
}

// GetObservers returns information about currently registered observers.
func (o *Orchestrator) GetObservers() []ObserverInfo {
	o.observerMutex.RLock()
	defer o.observerMutex.RUnlock()

	info := make([]ObserverInfo, 0, len(o.observers))
	for _, registration := range o.observers {
		eventTypes := make([]string, 0, len(registration.eventTypes))
		for eventType := range registration.eventTypes {
			eventTypes = append(eventTypes, eventType)
		}
		info = append(info, ObserverInfo{
			ID:           registration.observer.ObserverID(),
			EventTypes:   eventTypes,
			RegisteredAt: registration.registeredAt,
		})
	}
	return info
}

// emitEvent builds and dispatches a lifecycle CloudEvent without blocking the
// orchestration path that produced it.
func (o *Orchestrator) emitEvent(ctx context.Context, eventType string, data map[string]any) {
	o.observerMutex.RLock()
	empty := len(o.observers) == 0
	o.observerMutex.RUnlock()
	if empty {
		return
	}

	event := NewLifecycleEvent(eventType, "orchestrator", data)
	go func() {
		if err := o.NotifyObservers(ctx, event); err != nil {
			o.logger.Error("Failed to notify observers", "event", eventType, "error", err)
		}
	}()
}
