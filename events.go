package registration

import (
	"context"
	"time"
)

// EventType enumerates the lifecycle signals this package emits.
type EventType string

const (
	// EventUserRegistered fires once per created account, emitted by the
	// policy after its transaction commits.
	EventUserRegistered EventType = "registration.user.registered"
	// EventRegistrationCompleted marks a full workflow run, wizard steps
	// included. Hosts listening on both sinks get one of each, never a
	// duplicate.
	EventRegistrationCompleted EventType = "registration.workflow.completed"
	EventUserActivated  EventType = "registration.user.activated"
	EventUserApproved   EventType = "registration.user.approved"
	EventUserRejected   EventType = "registration.user.rejected"
	EventUserReclaimed  EventType = "registration.user.reclaimed"
)

// Event describes a lifecycle signal. Signals are fire and forget: no
// return value is consumed and sink errors are only logged.
type Event struct {
	Type       EventType
	UserID     string
	Email      string
	Metadata   map[string]any
	OccurredAt time.Time
}

// EventSink consumes lifecycle events for external subscribers.
type EventSink interface {
	Record(ctx context.Context, event Event) error
}

// EventSinkFunc adapts a function to the EventSink interface.
type EventSinkFunc func(ctx context.Context, event Event) error

// Record implements EventSink.
func (f EventSinkFunc) Record(ctx context.Context, event Event) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopEventSink struct{}

func (noopEventSink) Record(context.Context, Event) error {
	return nil
}

func normalizeEventSink(s EventSink) EventSink {
	if s == nil {
		return noopEventSink{}
	}
	return s
}

// emitEvent records the event best-effort, logging sink failures.
func emitEvent(ctx context.Context, sink EventSink, logger Logger, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	if logger == nil {
		logger = defLogger{}
	}
	if err := normalizeEventSink(sink).Record(ctx, event); err != nil {
		logger.Warn("registration event sink error: %v", err)
	}
}
