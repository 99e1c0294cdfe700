package ports

import "context"

// EventPublisher publishes domain events. Delivery is best effort from the
// caller's point of view.
type EventPublisher interface {
	// Publish returns domain.ErrUnavailable if the broker is unreachable.
	Publish(ctx context.Context, event Event) error
}

// Event is a publishable domain event.
type Event interface {
	// EventType is the routing subject.
	EventType() string

	// Key partitions related events, e.g. "user:quote".
	Key() string

	// Payload is serialized by the publisher.
	Payload() any
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
