// Package events publishes payment lifecycle events to other processes.
package events

import "context"

// Event types
const (
	EventPaymentStateChanged = "payment_state_changed"
	EventPaymentSucceeded    = "payment_succeeded"
	EventPaymentFailed       = "payment_failed"
)

// DefaultStream is the channel payment events are published on.
const DefaultStream = "events:jpyc-payment"

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
