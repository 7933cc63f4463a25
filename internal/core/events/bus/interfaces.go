package bus

import "time"

// EventBus is a thread-safe, in-process pub/sub bus carrying host input to
// the experiment session.
//
// Delivery is synchronous: Publish calls every handler of the event type in
// the caller goroutine, in subscription order, and returns the joined handler
// errors. Handlers should be quick.
type EventBus interface {
	// Publish delivers the event to all active subscribers of event.Type().
	Publish(event Event) error
	// Subscribe registers a handler for an event type and returns a handle
	// that can be used to cancel it later.
	Subscribe(eventType string, handler EventHandler) (Subscription, error)
	// Unsubscribe cancels the given Subscription. It is safe to call with nil.
	Unsubscribe(Subscription) error
	// PublishBatch publishes events in order and aggregates errors across them.
	PublishBatch(events ...Event) error

	// AddObserver registers an observer notified after every delivery.
	AddObserver(obs Observer)
	RemoveObserver(obs Observer)
	// Metrics returns a snapshot of the delivery counters.
	Metrics() Metrics
}

// Event is an immutable message transported by the EventBus.
type Event interface {
	Type() string
	Source() string
	Timestamp() time.Time
	Data() any
}

// EventHandler is invoked per delivered event. Its error is returned from
// Publish joined with the errors of the other handlers.
type EventHandler func(event Event) error

// Subscription is a registered handler bound to an event type.
type Subscription interface {
	ID() string
	EventType() string
	IsActive() bool
	// Cancel de-registers the handler. Multiple calls are safe.
	Cancel() error
}

// Observer is told about every delivery. Implementations should return quickly.
type Observer interface {
	OnDelivered(event Event, handlers int, err error, took time.Duration)
}

type Metrics struct {
	Published         uint64
	DeliveredHandlers uint64
	Errors            uint64
	Unrouted          uint64
}
