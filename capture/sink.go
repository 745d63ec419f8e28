package capture

import "context"

// Sink is the delivery capability a Session dispatches committed
// events to. Implementations live in package sink; this interface is
// declared here, next to Event, so package sink can depend on capture
// without capture ever depending back on sink.
type Sink interface {
	Name() string
	// Deliver sends one event. Implementations own their own retry
	// policy internally; Deliver returns nil once the event is
	// accepted, and a non-nil error when the sink rejected it or gave
	// up after exhausting its retries, in which case the session treats
	// delivery of this event, and of the transaction it belongs to, as
	// having failed.
	Deliver(ctx context.Context, ev *Event) error
}
