package events

import (
	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher for in-process event broadcasting.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// Usage: bus.Publish(RecorderStateEvent{...})
func (b *Bus) Publish(ev Event) {
	// kelindar/event is generic over the concrete event type, so dispatch
	// through a type switch.
	switch e := ev.(type) {
	case RecorderStateEvent:
		event.Publish(b.dispatcher, e)
	case StopRequestedEvent:
		event.Publish(b.dispatcher, e)
	case RecordingFinishedEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes a handler function; the handler's parameter type
// determines which events it receives. Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e RecorderStateEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(RecorderStateEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StopRequestedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(RecordingFinishedEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
