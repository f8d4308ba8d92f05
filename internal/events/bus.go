// Package events carries run lifecycle notifications between the supervisor
// and its observers (metrics, systemd notify, tests).
package events

import (
	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher. Handlers run asynchronously.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers of its concrete type.
// A nil bus drops the event.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	switch e := ev.(type) {
	case RunStartedEvent:
		event.Publish(b.dispatcher, e)
	case ProcessStartedEvent:
		event.Publish(b.dispatcher, e)
	case ProcessSpawnFailedEvent:
		event.Publish(b.dispatcher, e)
	case ProcessExitedEvent:
		event.Publish(b.dispatcher, e)
	case ConsumerExitedEvent:
		event.Publish(b.dispatcher, e)
	case EnvironmentLostEvent:
		event.Publish(b.dispatcher, e)
	case CleanupStartedEvent:
		event.Publish(b.dispatcher, e)
	case CleanupCompletedEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers a handler; the handler's parameter type selects the
// events it receives. Unknown handler types get a no-op unsubscribe.
//
//	unsub := bus.Subscribe(func(e ProcessExitedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(RunStartedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ProcessStartedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ProcessSpawnFailedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ProcessExitedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ConsumerExitedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(EnvironmentLostEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CleanupStartedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CleanupCompletedEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}

// SubscribeToChannel forwards events of type T to ch, dropping them when ch
// is full.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- T) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}
