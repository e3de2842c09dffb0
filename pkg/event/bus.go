package event

import (
	"sync"

	"github.com/google/wire"
)

// ProviderSet is the Wire provider set for the event bus.
var ProviderSet = wire.NewSet(NewBus)

// Bus is an in-process publish/subscribe dispatcher for engine events.
// Handlers run synchronously on the publisher's goroutine.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	catchAll []Handler
}

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
	}
}

// Subscribe registers a handler for one event name.
func (b *Bus) Subscribe(eventName string, handler Handler) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

// SubscribeAll registers a handler for every event.
func (b *Bus) SubscribeAll(handler Handler) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.catchAll = append(b.catchAll, handler)
}

// Publish dispatches the event to all matching handlers.
func (b *Bus) Publish(event Event) {
	if event == nil {
		return
	}
	b.mu.RLock()
	named := b.handlers[event.EventName()]
	all := b.catchAll
	b.mu.RUnlock()

	for _, handler := range named {
		handler.Handle(event)
	}
	for _, handler := range all {
		handler.Handle(event)
	}
}
