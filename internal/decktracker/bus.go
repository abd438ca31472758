package decktracker

import (
	"context"
	"sync"

	"github.com/firestone-hs/decktracker/internal/gamestate"
)

// Notification is published after a parser changed the game state.
type Notification struct {
	Event NotificationEvent    `json:"event"`
	State *gamestate.GameState `json:"state"`
}

// NotificationEvent names what produced a notification.
type NotificationEvent struct {
	Name string `json:"name"`
}

// Emitter is an opaque sink for notifications. The dispatch loop neither
// waits on nor inspects what an emitter does with them.
type Emitter interface {
	Emit(ctx context.Context, n Notification)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ctx context.Context, n Notification)

// Emit calls f.
func (f EmitterFunc) Emit(ctx context.Context, n Notification) { f(ctx, n) }

// Listener receives every notification published on a Bus.
type Listener func(Notification)

// TypedListener receives notifications with one event name.
type TypedListener struct {
	Handle   int
	Name     string
	Callback func(Notification)
}

// Bus is the in-process notification bus. It is always the first emitter of
// a Service; views and the match recorder subscribe to it.
type Bus struct {
	mu             sync.RWMutex
	listeners      map[int]Listener
	typedListeners map[string][]TypedListener
	nextHandle     int
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{
		listeners:      make(map[int]Listener),
		typedListeners: make(map[string][]TypedListener),
	}
}

// Subscribe registers a listener for all notifications and returns a handle.
func (bus *Bus) Subscribe(listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.listeners[handle] = listener
	return handle
}

// SubscribeTyped registers a listener for one event name.
func (bus *Bus) SubscribeTyped(name string, callback func(Notification)) int {
	if callback == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.typedListeners[name] = append(bus.typedListeners[name], TypedListener{
		Handle:   handle,
		Name:     name,
		Callback: callback,
	})
	return handle
}

// Unsubscribe removes the listener identified by handle.
func (bus *Bus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	delete(bus.listeners, handle)
	for name, listeners := range bus.typedListeners {
		for i := len(listeners) - 1; i >= 0; i-- {
			if listeners[i].Handle == handle {
				bus.typedListeners[name] = append(listeners[:i], listeners[i+1:]...)
				break
			}
		}
	}
}

// Emit publishes n synchronously, in subscription order for typed listeners.
func (bus *Bus) Emit(ctx context.Context, n Notification) {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	for _, listener := range bus.listeners {
		listener(n)
	}
	for _, listener := range bus.typedListeners[n.Event.Name] {
		listener.Callback(n)
	}
}
