package libcable

import (
	"sync"
)

type callback[T any] func(T)

type listener[T any] struct {
	id uint64
	fn callback[T]
}

// EventEmitterCallback maps events (of type K) to callbacks receiving a value of type V.
// Callbacks run synchronously on the emitting goroutine and may register or remove listeners themselves.
type EventEmitterCallback[K comparable, V any] struct {
	listeners map[K][]listener[V]
	nextID    uint64
	lock      sync.RWMutex
}

// NewEventEmitter creates a new EventEmitterCallback and returns a pointer to it.
func NewEventEmitter[K comparable, V any]() *EventEmitterCallback[K, V] {
	return &EventEmitterCallback[K, V]{
		listeners: make(map[K][]listener[V]),
	}
}

// On registers a new listener for the given event and returns a function removing it.
func (e *EventEmitterCallback[K, V]) On(event K, fn callback[V]) (off func()) {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.nextID++
	id := e.nextID
	e.listeners[event] = append(e.listeners[event], listener[V]{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { e.remove(event, id) })
	}
}

func (e *EventEmitterCallback[K, V]) remove(event K, id uint64) {
	e.lock.Lock()
	defer e.lock.Unlock()

	current := e.listeners[event]
	kept := make([]listener[V], 0, len(current))
	for _, l := range current {
		if l.id != id {
			kept = append(kept, l)
		}
	}
	if len(kept) == 0 {
		delete(e.listeners, event)
		return
	}
	e.listeners[event] = kept
}

// Emit triggers all listeners registered for the given event, in registration order.
func (e *EventEmitterCallback[K, V]) Emit(event K, data V) {
	e.lock.RLock()
	listeners := append([]listener[V](nil), e.listeners[event]...)
	e.lock.RUnlock()

	for _, l := range listeners {
		l.fn(data)
	}
}

// Close removes all listeners.
func (e *EventEmitterCallback[K, V]) Close() {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.listeners = make(map[K][]listener[V])
}
