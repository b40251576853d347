// SPDX-License-Identifier: MPL-2.0

// Package eventbus is a small typed publish/subscribe bus used to decouple
// the mod engine from whatever renders its state.
package eventbus

import (
	"slices"
	"sync"
)

// Handler is a callback function for events.
type Handler[T any] func(T)

// Bus is a typed event bus that delivers events to registered handlers.
type Bus[T any] struct {
	mu       sync.RWMutex
	handlers map[int]Handler[T]
	nextID   int
}

// New creates a new event bus.
func New[T any]() *Bus[T] {
	return &Bus[T]{
		handlers: make(map[int]Handler[T]),
	}
}

// Subscribe registers a handler and returns an unsubscribe function.
func (b *Bus[T]) Subscribe(handler Handler[T]) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = handler
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}
}

// Publish sends event to every handler synchronously, in subscription order.
// Handlers run outside the lock so they may subscribe or unsubscribe.
func (b *Bus[T]) Publish(event T) {
	b.mu.RLock()
	ids := make([]int, 0, len(b.handlers))
	for id := range b.handlers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	snapshot := make([]Handler[T], 0, len(ids))
	for _, id := range ids {
		snapshot = append(snapshot, b.handlers[id])
	}
	b.mu.RUnlock()

	for _, h := range snapshot {
		h(event)
	}
}

// Count returns the number of registered handlers.
func (b *Bus[T]) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}
