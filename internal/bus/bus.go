// Package bus provides the bounded, non-blocking handoff between the
// frame producer and the sample consumer.
package bus

import "sync"

// DefaultCapacity matches the depth of the tag's original sample queue.
const DefaultCapacity = 8

// Bus is a fixed-capacity ring. TryPush never blocks: when the ring is
// full the single oldest element is discarded to admit the new one, so
// the consumer always drains toward fresher data. Safe for concurrent
// use by one producer and one consumer.
type Bus[T any] struct {
	mu    sync.Mutex
	items []T
	head  int
	count int
}

// New returns a bus with the given capacity; capacity <= 0 selects
// DefaultCapacity.
func New[T any](capacity int) *Bus[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus[T]{items: make([]T, capacity)}
}

// TryPush enqueues v without blocking. dropped reports whether an
// oldest element had to be discarded to make room.
func (b *Bus[T]) TryPush(v T) (dropped bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == len(b.items) {
		// Full: drop exactly the oldest queued element.
		b.head = (b.head + 1) % len(b.items)
		b.count--
		dropped = true
	}
	b.items[(b.head+b.count)%len(b.items)] = v
	b.count++
	return dropped
}

// TryPull dequeues the oldest element without blocking. ok is false
// when the bus is empty.
func (b *Bus[T]) TryPull() (v T, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return v, false
	}
	var zero T
	v = b.items[b.head]
	b.items[b.head] = zero
	b.head = (b.head + 1) % len(b.items)
	b.count--
	return v, true
}

// Len reports the number of queued elements.
func (b *Bus[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Cap reports the fixed capacity.
func (b *Bus[T]) Cap() int {
	return len(b.items)
}
