package pool

import "sync"

// EventQueue is an unbounded, ordered, multi-producer/single-consumer
// queue. Tasks push events; the controller drains whatever is buffered
// in one non-blocking call during reconciliation. Per-producer emission
// order is preserved; no order is guaranteed across producers.
type EventQueue[T any] struct {
	mu      sync.Mutex
	entries []T
}

// NewEventQueue creates an empty queue.
func NewEventQueue[T any]() *EventQueue[T] {
	return &EventQueue[T]{}
}

// Push appends an event to the back of the queue. Never blocks.
func (q *EventQueue[T]) Push(v T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, v)
}

// DrainAll removes and returns everything currently buffered, leaving
// the queue empty. Returns nil if the queue was empty.
func (q *EventQueue[T]) DrainAll() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries := q.entries
	q.entries = nil
	return entries
}

// Len returns the current number of buffered events.
func (q *EventQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
