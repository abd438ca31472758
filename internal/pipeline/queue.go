package pipeline

import "sync"

// Queue is an unbounded FIFO safe for concurrent producers and a single
// consumer. It never drops or reorders items.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	signal chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{signal: make(chan struct{}, 1)}
}

// Enqueue appends item to the tail and wakes the consumer.
func (q *Queue[T]) Enqueue(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
	q.Notify()
}

// Dequeue removes and returns the head item.
func (q *Queue[T]) Dequeue() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return item, true
}

// Peek returns the head item without removing it.
func (q *Queue[T]) Peek() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}
	return q.items[0], true
}

// Find returns the first queued item, from the head, that match accepts.
func (q *Queue[T]) Find(match func(T) bool) (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, item := range q.items {
		if match(item) {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Len returns the current depth.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Notify wakes the consumer without enqueueing anything. Extra wake-ups
// coalesce into one.
func (q *Queue[T]) Notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Ready is signalled after items are enqueued or Notify is called.
func (q *Queue[T]) Ready() <-chan struct{} {
	return q.signal
}
