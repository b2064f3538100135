package buffer

import (
	"sync"
)

// RingBuffer is a fixed-size circular buffer. Pushing into a full buffer
// overwrites the oldest item.
type RingBuffer[T any] struct {
	buffer []T
	size   int
	head   int
	count  int
	mu     sync.RWMutex
}

// NewRingBuffer creates a new ring buffer with the specified size
func NewRingBuffer[T any](size int) *RingBuffer[T] {
	if size < 1 {
		size = 1
	}
	return &RingBuffer[T]{
		buffer: make([]T, size),
		size:   size,
	}
}

// Push adds a new item to the buffer
func (rb *RingBuffer[T]) Push(item T) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.buffer[rb.head] = item
	rb.head = (rb.head + 1) % rb.size
	if rb.count < rb.size {
		rb.count++
	}
}

func (rb *RingBuffer[T]) tail() int {
	return (rb.head - rb.count + rb.size) % rb.size
}

// Pop removes and returns the oldest item
func (rb *RingBuffer[T]) Pop() (T, bool) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	var zero T
	if rb.count == 0 {
		return zero, false
	}
	t := rb.tail()
	item := rb.buffer[t]
	rb.buffer[t] = zero
	rb.count--
	return item, true
}

// Count returns the number of items currently in the buffer
func (rb *RingBuffer[T]) Count() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

// IsFull returns true if the buffer is full
func (rb *RingBuffer[T]) IsFull() bool {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count == rb.size
}

// Clear removes all items from the buffer
func (rb *RingBuffer[T]) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.buffer = make([]T, rb.size)
	rb.head = 0
	rb.count = 0
}

// GetAll returns all items, oldest first, without removing them
func (rb *RingBuffer[T]) GetAll() []T {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	items := make([]T, 0, rb.count)
	for i, t := 0, rb.tail(); i < rb.count; i++ {
		items = append(items, rb.buffer[(t+i)%rb.size])
	}
	return items
}

// Latest returns up to n items, newest first
func (rb *RingBuffer[T]) Latest(n int) []T {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if n <= 0 || n > rb.count {
		n = rb.count
	}
	items := make([]T, 0, n)
	for i := 1; i <= n; i++ {
		items = append(items, rb.buffer[(rb.head-i+rb.size)%rb.size])
	}
	return items
}
