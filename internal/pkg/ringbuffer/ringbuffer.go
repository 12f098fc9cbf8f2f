// Package ringbuffer provides a fixed-capacity buffer that keeps the most
// recent entries and drops the oldest when full.
package ringbuffer

import (
	"sync"
)

// Item is one retained entry with the ordering key it was pushed under.
type Item[T any] struct {
	Timestamp int64
	Value     T
}

// RingBuffer retains up to capacity items in push order. It is safe for
// concurrent use.
type RingBuffer[T any] struct {
	mu       sync.RWMutex
	items    []Item[T]
	capacity int
	size     int
	head     int
}

// New creates a buffer holding at most capacity items.
func New[T any](capacity int) *RingBuffer[T] {
	if capacity <= 0 {
		capacity = 1
	}

	return &RingBuffer[T]{
		items:    make([]Item[T], capacity),
		capacity: capacity,
	}
}

// Push appends an item. When the buffer is full the oldest item is dropped.
func (rb *RingBuffer[T]) Push(timestamp int64, value T) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	tail := (rb.head + rb.size) % rb.capacity
	rb.items[tail] = Item[T]{Timestamp: timestamp, Value: value}

	if rb.size < rb.capacity {
		rb.size++
	} else {
		rb.head = (rb.head + 1) % rb.capacity
	}
}

// Range visits retained items from oldest to newest until fn returns false.
func (rb *RingBuffer[T]) Range(fn func(timestamp int64, value T) bool) {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	for i := range rb.size {
		item := rb.items[(rb.head+i)%rb.capacity]
		if !fn(item.Timestamp, item.Value) {
			break
		}
	}
}

// Len returns the number of retained items.
func (rb *RingBuffer[T]) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	return rb.size
}

// Capacity returns the maximum number of retained items.
func (rb *RingBuffer[T]) Capacity() int {
	return rb.capacity
}

// Clear drops all retained items.
func (rb *RingBuffer[T]) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.size = 0
	rb.head = 0
}

// GetAll returns the retained items from oldest to newest.
func (rb *RingBuffer[T]) GetAll() []Item[T] {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if rb.size == 0 {
		return nil
	}

	result := make([]Item[T], 0, rb.size)
	for i := range rb.size {
		result = append(result, rb.items[(rb.head+i)%rb.capacity])
	}

	return result
}
