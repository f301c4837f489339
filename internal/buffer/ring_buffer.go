// Package buffer keeps the recent output of a session for replay to newly
// attached clients.
package buffer

import (
	"sync"
)

// RingBuffer is a thread-safe circular byte buffer holding the most recent
// capacity bytes written to it.
type RingBuffer struct {
	mu      sync.RWMutex
	buf     []byte
	start   int
	size    int
	written int64
}

// NewRingBuffer creates a new RingBuffer with the specified capacity.
// The capacity must be greater than 0; if not, it defaults to 1.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &RingBuffer{buf: make([]byte, capacity)}
}

// Write appends p, overwriting the oldest bytes once the buffer is full.
// It never fails.
func (rb *RingBuffer) Write(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}

	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.written += int64(len(p))
	capacity := len(rb.buf)

	if len(p) >= capacity {
		copy(rb.buf, p[len(p)-capacity:])
		rb.start = 0
		rb.size = capacity
		return len(p), nil
	}

	end := (rb.start + rb.size) % capacity
	copied := copy(rb.buf[end:], p)
	copy(rb.buf, p[copied:])

	rb.size += len(p)
	if rb.size > capacity {
		rb.start = (rb.start + rb.size - capacity) % capacity
		rb.size = capacity
	}
	return len(p), nil
}

// ReadAll returns a copy of the buffered bytes, oldest first.
func (rb *RingBuffer) ReadAll() []byte {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if rb.size == 0 {
		return nil
	}
	out := make([]byte, rb.size)
	n := copy(out, rb.buf[rb.start:min(rb.start+rb.size, len(rb.buf))])
	copy(out[n:], rb.buf)
	return out
}

// Clear removes all data from the buffer.
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.start = 0
	rb.size = 0
}

// Len returns the current number of bytes in the buffer.
func (rb *RingBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	return rb.size
}

// Cap returns the capacity of the buffer.
func (rb *RingBuffer) Cap() int {
	return len(rb.buf)
}

// Written returns the number of bytes ever written, including discarded ones.
func (rb *RingBuffer) Written() int64 {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	return rb.written
}
