package monitor

import (
	"sync"

	"github.com/nvoss/logvigil/internal/entry"
)

// Buffer is a bounded FIFO of log entries shared by all sources. When
// full, adding evicts the oldest entry so fresh data always lands.
type Buffer struct {
	mu      sync.Mutex
	ring    []entry.Entry
	head    int
	n       int
	dropped uint64
}

// NewBuffer creates a buffer holding at most capacity entries.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	return &Buffer{ring: make([]entry.Entry, capacity)}
}

// Add appends e, evicting the oldest entry if the buffer is full.
// It reports whether an eviction happened.
func (b *Buffer) Add(e entry.Entry) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.n == len(b.ring) {
		b.ring[b.head] = e
		b.head = (b.head + 1) % len(b.ring)
		b.dropped++
		return true
	}
	b.ring[(b.head+b.n)%len(b.ring)] = e
	b.n++
	return false
}

// Drain removes and returns up to max entries, oldest first. max <= 0
// drains everything.
func (b *Buffer) Drain(max int) []entry.Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	if max <= 0 || max > b.n {
		max = b.n
	}
	if max == 0 {
		return nil
	}
	out := make([]entry.Entry, max)
	for i := range out {
		out[i] = b.ring[b.head]
		b.ring[b.head] = entry.Entry{}
		b.head = (b.head + 1) % len(b.ring)
	}
	b.n -= max
	return out
}

// Len returns the number of buffered entries.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.n
}

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ring)
}

// Dropped returns how many entries have been evicted since creation.
func (b *Buffer) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
