package channel

import "sync"

// Buffered is a buffered channel that is safe to close while producers are active.
type Buffered[T any] struct {
	mu     sync.RWMutex
	ch     chan T
	closed bool
}

// NewBuffered creates a new buffered channel with the given size
func NewBuffered[T any](size int) *Buffered[T] {
	if size < 1 {
		size = 1
	}
	return &Buffered[T]{ch: make(chan T, size)}
}

// TrySend sends a value unless the buffer is full or the channel is closed.
func (b *Buffered[T]) TrySend(v T) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return false
	}
	select {
	case b.ch <- v:
		return true
	default:
		return false
	}
}

// TryReceive pops the next value if one is buffered.
func (b *Buffered[T]) TryReceive() (T, bool) {
	select {
	case v, ok := <-b.ch:
		return v, ok
	default:
		var zero T
		return zero, false
	}
}

// Receive returns the receive-only channel
func (b *Buffered[T]) Receive() <-chan T {
	return b.ch
}

// Len returns the number of items currently in the buffer
func (b *Buffered[T]) Len() int {
	return len(b.ch)
}

// Close closes the channel. Closing twice is a no-op.
func (b *Buffered[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.ch)
}
