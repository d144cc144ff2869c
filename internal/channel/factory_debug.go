//go:build debug

package channel

// New creates a new channel
// In debug builds every channel holds a single item so overflow paths are hit early.
func New[T any](size int) Channel[T] {
	return NewBuffered[T](1)
}
