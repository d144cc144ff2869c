// Package channel provides generic notification channels that producers and
// tick-driven consumers exchange without blocking.
package channel

// Receiver provides read access to a channel.
type Receiver[T any] interface {
	Receive() <-chan T
	// TryReceive returns the next value without blocking.
	TryReceive() (T, bool)
	Len() int
}

// Sender provides write access to a channel.
type Sender[T any] interface {
	// TrySend delivers v without blocking. It returns false when the buffer is
	// full or the channel is closed.
	TrySend(v T) bool
}

// Channel combines read and write access.
type Channel[T any] interface {
	Receiver[T]
	Sender[T]
	Close()
}
