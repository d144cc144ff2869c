package a3interface

import (
	"sync"

	"github.com/OCAP2/coil/internal/dispatcher"
)

// host is the process-wide state read by the exported entry points. The
// simulator may call in from several threads while the extension is still
// initializing, so every field is guarded.
type host struct {
	mu         sync.RWMutex
	version    string
	errChan    chan []string
	dispatcher *dispatcher.Dispatcher
}

var current = &host{version: "No version set"}

func (h *host) get() (string, chan []string, *dispatcher.Dispatcher) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.version, h.errChan, h.dispatcher
}

// SetVersion sets the string returned to RVExtensionVersion.
func SetVersion(version string) {
	current.mu.Lock()
	current.version = version
	current.mu.Unlock()
}

// RegisterErrorChan receives [command, error] for every failed call. Sends
// never block; errors are dropped when the channel is full.
func RegisterErrorChan(ch chan []string) {
	current.mu.Lock()
	current.errChan = ch
	current.mu.Unlock()
}

// SetDispatcher routes all calls to d.
func SetDispatcher(d *dispatcher.Dispatcher) {
	current.mu.Lock()
	current.dispatcher = d
	current.mu.Unlock()
}

// GetDispatcher returns the configured dispatcher, or nil if not set
func GetDispatcher() *dispatcher.Dispatcher {
	_, _, d := current.get()
	return d
}
