package mission

import (
	"sync"

	"github.com/OCAP2/coil/pkg/core"
)

// Context holds the current recording session and the last simulation time seen
type Context struct {
	mu      sync.RWMutex
	session *core.Session
	simTime float64
}

// NewContext creates a new Context with no session running
func NewContext() *Context {
	return &Context{}
}

// GetSession returns the current session, nil if none is running
func (mc *Context) GetSession() *core.Session {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.session
}

// SessionName returns the current session name or a placeholder
func (mc *Context) SessionName() string {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	if mc.session == nil {
		return "No session loaded"
	}
	return mc.session.Name
}

// SetSession replaces the current session
func (mc *Context) SetSession(s *core.Session) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.session = s
}

// SimTime returns the simulation time of the last tick
func (mc *Context) SimTime() float64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.simTime
}

// SetSimTime records the simulation time of a tick
func (mc *Context) SetSimTime(t float64) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.simTime = t
}
