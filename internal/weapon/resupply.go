package weapon

import (
	"sync"

	"github.com/OCAP2/coil/internal/channel"
	"github.com/OCAP2/coil/pkg/core"
)

// ResupplyGrant is delivered to every subscriber of a platform when it is resupplied.
type ResupplyGrant struct {
	PlatformID core.EntityID
	At         float64
}

// ResupplyHub fans resupply grants out to per-instance channels. Producers may
// be on any goroutine; subscribers poll once per tick.
type ResupplyHub struct {
	mu     sync.Mutex
	subs   map[core.EntityID]map[uint64]channel.Channel[ResupplyGrant]
	nextID uint64
	size   int
}

// NewResupplyHub returns a hub whose subscriber channels buffer size grants.
func NewResupplyHub(size int) *ResupplyHub {
	return &ResupplyHub{
		subs: make(map[core.EntityID]map[uint64]channel.Channel[ResupplyGrant]),
		size: size,
	}
}

// Subscription is a single instance's registration. It must be closed with
// Unsubscribe when the instance goes away.
type Subscription struct {
	hub      *ResupplyHub
	platform core.EntityID
	id       uint64
	ch       channel.Channel[ResupplyGrant]
}

// Subscribe registers a new receiver for platform grants.
func (h *ResupplyHub) Subscribe(platform core.EntityID) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	ch := channel.New[ResupplyGrant](h.size)
	if h.subs[platform] == nil {
		h.subs[platform] = make(map[uint64]channel.Channel[ResupplyGrant])
	}
	h.subs[platform][h.nextID] = ch
	return &Subscription{hub: h, platform: platform, id: h.nextID, ch: ch}
}

// Grant notifies every subscriber of platform and returns how many received it.
func (h *ResupplyHub) Grant(platform core.EntityID, at float64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	delivered := 0
	for _, ch := range h.subs[platform] {
		if ch.TrySend(ResupplyGrant{PlatformID: platform, At: at}) {
			delivered++
		}
	}
	return delivered
}

// Subscribers returns the number of live subscriptions for platform.
func (h *ResupplyHub) Subscribers(platform core.EntityID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[platform])
}

// Poll drains pending grants without blocking and reports whether any arrived.
func (s *Subscription) Poll() (ResupplyGrant, bool) {
	var (
		last ResupplyGrant
		got  bool
	)
	for {
		g, ok := s.ch.TryReceive()
		if !ok {
			return last, got
		}
		last, got = g, true
	}
}

// Unsubscribe removes the subscription and closes its channel. Safe to call twice.
func (s *Subscription) Unsubscribe() {
	h := s.hub
	h.mu.Lock()
	if subs, ok := h.subs[s.platform]; ok {
		delete(subs, s.id)
		if len(subs) == 0 {
			delete(h.subs, s.platform)
		}
	}
	h.mu.Unlock()
	s.ch.Close()
}
