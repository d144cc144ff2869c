// Package cache holds the host-side contact snapshot the weapons scan against.
package cache

import (
	"slices"
	"sync"

	"github.com/OCAP2/coil/internal/scan"
	"github.com/OCAP2/coil/pkg/core"
)

// Record is one contact as reported by the host, with the contact's own network.
type Record struct {
	Contact core.Contact
	Network core.NetworkID
}

// ContactCache is replaced wholesale by each contact report and queried by
// every weapon scan in between. TargetNetwork is resolved against the
// contacts themselves and the platforms known to Networks.
type ContactCache struct {
	mu        sync.RWMutex
	contacts  map[core.EntityID]core.Contact
	networks  map[core.EntityID]core.NetworkID
	order     []core.EntityID
	platforms *NetworkCache
}

// NewContactCache returns an empty cache resolving platform networks through platforms.
func NewContactCache(platforms *NetworkCache) *ContactCache {
	if platforms == nil {
		platforms = NewNetworkCache()
	}
	return &ContactCache{
		contacts:  make(map[core.EntityID]core.Contact),
		networks:  make(map[core.EntityID]core.NetworkID),
		platforms: platforms,
	}
}

// Replace swaps in a new snapshot. Later duplicates of an id win.
func (c *ContactCache) Replace(records []Record) {
	contacts := make(map[core.EntityID]core.Contact, len(records))
	networks := make(map[core.EntityID]core.NetworkID, len(records))
	order := make([]core.EntityID, 0, len(records))
	for _, r := range records {
		if _, ok := contacts[r.Contact.ID]; !ok {
			order = append(order, r.Contact.ID)
		}
		contacts[r.Contact.ID] = r.Contact
		networks[r.Contact.ID] = r.Network
	}
	slices.Sort(order)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.contacts = contacts
	c.networks = networks
	c.order = order
}

// Reset clears the snapshot.
func (c *ContactCache) Reset() {
	c.Replace(nil)
}

// Len returns the number of contacts in the snapshot.
func (c *ContactCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// resolve fills TargetNetwork. Caller holds the read lock.
func (c *ContactCache) resolve(ct core.Contact) core.Contact {
	ct.TargetNetwork = ""
	if ct.TargetID == "" {
		return ct
	}
	if n, ok := c.platforms.Get(ct.TargetID); ok {
		ct.TargetNetwork = n
	} else if n, ok := c.networks[ct.TargetID]; ok {
		ct.TargetNetwork = n
	}
	return ct
}

// Query returns the contacts within q.Radius of q.Origin, ordered by id.
func (c *ContactCache) Query(q scan.Query) ([]core.Contact, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []core.Contact
	for _, id := range c.order {
		if id == q.Exclude {
			continue
		}
		ct := c.contacts[id]
		if ct.Position.DistanceTo(q.Origin) > q.Radius {
			continue
		}
		out = append(out, c.resolve(ct))
	}
	return out, nil
}

// Lookup returns the current snapshot of one contact.
func (c *ContactCache) Lookup(id core.EntityID) (core.Contact, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ct, ok := c.contacts[id]
	if !ok {
		return core.Contact{}, false
	}
	return c.resolve(ct), true
}

// Bodies lists every contact for line-of-sight tests.
func (c *ContactCache) Bodies() []core.Contact {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]core.Contact, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.contacts[id])
	}
	return out
}
