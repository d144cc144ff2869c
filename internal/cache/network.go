package cache

import (
	"sync"

	"github.com/OCAP2/coil/pkg/core"
)

// NetworkCache maps platform ids to their allied network
type NetworkCache struct {
	mu       sync.RWMutex
	networks map[core.EntityID]core.NetworkID
}

// NewNetworkCache creates a new NetworkCache
func NewNetworkCache() *NetworkCache {
	return &NetworkCache{
		networks: make(map[core.EntityID]core.NetworkID),
	}
}

// Get retrieves a platform's network
func (c *NetworkCache) Get(id core.EntityID) (core.NetworkID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n, ok := c.networks[id]
	return n, ok
}

// Set stores a platform's network
func (c *NetworkCache) Set(id core.EntityID, network core.NetworkID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.networks[id] = network
}

// Delete removes a platform
func (c *NetworkCache) Delete(id core.EntityID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.networks, id)
}

// Len returns the number of known platforms
func (c *NetworkCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.networks)
}

// Reset clears all platforms from the cache
func (c *NetworkCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.networks = make(map[core.EntityID]core.NetworkID)
}
