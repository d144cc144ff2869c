package handlers

import (
	"slices"
	"sync"

	"github.com/OCAP2/coil/pkg/core"
)

// Collector buffers the host-facing effects the coordinator emits during a
// tick: damage applications, ammo consumption and resupply requests.
type Collector struct {
	mu       sync.Mutex
	damage   []core.Damage
	consumed map[core.EntityID]float64
	resupply []core.EntityID
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{consumed: make(map[core.EntityID]float64)}
}

// ApplyDamage queues a damage order for the host.
func (c *Collector) ApplyDamage(d core.Damage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.damage = append(c.damage, d)
}

// NotifyConsumed accumulates ammo drawn from a platform reserve.
func (c *Collector) NotifyConsumed(platform core.EntityID, units float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consumed[platform] += units
}

// RequestResupply queues a resupply request. Repeated requests within one
// tick are reported once.
func (c *Collector) RequestResupply(platform core.EntityID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !slices.Contains(c.resupply, platform) {
		c.resupply = append(c.resupply, platform)
	}
}

// drain returns and clears everything collected since the last drain.
func (c *Collector) drain() ([]core.Damage, map[core.EntityID]float64, []core.EntityID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	damage, consumed, resupply := c.damage, c.consumed, c.resupply
	c.damage = nil
	c.consumed = make(map[core.EntityID]float64)
	c.resupply = nil
	return damage, consumed, resupply
}
