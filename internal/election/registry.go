// Package election tracks which weapon instance is primary for each platform.
package election

import (
	"io"
	"log/slog"

	"github.com/OCAP2/coil/internal/ammo"
	"github.com/OCAP2/coil/pkg/core"
)

// Role of a weapon instance.
type Role uint8

const (
	Inert Role = iota
	Primary
	Secondary
)

func (r Role) String() string {
	switch r {
	case Primary:
		return "primary"
	case Secondary:
		return "secondary"
	default:
		return "inert"
	}
}

type platformEntry struct {
	primary core.EntityID
	// members in activation order
	members []core.EntityID
	ledger  *ammo.Ledger
}

// Registry is the arena of platforms and their weapon instances. It is owned
// by a coordinator and is not safe for concurrent use.
type Registry struct {
	platforms map[core.EntityID]*platformEntry
	instances map[core.EntityID]core.EntityID
	inert     map[core.EntityID]bool
	logger    *slog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Registry{
		platforms: make(map[core.EntityID]*platformEntry),
		instances: make(map[core.EntityID]core.EntityID),
		inert:     make(map[core.EntityID]bool),
		logger:    logger,
	}
}

// Activate registers an instance. The first live instance on a platform becomes
// primary and receives a ledger from newLedger. An instance without a platform
// stays inert and is logged once.
func (r *Registry) Activate(platformID, instanceID core.EntityID, newLedger func() *ammo.Ledger) Role {
	if platformID == "" {
		if !r.inert[instanceID] {
			r.inert[instanceID] = true
			r.logger.Warn("weapon instance has no platform, staying inert", "instance", instanceID)
		}
		return Inert
	}
	if existing, ok := r.instances[instanceID]; ok {
		if existing == platformID {
			return r.Role(instanceID)
		}
		r.Deactivate(instanceID)
	}

	entry, ok := r.platforms[platformID]
	if !ok {
		entry = &platformEntry{}
		r.platforms[platformID] = entry
	}
	entry.members = append(entry.members, instanceID)
	r.instances[instanceID] = platformID

	if entry.primary == "" {
		entry.primary = instanceID
		if entry.ledger == nil && newLedger != nil {
			entry.ledger = newLedger()
		}
		r.logger.Info("weapon instance elected primary", "platform", platformID, "instance", instanceID)
		return Primary
	}
	r.logger.Debug("weapon instance is secondary", "platform", platformID, "instance", instanceID, "primary", entry.primary)
	return Secondary
}

// Deactivate removes an instance. When it was primary, the earliest surviving
// instance is promoted and inherits the ledger. promoted is empty if no
// promotion happened.
func (r *Registry) Deactivate(instanceID core.EntityID) (promoted core.EntityID) {
	delete(r.inert, instanceID)
	platformID, ok := r.instances[instanceID]
	if !ok {
		return ""
	}
	delete(r.instances, instanceID)
	entry := r.platforms[platformID]
	for i, m := range entry.members {
		if m == instanceID {
			entry.members = append(entry.members[:i], entry.members[i+1:]...)
			break
		}
	}

	if len(entry.members) == 0 {
		delete(r.platforms, platformID)
		r.logger.Info("platform has no weapon instances left", "platform", platformID)
		return ""
	}
	if entry.primary != instanceID {
		return ""
	}
	entry.primary = entry.members[0]
	r.logger.Info("weapon instance promoted to primary", "platform", platformID, "instance", entry.primary)
	return entry.primary
}

// Role returns the current role of an instance.
func (r *Registry) Role(instanceID core.EntityID) Role {
	platformID, ok := r.instances[instanceID]
	if !ok {
		return Inert
	}
	if r.platforms[platformID].primary == instanceID {
		return Primary
	}
	return Secondary
}

// Primary returns the primary instance of a platform.
func (r *Registry) Primary(platformID core.EntityID) (core.EntityID, bool) {
	entry, ok := r.platforms[platformID]
	if !ok || entry.primary == "" {
		return "", false
	}
	return entry.primary, true
}

// Platform returns the platform an instance is mounted on.
func (r *Registry) Platform(instanceID core.EntityID) (core.EntityID, bool) {
	p, ok := r.instances[instanceID]
	return p, ok
}

// Ledger returns the ledger for a primary instance and nil for everything else,
// so secondaries cannot reach the reserve.
func (r *Registry) Ledger(instanceID core.EntityID) *ammo.Ledger {
	platformID, ok := r.instances[instanceID]
	if !ok {
		return nil
	}
	entry := r.platforms[platformID]
	if entry.primary != instanceID {
		return nil
	}
	return entry.ledger
}

// Instances returns the instances of a platform in activation order.
func (r *Registry) Instances(platformID core.EntityID) []core.EntityID {
	entry, ok := r.platforms[platformID]
	if !ok {
		return nil
	}
	out := make([]core.EntityID, len(entry.members))
	copy(out, entry.members)
	return out
}

// Platforms returns the number of platforms with at least one instance.
func (r *Registry) Platforms() int {
	return len(r.platforms)
}
