package weapon

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/OCAP2/coil/internal/ammo"
	"github.com/OCAP2/coil/internal/election"
	"github.com/OCAP2/coil/internal/engagement"
	"github.com/OCAP2/coil/internal/geometry"
	"github.com/OCAP2/coil/internal/override"
	"github.com/OCAP2/coil/internal/scan"
	"github.com/OCAP2/coil/internal/threat"
	"github.com/OCAP2/coil/pkg/core"
)

var (
	ErrUnknownPlatform = errors.New("unknown platform")
	ErrUnknownWeapon   = errors.New("unknown weapon")
)

// PlatformAmmoSink receives the ammo notifications of every platform ledger.
type PlatformAmmoSink interface {
	NotifyConsumed(platform core.EntityID, units float64)
	RequestResupply(platform core.EntityID)
}

// Deps are the host services a coordinator drives. Registry and Raycaster are
// required; the sinks may be nil.
type Deps struct {
	Registry  scan.Registry
	Raycaster geometry.Raycaster
	Damage    engagement.DamageSink
	Ammo      PlatformAmmoSink
	Logger    *slog.Logger
	Clock     func() time.Time
}

// OverrideReport is the turret override outcome for one platform.
type OverrideReport struct {
	PlatformID core.EntityID
	Result     override.Result
}

// CycleReport is everything that happened during one coordinator tick.
type CycleReport struct {
	Weapons   []TickReport
	Overrides []OverrideReport
}

// Events flattens the engagement events of every weapon in tick order.
func (r CycleReport) Events() []core.EngagementEvent {
	var out []core.EngagementEvent
	for _, w := range r.Weapons {
		out = append(out, w.Events...)
	}
	return out
}

type platform struct {
	network  core.NetworkID
	pose     core.Pose
	posed    bool
	override *override.Controller
	turrets  map[core.EntityID]*Turret
}

// Coordinator owns every weapon instance and the per-platform election. It is
// not safe for concurrent use; callers serialize access.
type Coordinator struct {
	cfg      Config
	deps     Deps
	election *election.Registry
	hub      *ResupplyHub
	scorer   *threat.Scorer
	metrics  *metrics
	logger   *slog.Logger

	beams     map[core.EntityID]*Beam
	order     []core.EntityID
	platforms map[core.EntityID]*platform

	authoritative bool
}

// NewCoordinator returns an authoritative coordinator with no weapons mounted.
func NewCoordinator(cfg Config, deps Deps) (*Coordinator, error) {
	if deps.Registry == nil {
		return nil, errors.New("weapon coordinator needs a contact registry")
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	m, err := newMetrics()
	if err != nil {
		return nil, fmt.Errorf("weapon metrics: %w", err)
	}
	if cfg.Override.MaxRange <= 0 {
		cfg.Override.MaxRange = cfg.MaxRange
	}
	return &Coordinator{
		cfg:           cfg,
		deps:          deps,
		election:      election.NewRegistry(deps.Logger),
		hub:           NewResupplyHub(4),
		scorer:        threat.NewScorer(cfg.Weights),
		metrics:       m,
		logger:        deps.Logger,
		beams:         make(map[core.EntityID]*Beam),
		platforms:     make(map[core.EntityID]*platform),
		authoritative: true,
	}, nil
}

// SetAuthoritative selects whether damage and turret orders are applied or
// only computed.
func (c *Coordinator) SetAuthoritative(v bool) {
	if v != c.authoritative {
		c.logger.Info("authority changed", "authoritative", v)
	}
	c.authoritative = v
}

func (c *Coordinator) Authoritative() bool { return c.authoritative }

// platformSink adapts the host ammo sink to one platform ledger.
type platformSink struct {
	id      core.EntityID
	host    PlatformAmmoSink
	metrics *metrics
}

func (s platformSink) NotifyConsumed(units float64) {
	s.metrics.addConsumed(string(s.id), units)
	if s.host != nil {
		s.host.NotifyConsumed(s.id, units)
	}
}

func (s platformSink) RequestResupply() {
	s.metrics.addResupply(string(s.id))
	if s.host != nil {
		s.host.RequestResupply(s.id)
	}
}

func (c *Coordinator) platform(id core.EntityID) *platform {
	p, ok := c.platforms[id]
	if !ok {
		p = &platform{turrets: make(map[core.EntityID]*Turret)}
		c.platforms[id] = p
	}
	return p
}

// Mount activates a weapon instance on a platform. An empty platform leaves the
// instance inert. Mounting an instance again on another platform moves it.
func (c *Coordinator) Mount(platformID, instanceID core.EntityID, network core.NetworkID) election.Role {
	if b, ok := c.beams[instanceID]; ok {
		if b.platform == platformID {
			return b.Role()
		}
		c.unmount(instanceID)
	}

	var sub *Subscription
	if platformID != "" {
		p := c.platform(platformID)
		if network != "" {
			p.network = network
		}
		network = p.network
		sub = c.hub.Subscribe(platformID)
	}
	b := newBeam(instanceID, platformID, network, c.cfg, beamDeps{
		registry: c.deps.Registry,
		ray:      c.deps.Raycaster,
		scorer:   c.scorer,
		damage:   c.deps.Damage,
		metrics:  c.metrics,
		logger:   c.logger,
	}, sub)

	role := c.election.Activate(platformID, instanceID, func() *ammo.Ledger {
		return ammo.New(c.cfg.Capacity, platformSink{id: platformID, host: c.deps.Ammo, metrics: c.metrics}, c.logger)
	})
	b.Arm(role, c.election.Ledger(instanceID))
	c.beams[instanceID] = b
	c.order = append(c.order, instanceID)
	return role
}

// Unmount removes a weapon instance. When it was primary the earliest surviving
// instance on the platform takes over its ledger.
func (c *Coordinator) Unmount(instanceID core.EntityID) error {
	if _, ok := c.beams[instanceID]; !ok {
		return fmt.Errorf("unmount %s: %w", instanceID, ErrUnknownWeapon)
	}
	c.unmount(instanceID)
	return nil
}

func (c *Coordinator) unmount(instanceID core.EntityID) {
	b := c.beams[instanceID]
	promoted := c.election.Deactivate(instanceID)
	b.Close()
	delete(c.beams, instanceID)
	for i, id := range c.order {
		if id == instanceID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	if promoted == "" {
		return
	}
	if next, ok := c.beams[promoted]; ok {
		next.Arm(election.Primary, c.election.Ledger(promoted))
	}
}

// UpdatePlatform records the platform's network and pose for the next tick.
func (c *Coordinator) UpdatePlatform(platformID core.EntityID, network core.NetworkID, pose core.Pose) {
	p := c.platform(platformID)
	p.network = network
	p.pose = pose
	p.posed = true
}

// RemovePlatform unmounts every instance on the platform and forgets it.
func (c *Coordinator) RemovePlatform(platformID core.EntityID) int {
	removed := 0
	for _, id := range append([]core.EntityID(nil), c.order...) {
		if c.beams[id].platform == platformID {
			c.unmount(id)
			removed++
		}
	}
	delete(c.platforms, platformID)
	return removed
}

func (c *Coordinator) primary(platformID core.EntityID) (*Beam, error) {
	id, ok := c.election.Primary(platformID)
	if !ok {
		return nil, fmt.Errorf("%s: %w", platformID, ErrUnknownPlatform)
	}
	b, ok := c.beams[id]
	if !ok {
		return nil, fmt.Errorf("%s primary %s: %w", platformID, id, ErrUnknownWeapon)
	}
	return b, nil
}

// Fire forwards a manual fire command to the platform primary. The command
// takes effect on the next Tick.
func (c *Coordinator) Fire(platformID, target core.EntityID) error {
	b, err := c.primary(platformID)
	if err != nil {
		return err
	}
	b.Fire(target)
	return nil
}

// ToggleAutoFire queues a toggle on the platform primary. Queued commands are
// applied one per tick.
func (c *Coordinator) ToggleAutoFire(platformID core.EntityID) error {
	b, err := c.primary(platformID)
	if err != nil {
		return err
	}
	b.QueueAutoFire(AutoFireCommand{Toggle: true})
	return nil
}

// SetAutoFire queues an explicit auto fire value on the platform primary.
func (c *Coordinator) SetAutoFire(platformID core.EntityID, enabled bool) error {
	b, err := c.primary(platformID)
	if err != nil {
		return err
	}
	b.QueueAutoFire(AutoFireCommand{Value: enabled})
	return nil
}

// Resupply broadcasts a resupply grant to every instance on the platform.
func (c *Coordinator) Resupply(platformID core.EntityID, now float64) (int, error) {
	if _, ok := c.election.Primary(platformID); !ok {
		return 0, fmt.Errorf("resupply %s: %w", platformID, ErrUnknownPlatform)
	}
	n := c.hub.Grant(platformID, now)
	c.logger.Info("resupply broadcast", "platform", platformID, "delivered", n)
	return n, nil
}

// Restore overwrites the platform reserve, typically from a saved snapshot.
func (c *Coordinator) Restore(platformID core.EntityID, reserve float64) error {
	b, err := c.primary(platformID)
	if err != nil {
		return err
	}
	b.Restore(reserve)
	return nil
}

// AttachTurret registers an actuator under the platform's priority override.
func (c *Coordinator) AttachTurret(platformID, turretID core.EntityID) *Turret {
	p := c.platform(platformID)
	if p.override == nil {
		p.override = override.New(c.cfg.Override, c.deps.Registry, c.logger)
	}
	t, ok := p.turrets[turretID]
	if !ok {
		t = NewTurret(turretID)
		p.turrets[turretID] = t
		p.override.Attach(t)
	}
	return t
}

// DetachTurret removes an actuator from the platform's override.
func (c *Coordinator) DetachTurret(platformID, turretID core.EntityID) error {
	p, ok := c.platforms[platformID]
	if !ok || p.turrets[turretID] == nil {
		return fmt.Errorf("detach turret %s: %w", turretID, ErrUnknownWeapon)
	}
	delete(p.turrets, turretID)
	p.override.Detach(turretID)
	return nil
}

// ObserveTurret records the target a turret is actually tracking.
func (c *Coordinator) ObserveTurret(platformID, turretID, target core.EntityID) error {
	p, ok := c.platforms[platformID]
	if !ok {
		return fmt.Errorf("observe turret %s: %w", turretID, ErrUnknownPlatform)
	}
	t, ok := p.turrets[turretID]
	if !ok {
		return fmt.Errorf("observe turret %s: %w", turretID, ErrUnknownWeapon)
	}
	t.Observe(target)
	return nil
}

// Tick advances every weapon, in mount order, and then every platform override.
// Platforms without a pose are skipped but their instances still drain resupply.
func (c *Coordinator) Tick(now, dt float64) CycleReport {
	var rep CycleReport
	wall := c.deps.Clock()
	for _, id := range c.order {
		b := c.beams[id]
		p, ok := c.platforms[b.platform]
		if !ok || !p.posed {
			b.drain()
			continue
		}
		r := b.Tick(TickContext{
			Now:           now,
			DT:            dt,
			Pose:          p.pose,
			Authoritative: c.authoritative,
			Wall:          wall,
		})
		if b.ctrl != nil {
			rep.Weapons = append(rep.Weapons, r)
		}
	}

	for _, pid := range c.platformOrder() {
		p := c.platforms[pid]
		if p.override == nil || !p.posed {
			continue
		}
		res := p.override.Tick(now, pid, p.pose.Position, c.authoritative)
		if !res.Ran {
			continue
		}
		if res.Applied && len(res.Orders) > 0 {
			c.metrics.addAssignments(string(pid), len(res.Orders))
		}
		rep.Overrides = append(rep.Overrides, OverrideReport{PlatformID: pid, Result: res})
	}
	return rep
}

// platformOrder returns platforms in the order their first instance was mounted,
// followed by turret-only platforms in sorted order.
func (c *Coordinator) platformOrder() []core.EntityID {
	seen := make(map[core.EntityID]bool, len(c.platforms))
	out := make([]core.EntityID, 0, len(c.platforms))
	for _, id := range c.order {
		pid := c.beams[id].platform
		if _, ok := c.platforms[pid]; ok && !seen[pid] {
			seen[pid] = true
			out = append(out, pid)
		}
	}
	var rest []core.EntityID
	for pid := range c.platforms {
		if !seen[pid] {
			rest = append(rest, pid)
		}
	}
	slices.Sort(rest)
	return append(out, rest...)
}

// Status returns one instance's presentation state.
func (c *Coordinator) Status(instanceID core.EntityID) (Status, error) {
	b, ok := c.beams[instanceID]
	if !ok {
		return Status{}, fmt.Errorf("status %s: %w", instanceID, ErrUnknownWeapon)
	}
	return b.Status(), nil
}

// Statuses returns every instance's state in mount order.
func (c *Coordinator) Statuses() []Status {
	out := make([]Status, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.beams[id].Status())
	}
	return out
}

// Weapons returns the number of mounted instances.
func (c *Coordinator) Weapons() int { return len(c.order) }

// Close unmounts everything.
func (c *Coordinator) Close() {
	for _, id := range append([]core.EntityID(nil), c.order...) {
		c.unmount(id)
	}
}
