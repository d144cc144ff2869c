// Package override forces hard-priority targets onto turret actuators.
package override

import (
	"io"
	"log/slog"
	"math"

	"github.com/OCAP2/coil/internal/scan"
	"github.com/OCAP2/coil/pkg/core"
)

// Actuator is an independently aimed turret.
type Actuator interface {
	ID() core.EntityID
	CurrentTarget() core.EntityID
	Assign(target core.EntityID, forced bool)
}

// Config parameterizes the controller.
type Config struct {
	ScanIntervalSeconds float64
	MaxRange            float64
	HardPriority        core.ThreatClass
}

// DefaultConfig returns the stock cadence and priority class.
func DefaultConfig() Config {
	return Config{
		ScanIntervalSeconds: 0.25,
		MaxRange:            52202,
		HardPriority:        core.ThreatNuclear,
	}
}

// State is the controller mode.
type State uint8

const (
	Default State = iota
	ForcedPriority
)

func (s State) String() string {
	if s == ForcedPriority {
		return "forced_priority"
	}
	return "default"
}

// Result is the outcome of one tick.
type Result struct {
	Ran        bool
	Assignment core.PriorityAssignment
	Orders     []core.TurretOrder
	// Applied is false when the orders were computed on a non-authoritative side.
	Applied bool
}

// Controller runs the class-based turret override on its own cadence. It never touches ammo.
type Controller struct {
	cfg       Config
	scanner   *scan.Scanner
	actuators []Actuator
	logger    *slog.Logger

	state  State
	forced core.EntityID
}

// New returns a controller in Default with no actuators.
func New(cfg Config, registry scan.Registry, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if !(cfg.ScanIntervalSeconds > 0) {
		cfg.ScanIntervalSeconds = DefaultConfig().ScanIntervalSeconds
	}
	return &Controller{
		cfg:     cfg,
		scanner: scan.New(registry, cfg.ScanIntervalSeconds, logger),
		logger:  logger,
	}
}

// Attach adds an actuator. Attaching the same id twice replaces it.
func (c *Controller) Attach(a Actuator) {
	for i, existing := range c.actuators {
		if existing.ID() == a.ID() {
			c.actuators[i] = a
			return
		}
	}
	c.actuators = append(c.actuators, a)
}

// Detach removes an actuator by id.
func (c *Controller) Detach(id core.EntityID) {
	for i, a := range c.actuators {
		if a.ID() == id {
			c.actuators = append(c.actuators[:i], c.actuators[i+1:]...)
			return
		}
	}
}

// Actuators returns the number of attached actuators.
func (c *Controller) Actuators() int {
	return len(c.actuators)
}

// State returns the current mode and the forced target, if any.
func (c *Controller) State() (State, core.EntityID) {
	return c.state, c.forced
}

// Tick scans when due and issues turret orders. Orders are computed on every
// side but applied to actuators only when authoritative.
func (c *Controller) Tick(now float64, ownerID core.EntityID, origin core.Position3D, authoritative bool) Result {
	if len(c.actuators) == 0 {
		return Result{}
	}
	contacts, ran := c.scanner.Scan(now, scan.Query{Origin: origin, Radius: c.cfg.MaxRange, Exclude: ownerID})
	if !ran {
		return Result{}
	}

	priority, other := c.nearest(contacts, ownerID, origin)
	res := Result{Ran: true, Applied: authoritative}

	switch {
	case priority != nil:
		res.Assignment = core.PriorityAssignment{TargetID: priority.ID, HardPriority: true}
		if c.state != ForcedPriority || c.forced != priority.ID {
			c.logger.Info("hard priority target forced", "platform", ownerID, "target", priority.ID,
				"distance", origin.DistanceTo(priority.Position))
		}
		c.state = ForcedPriority
		c.forced = priority.ID
	case other != nil:
		res.Assignment = core.PriorityAssignment{TargetID: other.ID}
		c.state = Default
		c.forced = ""
	default:
		c.state = Default
		c.forced = ""
		return res
	}

	for _, a := range c.actuators {
		current := a.CurrentTarget()
		if current == res.Assignment.TargetID {
			continue
		}
		if !res.Assignment.HardPriority && c.valid(current) {
			continue
		}
		order := core.TurretOrder{TurretID: a.ID(), TargetID: res.Assignment.TargetID, Forced: res.Assignment.HardPriority}
		res.Orders = append(res.Orders, order)
		if authoritative {
			a.Assign(order.TargetID, order.Forced)
		}
	}
	return res
}

func (c *Controller) nearest(contacts []core.Contact, ownerID core.EntityID, origin core.Position3D) (priority, other *core.Contact) {
	bestPriority, bestOther := math.Inf(1), math.Inf(1)
	for i := range contacts {
		contact := &contacts[i]
		if !contact.IsWeapon || contact.Disabled || contact.ID == ownerID {
			continue
		}
		d := origin.DistanceTo(contact.Position)
		if d > c.cfg.MaxRange && c.cfg.MaxRange > 0 {
			continue
		}
		if contact.Class == c.cfg.HardPriority {
			if d < bestPriority {
				bestPriority, priority = d, contact
			}
		} else if d < bestOther {
			bestOther, other = d, contact
		}
	}
	return priority, other
}

// valid reports whether a turret's existing assignment still refers to a live contact.
func (c *Controller) valid(id core.EntityID) bool {
	if id == "" {
		return false
	}
	contact, ok := c.scanner.Lookup(id)
	return ok && !contact.Disabled
}
