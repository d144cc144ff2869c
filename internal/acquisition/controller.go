// Package acquisition decides which contact the beam is committed to each tick.
package acquisition

import (
	"io"
	"log/slog"
	"math"

	"github.com/OCAP2/coil/internal/ammo"
	"github.com/OCAP2/coil/internal/geometry"
	"github.com/OCAP2/coil/internal/scan"
	"github.com/OCAP2/coil/internal/threat"
	"github.com/OCAP2/coil/pkg/core"
)

const timeEpsilon = 1e-9

// Config holds the acquisition tuning values.
type Config struct {
	MaxRange               float64
	SwitchDelaySeconds     float64
	ManualTimeoutSeconds   float64
	AutoFireEnabledDefault bool
	AutoFireAllowed        bool
}

// Owner identifies the platform the weapon is mounted on.
type Owner struct {
	ID      core.EntityID
	Network core.NetworkID
}

// Decision is the outcome of one tick.
type Decision struct {
	Target   *core.Contact
	Manual   bool
	State    core.EngagementState
	Fresh    bool
	Switched bool

	// Dropped is the target released this tick, with the reason it became invalid.
	Dropped    core.EntityID
	DropReason geometry.Reason

	ManualRejected  bool
	ResupplyRequest bool
}

type manualSignal struct {
	at     float64
	target core.EntityID
	set    bool
	// pending is true until the first tick after the command arrived stamps at.
	pending bool
}

// Controller is the NoTarget/Committed state machine of a primary beam instance.
// It is driven by Tick and never blocks.
type Controller struct {
	cfg     Config
	owner   Owner
	scanner *scan.Scanner
	scorer  *threat.Scorer
	gate    *geometry.Gate
	ledger  *ammo.Ledger
	logger  *slog.Logger

	autoEnabled bool
	manual      manualSignal

	target     *core.Contact
	isManual   bool
	lastSwitch float64
	// freePick lets the next autonomous acquisition skip the switch delay.
	freePick bool

	state core.EngagementState
}

// New returns a controller in NoTarget.
func New(cfg Config, owner Owner, scanner *scan.Scanner, scorer *threat.Scorer, gate *geometry.Gate, ledger *ammo.Ledger, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Controller{
		cfg:         cfg,
		owner:       owner,
		scanner:     scanner,
		scorer:      scorer,
		gate:        gate,
		ledger:      ledger,
		logger:      logger,
		autoEnabled: cfg.AutoFireEnabledDefault && cfg.AutoFireAllowed,
		lastSwitch:  math.Inf(-1),
	}
}

// ToggleAutoFire flips autonomous engagement. It is ignored when auto fire is not allowed.
func (c *Controller) ToggleAutoFire() bool {
	return c.SetAutoFire(!c.autoEnabled)
}

// SetAutoFire sets autonomous engagement and returns the effective value.
// Disabling releases an autonomous target immediately.
func (c *Controller) SetAutoFire(enabled bool) bool {
	if !c.cfg.AutoFireAllowed {
		return c.autoEnabled
	}
	if c.autoEnabled != enabled {
		c.logger.Info("auto fire changed", "platform", c.owner.ID, "enabled", enabled)
		if enabled {
			c.freePick = true
			c.scanner.Force()
		}
	}
	c.autoEnabled = enabled
	if !enabled && c.target != nil && !c.isManual {
		c.release()
		c.state = c.idleState()
	}
	return c.autoEnabled
}

// AutoFireEnabled reports whether autonomous engagement is on.
func (c *Controller) AutoFireEnabled() bool {
	return c.autoEnabled
}

// Fire records a manual fire command. The command counts as received at the
// next tick, so its timeout does not depend on the host step size.
func (c *Controller) Fire(target core.EntityID) {
	c.manual = manualSignal{target: target, set: true, pending: true}
}

func (c *Controller) manualActive(now float64) bool {
	if !c.manual.set {
		return false
	}
	return now-c.manual.at < c.cfg.ManualTimeoutSeconds-timeEpsilon
}

// Tick advances the controller by dt seconds ending at now.
func (c *Controller) Tick(now, dt float64, pose core.Pose) Decision {
	var d Decision
	prevEngaged := c.target != nil
	exited := false
	if c.manual.pending {
		c.manual.at = now
		c.manual.pending = false
	}

	drop := func(reason geometry.Reason) {
		if c.target == nil {
			return
		}
		d.Dropped = c.target.ID
		d.DropReason = reason
		c.release()
		exited = true
	}

	switch {
	case c.manualActive(now) && c.engageManual(now, pose, &d, drop):
	case !c.autoEnabled || !c.cfg.AutoFireAllowed:
		if c.target != nil {
			drop(geometry.Valid)
		}
	default:
		// Manual control ended; the manual target becomes the autonomous commitment
		// and is re-validated like any other.
		c.isManual = false
		c.tickAutonomous(now, pose, &d, drop)
	}

	if !c.manualActive(now) {
		c.manual.set = false
	}
	c.finish(dt, prevEngaged && !exited, &d)
	return d
}

func (c *Controller) engageManual(now float64, pose core.Pose, d *Decision, drop func(geometry.Reason)) bool {
	contact, ok := c.scanner.Lookup(c.manual.target)
	var reason geometry.Reason
	if ok {
		reason = c.gate.Validate(c.owner.ID, pose, &contact)
	} else {
		reason = geometry.Missing
	}
	if reason != geometry.Valid || (c.target == nil && c.ledger.Depleted()) {
		if c.isManual {
			drop(reason)
		}
		d.ManualRejected = true
		c.logger.Debug("manual fire rejected", "platform", c.owner.ID, "target", c.manual.target, "reason", reason.String())
		c.manual.set = false
		return false
	}

	if c.target != nil && !c.isManual {
		// Autonomous commitment is cleared without touching the switch timer.
		c.freePick = true
	}
	if c.target != nil && c.target.ID != contact.ID {
		d.Switched = true
	}
	c.target = &contact
	c.isManual = true
	d.Manual = true
	return true
}

func (c *Controller) tickAutonomous(now float64, pose core.Pose, d *Decision, drop func(geometry.Reason)) {
	committed := c.target != nil
	if c.target != nil {
		current, ok := c.scanner.Lookup(c.target.ID)
		reason := geometry.Missing
		if ok {
			reason = c.gate.Validate(c.owner.ID, pose, &current)
		}
		if reason != geometry.Valid {
			c.logger.Debug("target lost", "platform", c.owner.ID, "target", c.target.ID, "reason", reason.String())
			drop(reason)
			c.freePick = true
			c.scanner.Force()
		} else {
			c.target = &current
		}
	}

	if c.target == nil && c.ledger.Depleted() {
		return
	}

	contacts, ran := c.scanner.Scan(now, scan.Query{
		Origin:  pose.Position,
		Radius:  c.cfg.MaxRange,
		Exclude: c.owner.ID,
	})
	if !ran {
		return
	}

	best, ok := c.pick(contacts, pose)
	switch {
	case !ok:
		// The cooldown starts only on the transition to NoTarget, never while idle.
		if committed {
			drop(geometry.Missing)
			c.lastSwitch = now
			c.freePick = false
		}
	case c.target == nil:
		if c.freePick || now-c.lastSwitch >= c.cfg.SwitchDelaySeconds-timeEpsilon {
			c.commit(now, best)
		}
	case best.Contact.ID == c.target.ID:
		contact := best.Contact
		c.target = &contact
	case now-c.lastSwitch >= c.cfg.SwitchDelaySeconds-timeEpsilon:
		c.logger.Info("switching target", "platform", c.owner.ID, "from", c.target.ID, "to", best.Contact.ID, "score", best.Score)
		c.commit(now, best)
		d.Switched = true
	}
}

func (c *Controller) commit(now float64, best threat.Result) {
	contact := best.Contact
	c.target = &contact
	c.isManual = false
	c.lastSwitch = now
	c.freePick = false
	c.logger.Debug("target committed", "platform", c.owner.ID, "target", contact.ID, "class", contact.Class.String(), "score", best.Score)
}

func (c *Controller) pick(contacts []core.Contact, pose core.Pose) (threat.Result, bool) {
	ctx := threat.Context{
		OwnerID:  c.owner.ID,
		Network:  c.owner.Network,
		Origin:   pose.Position,
		MaxRange: c.cfg.MaxRange,
	}
	results := make([]threat.Result, 0, len(contacts))
	for i := range contacts {
		contact := contacts[i]
		if contact.Disabled || contact.ID == c.owner.ID {
			continue
		}
		score := c.scorer.Score(&contact, ctx)
		if score <= 0 {
			continue
		}
		if c.gate.Validate(c.owner.ID, pose, &contact) != geometry.Valid {
			continue
		}
		results = append(results, threat.Result{
			Contact:  contact,
			Score:    score,
			Distance: pose.Position.DistanceTo(contact.Position),
			Seen:     i,
		})
	}
	return threat.Best(results)
}

// finish settles ammo accounting for the tick. continuing is true when the
// engagement carried over from the previous tick without an exit.
func (c *Controller) finish(dt float64, continuing bool, d *Decision) {
	if c.target == nil {
		c.state = c.idleState()
		d.State = c.state
		return
	}

	if !continuing {
		d.Fresh = true
		if c.ledger.ChargeBurst() == ammo.Empty {
			d.Dropped = c.target.ID
			c.release()
			d.Fresh = false
			d.ResupplyRequest = c.ledger.RequestResupply()
			c.state = core.StateDepleted
			d.State = c.state
			return
		}
		c.state = core.StateCharging
	} else {
		c.state = core.StateFiring
	}

	c.ledger.Drain(dt)
	if c.ledger.Depleted() {
		c.state = core.StateDepleted
		d.ResupplyRequest = c.ledger.RequestResupply()
	}
	target := *c.target
	d.Target = &target
	d.Manual = c.isManual
	d.State = c.state
}

func (c *Controller) idleState() core.EngagementState {
	if c.ledger.Depleted() {
		return core.StateDepleted
	}
	return core.StateIdle
}

func (c *Controller) release() {
	c.target = nil
	c.isManual = false
	c.ledger.EndEngagement()
}

// TargetLost drops the committed target after the executor found it invalid.
func (c *Controller) TargetLost(reason geometry.Reason) {
	if c.target == nil {
		return
	}
	c.logger.Debug("target lost during engagement", "platform", c.owner.ID, "target", c.target.ID, "reason", reason.String())
	if c.isManual {
		c.manual.set = false
	} else {
		c.freePick = true
		c.scanner.Force()
	}
	c.release()
	c.state = c.idleState()
}

// Resupplied refills the ledger and ends the current engagement so the next
// one charges a fresh burst unit.
func (c *Controller) Resupplied() {
	c.ledger.Reset()
	if c.target != nil {
		c.release()
		c.freePick = true
		c.scanner.Force()
	}
	c.state = core.StateIdle
}

// State returns the engagement state after the last tick.
func (c *Controller) State() core.EngagementState {
	return c.state
}

// Target returns the committed target, or nil.
func (c *Controller) Target() *core.Contact {
	if c.target == nil {
		return nil
	}
	t := *c.target
	return &t
}

// Ledger returns the ammo ledger driven by this controller.
func (c *Controller) Ledger() *ammo.Ledger {
	return c.ledger
}
