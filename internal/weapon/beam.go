package weapon

import (
	"io"
	"log/slog"

	"github.com/OCAP2/coil/internal/acquisition"
	"github.com/OCAP2/coil/internal/ammo"
	"github.com/OCAP2/coil/internal/election"
	"github.com/OCAP2/coil/internal/engagement"
	"github.com/OCAP2/coil/internal/geometry"
	"github.com/OCAP2/coil/internal/scan"
	"github.com/OCAP2/coil/internal/threat"
	"github.com/OCAP2/coil/pkg/core"
)

// beamDeps are the collaborators shared by every beam of a coordinator.
type beamDeps struct {
	registry scan.Registry
	ray      geometry.Raycaster
	scorer   *threat.Scorer
	damage   engagement.DamageSink
	metrics  *metrics
	logger   *slog.Logger
}

// Beam is the continuous-beam Engageable. Only the primary instance of a
// platform holds a controller and ledger; other instances stay idle.
type Beam struct {
	id       core.EntityID
	platform core.EntityID
	network  core.NetworkID
	cfg      Config
	deps     beamDeps

	role   election.Role
	gate   *geometry.Gate
	ctrl   *acquisition.Controller
	exec   *engagement.Executor
	sub    *Subscription
	logger *slog.Logger

	commands  []AutoFireCommand
	lastState core.EngagementState
}

func newBeam(id, platform core.EntityID, network core.NetworkID, cfg Config, deps beamDeps, sub *Subscription) *Beam {
	logger := deps.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Beam{
		id:       id,
		platform: platform,
		network:  network,
		cfg:      cfg,
		deps:     deps,
		gate:     geometry.NewGate(cfg.gateConfig(), deps.ray),
		sub:      sub,
		logger:   logger.With("weapon", id, "platform", platform),
	}
}

func (b *Beam) ID() core.EntityID         { return b.id }
func (b *Beam) PlatformID() core.EntityID { return b.platform }
func (b *Beam) Role() election.Role       { return b.role }

// Arm sets the role and, for a primary, builds the decision pipeline around ledger.
func (b *Beam) Arm(role election.Role, ledger *ammo.Ledger) {
	b.role = role
	if role != election.Primary || ledger == nil {
		b.ctrl = nil
		b.exec = nil
		b.lastState = core.StateIdle
		return
	}
	// The previous primary's engagement, if any, ended with it.
	ledger.EndEngagement()
	scanner := scan.New(b.deps.registry, b.cfg.ScanIntervalSeconds, b.logger)
	b.ctrl = acquisition.New(b.cfg.acquisitionConfig(),
		acquisition.Owner{ID: b.platform, Network: b.network},
		scanner, b.deps.scorer, b.gate, ledger, b.logger)
	b.exec = engagement.New(b.cfg.executorConfig(), b.gate, ledger, b.deps.damage, b.logger)
	b.lastState = b.ctrl.State()
	if ledger.Depleted() {
		b.lastState = core.StateDepleted
	}
}

// Fire forwards a manual fire command. Secondaries ignore it.
func (b *Beam) Fire(target core.EntityID) {
	if b.ctrl != nil {
		b.ctrl.Fire(target)
	}
}

// QueueAutoFire queues a discrete command; one is consumed per tick.
func (b *Beam) QueueAutoFire(cmd AutoFireCommand) {
	b.commands = append(b.commands, cmd)
}

// Restore sets the primary's reserve from an external snapshot.
func (b *Beam) Restore(reserve float64) {
	if b.ctrl != nil {
		b.ctrl.Ledger().Restore(reserve)
	}
}

// Tick runs one fixed step of the weapon.
func (b *Beam) Tick(tc TickContext) TickReport {
	rep := TickReport{WeaponID: b.id, PlatformID: b.platform}

	granted := b.drain()
	if b.ctrl == nil {
		return rep
	}

	ledger := b.ctrl.Ledger()
	if granted {
		b.ctrl.Resupplied()
		b.exec.Reset()
		b.logger.Info("resupply granted", "reserve", ledger.Reserve())
		rep.Events = append(rep.Events, b.event(tc, core.EventResupplyGranted, ""))
	}

	if len(b.commands) > 0 {
		cmd := b.commands[0]
		b.commands = b.commands[1:]
		if cmd.Toggle {
			b.ctrl.ToggleAutoFire()
		} else {
			b.ctrl.SetAutoFire(cmd.Value)
		}
	}

	d := b.ctrl.Tick(tc.Now, tc.DT, tc.Pose)
	out := b.exec.Tick(tc.DT, b.platform, tc.Pose, d.Target, d.State, tc.Authoritative)
	if out.Lost {
		b.ctrl.TargetLost(out.Reason)
		e := b.event(tc, core.EventLost, d.Target.ID)
		e.ExtraData = map[string]any{"reason": out.Reason.String()}
		rep.Events = append(rep.Events, e)
	}
	rep.Decision = d
	rep.Outcome = out

	if d.Dropped != "" {
		kind := core.EventRelease
		if d.DropReason != geometry.Valid {
			kind = core.EventLost
		}
		e := b.event(tc, kind, d.Dropped)
		e.ExtraData = map[string]any{"reason": d.DropReason.String()}
		rep.Events = append(rep.Events, e)
	}
	if d.ManualRejected {
		rep.Events = append(rep.Events, b.event(tc, core.EventManualRejected, ""))
	}
	if d.Target != nil {
		switch {
		case d.Fresh:
			e := b.event(tc, core.EventCommit, d.Target.ID)
			e.ExtraData = map[string]any{"class": d.Target.Class.String(), "manual": d.Manual}
			rep.Events = append(rep.Events, e)
		case d.Switched:
			rep.Events = append(rep.Events, b.event(tc, core.EventSwitch, d.Target.ID))
		}
		if d.Fresh || d.Switched {
			b.deps.metrics.addSwitch(string(b.platform))
		}
	}
	if out.Applied {
		e := b.event(tc, core.EventDamage, out.Damage.TargetID)
		e.Blast = out.Damage.Blast
		e.Fire = out.Damage.Fire
		rep.Events = append(rep.Events, e)
		b.deps.metrics.addDamage(string(b.platform))
	}

	state := b.ctrl.State()
	if state == core.StateDepleted && b.lastState != core.StateDepleted {
		b.logger.Warn("beam depleted, awaiting resupply")
		rep.Events = append(rep.Events, b.event(tc, core.EventDepleted, ""))
	}
	b.lastState = state

	if d.ResupplyRequest || out.ResupplyRequest {
		rep.Events = append(rep.Events, b.event(tc, core.EventResupplyRequest, ""))
	}
	return rep
}

// drain empties the resupply subscription. Non-primary instances drain too so a
// stale grant is not acted on after promotion.
func (b *Beam) drain() bool {
	var granted bool
	if b.sub != nil {
		_, granted = b.sub.Poll()
	}
	if b.ctrl == nil {
		b.commands = b.commands[:0]
	}
	return granted
}

func (b *Beam) event(tc TickContext, kind string, target core.EntityID) core.EngagementEvent {
	e := core.EngagementEvent{
		Time:       tc.Wall,
		SimTime:    tc.Now,
		PlatformID: b.platform,
		WeaponID:   b.id,
		Kind:       kind,
		TargetID:   target,
	}
	if b.ctrl != nil {
		e.Reserve = b.ctrl.Ledger().Reserve()
	}
	return e
}

// Status reports presentation state. Non-primary instances report zero ammo.
func (b *Beam) Status() Status {
	s := Status{
		WeaponID:   b.id,
		PlatformID: b.platform,
		Role:       b.role.String(),
		State:      core.StateIdle,
	}
	if b.ctrl != nil {
		ledger := b.ctrl.Ledger()
		s.State = b.ctrl.State()
		s.AutoFire = b.ctrl.AutoFireEnabled()
		if t := b.ctrl.Target(); t != nil {
			s.TargetID = t.ID
			s.Engaging = true
		}
		s.Reserve = ledger.Reserve()
		s.Loaded = ledger.Reserve()
		s.Capacity = ledger.Capacity()
	}
	s.StateName = s.State.String()
	return s
}

// Close releases the resupply subscription.
func (b *Beam) Close() {
	if b.sub != nil {
		b.sub.Unsubscribe()
		b.sub = nil
	}
	b.ctrl = nil
	b.exec = nil
}
