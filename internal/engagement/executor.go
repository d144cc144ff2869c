// Package engagement applies beam effect to the committed target on a fixed cadence.
package engagement

import (
	"io"
	"log/slog"
	"math"

	"github.com/OCAP2/coil/internal/ammo"
	"github.com/OCAP2/coil/internal/geometry"
	"github.com/OCAP2/coil/pkg/core"
)

const timeEpsilon = 1e-9

// DamageSink applies damage to the simulation. Only the authoritative side calls it.
type DamageSink interface {
	ApplyDamage(d core.Damage)
}

// Config is the effect profile of a beam, owned by the executor.
type Config struct {
	DamagePerSecond            float64
	TickIntervalSeconds        float64
	SurfaceTargetDamagePercent float64
	// BlastFraction of each application goes to the blast component, the rest to fire.
	BlastFraction float64
	Penetration   float64
}

// DefaultConfig returns the stock beam effect profile.
func DefaultConfig() Config {
	return Config{
		DamagePerSecond:            2000,
		TickIntervalSeconds:        0.2,
		SurfaceTargetDamagePercent: 5,
		BlastFraction:              0.7,
		Penetration:                1,
	}
}

// Outcome reports what a tick did.
type Outcome struct {
	// Fired is true on every damage tick, including zero-magnitude ticks while depleted.
	Fired  bool
	Damage core.Damage
	// Applied is true when Damage was passed to the sink.
	Applied bool
	// Suppressed is true when a non-zero application was computed but not applied.
	Suppressed bool

	Lost   bool
	Reason geometry.Reason

	ResupplyRequest bool
}

// Executor rate-limits and computes damage for one weapon instance.
type Executor struct {
	cfg    Config
	gate   *geometry.Gate
	ledger *ammo.Ledger
	sink   DamageSink
	logger *slog.Logger

	elapsed float64
}

// New returns an executor. The ledger is only read and used for the resupply latch.
func New(cfg Config, gate *geometry.Gate, ledger *ammo.Ledger, sink DamageSink, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	d := DefaultConfig()
	if !(cfg.TickIntervalSeconds > 0) {
		cfg.TickIntervalSeconds = d.TickIntervalSeconds
	}
	if cfg.DamagePerSecond < 0 || math.IsNaN(cfg.DamagePerSecond) {
		cfg.DamagePerSecond = 0
	}
	if !(cfg.BlastFraction >= 0 && cfg.BlastFraction <= 1) {
		cfg.BlastFraction = d.BlastFraction
	}
	return &Executor{cfg: cfg, gate: gate, ledger: ledger, sink: sink, logger: logger}
}

// Config returns the effective effect profile.
func (e *Executor) Config() Config {
	return e.cfg
}

// PerApplication returns the damage magnitude of one application before modifiers.
func (e *Executor) PerApplication() float64 {
	return e.cfg.DamagePerSecond * e.cfg.TickIntervalSeconds
}

// SurfaceMultiplier returns the effect scale against surface targets.
func (e *Executor) SurfaceMultiplier() float64 {
	return math.Max(0, math.Min(1, e.cfg.SurfaceTargetDamagePercent/100))
}

// Tick advances the damage timer by dt. Damage is applied to the sink only when
// authoritative; observers compute the same outcome without side effects.
func (e *Executor) Tick(dt float64, ownerID core.EntityID, pose core.Pose, target *core.Contact, state core.EngagementState, authoritative bool) Outcome {
	var out Outcome
	if target == nil || (state != core.StateFiring && state != core.StateDepleted) {
		e.elapsed = 0
		return out
	}

	if reason := e.gate.Validate(ownerID, pose, target); reason != geometry.Valid {
		e.elapsed = 0
		out.Lost = true
		out.Reason = reason
		return out
	}

	if e.ledger.Depleted() {
		out.ResupplyRequest = e.ledger.RequestResupply()
	}

	if dt > 0 {
		e.elapsed += dt
	}
	interval := e.cfg.TickIntervalSeconds
	if e.elapsed < interval-timeEpsilon {
		return out
	}
	e.elapsed -= interval
	// One application per tick; a slow outer loop does not build a backlog.
	if e.elapsed > interval {
		e.elapsed = interval
	}
	out.Fired = true

	magnitude := e.PerApplication() * e.ledger.EffectScale()
	if target.Surface {
		magnitude *= e.SurfaceMultiplier()
	}
	if magnitude <= 0 {
		return out
	}

	out.Damage = core.Damage{
		TargetID:    target.ID,
		Blast:       magnitude * e.cfg.BlastFraction,
		Fire:        magnitude * (1 - e.cfg.BlastFraction),
		Penetration: e.cfg.Penetration,
		Attributer:  ownerID,
	}
	if !authoritative || e.sink == nil {
		out.Suppressed = true
		return out
	}
	e.sink.ApplyDamage(out.Damage)
	out.Applied = true
	return out
}

// Reset clears the damage timer, used after resupply or when the engagement ends.
func (e *Executor) Reset() {
	e.elapsed = 0
}
