// Package ammo meters the energy reserve of a beam weapon.
package ammo

import (
	"io"
	"log/slog"
	"math"
)

// crossingEpsilon absorbs float error when summing fractional ticks, so ten
// 0.1s ticks cross a whole unit.
const crossingEpsilon = 1e-9

// ChargeResult is the outcome of ChargeBurst.
type ChargeResult uint8

const (
	Charged ChargeResult = iota
	AlreadyCharged
	Empty
)

func (r ChargeResult) String() string {
	switch r {
	case Charged:
		return "charged"
	case AlreadyCharged:
		return "already_charged"
	default:
		return "empty"
	}
}

// Sink receives ammo accounting notifications.
type Sink interface {
	NotifyConsumed(units float64)
	RequestResupply()
}

// Ledger owns a weapon's reserve. All operations are total and never leave
// the reserve outside [0, capacity].
type Ledger struct {
	capacity float64
	reserve  float64
	charged  bool
	elapsed  float64

	// requested latches the resupply request for the current depletion.
	requested bool

	sink   Sink
	logger *slog.Logger
}

// New creates a full ledger. A non-positive capacity is raised to 1.
func New(capacity float64, sink Sink, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if capacity <= 0 || math.IsNaN(capacity) || math.IsInf(capacity, 0) {
		logger.Warn("invalid ammo capacity, using 1", "capacity", capacity)
		capacity = 1
	}
	return &Ledger{
		capacity: capacity,
		reserve:  capacity,
		sink:     sink,
		logger:   logger,
	}
}

// ChargeBurst consumes one unit at the start of an engagement.
func (l *Ledger) ChargeBurst() ChargeResult {
	l.clamp()
	if l.reserve <= 0 {
		return Empty
	}
	if l.charged {
		return AlreadyCharged
	}
	l.charged = true
	l.elapsed = 0
	l.consume(1)
	return Charged
}

// Drain accumulates firing time and consumes one unit per whole second.
// It returns the number of units consumed by this call.
func (l *Ledger) Drain(seconds float64) int {
	l.clamp()
	if !l.charged || l.reserve <= 0 || !(seconds > 0) || math.IsInf(seconds, 0) {
		return 0
	}
	l.elapsed += seconds
	n := 0
	for l.elapsed >= 1-crossingEpsilon && l.reserve > 0 {
		l.elapsed--
		l.consume(1)
		n++
	}
	if l.reserve <= 0 {
		l.elapsed = 0
	}
	return n
}

// EndEngagement clears the burst flag so the next engagement charges a fresh unit.
func (l *Ledger) EndEngagement() {
	l.charged = false
	l.elapsed = 0
}

// Reset refills the reserve to capacity.
func (l *Ledger) Reset() {
	l.reserve = l.capacity
	l.charged = false
	l.elapsed = 0
	l.requested = false
}

// Restore sets the reserve from an external snapshot, clamping it into range.
func (l *Ledger) Restore(reserve float64) {
	l.reserve = reserve
	l.clamp()
	if l.reserve > 0 {
		l.requested = false
	}
}

// RequestResupply notifies the sink once per depletion. It reports whether a
// request was sent.
func (l *Ledger) RequestResupply() bool {
	if !l.Depleted() || l.requested {
		return false
	}
	l.requested = true
	if l.sink != nil {
		l.sink.RequestResupply()
	}
	return true
}

// ResupplyPending reports whether a request is outstanding.
func (l *Ledger) ResupplyPending() bool { return l.requested }

func (l *Ledger) consume(units float64) {
	if units > l.reserve {
		units = l.reserve
	}
	l.reserve -= units
	if l.reserve < crossingEpsilon {
		l.reserve = 0
	}
	if l.sink != nil && units > 0 {
		l.sink.NotifyConsumed(units)
	}
	if l.reserve == 0 {
		l.logger.Info("ammo depleted", "capacity", l.capacity)
	}
}

func (l *Ledger) clamp() {
	switch {
	case math.IsNaN(l.reserve) || l.reserve < 0:
		l.logger.Warn("ammo reserve below zero, clamping", "reserve", l.reserve)
		l.reserve = 0
	case l.reserve > l.capacity:
		l.logger.Warn("ammo reserve above capacity, clamping", "reserve", l.reserve, "capacity", l.capacity)
		l.reserve = l.capacity
	}
}

// Reserve returns the remaining units.
func (l *Ledger) Reserve() float64 { return l.reserve }

// Capacity returns the full reserve.
func (l *Ledger) Capacity() float64 { return l.capacity }

// Depleted reports whether the reserve is empty.
func (l *Ledger) Depleted() bool { return l.reserve <= 0 }

// Charged reports whether the current engagement has paid its burst unit.
func (l *Ledger) Charged() bool { return l.charged }

// EffectScale is 0 while depleted and 1 otherwise.
func (l *Ledger) EffectScale() float64 {
	if l.Depleted() {
		return 0
	}
	return 1
}
