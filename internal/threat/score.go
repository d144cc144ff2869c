// Package threat scores and ranks contacts for autonomous engagement.
package threat

import (
	"math"
	"sort"

	"github.com/OCAP2/coil/pkg/core"
)

// Weights are the scoring tuning surface. Only the resulting ordering is a contract.
type Weights struct {
	Nuclear  float64 // Base score of the hard-priority class
	AirToAir float64 // Base score of air-to-air missiles
	Missile  float64 // Base score of other guided missiles
	Bomb     float64 // Base score of bombs
	Other    float64 // Base score of any other weapon-class contact

	SelfTargeted   float64 // Multiplier when the contact is targeting the owner
	Urgent         float64 // Extra multiplier for self-targeting contacts inside UrgentDistance
	UrgentDistance float64 // Meters
	AllyTargeted   float64 // Multiplier when the contact is targeting an allied entity
}

// maxDistanceFactor is the upper bound of DistanceFactor.
const maxDistanceFactor = 2

// DefaultWeights returns the stock weights.
func DefaultWeights() Weights {
	return Weights{
		Nuclear:        25000,
		AirToAir:       300,
		Missile:        200,
		Bomb:           50,
		Other:          25,
		SelfTargeted:   10,
		Urgent:         2,
		UrgentDistance: 5000,
		AllyTargeted:   3,
	}
}

// SanitizeWeights replaces invalid entries with defaults and raises the
// hard-priority base above anything another class can reach.
func SanitizeWeights(w Weights) Weights {
	d := DefaultWeights()
	pos := func(v, def float64) float64 {
		if v > 0 && !math.IsInf(v, 0) {
			return v
		}
		return def
	}
	w.AirToAir = pos(w.AirToAir, d.AirToAir)
	w.Missile = pos(w.Missile, d.Missile)
	w.Bomb = pos(w.Bomb, d.Bomb)
	if w.Other < 0 || math.IsNaN(w.Other) || math.IsInf(w.Other, 0) {
		w.Other = d.Other
	}
	w.UrgentDistance = pos(w.UrgentDistance, d.UrgentDistance)
	if !(w.SelfTargeted >= 1) || math.IsInf(w.SelfTargeted, 0) {
		w.SelfTargeted = d.SelfTargeted
	}
	if !(w.Urgent >= 1) || math.IsInf(w.Urgent, 0) {
		w.Urgent = d.Urgent
	}
	if !(w.AllyTargeted >= 1) || w.AllyTargeted > w.SelfTargeted {
		w.AllyTargeted = math.Min(d.AllyTargeted, w.SelfTargeted)
	}

	ceiling := math.Max(math.Max(w.AirToAir, w.Missile), math.Max(w.Bomb, w.Other)) *
		w.SelfTargeted * w.Urgent * maxDistanceFactor
	if !(w.Nuclear > ceiling) || math.IsInf(w.Nuclear, 0) {
		w.Nuclear = math.Max(d.Nuclear, ceiling*2)
	}
	return w
}

// Context is the owner-side information a score depends on.
type Context struct {
	OwnerID  core.EntityID
	Network  core.NetworkID
	Origin   core.Position3D
	MaxRange float64
}

// Scorer maps contacts to priority scores. It is a pure function of its inputs.
type Scorer struct {
	w Weights
}

// NewScorer returns a scorer using sanitized weights.
func NewScorer(w Weights) *Scorer {
	return &Scorer{w: SanitizeWeights(w)}
}

// Weights returns the effective weights.
func (s *Scorer) Weights() Weights {
	return s.w
}

func (s *Scorer) base(c core.ThreatClass) float64 {
	switch c {
	case core.ThreatNuclear:
		return s.w.Nuclear
	case core.ThreatAirToAir:
		return s.w.AirToAir
	case core.ThreatMissile:
		return s.w.Missile
	case core.ThreatBomb:
		return s.w.Bomb
	default:
		return s.w.Other
	}
}

// Score returns the priority of c. Non-weapon and invalid contacts score 0.
func (s *Scorer) Score(c *core.Contact, ctx Context) float64 {
	if c == nil || !c.IsWeapon {
		return 0
	}
	d := ctx.Origin.DistanceTo(c.Position)
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return 0
	}

	score := s.base(c.Class)
	switch {
	case c.TargetID != "" && c.TargetID == ctx.OwnerID:
		score *= s.w.SelfTargeted
		if d < s.w.UrgentDistance {
			score *= s.w.Urgent
		}
	case ctx.Network != "" && c.TargetNetwork == ctx.Network:
		score *= s.w.AllyTargeted
	}
	return score * DistanceFactor(d, ctx.MaxRange)
}

// DistanceFactor rises linearly from 1 at maxRange to 2 at zero distance.
func DistanceFactor(distance, maxRange float64) float64 {
	if !(maxRange > 0) || math.IsInf(maxRange, 0) {
		return 1
	}
	f := 1 + (1 - distance/maxRange)
	if f < 1 {
		return 1
	}
	if f > maxDistanceFactor {
		return maxDistanceFactor
	}
	return f
}

// Result is a scored contact.
type Result struct {
	Contact  core.Contact
	Score    float64
	Distance float64
	// Seen is the position of the contact in the scan that produced it.
	Seen int
}

// Less orders by score descending, then distance ascending, then first seen.
func Less(a, b Result) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.Seen < b.Seen
}

// Rank sorts results best first.
func Rank(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return Less(results[i], results[j])
	})
}

// Best returns the highest ranked result with a positive score.
func Best(results []Result) (Result, bool) {
	var best Result
	found := false
	for _, r := range results {
		if !(r.Score > 0) {
			continue
		}
		if !found || Less(r, best) {
			best = r
			found = true
		}
	}
	return best, found
}
