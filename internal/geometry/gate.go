// Package geometry holds the engagement predicates: firing arc, line of sight and range.
package geometry

import (
	"math"

	"github.com/OCAP2/coil/pkg/core"
)

// Hit is the first entity struck by a ray.
type Hit struct {
	EntityID core.EntityID
	Distance float64
}

// Raycaster casts a ray through the scene. ok is false when nothing was hit
// within maxDistance.
type Raycaster interface {
	Raycast(origin, direction core.Position3D, maxDistance float64) (hit Hit, ok bool)
}

// Config parameterizes a Gate.
type Config struct {
	FiringArcDegrees float64
	MaxRange         float64
	// OriginOffset moves the ray origin ahead of the platform to avoid self-intersection.
	OriginOffset float64
}

// Reason explains why a target failed validation.
type Reason uint8

const (
	Valid Reason = iota
	Missing
	Disabled
	OutOfArc
	NoLineOfSight
	OutOfRange
)

func (r Reason) String() string {
	switch r {
	case Valid:
		return "valid"
	case Missing:
		return "missing"
	case Disabled:
		return "disabled"
	case OutOfArc:
		return "out_of_arc"
	case NoLineOfSight:
		return "no_line_of_sight"
	default:
		return "out_of_range"
	}
}

// Gate evaluates engagement geometry. It holds no mutable state.
type Gate struct {
	cfg Config
	ray Raycaster
}

// NewGate returns a gate. A nil raycaster fails every line of sight test
// beyond the near field.
func NewGate(cfg Config, ray Raycaster) *Gate {
	return &Gate{cfg: cfg, ray: ray}
}

// Config returns the gate parameters.
func (g *Gate) Config() Config {
	return g.cfg
}

// InArc reports whether target lies within the firing arc of the platform's forward axis.
func (g *Gate) InArc(platform core.Pose, target core.Position3D) bool {
	if g.cfg.FiringArcDegrees >= 180 {
		return true
	}
	to := target.Sub(platform.Position)
	if _, ok := to.Normalized(); !ok {
		return true
	}
	if _, ok := platform.Forward.Normalized(); !ok {
		return false
	}
	return core.AngleDegrees(platform.Forward, to) <= g.cfg.FiringArcDegrees
}

// InRange reports whether target is within the configured maximum range.
func (g *Gate) InRange(platform core.Pose, target core.Position3D) bool {
	if g.cfg.MaxRange <= 0 {
		return true
	}
	return platform.Position.DistanceTo(target) <= g.cfg.MaxRange
}

// LineOfSight casts from a standoff point toward the target. Inside the standoff
// the target is assumed visible. A ray that hits nothing is treated as blocked.
func (g *Gate) LineOfSight(platformID core.EntityID, platform core.Pose, target core.Contact) bool {
	to := target.Position.Sub(platform.Position)
	dir, ok := to.Normalized()
	if !ok {
		return true
	}
	cast := to.Len() - g.cfg.OriginOffset
	if cast <= 0 || math.IsNaN(cast) {
		return true
	}
	if g.ray == nil {
		return false
	}
	origin := platform.Position.Add(dir.Scale(g.cfg.OriginOffset))
	hit, ok := g.ray.Raycast(origin, dir, cast)
	if !ok {
		return false
	}
	return hit.EntityID == target.ID || (platformID != "" && hit.EntityID == platformID)
}

// Validate applies every predicate in order and reports the first failure.
func (g *Gate) Validate(platformID core.EntityID, platform core.Pose, target *core.Contact) Reason {
	switch {
	case target == nil:
		return Missing
	case target.Disabled:
		return Disabled
	case !g.InArc(platform, target.Position):
		return OutOfArc
	case !g.InRange(platform, target.Position):
		return OutOfRange
	case !g.LineOfSight(platformID, platform, *target):
		return NoLineOfSight
	}
	return Valid
}
