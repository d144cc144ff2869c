// pkg/core/engagement.go
package core

// EngagementState is the presentation-facing state of a beam weapon.
type EngagementState uint8

const (
	StateIdle EngagementState = iota
	StateCharging
	StateFiring
	StateDepleted
)

func (s EngagementState) String() string {
	switch s {
	case StateCharging:
		return "charging"
	case StateFiring:
		return "firing"
	case StateDepleted:
		return "depleted"
	default:
		return "idle"
	}
}

// Damage is one application of beam effect against a target.
type Damage struct {
	TargetID    EntityID `json:"targetId"`
	Blast       float64  `json:"blast"`
	Fire        float64  `json:"fire"`
	Penetration float64  `json:"penetration"`
	Attributer  EntityID `json:"attributer"`
}

// PriorityAssignment is one cycle's decision of the turret override controller.
type PriorityAssignment struct {
	TargetID     EntityID `json:"targetId,omitempty"`
	HardPriority bool     `json:"hardPriority"`
}

// None reports whether no contact was chosen.
func (a PriorityAssignment) None() bool {
	return a.TargetID == ""
}

// TurretOrder is a target assignment issued to a single turret.
type TurretOrder struct {
	TurretID EntityID `json:"turretId"`
	TargetID EntityID `json:"targetId"`
	Forced   bool     `json:"forced"`
}
