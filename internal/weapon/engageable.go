// Package weapon assembles the fire-control components into weapon instances
// and coordinates them per platform.
package weapon

import (
	"time"

	"github.com/OCAP2/coil/internal/acquisition"
	"github.com/OCAP2/coil/internal/ammo"
	"github.com/OCAP2/coil/internal/election"
	"github.com/OCAP2/coil/internal/engagement"
	"github.com/OCAP2/coil/pkg/core"
)

// Engageable is a weapon instance driven by the coordinator tick.
type Engageable interface {
	ID() core.EntityID
	PlatformID() core.EntityID
	Role() election.Role
	// Arm hands the platform ledger to a newly elected primary. A nil ledger disarms.
	Arm(role election.Role, ledger *ammo.Ledger)
	Tick(tc TickContext) TickReport
	Fire(target core.EntityID)
	QueueAutoFire(cmd AutoFireCommand)
	Restore(reserve float64)
	Status() Status
	Close()
}

// TickContext is the per-tick input of a weapon instance.
type TickContext struct {
	Now           float64
	DT            float64
	Pose          core.Pose
	Authoritative bool
	// Wall stamps recorded events.
	Wall time.Time
}

// TickReport is what a weapon instance decided and did during a tick.
type TickReport struct {
	WeaponID   core.EntityID
	PlatformID core.EntityID
	Decision   acquisition.Decision
	Outcome    engagement.Outcome
	Events     []core.EngagementEvent
}

// AutoFireCommand is a discrete autonomous-engagement command. Toggle wins over Value.
type AutoFireCommand struct {
	Toggle bool
	Value  bool
}

// Status is the presentation view of a weapon instance. Secondary and inert
// instances report zero ammo.
type Status struct {
	WeaponID   core.EntityID        `json:"weaponId"`
	PlatformID core.EntityID        `json:"platformId"`
	Role       string               `json:"role"`
	State      core.EngagementState `json:"-"`
	StateName  string               `json:"state"`
	TargetID   core.EntityID        `json:"targetId,omitempty"`
	AutoFire   bool                 `json:"autoFire"`
	Engaging   bool                 `json:"engaging"`
	Reserve    float64              `json:"reserve"`
	Loaded     float64              `json:"loaded"`
	Capacity   float64              `json:"capacity"`
}
