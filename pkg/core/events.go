// pkg/core/events.go
package core

import "time"

// Session is one recorded engagement session (a mission run).
type Session struct {
	ID               uint
	Name             string
	World            string
	StartTime        time.Time
	ExtensionVersion string
}

// Engagement event kinds.
const (
	EventCommit          = "commit"
	EventSwitch          = "switch"
	EventLost            = "lost"
	EventRelease         = "release"
	EventDamage          = "damage"
	EventDepleted        = "depleted"
	EventResupplyRequest = "resupply_request"
	EventResupplyGranted = "resupply_granted"
	EventManualRejected  = "manual_rejected"
)

// EngagementEvent records a decision or effect of a weapon instance.
type EngagementEvent struct {
	Time       time.Time
	SimTime    float64
	PlatformID EntityID
	WeaponID   EntityID
	Kind       string
	TargetID   EntityID
	Blast      float64
	Fire       float64
	Reserve    float64
	ExtraData  map[string]any
}

// WeaponState is a periodic snapshot of a weapon instance for after-action review.
type WeaponState struct {
	Time       time.Time
	SimTime    float64
	PlatformID EntityID
	WeaponID   EntityID
	Primary    bool
	State      EngagementState
	TargetID   EntityID
	Reserve    float64
	Capacity   float64
	AutoFire   bool
}

// AssignmentRecord records a turret order issued by the priority override controller.
type AssignmentRecord struct {
	Time         time.Time
	SimTime      float64
	PlatformID   EntityID
	TurretID     EntityID
	TargetID     EntityID
	HardPriority bool
}

// UploadMetadata describes an exported recording for the web frontend.
type UploadMetadata struct {
	WorldName       string
	SessionName     string
	SessionDuration float64
	Tag             string
}
