package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Session{},
	&EngagementEvent{},
	&WeaponState{},
	&AssignmentRecord{},
	&CoilPerformance{},
}

// DatabaseModelsSQLite is the in-memory schema. Performance rows are only
// kept by the networked backends.
var DatabaseModelsSQLite = []interface{}{
	&Session{},
	&EngagementEvent{},
	&WeaponState{},
	&AssignmentRecord{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// CoilPerformance is the model for recorder write performance
type CoilPerformance struct {
	Time                time.Time         `json:"time" gorm:"type:timestamptz;index:idx_time"`
	SessionID           uint              `json:"sessionId" gorm:"index:idx_coilperformance_session_id"`
	Session             Session           `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	WriteQueueLengths   WriteQueueLengths `json:"writeQueueLengths" gorm:"embedded;embeddedPrefix:writequeue_"`
	DroppedRows         uint64            `json:"droppedRows"`
	LastWriteDurationMs float32           `json:"lastWriteDurationMs"`
}

func (*CoilPerformance) TableName() string {
	return "coil_performances"
}

// WriteQueueLengths is the model for the write queue lengths
type WriteQueueLengths struct {
	EngagementEvents uint16 `json:"engagementEvents"`
	WeaponStates     uint16 `json:"weaponStates"`
	Assignments      uint16 `json:"assignments"`
}

////////////////////////
// RECORDING MODELS
////////////////////////

// Session is one recorded run of a mission
//
// SQF Command: :COIL:SESSION:START:
// Args: [name, world]
type Session struct {
	gorm.Model
	Name             string    `json:"name" gorm:"size:200"`
	World            string    `json:"world" gorm:"size:127"`
	StartTime        time.Time `json:"sessionStart" gorm:"type:timestamptz;index:idx_session_start"`
	EndTime          time.Time `json:"sessionEnd" gorm:"type:timestamptz;default:NULL"`
	ExtensionVersion string    `json:"extensionVersion" gorm:"size:64;default:1.0.0"`
	EngagementEvents []EngagementEvent
	WeaponStates     []WeaponState
	Assignments      []AssignmentRecord
}

func (*Session) TableName() string {
	return "sessions"
}

// EngagementEvent is a weapon decision or effect
type EngagementEvent struct {
	ID         uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	Time       time.Time      `json:"time" gorm:"type:timestamptz;NOT NULL;index:idx_engagement_time"`
	SessionID  uint           `json:"sessionId" gorm:"index:idx_engagement_session_id"`
	Session    Session        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	SimTime    float64        `json:"simTime"`
	PlatformID string         `json:"platformId" gorm:"size:64;index:idx_engagement_platform"`
	WeaponID   string         `json:"weaponId" gorm:"size:64"`
	Kind       string         `json:"kind" gorm:"size:32;index:idx_engagement_kind"`
	TargetID   string         `json:"targetId" gorm:"size:64"`
	Blast      float64        `json:"blast"`
	Fire       float64        `json:"fire"`
	Reserve    float64        `json:"reserve"`
	ExtraData  datatypes.JSON `json:"extraData" gorm:"type:jsonb;default:'{}'"`
}

func (*EngagementEvent) TableName() string {
	return "engagement_events"
}

// WeaponState is a periodic weapon snapshot
type WeaponState struct {
	ID         uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time       time.Time `json:"time" gorm:"type:timestamptz;NOT NULL;index:idx_weaponstate_time"`
	SessionID  uint      `json:"sessionId" gorm:"index:idx_weaponstate_session_id"`
	Session    Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	SimTime    float64   `json:"simTime"`
	PlatformID string    `json:"platformId" gorm:"size:64"`
	WeaponID   string    `json:"weaponId" gorm:"size:64"`
	Primary    bool      `json:"primary"`
	State      string    `json:"state" gorm:"size:16"`
	TargetID   string    `json:"targetId" gorm:"size:64"`
	Reserve    float64   `json:"reserve"`
	Capacity   float64   `json:"capacity"`
	AutoFire   bool      `json:"autoFire"`
}

func (*WeaponState) TableName() string {
	return "weapon_states"
}

// AssignmentRecord is a turret order issued by the priority override
type AssignmentRecord struct {
	ID           uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time         time.Time `json:"time" gorm:"type:timestamptz;NOT NULL;index:idx_assignment_time"`
	SessionID    uint      `json:"sessionId" gorm:"index:idx_assignment_session_id"`
	Session      Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	SimTime      float64   `json:"simTime"`
	PlatformID   string    `json:"platformId" gorm:"size:64"`
	TurretID     string    `json:"turretId" gorm:"size:64"`
	TargetID     string    `json:"targetId" gorm:"size:64"`
	HardPriority bool      `json:"hardPriority"`
}

func (*AssignmentRecord) TableName() string {
	return "assignment_records"
}

////////////////////////
// RETRIEVAL
////////////////////////

// KindCount is one row of a per-kind event count
type KindCount struct {
	Kind  string `json:"kind"`
	Count int64  `json:"count"`
}

// CountEventsByKind returns the engagement event counts of a session
func CountEventsByKind(db *gorm.DB, sessionID uint) ([]KindCount, error) {
	var out []KindCount
	err := db.Model(&EngagementEvent{}).
		Select("kind, count(*) as count").
		Where("session_id = ?", sessionID).
		Group("kind").
		Order("kind").
		Scan(&out).Error
	return out, err
}
