package streaming

import (
	"encoding/json"

	"github.com/OCAP2/coil/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartSession    = "start_session"
	TypeEndSession      = "end_session"
	TypeEngagementEvent = "engagement_event"
	TypeWeaponState     = "weapon_state"
	TypeAssignment      = "assignment"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartSessionPayload carries the session being recorded.
type StartSessionPayload struct {
	Session *core.Session `json:"session"`
}

// EngagementEventPayload is the wire form of core.EngagementEvent.
type EngagementEventPayload struct {
	Time       int64          `json:"time"`
	SimTime    float64        `json:"simTime"`
	PlatformID string         `json:"platformId"`
	WeaponID   string         `json:"weaponId"`
	Kind       string         `json:"kind"`
	TargetID   string         `json:"targetId,omitempty"`
	Blast      float64        `json:"blast,omitempty"`
	Fire       float64        `json:"fire,omitempty"`
	Reserve    float64        `json:"reserve"`
	ExtraData  map[string]any `json:"extraData,omitempty"`
}

// NewEngagementEventPayload converts an event; time is in unix milliseconds.
func NewEngagementEventPayload(e *core.EngagementEvent) EngagementEventPayload {
	return EngagementEventPayload{
		Time:       e.Time.UnixMilli(),
		SimTime:    e.SimTime,
		PlatformID: string(e.PlatformID),
		WeaponID:   string(e.WeaponID),
		Kind:       e.Kind,
		TargetID:   string(e.TargetID),
		Blast:      e.Blast,
		Fire:       e.Fire,
		Reserve:    e.Reserve,
		ExtraData:  e.ExtraData,
	}
}

// WeaponStatePayload is the wire form of core.WeaponState.
type WeaponStatePayload struct {
	Time       int64   `json:"time"`
	SimTime    float64 `json:"simTime"`
	PlatformID string  `json:"platformId"`
	WeaponID   string  `json:"weaponId"`
	Primary    bool    `json:"primary"`
	State      string  `json:"state"`
	TargetID   string  `json:"targetId,omitempty"`
	Reserve    float64 `json:"reserve"`
	Capacity   float64 `json:"capacity"`
	AutoFire   bool    `json:"autoFire"`
}

// NewWeaponStatePayload converts a snapshot; the state is sent by name.
func NewWeaponStatePayload(s *core.WeaponState) WeaponStatePayload {
	return WeaponStatePayload{
		Time:       s.Time.UnixMilli(),
		SimTime:    s.SimTime,
		PlatformID: string(s.PlatformID),
		WeaponID:   string(s.WeaponID),
		Primary:    s.Primary,
		State:      s.State.String(),
		TargetID:   string(s.TargetID),
		Reserve:    s.Reserve,
		Capacity:   s.Capacity,
		AutoFire:   s.AutoFire,
	}
}

// AssignmentPayload is the wire form of core.AssignmentRecord.
type AssignmentPayload struct {
	Time         int64   `json:"time"`
	SimTime      float64 `json:"simTime"`
	PlatformID   string  `json:"platformId"`
	TurretID     string  `json:"turretId"`
	TargetID     string  `json:"targetId,omitempty"`
	HardPriority bool    `json:"hardPriority"`
}
