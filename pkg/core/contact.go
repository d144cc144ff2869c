// pkg/core/contact.go
package core

import "strings"

// EntityID identifies a simulated entity (platform, contact, turret).
type EntityID string

// NetworkID identifies an allied network (side/faction datalink).
type NetworkID string

// ThreatClass tags a contact for priority scoring.
type ThreatClass uint8

const (
	ThreatOther ThreatClass = iota
	ThreatBomb
	ThreatMissile
	ThreatAirToAir
	ThreatNuclear
)

var threatClassNames = map[ThreatClass]string{
	ThreatOther:    "other",
	ThreatBomb:     "bomb",
	ThreatMissile:  "missile",
	ThreatAirToAir: "air_to_air",
	ThreatNuclear:  "nuclear",
}

func (c ThreatClass) String() string {
	if s, ok := threatClassNames[c]; ok {
		return s
	}
	return "other"
}

// ParseThreatClass maps a class tag to a ThreatClass. Unknown tags are ThreatOther.
func ParseThreatClass(s string) ThreatClass {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nuclear", "nuke":
		return ThreatNuclear
	case "air_to_air", "aa", "airtoair":
		return ThreatAirToAir
	case "missile":
		return ThreatMissile
	case "bomb":
		return ThreatBomb
	default:
		return ThreatOther
	}
}

// Contact is a read-only snapshot of a detectable entity, valid for one scan cycle.
type Contact struct {
	ID       EntityID    `json:"id"`
	Position Position3D  `json:"position"`
	Disabled bool        `json:"disabled"`
	Class    ThreatClass `json:"class"`
	// TargetID is the entity this contact is itself targeting, empty if none.
	TargetID EntityID `json:"targetId,omitempty"`
	// TargetNetwork is the allied network of TargetID, resolved by the registry.
	TargetNetwork NetworkID `json:"targetNetwork,omitempty"`
	IsWeapon      bool      `json:"isWeapon"`
	// Surface marks ground and sea entities for reduced beam effect.
	Surface bool `json:"surface"`
}
