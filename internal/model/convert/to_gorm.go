// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"

	"github.com/OCAP2/coil/internal/model"
	"github.com/OCAP2/coil/pkg/core"
	"gorm.io/datatypes"
)

// extraToJSON converts event extra data to datatypes.JSON for DB storage.
func extraToJSON(extra map[string]any) datatypes.JSON {
	if len(extra) == 0 {
		return datatypes.JSON("{}")
	}
	data, err := json.Marshal(extra)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(data)
}

// CoreToSession converts a core.Session to a GORM model.Session.
// core.Session.ID maps to the GORM primary key.
func CoreToSession(s core.Session) model.Session {
	m := model.Session{
		Name:             s.Name,
		World:            s.World,
		StartTime:        s.StartTime,
		ExtensionVersion: s.ExtensionVersion,
	}
	m.ID = s.ID
	return m
}

// CoreToEngagementEvent converts a core.EngagementEvent to a GORM model.EngagementEvent.
func CoreToEngagementEvent(e core.EngagementEvent, sessionID uint) model.EngagementEvent {
	return model.EngagementEvent{
		Time:       e.Time,
		SessionID:  sessionID,
		SimTime:    e.SimTime,
		PlatformID: string(e.PlatformID),
		WeaponID:   string(e.WeaponID),
		Kind:       e.Kind,
		TargetID:   string(e.TargetID),
		Blast:      e.Blast,
		Fire:       e.Fire,
		Reserve:    e.Reserve,
		ExtraData:  extraToJSON(e.ExtraData),
	}
}

// CoreToWeaponState converts a core.WeaponState to a GORM model.WeaponState.
// The state is stored by name.
func CoreToWeaponState(s core.WeaponState, sessionID uint) model.WeaponState {
	return model.WeaponState{
		Time:       s.Time,
		SessionID:  sessionID,
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

// CoreToAssignment converts a core.AssignmentRecord to a GORM model.AssignmentRecord.
func CoreToAssignment(a core.AssignmentRecord, sessionID uint) model.AssignmentRecord {
	return model.AssignmentRecord{
		Time:         a.Time,
		SessionID:    sessionID,
		SimTime:      a.SimTime,
		PlatformID:   string(a.PlatformID),
		TurretID:     string(a.TurretID),
		TargetID:     string(a.TargetID),
		HardPriority: a.HardPriority,
	}
}
