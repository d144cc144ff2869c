package convert

import (
	"encoding/json"

	"github.com/OCAP2/coil/internal/model"
	"github.com/OCAP2/coil/pkg/core"
)

// parseState maps a stored state name back to core.EngagementState.
func parseState(s string) core.EngagementState {
	for _, st := range []core.EngagementState{core.StateCharging, core.StateFiring, core.StateDepleted} {
		if st.String() == s {
			return st
		}
	}
	return core.StateIdle
}

// SessionToCore converts a GORM Session to a core.Session.
func SessionToCore(s model.Session) core.Session {
	return core.Session{
		ID:               s.ID,
		Name:             s.Name,
		World:            s.World,
		StartTime:        s.StartTime,
		ExtensionVersion: s.ExtensionVersion,
	}
}

// EngagementEventToCore converts a GORM EngagementEvent to a core.EngagementEvent.
func EngagementEventToCore(e model.EngagementEvent) core.EngagementEvent {
	var extra map[string]any
	if len(e.ExtraData) > 0 {
		_ = json.Unmarshal(e.ExtraData, &extra)
	}
	if len(extra) == 0 {
		extra = nil
	}
	return core.EngagementEvent{
		Time:       e.Time,
		SimTime:    e.SimTime,
		PlatformID: core.EntityID(e.PlatformID),
		WeaponID:   core.EntityID(e.WeaponID),
		Kind:       e.Kind,
		TargetID:   core.EntityID(e.TargetID),
		Blast:      e.Blast,
		Fire:       e.Fire,
		Reserve:    e.Reserve,
		ExtraData:  extra,
	}
}

// WeaponStateToCore converts a GORM WeaponState to a core.WeaponState.
func WeaponStateToCore(s model.WeaponState) core.WeaponState {
	return core.WeaponState{
		Time:       s.Time,
		SimTime:    s.SimTime,
		PlatformID: core.EntityID(s.PlatformID),
		WeaponID:   core.EntityID(s.WeaponID),
		Primary:    s.Primary,
		State:      parseState(s.State),
		TargetID:   core.EntityID(s.TargetID),
		Reserve:    s.Reserve,
		Capacity:   s.Capacity,
		AutoFire:   s.AutoFire,
	}
}

// AssignmentToCore converts a GORM AssignmentRecord to a core.AssignmentRecord.
func AssignmentToCore(a model.AssignmentRecord) core.AssignmentRecord {
	return core.AssignmentRecord{
		Time:         a.Time,
		SimTime:      a.SimTime,
		PlatformID:   core.EntityID(a.PlatformID),
		TurretID:     core.EntityID(a.TurretID),
		TargetID:     core.EntityID(a.TargetID),
		HardPriority: a.HardPriority,
	}
}
