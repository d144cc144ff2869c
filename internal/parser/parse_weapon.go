package parser

import (
	"github.com/OCAP2/coil/pkg/core"
)

// Mount is a weapon instance activation.
type Mount struct {
	Platform core.EntityID
	Instance core.EntityID
	Network  core.NetworkID
}

// ParseMount parses [platform, instance, network]. An empty platform is valid
// and leaves the instance inert.
func (p *Parser) ParseMount(data []string) (Mount, error) {
	args, err := clean("mount", data, 2)
	if err != nil {
		return Mount{}, err
	}
	m := Mount{Platform: core.EntityID(args[0])}
	if m.Instance, err = entityID("mount", "instance", args[1]); err != nil {
		return Mount{}, err
	}
	if len(args) > 2 {
		m.Network = core.NetworkID(args[2])
	}
	return m, nil
}

// ParseInstance parses [instance].
func (p *Parser) ParseInstance(data []string) (core.EntityID, error) {
	args, err := clean("instance", data, 1)
	if err != nil {
		return "", err
	}
	return entityID("instance", "instance", args[0])
}

// ParsePlatformID parses [platform, ...] and returns the platform and the rest.
func (p *Parser) ParsePlatformID(data []string) (core.EntityID, []string, error) {
	args, err := clean("platform", data, 1)
	if err != nil {
		return "", nil, err
	}
	id, err := entityID("platform", "platform", args[0])
	if err != nil {
		return "", nil, err
	}
	return id, args[1:], nil
}

// Fire is a manual fire command.
type Fire struct {
	Platform core.EntityID
	Target   core.EntityID
}

// ParseFire parses [platform, target].
func (p *Parser) ParseFire(data []string) (Fire, error) {
	args, err := clean("fire", data, 2)
	if err != nil {
		return Fire{}, err
	}
	var f Fire
	if f.Platform, err = entityID("fire", "platform", args[0]); err != nil {
		return Fire{}, err
	}
	if f.Target, err = entityID("fire", "target", args[1]); err != nil {
		return Fire{}, err
	}
	return f, nil
}

// ParseAutoFireSet parses [platform, enabled].
func (p *Parser) ParseAutoFireSet(data []string) (core.EntityID, bool, error) {
	args, err := clean("autofire", data, 2)
	if err != nil {
		return "", false, err
	}
	id, err := entityID("autofire", "platform", args[0])
	if err != nil {
		return "", false, err
	}
	v, err := boolean("autofire", "enabled", args[1])
	if err != nil {
		return "", false, err
	}
	return id, v, nil
}

// ParseRestore parses [platform, reserve].
func (p *Parser) ParseRestore(data []string) (core.EntityID, float64, error) {
	args, err := clean("restore", data, 2)
	if err != nil {
		return "", 0, err
	}
	id, err := entityID("restore", "platform", args[0])
	if err != nil {
		return "", 0, err
	}
	reserve, err := float("restore", "reserve", args[1])
	if err != nil {
		return "", 0, err
	}
	return id, reserve, nil
}

// Turrets is a set of actuators to attach to a platform override.
type Turrets struct {
	Platform core.EntityID
	IDs      []core.EntityID
}

// ParseTurrets parses [platform, turret...].
func (p *Parser) ParseTurrets(data []string) (Turrets, error) {
	args, err := clean("turret", data, 2)
	if err != nil {
		return Turrets{}, err
	}
	t := Turrets{}
	if t.Platform, err = entityID("turret", "platform", args[0]); err != nil {
		return Turrets{}, err
	}
	for _, a := range args[1:] {
		id, err := entityID("turret", "turret", a)
		if err != nil {
			return Turrets{}, err
		}
		t.IDs = append(t.IDs, id)
	}
	return t, nil
}

// TurretObservation is the target a turret is actually tracking.
type TurretObservation struct {
	Platform core.EntityID
	Turret   core.EntityID
	Target   core.EntityID
}

// ParseTurretObserve parses [platform, turret, target]. An empty target means none.
func (p *Parser) ParseTurretObserve(data []string) (TurretObservation, error) {
	args, err := clean("turret observe", data, 3)
	if err != nil {
		return TurretObservation{}, err
	}
	o := TurretObservation{Target: core.EntityID(args[2])}
	if o.Platform, err = entityID("turret observe", "platform", args[0]); err != nil {
		return TurretObservation{}, err
	}
	if o.Turret, err = entityID("turret observe", "turret", args[1]); err != nil {
		return TurretObservation{}, err
	}
	return o, nil
}
