package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/OCAP2/coil/internal/geo"
	"github.com/OCAP2/coil/pkg/core"
)

// PlatformUpdate is a platform pose report.
type PlatformUpdate struct {
	ID      core.EntityID
	Network core.NetworkID
	Pose    core.Pose
	Alive   bool
}

// ParsePlatform parses [platform, network, pos, forward, alive]. alive defaults to true.
func (p *Parser) ParsePlatform(data []string) (PlatformUpdate, error) {
	args, err := clean("platform", data, 4)
	if err != nil {
		return PlatformUpdate{}, err
	}
	u := PlatformUpdate{Network: core.NetworkID(args[1]), Alive: true}
	if u.ID, err = entityID("platform", "platform", args[0]); err != nil {
		return PlatformUpdate{}, err
	}
	if u.Pose.Position, err = p.position("platform", "pos", args[2]); err != nil {
		return PlatformUpdate{}, err
	}
	// Direction vectors are never projected.
	if u.Pose.Forward, err = geo.Position3DFromString(args[3]); err != nil {
		return PlatformUpdate{}, invalid("platform: forward: %v", err)
	}
	if len(args) > 4 {
		if u.Alive, err = boolean("platform", "alive", args[4]); err != nil {
			return PlatformUpdate{}, err
		}
	}
	return u, nil
}

// ContactUpdate is one contact record with the contact's own network, which the
// cache uses to resolve TargetNetwork of other contacts.
type ContactUpdate struct {
	Contact core.Contact
	Network core.NetworkID
}

// ParseContacts parses one record per argument:
// [id, [x,y,z], network, class, targetId, isWeapon, disabled, surface].
// Trailing fields may be omitted.
func (p *Parser) ParseContacts(data []string) ([]ContactUpdate, error) {
	out := make([]ContactUpdate, 0, len(data))
	for i, raw := range data {
		u, err := p.parseContact(raw)
		if err != nil {
			return nil, fmt.Errorf("contact %d: %w", i, err)
		}
		out = append(out, u)
	}
	return out, nil
}

func (p *Parser) parseContact(raw string) (ContactUpdate, error) {
	args, err := clean("contact", []string{raw}, 1)
	if err != nil {
		return ContactUpdate{}, err
	}
	var fields []json.RawMessage
	if err := json.Unmarshal([]byte(args[0]), &fields); err != nil {
		return ContactUpdate{}, invalid("contact record %q: %v", args[0], err)
	}
	if len(fields) < 2 {
		return ContactUpdate{}, invalid("contact record needs id and position")
	}

	var u ContactUpdate
	id, err := jsonString(fields[0])
	if err != nil || id == "" {
		return ContactUpdate{}, invalid("contact id %s", fields[0])
	}
	u.Contact.ID = core.EntityID(id)

	var pos []float64
	if err := json.Unmarshal(fields[1], &pos); err != nil {
		return ContactUpdate{}, invalid("contact %s position %s", id, fields[1])
	}
	strs := make([]string, len(pos))
	for i, v := range pos {
		strs[i] = fmt.Sprint(v)
	}
	if u.Contact.Position, err = p.position("contact", "pos", strings.Join(strs, ",")); err != nil {
		return ContactUpdate{}, err
	}

	u.Contact.IsWeapon = true
	opt := func(i int) json.RawMessage {
		if i < len(fields) {
			return fields[i]
		}
		return nil
	}
	if f := opt(2); f != nil {
		s, _ := jsonString(f)
		u.Network = core.NetworkID(s)
	}
	if f := opt(3); f != nil {
		s, _ := jsonString(f)
		u.Contact.Class = core.ParseThreatClass(s)
	}
	if f := opt(4); f != nil {
		s, _ := jsonString(f)
		u.Contact.TargetID = core.EntityID(s)
	}
	for i, dst := range []*bool{&u.Contact.IsWeapon, &u.Contact.Disabled, &u.Contact.Surface} {
		f := opt(5 + i)
		if f == nil {
			continue
		}
		if err := json.Unmarshal(f, dst); err != nil {
			return ContactUpdate{}, invalid("contact %s field %d: %s", id, 5+i, f)
		}
	}
	return u, nil
}

// jsonString accepts a JSON string or number and returns it as a string.
func jsonString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

// ParseObstacle parses [id, footprint, height]. The footprint is WKT or a JSON ring.
func (p *Parser) ParseObstacle(data []string) (geo.Obstacle, error) {
	args, err := clean("obstacle", data, 3)
	if err != nil {
		return geo.Obstacle{}, err
	}
	id, err := entityID("obstacle", "id", args[0])
	if err != nil {
		return geo.Obstacle{}, err
	}
	height, err := float("obstacle", "height", args[2])
	if err != nil {
		return geo.Obstacle{}, err
	}

	var o geo.Obstacle
	if strings.HasPrefix(args[1], "[") {
		o, err = geo.ParseFootprint(id, args[1], height)
	} else {
		o, err = geo.ParseObstacleWKT(id, args[1], height)
	}
	if err != nil {
		return geo.Obstacle{}, fmt.Errorf("%w: %w", ErrInvalidArgs, err)
	}
	return o, nil
}
