package parser

import (
	"testing"

	"github.com/OCAP2/coil/internal/geo"
	"github.com/OCAP2/coil/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMount(t *testing.T) {
	p := NewParser(nil, nil)

	m, err := p.ParseMount([]string{
		`"veh1"`,  // 0: platform
		`"coil2"`, // 1: instance
		`"west"`,  // 2: network
	})
	require.NoError(t, err)
	assert.Equal(t, Mount{Platform: "veh1", Instance: "coil2", Network: "west"}, m)

	m, err = p.ParseMount([]string{`""`, `"coil3"`})
	require.NoError(t, err)
	assert.Empty(t, m.Platform)

	_, err = p.ParseMount([]string{`"veh1"`})
	assert.ErrorIs(t, err, ErrInvalidArgs)
	_, err = p.ParseMount([]string{`"veh1"`, `""`})
	assert.ErrorIs(t, err, ErrInvalidArgs)
}

func TestParseFireAndAutoFire(t *testing.T) {
	p := NewParser(nil, nil)

	f, err := p.ParseFire([]string{`"veh1"`, `"m1"`})
	require.NoError(t, err)
	assert.Equal(t, Fire{Platform: "veh1", Target: "m1"}, f)

	id, on, err := p.ParseAutoFireSet([]string{`"veh1"`, "true"})
	require.NoError(t, err)
	assert.Equal(t, core.EntityID("veh1"), id)
	assert.True(t, on)

	_, _, err = p.ParseAutoFireSet([]string{`"veh1"`, "maybe"})
	assert.ErrorIs(t, err, ErrInvalidArgs)
}

func TestParseRestore(t *testing.T) {
	p := NewParser(nil, nil)

	id, reserve, err := p.ParseRestore([]string{`"veh1"`, "12.50"})
	require.NoError(t, err)
	assert.Equal(t, core.EntityID("veh1"), id)
	assert.InDelta(t, 12.5, reserve, 1e-9)

	_, _, err = p.ParseRestore([]string{`"veh1"`, "lots"})
	assert.ErrorIs(t, err, ErrInvalidArgs)
}

func TestParseTurrets(t *testing.T) {
	p := NewParser(nil, nil)

	tr, err := p.ParseTurrets([]string{`"ship"`, `"t1"`, `"t2"`})
	require.NoError(t, err)
	assert.Equal(t, core.EntityID("ship"), tr.Platform)
	assert.Equal(t, []core.EntityID{"t1", "t2"}, tr.IDs)

	_, err = p.ParseTurrets([]string{`"ship"`})
	assert.ErrorIs(t, err, ErrInvalidArgs)

	o, err := p.ParseTurretObserve([]string{`"ship"`, `"t1"`, `""`})
	require.NoError(t, err)
	assert.Equal(t, TurretObservation{Platform: "ship", Turret: "t1"}, o)
}

func TestParsePlatform(t *testing.T) {
	p := NewParser(nil, nil)

	u, err := p.ParsePlatform([]string{
		`"veh1"`,      // 0: platform
		`"west"`,      // 1: network
		"[100,200,5]", // 2: pos
		"[0,1,0]",     // 3: forward
		"false",       // 4: alive
	})
	require.NoError(t, err)
	assert.Equal(t, core.EntityID("veh1"), u.ID)
	assert.Equal(t, core.NetworkID("west"), u.Network)
	assert.Equal(t, core.Position3D{X: 100, Y: 200, Z: 5}, u.Pose.Position)
	assert.Equal(t, core.Position3D{Y: 1}, u.Pose.Forward)
	assert.False(t, u.Alive)

	u, err = p.ParsePlatform([]string{`"veh1"`, `"west"`, "1,2", "1,0"})
	require.NoError(t, err)
	assert.True(t, u.Alive)

	_, err = p.ParsePlatform([]string{`"veh1"`, `"west"`, "1", "1,0"})
	assert.ErrorIs(t, err, ErrInvalidArgs)
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinates)
}

func TestParsePlatformGeodetic(t *testing.T) {
	p := NewParser(nil, geo.NewProjector(true, 10, 50))

	u, err := p.ParsePlatform([]string{`"veh1"`, `"west"`, "[10,50,120]", "[1,0,0]"})
	require.NoError(t, err)
	assert.InDelta(t, 0, u.Pose.Position.X, 1e-6)
	assert.InDelta(t, 0, u.Pose.Position.Y, 1e-6)
	assert.InDelta(t, 120, u.Pose.Position.Z, 1e-9)
	// forward is a direction, not a coordinate
	assert.Equal(t, core.Position3D{X: 1}, u.Pose.Forward)

	_, err = p.ParsePlatform([]string{`"veh1"`, `"west"`, "[10,89,0]", "[1,0,0]"})
	assert.ErrorIs(t, err, ErrInvalidArgs)
}

func TestParseContacts(t *testing.T) {
	p := NewParser(nil, nil)

	us, err := p.ParseContacts([]string{
		`"[""m1"",[1000,2000,300],""east"",""missile"",""veh1"",true,false,false]"`,
		`[17,[5,6]]`,
		`["boat",[0,0,0],"east","other","",false,true,true]`,
	})
	require.NoError(t, err)
	require.Len(t, us, 3)

	m1 := us[0]
	assert.Equal(t, core.EntityID("m1"), m1.Contact.ID)
	assert.Equal(t, core.Position3D{X: 1000, Y: 2000, Z: 300}, m1.Contact.Position)
	assert.Equal(t, core.NetworkID("east"), m1.Network)
	assert.Equal(t, core.ThreatMissile, m1.Contact.Class)
	assert.Equal(t, core.EntityID("veh1"), m1.Contact.TargetID)
	assert.True(t, m1.Contact.IsWeapon)
	assert.Empty(t, m1.Contact.TargetNetwork)

	short := us[1]
	assert.Equal(t, core.EntityID("17"), short.Contact.ID)
	assert.Equal(t, core.ThreatOther, short.Contact.Class)
	assert.True(t, short.Contact.IsWeapon)
	assert.False(t, short.Contact.Disabled)

	boat := us[2]
	assert.False(t, boat.Contact.IsWeapon)
	assert.True(t, boat.Contact.Disabled)
	assert.True(t, boat.Contact.Surface)
}

func TestParseContactsInvalid(t *testing.T) {
	p := NewParser(nil, nil)

	for name, raw := range map[string]string{
		"not json":     `m1`,
		"no position":  `["m1"]`,
		"empty id":     `["",[1,2,3]]`,
		"bad position": `["m1",[1]]`,
		"bad flag":     `["m1",[1,2,3],"east","missile","","yes"]`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := p.ParseContacts([]string{raw})
			assert.ErrorIs(t, err, ErrInvalidArgs)
		})
	}

	us, err := p.ParseContacts(nil)
	require.NoError(t, err)
	assert.Empty(t, us)
}

func TestParseObstacle(t *testing.T) {
	p := NewParser(nil, nil)

	o, err := p.ParseObstacle([]string{`"house1"`, `"POLYGON((0 0,10 0,10 10,0 10,0 0))"`, "8"})
	require.NoError(t, err)
	assert.Equal(t, core.EntityID("house1"), o.ID)
	assert.InDelta(t, 8, o.Height, 1e-9)

	o, err = p.ParseObstacle([]string{`"wall"`, "[[0,0],[1,0],[1,20],[0,20]]", "4"})
	require.NoError(t, err)
	assert.Equal(t, core.EntityID("wall"), o.ID)

	_, err = p.ParseObstacle([]string{`"wall"`, "[[0,0],[1,0],[1,20],[0,20]]", "-1"})
	assert.ErrorIs(t, err, ErrInvalidArgs)
	_, err = p.ParseObstacle([]string{`"wall"`, "POINT(1 1)", "4"})
	assert.ErrorIs(t, err, ErrInvalidArgs)
}

func TestParseTick(t *testing.T) {
	p := NewParser(nil, nil)

	tk, err := p.ParseTick([]string{"12.5", "0.1"})
	require.NoError(t, err)
	assert.Equal(t, Tick{SimTime: 12.5, DT: 0.1}, tk)

	for _, args := range [][]string{
		{"12.5"},
		{"x", "0.1"},
		{"1", "0"},
		{"1", "-0.1"},
		{"NaN", "0.1"},
	} {
		_, err := p.ParseTick(args)
		assert.ErrorIs(t, err, ErrInvalidArgs, "%v", args)
	}
}

func TestParseSession(t *testing.T) {
	p := NewParser(nil, nil)

	s, err := p.ParseSession([]string{`"Op Aegis"`, `"Altis"`})
	require.NoError(t, err)
	assert.Equal(t, Session{Name: "Op Aegis", World: "Altis"}, s)

	_, err = p.ParseSession([]string{`""`})
	assert.ErrorIs(t, err, ErrInvalidArgs)

	v, err := p.ParseBool([]string{"1"})
	require.NoError(t, err)
	assert.True(t, v)
}
