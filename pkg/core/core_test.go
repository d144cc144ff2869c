package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPosition3D_Arithmetic(t *testing.T) {
	a := Position3D{X: 3, Y: 4}
	b := Position3D{X: 1, Y: 1, Z: 1}

	assert.Equal(t, Position3D{X: 4, Y: 5, Z: 1}, a.Add(b))
	assert.Equal(t, Position3D{X: 2, Y: 3, Z: -1}, a.Sub(b))
	assert.Equal(t, Position3D{X: 6, Y: 8}, a.Scale(2))
	assert.Equal(t, 7.0, a.Dot(b))
	assert.Equal(t, 5.0, a.Len())
	assert.Equal(t, 5.0, Position3D{}.DistanceTo(a))
}

func TestPosition3D_Normalized(t *testing.T) {
	n, ok := Position3D{Y: 10}.Normalized()
	assert.True(t, ok)
	assert.Equal(t, Position3D{Y: 1}, n)

	_, ok = Position3D{}.Normalized()
	assert.False(t, ok)
	_, ok = Position3D{X: math.NaN()}.Normalized()
	assert.False(t, ok)
}

func TestAngleDegrees(t *testing.T) {
	tests := []struct {
		name string
		a, b Position3D
		want float64
	}{
		{"same", Position3D{Y: 1}, Position3D{Y: 5}, 0},
		{"right", Position3D{Y: 1}, Position3D{X: 2}, 90},
		{"opposite", Position3D{Y: 1}, Position3D{Y: -1}, 180},
		{"zero", Position3D{}, Position3D{Y: 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, AngleDegrees(tt.a, tt.b), 1e-9)
		})
	}
}

func TestParseThreatClass(t *testing.T) {
	cases := map[string]ThreatClass{
		"nuclear":  ThreatNuclear,
		" NUKE ":   ThreatNuclear,
		"aa":       ThreatAirToAir,
		"AirToAir": ThreatAirToAir,
		"missile":  ThreatMissile,
		"bomb":     ThreatBomb,
		"rocket":   ThreatOther,
		"":         ThreatOther,
	}
	for in, want := range cases {
		if got := ParseThreatClass(in); got != want {
			t.Errorf("ParseThreatClass(%q) = %v, want %v", in, got, want)
		}
	}
	for c := ThreatOther; c <= ThreatNuclear; c++ {
		assert.Equal(t, c, ParseThreatClass(c.String()))
	}
	assert.Equal(t, "other", ThreatClass(99).String())
}

func TestEngagementState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "charging", StateCharging.String())
	assert.Equal(t, "firing", StateFiring.String())
	assert.Equal(t, "depleted", StateDepleted.String())
}

func TestPriorityAssignment_None(t *testing.T) {
	assert.True(t, PriorityAssignment{}.None())
	assert.False(t, PriorityAssignment{TargetID: "n1", HardPriority: true}.None())
}
