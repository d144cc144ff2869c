// pkg/core/geometry.go
package core

import "math"

// Position3D is a world-space position in meters.
type Position3D struct {
	X float64 `json:"x"` // easting
	Y float64 `json:"y"` // northing
	Z float64 `json:"z"` // elevation ASL
}

// Add returns p + o.
func (p Position3D) Add(o Position3D) Position3D {
	return Position3D{X: p.X + o.X, Y: p.Y + o.Y, Z: p.Z + o.Z}
}

// Sub returns p - o.
func (p Position3D) Sub(o Position3D) Position3D {
	return Position3D{X: p.X - o.X, Y: p.Y - o.Y, Z: p.Z - o.Z}
}

// Scale returns p multiplied by k.
func (p Position3D) Scale(k float64) Position3D {
	return Position3D{X: p.X * k, Y: p.Y * k, Z: p.Z * k}
}

// Dot returns the dot product of p and o.
func (p Position3D) Dot(o Position3D) float64 {
	return p.X*o.X + p.Y*o.Y + p.Z*o.Z
}

// Len returns the euclidean length of p.
func (p Position3D) Len() float64 {
	return math.Sqrt(p.Dot(p))
}

// DistanceTo returns the distance between p and o.
func (p Position3D) DistanceTo(o Position3D) float64 {
	return o.Sub(p).Len()
}

// Normalized returns the unit vector of p. ok is false for a zero vector.
func (p Position3D) Normalized() (Position3D, bool) {
	l := p.Len()
	if l == 0 || math.IsNaN(l) || math.IsInf(l, 0) {
		return Position3D{}, false
	}
	return p.Scale(1 / l), true
}

// AngleDegrees returns the angle between two vectors in degrees.
// A zero vector on either side yields 0.
func AngleDegrees(a, b Position3D) float64 {
	na, ok := a.Normalized()
	if !ok {
		return 0
	}
	nb, ok := b.Normalized()
	if !ok {
		return 0
	}
	cos := na.Dot(nb)
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return math.Acos(cos) * 180 / math.Pi
}

// Pose is a platform position with its forward axis.
type Pose struct {
	Position Position3D `json:"position"`
	Forward  Position3D `json:"forward"`
}
