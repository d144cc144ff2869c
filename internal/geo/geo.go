// Package geo converts host coordinates into the weapon's local frame and
// models static terrain obstacles for line-of-sight.
package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/OCAP2/coil/pkg/core"
	"github.com/wroge/wgs84"
)

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Position3DFromString parses "x,y" or "x,y,z", optionally wrapped in brackets
// as the host serializes arrays.
func Position3DFromString(coords string) (core.Position3D, error) {
	coords = strings.TrimSpace(coords)
	coords = strings.TrimSuffix(strings.TrimPrefix(coords, "["), "]")
	parts := strings.Split(coords, ",")
	if len(parts) < 2 || len(parts) > 3 {
		return core.Position3D{}, ErrInvalidCoordinates
	}
	var v [3]float64
	for i, s := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return core.Position3D{}, ErrInvalidCoordinates
		}
		v[i] = f
	}
	return core.Position3D{X: v[0], Y: v[1], Z: v[2]}, nil
}

// Projector maps geodetic coordinates (EPSG:4326) into a local metric frame
// centred on a reference point. Web Mercator is rescaled by the cosine of the
// reference latitude so distances near the reference are in metres.
type Projector struct {
	transform func(a, b, c float64) (float64, float64, float64)
	originX   float64
	originY   float64
	scale     float64
	geodetic  bool
}

// NewProjector returns a pass-through projector when geodetic is false. The
// host's map-grid coordinates are already metric.
func NewProjector(geodetic bool, refLon, refLat float64) *Projector {
	p := &Projector{geodetic: geodetic, scale: 1}
	if !geodetic {
		return p
	}
	p.transform = wgs84.EPSG().Transform(4326, 3857)
	p.originX, p.originY, _ = p.transform(refLon, refLat, 0)
	p.scale = math.Cos(refLat * math.Pi / 180)
	return p
}

// Geodetic reports whether inputs are longitude/latitude.
func (p *Projector) Geodetic() bool { return p.geodetic }

// Project converts one position. Altitude is passed through.
func (p *Projector) Project(in core.Position3D) (core.Position3D, error) {
	if !p.geodetic {
		return in, nil
	}
	if in.Y < -85.06 || in.Y > 85.06 || in.X < -180 || in.X > 180 {
		return core.Position3D{}, ErrInvalidCoordinates
	}
	x, y, _ := p.transform(in.X, in.Y, 0)
	return core.Position3D{
		X: (x - p.originX) * p.scale,
		Y: (y - p.originY) * p.scale,
		Z: in.Z,
	}, nil
}

// ParsePosition parses and projects a host coordinate string.
func (p *Projector) ParsePosition(coords string) (core.Position3D, error) {
	pos, err := Position3DFromString(coords)
	if err != nil {
		return core.Position3D{}, err
	}
	return p.Project(pos)
}
