package geo

import (
	"encoding/json"
	"fmt"
	"math"
	"sync"

	"github.com/OCAP2/coil/internal/geometry"
	"github.com/OCAP2/coil/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// Obstacle is a static footprint extruded from the ground to Height.
type Obstacle struct {
	ID        core.EntityID
	Footprint geom.Geometry
	Height    float64

	minX, minY, maxX, maxY float64
}

// NewObstacle validates a polygonal footprint.
func NewObstacle(id core.EntityID, footprint geom.Geometry, height float64) (Obstacle, error) {
	switch footprint.Type() {
	case geom.TypePolygon, geom.TypeMultiPolygon:
	default:
		return Obstacle{}, fmt.Errorf("obstacle %s: footprint is %s, want polygon", id, footprint.Type())
	}
	if footprint.IsEmpty() {
		return Obstacle{}, fmt.Errorf("obstacle %s: empty footprint", id)
	}
	if !(height > 0) {
		return Obstacle{}, fmt.Errorf("obstacle %s: height %v must be positive", id, height)
	}
	o := Obstacle{ID: id, Footprint: footprint, Height: height}
	o.minX, o.minY = math.Inf(1), math.Inf(1)
	o.maxX, o.maxY = math.Inf(-1), math.Inf(-1)
	seq := footprint.DumpCoordinates()
	for i := 0; i < seq.Length(); i++ {
		xy := seq.GetXY(i)
		o.minX, o.maxX = math.Min(o.minX, xy.X), math.Max(o.maxX, xy.X)
		o.minY, o.maxY = math.Min(o.minY, xy.Y), math.Max(o.maxY, xy.Y)
	}
	return o, nil
}

// ParseObstacleWKT reads a POLYGON or MULTIPOLYGON footprint.
func ParseObstacleWKT(id core.EntityID, wkt string, height float64) (Obstacle, error) {
	g, err := geom.UnmarshalWKT(wkt)
	if err != nil {
		return Obstacle{}, fmt.Errorf("obstacle %s: %w", id, err)
	}
	return NewObstacle(id, g, height)
}

// ParseFootprint reads a JSON ring "[[x1,y1],[x2,y2],...]". The ring is closed
// if the host left it open.
func ParseFootprint(id core.EntityID, input string, height float64) (Obstacle, error) {
	var coords [][]float64
	if err := json.Unmarshal([]byte(input), &coords); err != nil {
		return Obstacle{}, fmt.Errorf("failed to parse footprint JSON: %w", err)
	}
	if len(coords) < 3 {
		return Obstacle{}, fmt.Errorf("footprint must have at least 3 points, got %d", len(coords))
	}
	flat := make([]float64, 0, (len(coords)+1)*2)
	for i, c := range coords {
		if len(c) < 2 {
			return Obstacle{}, fmt.Errorf("coordinate %d has insufficient values", i)
		}
		flat = append(flat, c[0], c[1])
	}
	if first, last := coords[0], coords[len(coords)-1]; first[0] != last[0] || first[1] != last[1] {
		flat = append(flat, first[0], first[1])
	}
	ring := geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
	poly := geom.NewPolygon([]geom.LineString{ring})
	return NewObstacle(id, poly.AsGeometry(), height)
}

// BodySource lists the entities that can occlude or receive a ray.
type BodySource interface {
	Bodies() []core.Contact
}

// Scene is the host-side raycaster: contacts are spheres of BodyRadius and
// obstacles are extruded footprints. It is safe for concurrent use.
type Scene struct {
	mu         sync.RWMutex
	bodies     BodySource
	bodyRadius float64
	obstacles  map[core.EntityID]Obstacle
	platforms  map[core.EntityID]core.Position3D
}

var _ geometry.Raycaster = (*Scene)(nil)

// NewScene returns a scene with no obstacles.
func NewScene(bodies BodySource, bodyRadius float64) *Scene {
	if !(bodyRadius > 0) {
		bodyRadius = 1
	}
	return &Scene{
		bodies:     bodies,
		bodyRadius: bodyRadius,
		obstacles:  make(map[core.EntityID]Obstacle),
		platforms:  make(map[core.EntityID]core.Position3D),
	}
}

// AddObstacle inserts or replaces an obstacle.
func (s *Scene) AddObstacle(o Obstacle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.obstacles[o.ID] = o
}

// RemoveObstacle deletes an obstacle and reports whether it existed.
func (s *Scene) RemoveObstacle(id core.EntityID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.obstacles[id]
	delete(s.obstacles, id)
	return ok
}

// Obstacles returns the number of obstacles.
func (s *Scene) Obstacles() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.obstacles)
}

// SetPlatform records a platform body, which is not part of the contact list.
func (s *Scene) SetPlatform(id core.EntityID, pos core.Position3D) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.platforms[id] = pos
}

// RemovePlatform forgets a platform body.
func (s *Scene) RemovePlatform(id core.EntityID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.platforms, id)
}

// Raycast returns the nearest body or obstacle hit along dir within maxDistance.
// dir must be a unit vector.
func (s *Scene) Raycast(origin, dir core.Position3D, maxDistance float64) (geometry.Hit, bool) {
	best := geometry.Hit{Distance: math.Inf(1)}

	consider := func(id core.EntityID, center core.Position3D) {
		if d, ok := s.sphere(origin, dir, center, maxDistance); ok && d < best.Distance {
			best = geometry.Hit{EntityID: id, Distance: d}
		}
	}
	if s.bodies != nil {
		for _, c := range s.bodies.Bodies() {
			consider(c.ID, c.Position)
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, pos := range s.platforms {
		consider(id, pos)
	}
	for _, o := range s.obstacles {
		if d, ok := o.intersect(origin, dir, maxDistance); ok && d < best.Distance {
			best = geometry.Hit{EntityID: o.ID, Distance: d}
		}
	}

	if math.IsInf(best.Distance, 1) {
		return geometry.Hit{}, false
	}
	return best, true
}

// sphere returns the entry distance of the ray into a sphere.
func (s *Scene) sphere(origin, dir, center core.Position3D, maxDistance float64) (float64, bool) {
	rel := center.Sub(origin)
	along := rel.Dot(dir)
	perp2 := rel.Dot(rel) - along*along
	r2 := s.bodyRadius * s.bodyRadius
	if perp2 > r2 {
		return 0, false
	}
	d := along - math.Sqrt(r2-perp2)
	if d < 0 {
		// origin inside the sphere
		d = 0
	}
	if along+math.Sqrt(r2-perp2) < 0 || d > maxDistance {
		return 0, false
	}
	return d, true
}

// intersect returns the distance at which the ray first enters the obstacle
// below its height.
func (o Obstacle) intersect(origin, dir core.Position3D, maxDistance float64) (float64, bool) {
	end := origin.Add(dir.Scale(maxDistance))
	if math.Max(origin.X, end.X) < o.minX || math.Min(origin.X, end.X) > o.maxX ||
		math.Max(origin.Y, end.Y) < o.minY || math.Min(origin.Y, end.Y) > o.maxY {
		return 0, false
	}
	if math.Min(origin.Z, end.Z) > o.Height {
		return 0, false
	}

	horiz := math.Hypot(dir.X, dir.Y)
	if horiz < 1e-12 {
		// vertical ray: blocked only if it starts inside the footprint below the roof
		pt := geom.NewPoint(geom.Coordinates{XY: geom.XY{X: origin.X, Y: origin.Y}})
		if origin.Z <= o.Height && geom.Intersects(pt.AsGeometry(), o.Footprint) {
			return 0, true
		}
		return 0, false
	}

	seg := geom.NewLineString(geom.NewSequence([]float64{origin.X, origin.Y, end.X, end.Y}, geom.DimXY))
	inter, err := geom.Intersection(seg.AsGeometry(), o.Footprint)
	if err != nil || inter.IsEmpty() {
		return 0, false
	}

	// Along-ray distance of every crossing point; the ray is blocked when it is
	// below the roof anywhere inside the footprint, which for a straight ray is
	// decided at the crossing points.
	seq := inter.DumpCoordinates()
	first, last := math.Inf(1), math.Inf(-1)
	for i := 0; i < seq.Length(); i++ {
		xy := seq.GetXY(i)
		t := math.Hypot(xy.X-origin.X, xy.Y-origin.Y) / horiz
		first, last = math.Min(first, t), math.Max(last, t)
	}
	zIn := origin.Z + dir.Z*first
	zOut := origin.Z + dir.Z*last
	if math.Min(zIn, zOut) > o.Height {
		return 0, false
	}
	if zIn <= o.Height {
		return first, true
	}
	// descending through the roof
	return first + (zIn-o.Height)/(zIn-zOut)*(last-first), true
}
