package weapon

import (
	"math"
	"testing"

	"github.com/OCAP2/coil/internal/geometry"
	"github.com/OCAP2/coil/internal/scan"
	"github.com/OCAP2/coil/pkg/core"
	"github.com/stretchr/testify/require"
)

const (
	bodyRadius = 5
	dt         = 0.1
)

func at(i int) float64 { return float64(i) * dt }

// world is a contact registry and raycaster over spherical bodies.
type world struct {
	contacts map[core.EntityID]*core.Contact
	order    []core.EntityID
}

func newWorld() *world {
	return &world{contacts: map[core.EntityID]*core.Contact{}}
}

func (w *world) add(id core.EntityID, class core.ThreatClass, x, y float64) *core.Contact {
	c := &core.Contact{ID: id, Class: class, IsWeapon: true, Position: core.Position3D{X: x, Y: y}}
	w.contacts[id] = c
	w.order = append(w.order, id)
	return c
}

func (w *world) Query(q scan.Query) ([]core.Contact, error) {
	var out []core.Contact
	for _, id := range w.order {
		c, ok := w.contacts[id]
		if !ok || id == q.Exclude {
			continue
		}
		if q.Origin.DistanceTo(c.Position) <= q.Radius {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (w *world) Lookup(id core.EntityID) (core.Contact, bool) {
	c, ok := w.contacts[id]
	if !ok {
		return core.Contact{}, false
	}
	return *c, true
}

func (w *world) Raycast(origin, dir core.Position3D, maxDistance float64) (geometry.Hit, bool) {
	best := math.Inf(1)
	var hit core.EntityID
	for id, c := range w.contacts {
		rel := c.Position.Sub(origin)
		along := rel.Dot(dir)
		if along < -bodyRadius || along > maxDistance+bodyRadius {
			continue
		}
		if rel.Sub(dir.Scale(along)).Len() <= bodyRadius && along < best {
			best, hit = along, id
		}
	}
	if hit == "" {
		return geometry.Hit{}, false
	}
	return geometry.Hit{EntityID: hit, Distance: best}, true
}

type damageRecorder struct {
	applied []core.Damage
}

func (d *damageRecorder) ApplyDamage(dmg core.Damage) { d.applied = append(d.applied, dmg) }

type ammoRecorder struct {
	consumed map[core.EntityID]float64
	requests map[core.EntityID]int
}

func newAmmoRecorder() *ammoRecorder {
	return &ammoRecorder{consumed: map[core.EntityID]float64{}, requests: map[core.EntityID]int{}}
}

func (a *ammoRecorder) NotifyConsumed(p core.EntityID, units float64) { a.consumed[p] += units }
func (a *ammoRecorder) RequestResupply(p core.EntityID)               { a.requests[p]++ }

type rig struct {
	c      *Coordinator
	w      *world
	damage *damageRecorder
	ammo   *ammoRecorder
}

func newRig(t *testing.T, mutate func(*Config)) *rig {
	t.Helper()
	cfg := DefaultConfig()
	cfg.MaxRange = 20000
	cfg.AutoFireEnabledDefault = true
	if mutate != nil {
		mutate(&cfg)
	}
	r := &rig{w: newWorld(), damage: &damageRecorder{}, ammo: newAmmoRecorder()}
	c, err := NewCoordinator(cfg, Deps{
		Registry:  r.w,
		Raycaster: r.w,
		Damage:    r.damage,
		Ammo:      r.ammo,
	})
	require.NoError(t, err)
	r.c = c
	return r
}

func (r *rig) place(platform core.EntityID) {
	r.c.UpdatePlatform(platform, "blue", core.Pose{Forward: core.Position3D{Y: 1}})
}

func (r *rig) run(from, ticks int) []CycleReport {
	out := make([]CycleReport, 0, ticks)
	for i := from; i < from+ticks; i++ {
		out = append(out, r.c.Tick(at(i), dt))
	}
	return out
}

func eventKinds(reports []CycleReport) []string {
	var kinds []string
	for _, r := range reports {
		for _, e := range r.Events() {
			kinds = append(kinds, e.Kind)
		}
	}
	return kinds
}
