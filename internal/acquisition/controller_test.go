package acquisition

import (
	"errors"
	"math"
	"testing"

	"github.com/OCAP2/coil/internal/ammo"
	"github.com/OCAP2/coil/internal/geometry"
	"github.com/OCAP2/coil/internal/scan"
	"github.com/OCAP2/coil/internal/threat"
	"github.com/OCAP2/coil/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bodyRadius = 5

// world is a registry and raycaster over spherical contacts.
type world struct {
	contacts map[core.EntityID]*core.Contact
	order    []core.EntityID
	blocked  map[core.EntityID]bool
	fail     bool
}

func newWorld() *world {
	return &world{contacts: map[core.EntityID]*core.Contact{}, blocked: map[core.EntityID]bool{}}
}

func (w *world) add(id core.EntityID, class core.ThreatClass, x, y float64) *core.Contact {
	c := &core.Contact{ID: id, Class: class, IsWeapon: true, Position: core.Position3D{X: x, Y: y}}
	w.contacts[id] = c
	w.order = append(w.order, id)
	return c
}

func (w *world) remove(id core.EntityID) {
	delete(w.contacts, id)
}

func (w *world) Query(q scan.Query) ([]core.Contact, error) {
	if w.fail {
		return nil, errors.New("registry offline")
	}
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
		perp := rel.Sub(dir.Scale(along)).Len()
		if perp <= bodyRadius && along < best {
			best = along
			hit = id
		}
	}
	if hit == "" {
		return geometry.Hit{}, false
	}
	if w.blocked[hit] {
		return geometry.Hit{EntityID: "ridge", Distance: best}, true
	}
	return geometry.Hit{EntityID: hit, Distance: best}, true
}

type sinkRecorder struct {
	consumed float64
	resupply int
}

func (s *sinkRecorder) NotifyConsumed(units float64) { s.consumed += units }
func (s *sinkRecorder) RequestResupply()             { s.resupply++ }

var pose = core.Pose{Forward: core.Position3D{Y: 1}}

type rig struct {
	c      *Controller
	w      *world
	sink   *sinkRecorder
	ledger *ammo.Ledger
}

func newRig(capacity float64, mutate func(*Config, *geometry.Config)) *rig {
	w := newWorld()
	sink := &sinkRecorder{}
	ledger := ammo.New(capacity, sink, nil)
	cfg := Config{
		MaxRange:               20000,
		SwitchDelaySeconds:     1,
		ManualTimeoutSeconds:   0.2,
		AutoFireEnabledDefault: true,
		AutoFireAllowed:        true,
	}
	gcfg := geometry.Config{FiringArcDegrees: 180, MaxRange: 20000, OriginOffset: 30}
	if mutate != nil {
		mutate(&cfg, &gcfg)
	}
	c := New(cfg, Owner{ID: "jet", Network: "blue"},
		scan.New(w, 0.5, nil),
		threat.NewScorer(threat.DefaultWeights()),
		geometry.NewGate(gcfg, w),
		ledger, nil)
	return &rig{c: c, w: w, sink: sink, ledger: ledger}
}

const dt = 0.1

func at(i int) float64 { return float64(i) * dt }

func targetID(d Decision) core.EntityID {
	if d.Target == nil {
		return ""
	}
	return d.Target.ID
}

func TestController_AcquiresBestCandidate(t *testing.T) {
	r := newRig(30, nil)
	r.w.add("bomb", core.ThreatBomb, 100, 2000)
	r.w.add("aa", core.ThreatAirToAir, -300, 9000)
	r.w.add("truck", core.ThreatMissile, 500, 1000).IsWeapon = false

	d := r.c.Tick(0, dt, pose)

	assert.Equal(t, core.EntityID("aa"), targetID(d))
	assert.True(t, d.Fresh)
	assert.Equal(t, core.StateCharging, d.State)
	assert.Equal(t, 29.0, r.ledger.Reserve())

	d = r.c.Tick(at(1), dt, pose)
	assert.Equal(t, core.StateFiring, d.State)
	assert.False(t, d.Fresh)
}

func TestController_SkipsBlockedAndDisabled(t *testing.T) {
	r := newRig(30, nil)
	r.w.add("hidden", core.ThreatNuclear, 100, 5000)
	r.w.blocked["hidden"] = true
	r.w.add("dead", core.ThreatNuclear, -100, 5000).Disabled = true
	r.w.add("bomb", core.ThreatBomb, 300, 5000)

	d := r.c.Tick(0, dt, pose)
	assert.Equal(t, core.EntityID("bomb"), targetID(d))
}

func TestController_SwitchHysteresis(t *testing.T) {
	r := newRig(30, nil)
	r.w.add("a", core.ThreatMissile, 1000, 8000)

	for i := 0; i <= 10; i++ {
		if i == 5 {
			r.w.add("b", core.ThreatMissile, -1000, 3000)
		}
		d := r.c.Tick(at(i), dt, pose)
		if i < 10 {
			require.Equal(t, core.EntityID("a"), targetID(d), "tick %d", i)
		} else {
			assert.Equal(t, core.EntityID("b"), targetID(d))
			assert.True(t, d.Switched)
			assert.False(t, d.Fresh, "a switch keeps the beam engaged")
		}
	}
	assert.Equal(t, 28.0, r.ledger.Reserve())
}

func TestController_LossAllowsImmediateSwitch(t *testing.T) {
	r := newRig(30, nil)
	a := r.w.add("a", core.ThreatMissile, 1000, 8000)
	r.w.add("b", core.ThreatMissile, -1000, 9000)

	for i := 0; i <= 20; i++ {
		switch i {
		case 7:
			a.Disabled = true
		case 8:
			r.w.add("c", core.ThreatMissile, 2000, 1000)
		}
		d := r.c.Tick(at(i), dt, pose)
		switch {
		case i < 7:
			require.Equal(t, core.EntityID("a"), targetID(d), "tick %d", i)
		case i == 7:
			assert.Equal(t, core.EntityID("b"), targetID(d))
			assert.Equal(t, core.EntityID("a"), d.Dropped)
			assert.Equal(t, geometry.Disabled, d.DropReason)
			assert.True(t, d.Fresh)
		case i < 17:
			require.Equal(t, core.EntityID("b"), targetID(d), "new pick must survive the cooldown, tick %d", i)
		default:
			assert.Equal(t, core.EntityID("c"), targetID(d), "tick %d", i)
		}
	}
}

func TestController_NoCandidatesStartsCooldown(t *testing.T) {
	r := newRig(30, nil)
	r.w.add("a", core.ThreatMissile, 1000, 8000)

	for i := 0; i <= 13; i++ {
		switch i {
		case 3:
			r.w.remove("a")
		case 4:
			r.w.add("b", core.ThreatMissile, -1000, 3000)
		}
		d := r.c.Tick(at(i), dt, pose)
		switch {
		case i < 3:
			require.Equal(t, core.EntityID("a"), targetID(d))
		case i == 3:
			assert.Nil(t, d.Target)
			assert.Equal(t, core.EntityID("a"), d.Dropped)
			assert.Equal(t, core.StateIdle, d.State)
			assert.False(t, r.ledger.Charged())
		case i < 13:
			require.Nil(t, d.Target, "tick %d", i)
		default:
			assert.Equal(t, core.EntityID("b"), targetID(d))
		}
	}
}

func TestController_IdleScansDoNotDelayFirstPick(t *testing.T) {
	r := newRig(30, nil)

	for i := 0; i < 50; i++ {
		d := r.c.Tick(at(i), dt, pose)
		require.Nil(t, d.Target, "tick %d", i)
	}

	r.w.add("a", core.ThreatMissile, 1000, 8000)
	d := r.c.Tick(at(50), dt, pose)
	assert.Equal(t, core.EntityID("a"), targetID(d))
	assert.True(t, d.Fresh)
}

func TestController_ManualTimeoutCountsFromTick(t *testing.T) {
	r := newRig(30, func(c *Config, _ *geometry.Config) {
		c.AutoFireEnabledDefault = false
	})
	r.w.add("a", core.ThreatMissile, 1000, 8000)

	// a command issued between slow steps is still fresh on the next one
	const step = 0.25
	for i := 1; i <= 4; i++ {
		r.c.Fire("a")
		d := r.c.Tick(float64(i)*step, step, pose)
		require.Equal(t, core.EntityID("a"), targetID(d), "step %d", i)
		require.True(t, d.Manual)
	}

	d := r.c.Tick(5*step, step, pose)
	assert.Nil(t, d.Target)
	assert.Equal(t, core.EntityID("a"), d.Dropped)
}

func TestController_RegistryFailureFallsBackToNoTarget(t *testing.T) {
	r := newRig(30, nil)
	r.w.add("a", core.ThreatMissile, 1000, 8000)

	require.NotNil(t, r.c.Tick(0, dt, pose).Target)
	r.w.fail = true
	d := r.c.Tick(0.5, dt, pose)
	assert.Nil(t, d.Target)
	assert.Equal(t, core.StateIdle, d.State)
}

func TestController_SteadyDrain(t *testing.T) {
	r := newRig(120, nil)
	r.w.add("a", core.ThreatMissile, 1000, 8000)

	for i := 0; i < 34; i++ {
		d := r.c.Tick(at(i), dt, pose)
		require.NotNil(t, d.Target)
	}
	assert.Equal(t, 116.0, r.ledger.Reserve())
	assert.Equal(t, 4.0, r.sink.consumed)
}

func TestController_DisableAutoCancelsImmediately(t *testing.T) {
	r := newRig(30, nil)
	r.w.add("a", core.ThreatMissile, 1000, 8000)

	for i := 0; i < 3; i++ {
		r.c.Tick(at(i), dt, pose)
	}
	require.NotNil(t, r.c.Target())
	require.True(t, r.ledger.Charged())

	assert.False(t, r.c.ToggleAutoFire())
	assert.Nil(t, r.c.Target())
	assert.False(t, r.ledger.Charged())
	assert.Equal(t, core.StateIdle, r.c.State())

	d := r.c.Tick(at(3), dt, pose)
	assert.Nil(t, d.Target)
	assert.Equal(t, 29.0, r.ledger.Reserve())

	assert.True(t, r.c.ToggleAutoFire())
	d = r.c.Tick(at(4), dt, pose)
	assert.Equal(t, core.EntityID("a"), targetID(d))
	assert.True(t, d.Fresh)
	assert.Equal(t, 28.0, r.ledger.Reserve())
}

func TestController_ToggleIgnoredWhenNotAllowed(t *testing.T) {
	r := newRig(30, func(c *Config, _ *geometry.Config) {
		c.AutoFireAllowed = false
	})
	r.w.add("a", core.ThreatMissile, 1000, 8000)

	assert.False(t, r.c.AutoFireEnabled())
	assert.False(t, r.c.ToggleAutoFire())
	assert.False(t, r.c.SetAutoFire(true))
	assert.Nil(t, r.c.Tick(0, dt, pose).Target)
}

func TestController_ManualFireTimeout(t *testing.T) {
	r := newRig(30, func(c *Config, _ *geometry.Config) {
		c.AutoFireEnabledDefault = false
	})
	r.w.add("a", core.ThreatMissile, 1000, 8000)

	r.c.Fire("a")
	d := r.c.Tick(0, dt, pose)
	assert.Equal(t, core.EntityID("a"), targetID(d))
	assert.True(t, d.Manual)
	assert.True(t, d.Fresh)

	d = r.c.Tick(at(1), dt, pose)
	assert.Equal(t, core.EntityID("a"), targetID(d))

	d = r.c.Tick(at(2), dt, pose)
	assert.Nil(t, d.Target)
	assert.Equal(t, core.EntityID("a"), d.Dropped)
	assert.False(t, r.ledger.Charged())
	assert.Equal(t, 29.0, r.ledger.Reserve())
}

func TestController_ManualOverridesAutonomous(t *testing.T) {
	r := newRig(30, nil)
	r.w.add("a", core.ThreatNuclear, 1000, 8000)
	r.w.add("b", core.ThreatBomb, -1000, 8000)

	require.Equal(t, core.EntityID("a"), targetID(r.c.Tick(0, dt, pose)))

	r.c.Fire("b")
	d := r.c.Tick(at(1), dt, pose)
	assert.Equal(t, core.EntityID("b"), targetID(d))
	assert.True(t, d.Manual)
	assert.False(t, d.Fresh)

	// Manual expires; autonomous acquisition resumes from the manual target and
	// may move to the nuclear contact once the switch delay has passed.
	d = r.c.Tick(at(3), dt, pose)
	assert.False(t, d.Manual)
	assert.Equal(t, core.EntityID("b"), targetID(d))

	var last Decision
	for i := 4; i <= 10; i++ {
		last = r.c.Tick(at(i), dt, pose)
	}
	assert.Equal(t, core.EntityID("a"), targetID(last))
}

func TestController_ManualOutsideArcRejected(t *testing.T) {
	r := newRig(30, func(_ *Config, g *geometry.Config) {
		g.FiringArcDegrees = 45
	})
	r.w.add("a", core.ThreatMissile, 1000, 8000)
	r.w.add("behind", core.ThreatMissile, 0, -3000)

	require.Equal(t, core.EntityID("a"), targetID(r.c.Tick(0, dt, pose)))

	r.c.Fire("behind")
	d := r.c.Tick(at(1), dt, pose)
	assert.True(t, d.ManualRejected)
	assert.Equal(t, core.EntityID("a"), targetID(d))
	assert.False(t, d.Manual)
}

func TestController_DepletionAndResupply(t *testing.T) {
	r := newRig(3, nil)
	r.w.add("a", core.ThreatMissile, 1000, 8000)

	var d Decision
	for i := 0; i < 25; i++ {
		d = r.c.Tick(at(i), dt, pose)
	}
	assert.Equal(t, core.StateDepleted, d.State)
	assert.Equal(t, core.EntityID("a"), targetID(d), "depleted beam keeps tracking")
	assert.Equal(t, 0.0, r.ledger.Reserve())
	assert.Equal(t, 1, r.sink.resupply)

	r.w.remove("a")
	d = r.c.Tick(at(25), dt, pose)
	assert.Nil(t, d.Target)
	assert.Equal(t, core.StateDepleted, d.State)

	r.w.add("b", core.ThreatMissile, 1000, 8000)
	for i := 26; i < 40; i++ {
		d = r.c.Tick(at(i), dt, pose)
		require.Nil(t, d.Target, "no new engagement while depleted")
	}
	assert.Equal(t, 1, r.sink.resupply)

	r.c.Resupplied()
	assert.Equal(t, 3.0, r.ledger.Reserve())
	assert.Equal(t, core.StateIdle, r.c.State())

	d = r.c.Tick(at(40), dt, pose)
	assert.Equal(t, core.EntityID("b"), targetID(d))
	assert.True(t, d.Fresh)
	assert.Equal(t, 2.0, r.ledger.Reserve())
}

func TestController_TargetLostFromExecutor(t *testing.T) {
	r := newRig(30, nil)
	r.w.add("a", core.ThreatMissile, 1000, 8000)

	r.c.Tick(0, dt, pose)
	r.c.Tick(at(1), dt, pose)
	r.c.TargetLost(geometry.NoLineOfSight)

	assert.Nil(t, r.c.Target())
	assert.False(t, r.ledger.Charged())

	d := r.c.Tick(at(2), dt, pose)
	assert.Equal(t, core.EntityID("a"), targetID(d))
	assert.True(t, d.Fresh)
	assert.Equal(t, 28.0, r.ledger.Reserve())
}
