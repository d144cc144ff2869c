package weapon

import (
	"sync"

	"github.com/OCAP2/coil/pkg/core"
)

// Turret is the host-side mirror of an independently aimed actuator. The host
// reports the turret's actual target through Observe and reads back orders.
type Turret struct {
	mu     sync.Mutex
	id     core.EntityID
	target core.EntityID
	forced bool
}

// NewTurret returns an idle turret.
func NewTurret(id core.EntityID) *Turret {
	return &Turret{id: id}
}

func (t *Turret) ID() core.EntityID { return t.id }

// CurrentTarget returns the last observed or assigned target.
func (t *Turret) CurrentTarget() core.EntityID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.target
}

// Assign records an override order.
func (t *Turret) Assign(target core.EntityID, forced bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.target = target
	t.forced = forced
}

// Observe updates the turret's target as reported by the simulation.
func (t *Turret) Observe(target core.EntityID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.target = target
	t.forced = false
}

// Forced reports whether the current target was force-assigned.
func (t *Turret) Forced() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.forced
}
