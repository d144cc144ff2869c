package election

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/OCAP2/coil/internal/ammo"
	"github.com/OCAP2/coil/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedger() *ammo.Ledger { return ammo.New(30, nil, nil) }

func TestRegistry_FirstActivationWins(t *testing.T) {
	r := NewRegistry(nil)

	assert.Equal(t, Primary, r.Activate("jet", "w1", newLedger))
	assert.Equal(t, Secondary, r.Activate("jet", "w2", newLedger))
	assert.Equal(t, Secondary, r.Activate("jet", "w3", newLedger))
	assert.Equal(t, Primary, r.Activate("bomber", "w4", newLedger))

	p, ok := r.Primary("jet")
	require.True(t, ok)
	assert.Equal(t, core.EntityID("w1"), p)
	assert.NotNil(t, r.Ledger("w1"))
	assert.Nil(t, r.Ledger("w2"))
	assert.Nil(t, r.Ledger("w3"))
	assert.Equal(t, 2, r.Platforms())
}

func TestRegistry_ReactivationIsIdempotent(t *testing.T) {
	r := NewRegistry(nil)
	r.Activate("jet", "w1", newLedger)
	r.Activate("jet", "w2", newLedger)

	assert.Equal(t, Secondary, r.Activate("jet", "w2", newLedger))
	assert.Equal(t, []core.EntityID{"w1", "w2"}, r.Instances("jet"))
}

func TestRegistry_PrimaryDestroyedPromotesOne(t *testing.T) {
	r := NewRegistry(nil)
	r.Activate("jet", "w1", newLedger)
	r.Activate("jet", "w2", newLedger)
	r.Activate("jet", "w3", newLedger)
	ledger := r.Ledger("w1")
	ledger.ChargeBurst()

	promoted := r.Deactivate("w1")

	assert.Equal(t, core.EntityID("w2"), promoted)
	assert.Equal(t, Primary, r.Role("w2"))
	assert.Equal(t, Secondary, r.Role("w3"))
	assert.Equal(t, Inert, r.Role("w1"))
	assert.Same(t, ledger, r.Ledger("w2"), "ledger is inherited, not recreated")
	assert.Equal(t, 29.0, r.Ledger("w2").Reserve())
	assert.Nil(t, r.Ledger("w3"))

	primaries := 0
	for _, id := range r.Instances("jet") {
		if r.Ledger(id) != nil {
			primaries++
		}
	}
	assert.Equal(t, 1, primaries)
}

func TestRegistry_SecondaryDestroyedKeepsPrimary(t *testing.T) {
	r := NewRegistry(nil)
	r.Activate("jet", "w1", newLedger)
	r.Activate("jet", "w2", newLedger)

	assert.Empty(t, r.Deactivate("w2"))
	p, _ := r.Primary("jet")
	assert.Equal(t, core.EntityID("w1"), p)
}

func TestRegistry_LastInstanceLeavesNoPrimary(t *testing.T) {
	r := NewRegistry(nil)
	r.Activate("jet", "w1", newLedger)

	assert.Empty(t, r.Deactivate("w1"))
	_, ok := r.Primary("jet")
	assert.False(t, ok)
	assert.Zero(t, r.Platforms())
	assert.Empty(t, r.Deactivate("unknown"))

	assert.Equal(t, Primary, r.Activate("jet", "w5", newLedger))
	assert.Equal(t, 30.0, r.Ledger("w5").Reserve())
}

func TestRegistry_MissingPlatformIsInertAndLoggedOnce(t *testing.T) {
	var buf bytes.Buffer
	r := NewRegistry(slog.New(slog.NewTextHandler(&buf, nil)))

	assert.Equal(t, Inert, r.Activate("", "w1", newLedger))
	assert.Equal(t, Inert, r.Activate("", "w1", newLedger))

	assert.Equal(t, 1, strings.Count(buf.String(), "has no platform"))
	assert.Nil(t, r.Ledger("w1"))
}

func TestRegistry_MovingInstanceBetweenPlatforms(t *testing.T) {
	r := NewRegistry(nil)
	r.Activate("jet", "w1", newLedger)
	r.Activate("jet", "w2", newLedger)

	assert.Equal(t, Primary, r.Activate("bomber", "w1", newLedger))
	assert.Equal(t, Primary, r.Role("w2"))
	platform, _ := r.Platform("w1")
	assert.Equal(t, core.EntityID("bomber"), platform)
}
