package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/coil/internal/scan"
	"github.com/OCAP2/coil/pkg/core"
)

func contact(id string, x, y float64, target string) Record {
	return Record{
		Contact: core.Contact{ID: core.EntityID(id), Position: core.Position3D{X: x, Y: y}, TargetID: core.EntityID(target), IsWeapon: true},
		Network: "east",
	}
}

func TestContactCache_QueryRadiusAndExclude(t *testing.T) {
	c := NewContactCache(nil)
	c.Replace([]Record{
		contact("m2", 100, 0, ""),
		contact("m1", 50, 0, ""),
		contact("far", 10000, 0, ""),
	})
	assert.Equal(t, 3, c.Len())

	got, err := c.Query(scan.Query{Radius: 500})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, core.EntityID("m1"), got[0].ID)
	assert.Equal(t, core.EntityID("m2"), got[1].ID)

	got, err = c.Query(scan.Query{Radius: 500, Exclude: "m1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, core.EntityID("m2"), got[0].ID)
}

func TestContactCache_ResolvesTargetNetwork(t *testing.T) {
	platforms := NewNetworkCache()
	platforms.Set("veh1", "west")
	c := NewContactCache(platforms)
	c.Replace([]Record{
		contact("m1", 0, 0, "veh1"),
		contact("m2", 0, 0, "m1"),
		contact("m3", 0, 0, "nobody"),
	})

	m1, ok := c.Lookup("m1")
	require.True(t, ok)
	assert.Equal(t, core.NetworkID("west"), m1.TargetNetwork)

	m2, ok := c.Lookup("m2")
	require.True(t, ok)
	assert.Equal(t, core.NetworkID("east"), m2.TargetNetwork)

	m3, ok := c.Lookup("m3")
	require.True(t, ok)
	assert.Empty(t, m3.TargetNetwork)

	// platform networks are read at query time
	platforms.Set("veh1", "east")
	m1, _ = c.Lookup("m1")
	assert.Equal(t, core.NetworkID("east"), m1.TargetNetwork)

	_, ok = c.Lookup("ghost")
	assert.False(t, ok)
}

func TestContactCache_ReplaceDropsOldSnapshot(t *testing.T) {
	c := NewContactCache(nil)
	c.Replace([]Record{contact("m1", 0, 0, ""), contact("m1", 5, 0, "")})
	assert.Equal(t, 1, c.Len())
	m1, _ := c.Lookup("m1")
	assert.InDelta(t, 5, m1.Position.X, 1e-9)

	c.Replace([]Record{contact("m2", 0, 0, "")})
	_, ok := c.Lookup("m1")
	assert.False(t, ok)
	assert.Len(t, c.Bodies(), 1)

	c.Reset()
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Bodies())
}

func TestContactCache_ConcurrentAccess(t *testing.T) {
	c := NewContactCache(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Replace([]Record{contact("m1", 0, 0, "")})
		}()
		go func() {
			defer wg.Done()
			_, _ = c.Query(scan.Query{Radius: 10})
			_ = c.Bodies()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, c.Len())
}

func TestNetworkCache(t *testing.T) {
	c := NewNetworkCache()
	c.Set("veh1", "west")
	n, ok := c.Get("veh1")
	require.True(t, ok)
	assert.Equal(t, core.NetworkID("west"), n)

	c.Delete("veh1")
	_, ok = c.Get("veh1")
	assert.False(t, ok)

	c.Set("veh2", "east")
	assert.Equal(t, 1, c.Len())
	c.Reset()
	assert.Zero(t, c.Len())
	_, ok = c.Get("veh2")
	assert.False(t, ok)
}
