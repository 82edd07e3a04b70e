package tile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tilepipe/geo"
)

func TestCacheBasicOps(t *testing.T) {
	c := NewCache(8)
	coord := geo.TileCoord{X: 1, Y: 2, Z: 3}

	assert.Zero(t, c.Len())
	_, ok := c.Get(coord)
	assert.False(t, ok)

	c.Insert(coord, []byte{1, 2, 3})
	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Contains(coord))

	got, ok := c.Get(coord)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, got)

	// overwrite, not duplicate
	c.Insert(coord, []byte{9})
	assert.Equal(t, 1, c.Len())
	got, _ = c.Get(coord)
	assert.Equal(t, []byte{9}, got)

	c.Remove(coord)
	assert.False(t, c.Contains(coord))

	c.Insert(coord, []byte{1})
	c.Clear()
	assert.Zero(t, c.Len())
	assert.Equal(t, 8, c.Cap())
}

func TestCacheLRUEviction(t *testing.T) {
	c := NewCache(2)
	a := geo.TileCoord{X: 1, Y: 1, Z: 1}
	b := geo.TileCoord{X: 2, Y: 2, Z: 2}
	d := geo.TileCoord{X: 3, Y: 3, Z: 3}

	c.Insert(a, []byte("a"))
	c.Insert(b, []byte("b"))

	// touch a so b becomes the eviction victim
	_, ok := c.Get(a)
	require.True(t, ok)

	c.Insert(d, []byte("d"))
	assert.Equal(t, 2, c.Len())
	assert.True(t, c.Contains(a))
	assert.False(t, c.Contains(b))
	assert.True(t, c.Contains(d))
}

func TestCacheMovementDirection(t *testing.T) {
	c := NewCache(16)
	vp := geo.NewViewport(geo.LatLng{Lat: 40, Lng: -74}, 10, geo.Point{X: 800, Y: 600})

	c.UpdateViewport(vp)
	assert.Zero(t, c.Direction(), "no movement observed yet")

	// pan east
	vp.Center.Lng += 0.5
	c.UpdateViewport(vp)
	dir := c.Direction()
	assert.InDelta(t, 1.0, dir.X, 1e-9)
	assert.InDelta(t, 0.0, dir.Y, 1e-9)

	// sub-epsilon jitter must not disturb the vector
	vp.Center.Lat += 1e-6
	c.UpdateViewport(vp)
	assert.Equal(t, dir, c.Direction())
}

func TestPrefetchTiles(t *testing.T) {
	c := NewCache(512)
	vp := geo.NewViewport(geo.LatLng{Lat: 40.7128, Lng: -74.0060}, 10, geo.Point{X: 800, Y: 600})

	tiles := c.PrefetchTiles(vp)
	require.NotEmpty(t, tiles)

	center := geo.TileAt(vp.Center, 10)
	assert.Contains(t, tiles, center)

	zooms := map[uint32]bool{}
	for _, tc := range tiles {
		assert.True(t, tc.Valid())
		zooms[tc.Z] = true
	}
	assert.True(t, zooms[9], "expected tiles one zoom out")
	assert.True(t, zooms[10])
	assert.True(t, zooms[11], "expected tiles one zoom in")

	// every visible tile is in the prefetch set
	for _, tc := range vp.VisibleTiles(10, 0) {
		assert.Contains(t, tiles, tc)
	}

	// no duplicates
	seen := map[geo.TileCoord]struct{}{}
	for _, tc := range tiles {
		_, dup := seen[tc]
		assert.False(t, dup, "duplicate %v", tc)
		seen[tc] = struct{}{}
	}
}

func TestPrefetchLookAhead(t *testing.T) {
	c := NewCache(512)
	vp := geo.NewViewport(geo.LatLng{Lat: 40.7128, Lng: -74.0060}, 10, geo.Point{X: 800, Y: 600})

	c.UpdateViewport(vp)
	static := c.PrefetchTiles(vp)

	// without movement the set reaches exactly one tile past the view
	var maxVisible, maxStatic uint32
	for _, tc := range vp.VisibleTiles(10, 0) {
		if tc.X > maxVisible {
			maxVisible = tc.X
		}
	}
	for _, tc := range static {
		if tc.Z == 10 && tc.X > maxStatic {
			maxStatic = tc.X
		}
	}
	assert.Equal(t, maxVisible+1, maxStatic)

	vp.Center.Lng += 0.2
	c.UpdateViewport(vp)
	moving := c.PrefetchTiles(vp)

	// eastward movement pulls in tiles east of the padded view
	var maxMoving uint32
	for _, tc := range moving {
		if tc.Z == 10 && tc.X > maxMoving {
			maxMoving = tc.X
		}
	}
	assert.Greater(t, maxMoving, maxStatic)
}

func TestPrefetchZoomEdges(t *testing.T) {
	c := NewCache(512)

	low := geo.NewViewport(geo.LatLng{}, 0, geo.Point{X: 256, Y: 256})
	for _, tc := range c.PrefetchTiles(low) {
		assert.True(t, tc.Z <= 1)
	}

	high := geo.NewViewport(geo.LatLng{Lat: 40, Lng: -74}, 18, geo.Point{X: 256, Y: 256})
	for _, tc := range c.PrefetchTiles(high) {
		assert.True(t, tc.Z >= 17)
		assert.True(t, tc.Valid())
	}
}
