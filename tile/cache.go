package tile

import (
	"math"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2/simplelru"

	"tilepipe/geo"
)

// movement below this magnitude (degrees) is treated as jitter and
// leaves the prefetch direction unchanged
const movementEpsilon = 1e-4

// border added around the visible set; kept narrower than the
// look-ahead shift so directional prefetch reaches past it
const prefetchPad = 1

//Cache bounded lru store of tile bytes shared by the render pass and the
//loader completions, plus the viewport history driving predictive prefetch.
//One mutex guards both: eviction order and movement state must agree.
type Cache struct {
	mu        sync.Mutex
	lru       *lru.LRU[geo.TileCoord, []byte]
	capacity  int
	last      *geo.LatLng
	direction *geo.Point //unit movement vector in lng/lat space
}

//NewCache a cache holding at most capacity tiles
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultOptions().CacheSize
	}
	l, _ := lru.NewLRU[geo.TileCoord, []byte](capacity, nil)
	return &Cache{lru: l, capacity: capacity}
}

//Get the bytes for a tile, marking it most recently used
func (c *Cache) Get(coord geo.TileCoord) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Get(coord)
}

//Insert stores a tile, evicting the least recently used when full
func (c *Cache) Insert(coord geo.TileCoord, data []byte) {
	c.mu.Lock()
	c.lru.Add(coord, data)
	c.mu.Unlock()
}

//Contains membership test without touching recency
func (c *Cache) Contains(coord geo.TileCoord) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Contains(coord)
}

//Remove drops a single tile
func (c *Cache) Remove(coord geo.TileCoord) {
	c.mu.Lock()
	c.lru.Remove(coord)
	c.mu.Unlock()
}

//Clear drops everything, keeps the movement state
func (c *Cache) Clear() {
	c.mu.Lock()
	c.lru.Purge()
	c.mu.Unlock()
}

//Len current tile count
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

//Cap configured capacity
func (c *Cache) Cap() int {
	return c.capacity
}

//UpdateViewport called once per tick; refreshes the unit movement vector
//used to bias prefetch. Sub-epsilon movement leaves the vector unchanged.
func (c *Cache) UpdateViewport(vp geo.Viewport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last != nil {
		move := geo.Point{X: vp.Center.Lng - c.last.Lng, Y: vp.Center.Lat - c.last.Lat}
		if move.Length() > movementEpsilon {
			unit := move.Unit()
			c.direction = &unit
		}
	}
	center := vp.Center
	c.last = &center
}

//Direction the current unit movement vector, zero before any movement
func (c *Cache) Direction() geo.Point {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.direction == nil {
		return geo.Point{}
	}
	return *c.direction
}

//PrefetchTiles the deduplicated candidate set for the viewport: visible
//tiles at the rounded zoom, a one-tile border, the visible sets one zoom
//out and one zoom in, and a look-ahead set two tile-widths along the
//movement direction. Visible tiles are always a subset of the result.
func (c *Cache) PrefetchTiles(vp geo.Viewport) []geo.TileCoord {
	c.mu.Lock()
	dir := c.direction
	c.mu.Unlock()

	zoom := uint32(math.Round(vp.Zoom))
	if zoom > geo.ZoomMax {
		zoom = geo.ZoomMax
	}

	set := make(map[geo.TileCoord]struct{})
	add := func(tiles []geo.TileCoord) {
		for _, t := range tiles {
			if t.Valid() {
				set[t] = struct{}{}
			}
		}
	}

	add(vp.VisibleTiles(zoom, 0))
	add(vp.VisibleTiles(zoom, prefetchPad))
	if zoom > geo.ZoomMin {
		add(vp.VisibleTiles(zoom-1, 0))
	}
	if zoom < geo.ZoomMax {
		add(vp.VisibleTiles(zoom+1, 0))
	}

	if dir != nil {
		// shift the view two tile-widths ahead of the camera
		tileDeg := 360.0 / math.Exp2(float64(zoom))
		ahead := vp
		ahead.Center = geo.LatLng{
			Lat: geo.ClampLat(vp.Center.Lat + dir.Y*2*tileDeg),
			Lng: geo.WrapLng(vp.Center.Lng + dir.X*2*tileDeg),
		}
		add(ahead.VisibleTiles(zoom, 0))
	}

	out := make([]geo.TileCoord, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	return out
}
