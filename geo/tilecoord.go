package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb/maptile"
)

//TileCoord slippy-map tile address
type TileCoord struct {
	X uint32
	Y uint32
	Z uint32
}

//TileAt the tile containing ll at an integer zoom
func TileAt(ll LatLng, zoom uint32) TileCoord {
	lat := ClampLat(ll.Lat)
	lng := WrapLng(ll.Lng)
	n := math.Exp2(float64(zoom))
	latRad := lat * math.Pi / 180
	x := math.Floor((lng + 180) / 360 * n)
	y := math.Floor((1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2 * n)
	max := n - 1
	x = math.Max(0, math.Min(max, x))
	y = math.Max(0, math.Min(max, y))
	return TileCoord{X: uint32(x), Y: uint32(y), Z: zoom}
}

//LatLng the north-west corner of the tile
func (t TileCoord) LatLng() LatLng {
	n := math.Exp2(float64(t.Z))
	lng := float64(t.X)/n*360 - 180
	latRad := math.Atan(math.Sinh(math.Pi * (1 - 2*float64(t.Y)/n)))
	return LatLng{Lat: latRad * 180 / math.Pi, Lng: lng}
}

//Bounds the geographic rectangle the tile covers
func (t TileCoord) Bounds() LatLngBounds {
	nw := t.LatLng()
	se := TileCoord{X: t.X + 1, Y: t.Y + 1, Z: t.Z}.LatLng()
	return NewLatLngBounds(LatLng{Lat: se.Lat, Lng: nw.Lng}, LatLng{Lat: nw.Lat, Lng: se.Lng})
}

//Valid true when x/y fit the grid at z
func (t TileCoord) Valid() bool {
	n := uint32(1) << t.Z
	return t.Z <= ZoomMax && t.X < n && t.Y < n
}

//Parent the covering tile one zoom out; false at z=0
func (t TileCoord) Parent() (TileCoord, bool) {
	if t.Z == 0 {
		return TileCoord{}, false
	}
	return TileCoord{X: t.X / 2, Y: t.Y / 2, Z: t.Z - 1}, true
}

//Children the four covered tiles one zoom in; empty at max zoom
func (t TileCoord) Children() []TileCoord {
	if t.Z >= ZoomMax {
		return nil
	}
	x, y, z := t.X*2, t.Y*2, t.Z+1
	return []TileCoord{
		{X: x, Y: y, Z: z},
		{X: x + 1, Y: y, Z: z},
		{X: x, Y: y + 1, Z: z},
		{X: x + 1, Y: y + 1, Z: z},
	}
}

//MapTile orb interop
func (t TileCoord) MapTile() maptile.Tile {
	return maptile.Tile{X: t.X, Y: t.Y, Z: maptile.Zoom(t.Z)}
}

//FromMapTile orb interop
func FromMapTile(mt maptile.Tile) TileCoord {
	return TileCoord{X: mt.X, Y: mt.Y, Z: uint32(mt.Z)}
}

//FlipY the TMS row for this tile
func (t TileCoord) FlipY() uint32 {
	return (uint32(1) << t.Z) - 1 - t.Y
}

func (t TileCoord) String() string {
	return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
}
