package geo

import "math"

// the leaflet-style affine mapping mercator meters into the unit square:
// px = scale*(a*x + 0.5), py = scale*(-a*y + 0.5), a = 0.5/(pi*R).
var mercatorCoeff = 0.5 / (math.Pi * EarthRadius)

//Viewport camera over the map: center, fractional zoom, pixel size.
//Pure value; the tile pipeline reads it but never mutates it.
type Viewport struct {
	Center LatLng
	Zoom   float64
	Size   Point
}

//NewViewport clamps zoom to the valid range
func NewViewport(center LatLng, zoom float64, size Point) Viewport {
	return Viewport{
		Center: center,
		Zoom:   math.Max(ZoomMin, math.Min(ZoomMax, zoom)),
		Size:   size,
	}
}

//projectWorld spherical mercator, degrees to meters
func projectWorld(ll LatLng) Point {
	const d = math.Pi / 180
	lat := ClampLat(ll.Lat)
	sin := math.Sin(lat * d)
	return Point{
		X: EarthRadius * ll.Lng * d,
		Y: EarthRadius * math.Log((1+sin)/(1-sin)) / 2,
	}
}

//unprojectWorld spherical mercator, meters to degrees
func unprojectWorld(p Point) LatLng {
	const d = 180 / math.Pi
	return LatLng{
		Lat: (2*math.Atan(math.Exp(p.Y/EarthRadius)) - math.Pi/2) * d,
		Lng: p.X * d / EarthRadius,
	}
}

//ProjectAt lat/lng to absolute pixel coordinates at an arbitrary zoom
func (v Viewport) ProjectAt(ll LatLng, zoom float64) Point {
	scale := TileSize * math.Exp2(zoom)
	w := projectWorld(ll)
	return Point{
		X: scale * (mercatorCoeff*w.X + 0.5),
		Y: scale * (-mercatorCoeff*w.Y + 0.5),
	}
}

//Project lat/lng to absolute pixel coordinates at the viewport zoom
func (v Viewport) Project(ll LatLng) Point {
	return v.ProjectAt(ll, v.Zoom)
}

//UnprojectAt absolute pixel coordinates back to lat/lng at an arbitrary zoom
func (v Viewport) UnprojectAt(p Point, zoom float64) LatLng {
	scale := TileSize * math.Exp2(zoom)
	w := Point{
		X: (p.X/scale - 0.5) / mercatorCoeff,
		Y: -(p.Y/scale - 0.5) / mercatorCoeff,
	}
	return unprojectWorld(w)
}

//Unproject absolute pixel coordinates back to lat/lng at the viewport zoom
func (v Viewport) Unproject(p Point) LatLng {
	return v.UnprojectAt(p, v.Zoom)
}

//ToScreen lat/lng to container-relative pixel coordinates
func (v Viewport) ToScreen(ll LatLng) Point {
	return v.Project(ll).Sub(v.Project(v.Center)).Add(v.Size.Mul(0.5))
}

//FromScreen container-relative pixel coordinates back to lat/lng
func (v Viewport) FromScreen(p Point) LatLng {
	abs := p.Sub(v.Size.Mul(0.5)).Add(v.Project(v.Center))
	return v.Unproject(abs)
}

//Bounds the geographic rectangle currently on screen
func (v Viewport) Bounds() LatLngBounds {
	nw := v.FromScreen(Point{X: 0, Y: 0})
	se := v.FromScreen(Point{X: v.Size.X, Y: v.Size.Y})
	return NewLatLngBounds(LatLng{Lat: se.Lat, Lng: nw.Lng}, LatLng{Lat: nw.Lat, Lng: se.Lng})
}

//Scale pixels-per-world-unit multiplier at the current zoom
func (v Viewport) Scale() float64 {
	return math.Exp2(v.Zoom)
}

//VisibleTiles the tiles covering the viewport at zoom, padded by buffer
//tiles on every side; indices outside the grid are dropped.
func (v Viewport) VisibleTiles(zoom uint32, buffer int) []TileCoord {
	b := v.Bounds()
	min := TileAt(LatLng{Lat: b.NorthEast.Lat, Lng: b.SouthWest.Lng}, zoom)
	max := TileAt(LatLng{Lat: b.SouthWest.Lat, Lng: b.NorthEast.Lng}, zoom)
	n := int64(1) << zoom
	var out []TileCoord
	for x := int64(min.X) - int64(buffer); x <= int64(max.X)+int64(buffer); x++ {
		for y := int64(min.Y) - int64(buffer); y <= int64(max.Y)+int64(buffer); y++ {
			if x < 0 || y < 0 || x >= n || y >= n {
				continue
			}
			out = append(out, TileCoord{X: uint32(x), Y: uint32(y), Z: zoom})
		}
	}
	return out
}
