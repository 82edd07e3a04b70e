package geo

import "math"

//EarthRadius mercator sphere radius (m)
const EarthRadius = 6378137.0

//MaxLatitude mercator latitude clamp
const MaxLatitude = 85.0511287798

//ZoomMin min zoom
const ZoomMin = 0

//ZoomMax max zoom
const ZoomMax = 18

//TileSize tile edge in pixels
const TileSize = 256

//LatLng geographic coordinate, degrees
type LatLng struct {
	Lat float64
	Lng float64
}

//NewLatLng wraps lng into [-180,180] and clamps lat to the mercator range
func NewLatLng(lat, lng float64) LatLng {
	return LatLng{Lat: ClampLat(lat), Lng: WrapLng(lng)}
}

//WrapLng normalizes a longitude into [-180,180]
func WrapLng(lng float64) float64 {
	for lng > 180 {
		lng -= 360
	}
	for lng < -180 {
		lng += 360
	}
	return lng
}

//ClampLat clamps a latitude to the projectable mercator range
func ClampLat(lat float64) float64 {
	return math.Max(-MaxLatitude, math.Min(MaxLatitude, lat))
}

//Distance great-circle distance in meters (haversine)
func (ll LatLng) Distance(other LatLng) float64 {
	const d = math.Pi / 180
	lat1 := ll.Lat * d
	lat2 := other.Lat * d
	dlat := (other.Lat - ll.Lat) * d
	dlng := (other.Lng - ll.Lng) * d
	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlng/2)*math.Sin(dlng/2)
	return 2 * EarthRadius * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

//Point 2d pixel/vector coordinate
type Point struct {
	X float64
	Y float64
}

//Add vector sum
func (p Point) Add(o Point) Point { return Point{p.X + o.X, p.Y + o.Y} }

//Sub vector difference
func (p Point) Sub(o Point) Point { return Point{p.X - o.X, p.Y - o.Y} }

//Mul scalar product
func (p Point) Mul(s float64) Point { return Point{p.X * s, p.Y * s} }

//Length euclidean magnitude
func (p Point) Length() float64 { return math.Hypot(p.X, p.Y) }

//Unit the direction of p; zero vector for a zero input
func (p Point) Unit() Point {
	l := p.Length()
	if l == 0 {
		return Point{}
	}
	return Point{p.X / l, p.Y / l}
}

//LatLngBounds rectangle in geographic coordinates
type LatLngBounds struct {
	SouthWest LatLng
	NorthEast LatLng
}

//NewLatLngBounds bounds from any two corners
func NewLatLngBounds(a, b LatLng) LatLngBounds {
	return LatLngBounds{
		SouthWest: LatLng{Lat: math.Min(a.Lat, b.Lat), Lng: math.Min(a.Lng, b.Lng)},
		NorthEast: LatLng{Lat: math.Max(a.Lat, b.Lat), Lng: math.Max(a.Lng, b.Lng)},
	}
}

//Contains point-in-bounds test, edges inclusive
func (b LatLngBounds) Contains(ll LatLng) bool {
	return ll.Lat >= b.SouthWest.Lat && ll.Lat <= b.NorthEast.Lat &&
		ll.Lng >= b.SouthWest.Lng && ll.Lng <= b.NorthEast.Lng
}

//Intersects true when the rectangles overlap
func (b LatLngBounds) Intersects(o LatLngBounds) bool {
	return b.SouthWest.Lat <= o.NorthEast.Lat && b.NorthEast.Lat >= o.SouthWest.Lat &&
		b.SouthWest.Lng <= o.NorthEast.Lng && b.NorthEast.Lng >= o.SouthWest.Lng
}

//Extend grows the bounds to include ll
func (b LatLngBounds) Extend(ll LatLng) LatLngBounds {
	return LatLngBounds{
		SouthWest: LatLng{Lat: math.Min(b.SouthWest.Lat, ll.Lat), Lng: math.Min(b.SouthWest.Lng, ll.Lng)},
		NorthEast: LatLng{Lat: math.Max(b.NorthEast.Lat, ll.Lat), Lng: math.Max(b.NorthEast.Lng, ll.Lng)},
	}
}

//Union smallest bounds covering both
func (b LatLngBounds) Union(o LatLngBounds) LatLngBounds {
	return b.Extend(o.SouthWest).Extend(o.NorthEast)
}

//Center midpoint of the bounds
func (b LatLngBounds) Center() LatLng {
	return LatLng{
		Lat: (b.SouthWest.Lat + b.NorthEast.Lat) / 2,
		Lng: (b.SouthWest.Lng + b.NorthEast.Lng) / 2,
	}
}

//Shift moves both corners by dLng/dLat degrees
func (b LatLngBounds) Shift(dLat, dLng float64) LatLngBounds {
	return LatLngBounds{
		SouthWest: LatLng{Lat: b.SouthWest.Lat + dLat, Lng: b.SouthWest.Lng + dLng},
		NorthEast: LatLng{Lat: b.NorthEast.Lat + dLat, Lng: b.NorthEast.Lng + dLng},
	}
}
