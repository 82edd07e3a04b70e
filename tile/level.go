package tile

import (
	"math"
	"time"

	"tilepipe/geo"
)

//DefaultAnimationDuration zoom transition length
const DefaultAnimationDuration = 350 * time.Millisecond

func easeOutCubic(t float64) float64 {
	u := 1 - t
	return 1 - u*u*u
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

//Level the tiles of one integer zoom plus the transform aligning them to
//the current fractional viewport zoom. Matrix layout is the css 2d affine
//[a b c d e f]; rotation terms stay zero.
type Level struct {
	Zoom        uint32
	Center      geo.LatLng
	Tiles       map[geo.TileCoord]*State
	Scale       float64
	Translation geo.Point

	Matrix    [6]float64
	HasMatrix bool

	animating    bool
	animStart    time.Time
	animDuration time.Duration
	targetScale  float64
	targetTrans  geo.Point
	hasTarget    bool

	ZIndex  int
	Retain  bool
	Opacity float64
	Active  bool
}

//NewLevel an empty level at zoom
func NewLevel(zoom uint32) *Level {
	return &Level{
		Zoom:         zoom,
		Tiles:        make(map[geo.TileCoord]*State),
		Scale:        1,
		animDuration: DefaultAnimationDuration,
		ZIndex:       1,
		Opacity:      1,
	}
}

//SetZoomTransform aligns this level's native-zoom tiles with the viewport:
//scale doubles per zoom step and the translation comes from the projected
//center difference at the level's own zoom.
func (lv *Level) SetZoomTransform(levelCenter geo.LatLng, vp geo.Viewport) {
	lv.Scale = math.Exp2(vp.Zoom - float64(lv.Zoom))

	lvCenter := vp.ProjectAt(levelCenter, float64(lv.Zoom))
	vpCenter := vp.ProjectAt(vp.Center, float64(lv.Zoom))
	lv.Translation = geo.Point{
		X: (vpCenter.X - lvCenter.X) * lv.Scale,
		Y: (vpCenter.Y - lvCenter.Y) * lv.Scale,
	}

	lv.rebuildMatrix()
	lv.animating = math.Abs(lv.Scale-1) > 0.01
}

func (lv *Level) rebuildMatrix() {
	lv.Matrix = [6]float64{lv.Scale, 0, 0, lv.Scale, lv.Translation.X, lv.Translation.Y}
	lv.HasMatrix = true
}

//AnimateTo starts an eased transition toward a target transform
func (lv *Level) AnimateTo(scale float64, translation geo.Point, duration time.Duration) {
	lv.targetScale = scale
	lv.targetTrans = translation
	lv.hasTarget = true
	lv.animStart = time.Now()
	lv.animDuration = duration
	lv.animating = true
}

//UpdateAnimation advances the interpolation; true while still animating,
//false once the transform has snapped to its target.
func (lv *Level) UpdateAnimation() bool {
	if !lv.hasTarget {
		return false
	}
	elapsed := time.Since(lv.animStart)
	if elapsed >= lv.animDuration {
		lv.Scale = lv.targetScale
		lv.Translation = lv.targetTrans
		lv.animating = false
		lv.hasTarget = false
		lv.rebuildMatrix()
		return false
	}

	t := easeOutCubic(float64(elapsed) / float64(lv.animDuration))
	lv.Scale = lerp(lv.Scale, lv.targetScale, t)
	lv.Translation = geo.Point{
		X: lerp(lv.Translation.X, lv.targetTrans.X, t),
		Y: lerp(lv.Translation.Y, lv.targetTrans.Y, t),
	}
	lv.rebuildMatrix()
	return true
}

//IsAnimating whether a transition is in flight
func (lv *Level) IsAnimating() bool {
	return lv.animating
}

//ResetTransform back to identity, cancelling any animation
func (lv *Level) ResetTransform() {
	lv.Scale = 1
	lv.Translation = geo.Point{}
	lv.animating = false
	lv.hasTarget = false
	lv.HasMatrix = false
}

func applyMatrix(m [6]float64, p geo.Point) geo.Point {
	return geo.Point{
		X: m[0]*p.X + m[2]*p.Y + m[4],
		Y: m[1]*p.X + m[3]*p.Y + m[5],
	}
}

//TransformBounds maps a screen rectangle through the current matrix by
//transforming all four corners and taking the enclosing axis-aligned box
func (lv *Level) TransformBounds(min, max geo.Point) (geo.Point, geo.Point) {
	if !lv.animating || !lv.HasMatrix {
		return min, max
	}
	corners := [4]geo.Point{
		applyMatrix(lv.Matrix, min),
		applyMatrix(lv.Matrix, max),
		applyMatrix(lv.Matrix, geo.Point{X: min.X, Y: max.Y}),
		applyMatrix(lv.Matrix, geo.Point{X: max.X, Y: min.Y}),
	}
	outMin := geo.Point{X: math.Inf(1), Y: math.Inf(1)}
	outMax := geo.Point{X: math.Inf(-1), Y: math.Inf(-1)}
	for _, c := range corners {
		outMin.X = math.Min(outMin.X, c.X)
		outMin.Y = math.Min(outMin.Y, c.Y)
		outMax.X = math.Max(outMax.X, c.X)
		outMax.Y = math.Max(outMax.Y, c.Y)
	}
	return outMin, outMax
}

//SetOpacity clamped to [0,1]
func (lv *Level) SetOpacity(o float64) {
	lv.Opacity = math.Max(0, math.Min(1, o))
}
