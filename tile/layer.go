package tile

import (
	"errors"
	"math"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"tilepipe/geo"
)

// tiles loaded within this window survive pruning even when off-screen,
// so a quick pan back does not refetch them
const recentLoadWindow = 30 * time.Second

// a started download with no completion after this long is treated as
// failed; the loader reports successes only
const loadTimeout = 65 * time.Second

// levels further than this from the active zoom are dropped outright
const maxLevelDistance = 2

var errLoadTimeout = errors.New("load timed out")

//RenderTile what the gui layer needs to draw one tile: bytes, the
//post-transform screen rectangle and the current opacity
type RenderTile struct {
	Coord   geo.TileCoord
	Data    []byte
	Min     geo.Point
	Max     geo.Point
	Opacity float64
}

//Layer ties the pipeline together: drains completions, schedules
//downloads against the prefetch plan, runs retries and renders levels in
//z-index order. All methods run on the owner's update thread; only the
//cache is touched from loader goroutines.
type Layer struct {
	opts   Options
	source Source
	cache  *Cache
	loader *Loader

	levels   map[uint32]*Level
	inflight map[geo.TileCoord]time.Time

	lastUpdate    time.Time
	pendingUpdate bool
	activeZoom    uint32
}

//NewLayer a layer fetching from src
func NewLayer(src Source, opts Options) *Layer {
	return &Layer{
		opts:     opts,
		source:   src,
		cache:    NewCache(opts.CacheSize),
		loader:   NewLoader(opts),
		levels:   make(map[uint32]*Level),
		inflight: make(map[geo.TileCoord]time.Time),
	}
}

//Cache the shared tile cache
func (l *Layer) Cache() *Cache {
	return l.cache
}

func (l *Layer) level(zoom uint32) *Level {
	lv, ok := l.levels[zoom]
	if !ok {
		lv = NewLevel(zoom)
		l.levels[zoom] = lv
	}
	return lv
}

func (l *Layer) state(coord geo.TileCoord) *State {
	lv := l.level(coord.Z)
	s, ok := lv.Tiles[coord]
	if !ok {
		s = NewState(coord)
		lv.Tiles[coord] = s
	}
	return s
}

func (l *Layer) canStart() bool {
	return len(l.inflight) < l.opts.Workers
}

func (l *Layer) startDownload(s *State) {
	s.MarkLoading()
	l.inflight[s.Coord] = time.Now()
	l.loader.Start(l.source, s.Coord)
}

//ProcessResults applies every completed download in arrival order
func (l *Layer) ProcessResults() int {
	results := l.loader.Drain()
	for _, r := range results {
		delete(l.inflight, r.Coord)
		l.cache.Insert(r.Coord, r.Data)
		l.state(r.Coord).MarkLoaded(r.Data)
	}
	l.expireStuckDownloads()
	return len(results)
}

// downloads the loader gave up on never complete; convert them into
// error states so the backoff policy owns what happens next
func (l *Layer) expireStuckDownloads() {
	for coord, started := range l.inflight {
		if time.Since(started) < loadTimeout {
			continue
		}
		delete(l.inflight, coord)
		log.Warnf("tile %v download expired ~", coord)
		l.state(coord).MarkError(errLoadTimeout)
	}
}

//UpdateTiles recomputes the wanted-tile set and schedules downloads, at
//most once per update interval. Returns false when the call was deferred
//by the throttle.
func (l *Layer) UpdateTiles(vp geo.Viewport) bool {
	if !l.lastUpdate.IsZero() && time.Since(l.lastUpdate) < l.opts.UpdateInterval {
		l.pendingUpdate = true
		return false
	}
	l.lastUpdate = time.Now()
	l.pendingUpdate = false

	l.cache.UpdateViewport(vp)
	l.activeZoom = uint32(math.Round(vp.Zoom))
	if l.activeZoom > l.opts.MaxZoom {
		l.activeZoom = l.opts.MaxZoom
	}

	l.retireLevels(vp)

	wanted := l.cache.PrefetchTiles(vp)
	for _, s := range l.allStates() {
		s.Current = false
	}
	for _, coord := range wanted {
		if coord.Z < l.opts.MinZoom || coord.Z > l.opts.MaxZoom {
			continue
		}
		s := l.state(coord)
		s.Current = true

		if !s.IsLoaded() {
			if data, ok := l.cache.Get(coord); ok {
				s.MarkLoaded(data)
			}
		}
		if s.IsLoaded() || s.Loading || s.Err != nil {
			continue
		}
		if !l.canStart() {
			continue
		}
		l.startDownload(s)
	}

	l.applyParentFallback()
	l.pruneTiles(vp)
	return true
}

//PendingUpdate true when a throttled call is still owed a recompute
func (l *Layer) PendingUpdate() bool {
	return l.pendingUpdate
}

// active level keeps z-index precedence; a superseded level with loaded
// tiles is retained and faded out instead of vanishing
func (l *Layer) retireLevels(vp geo.Viewport) {
	active := l.level(l.activeZoom)
	for zoom, lv := range l.levels {
		if zoom == l.activeZoom {
			lv.Active = true
			lv.Retain = false
			lv.ZIndex = 2
			lv.Center = vp.Center
			continue
		}
		if lv.Active {
			// just superseded
			lv.Retain = len(lv.Tiles) > 0
		}
		lv.Active = false
		lv.ZIndex = 1
	}
	active.SetZoomTransform(active.Center, vp)
	for zoom, lv := range l.levels {
		if zoom != l.activeZoom && lv.Retain {
			lv.SetZoomTransform(lv.Center, vp)
		}
	}
}

// borrow parent bytes for current tiles still waiting on their own data
func (l *Layer) applyParentFallback() {
	lv, ok := l.levels[l.activeZoom]
	if !ok {
		return
	}
	for coord, s := range lv.Tiles {
		if !s.Current || s.IsLoaded() {
			continue
		}
		parent, ok := coord.Parent()
		if !ok {
			continue
		}
		if data, ok := l.cache.Get(parent); ok {
			s.SetParentData(data)
		}
	}
}

// drop states that are neither wanted, retained, recently loaded, nor
// inside the keep-buffer band around the viewport
func (l *Layer) pruneTiles(vp geo.Viewport) {
	keep := make(map[geo.TileCoord]struct{})
	for _, coord := range vp.VisibleTiles(l.activeZoom, l.opts.KeepBuffer) {
		keep[coord] = struct{}{}
	}
	for _, lv := range l.levels {
		for coord, s := range lv.Tiles {
			if s.Current || s.Retain || s.Loading {
				continue
			}
			if _, ok := keep[coord]; ok {
				continue
			}
			if !s.LoadedTime.IsZero() && time.Since(s.LoadedTime) < recentLoadWindow {
				continue
			}
			delete(lv.Tiles, coord)
		}
	}
}

//HandleRetries re-requests error tiles whose backoff delay has elapsed
func (l *Layer) HandleRetries() int {
	retried := 0
	for _, lv := range l.levels {
		for _, s := range lv.Tiles {
			if s.Err == nil || s.Loading {
				continue
			}
			if !s.ShouldRetry(l.opts.MaxRetries, l.opts.RetryDelay, l.opts.Exponential) {
				continue
			}
			if !l.canStart() {
				return retried
			}
			l.startDownload(s)
			retried++
		}
	}
	return retried
}

//Update per-frame housekeeping: ramps fresh tiles in, fades retained
//levels out, advances animations and sweeps error tiles
func (l *Layer) Update(dt time.Duration) {
	step := 1.0
	if l.opts.FadeDuration > 0 {
		step = float64(dt) / float64(l.opts.FadeDuration)
	}

	for zoom, lv := range l.levels {
		lv.UpdateAnimation()
		for _, s := range lv.Tiles {
			if s.HasDisplayData() && s.Opacity < 1 {
				s.Opacity = math.Min(1, s.Opacity+step)
			}
		}
		if lv.Retain && !lv.Active {
			lv.SetOpacity(lv.Opacity - step)
			if lv.Opacity == 0 {
				delete(l.levels, zoom)
			}
		}
	}

	l.collectErrorTiles()
	l.dropFarLevels()
}

// the error sweep: past the threshold every error tile goes, giving the
// grid a clean slate instead of a pile of dead retries
func (l *Layer) collectErrorTiles() {
	count := 0
	for _, lv := range l.levels {
		for _, s := range lv.Tiles {
			if s.Err != nil {
				count++
			}
		}
	}
	if count <= l.opts.ErrorGCThreshold {
		return
	}
	log.Warnf("dropping %d error tiles ~", count)
	for _, lv := range l.levels {
		for coord, s := range lv.Tiles {
			if s.Err != nil {
				delete(lv.Tiles, coord)
			}
		}
	}
}

func (l *Layer) dropFarLevels() {
	for zoom := range l.levels {
		d := int(zoom) - int(l.activeZoom)
		if d < 0 {
			d = -d
		}
		if d > maxLevelDistance {
			delete(l.levels, zoom)
		}
	}
}

func (l *Layer) allStates() []*State {
	var out []*State
	for _, lv := range l.levels {
		for _, s := range lv.Tiles {
			out = append(out, s)
		}
	}
	return out
}

//InFlight number of downloads currently counted against the limit
func (l *Layer) InFlight() int {
	return len(l.inflight)
}

//Levels snapshot of existing level zooms, ascending
func (l *Layer) Levels() []uint32 {
	out := make([]uint32, 0, len(l.levels))
	for z := range l.levels {
		out = append(out, z)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

//RenderTiles walks active and retained levels in z-index order and
//produces the draw list: display bytes, transformed screen rectangle and
//combined opacity. Tiles without display data or fully off screen are
//skipped.
func (l *Layer) RenderTiles(vp geo.Viewport) []RenderTile {
	ordered := make([]*Level, 0, len(l.levels))
	for _, lv := range l.levels {
		if lv.Active || lv.Retain {
			ordered = append(ordered, lv)
		}
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].ZIndex != ordered[j].ZIndex {
			return ordered[i].ZIndex < ordered[j].ZIndex
		}
		return ordered[i].Zoom < ordered[j].Zoom
	})

	half := vp.Size.Mul(0.5)
	var out []RenderTile
	for _, lv := range ordered {
		base := vp.ProjectAt(vp.Center, float64(lv.Zoom))
		side := float64(l.opts.TileSize) * lv.Scale
		for coord, s := range lv.Tiles {
			data := s.DisplayData()
			if data == nil {
				continue
			}
			nw := vp.ProjectAt(coord.LatLng(), float64(lv.Zoom))
			rel := nw.Sub(base)
			min := rel.Mul(lv.Scale).Add(lv.Translation).Add(half)
			max := min.Add(geo.Point{X: side, Y: side})
			if max.X < 0 || max.Y < 0 || min.X > vp.Size.X || min.Y > vp.Size.Y {
				continue
			}
			out = append(out, RenderTile{
				Coord:   coord,
				Data:    data,
				Min:     min,
				Max:     max,
				Opacity: s.Opacity * lv.Opacity,
			})
		}
	}
	return out
}
