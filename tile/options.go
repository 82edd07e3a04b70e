package tile

import (
	"time"

	"github.com/spf13/viper"
)

//Options tile pipeline tunables
type Options struct {
	CacheSize        int           //tile count held by the lru
	Workers          int           //max concurrent fetches
	MaxRetries       int           //re-requests after the loader gives up
	RetryDelay       time.Duration //backoff base delay
	Exponential      bool          //double the delay per failed attempt
	TileSize         int
	MinZoom          uint32
	MaxZoom          uint32
	KeepBuffer       int           //padding tiles kept outside the viewport
	UpdateInterval   time.Duration //min interval between tile recomputes
	ErrorGCThreshold int           //error tiles tolerated before a sweep
	FadeDuration     time.Duration //per-tile opacity ramp
	UserAgent        string
}

//DefaultOptions conservative defaults, safe for public tile servers
func DefaultOptions() Options {
	return Options{
		CacheSize:        2048,
		Workers:          4,
		MaxRetries:       2,
		RetryDelay:       time.Second,
		Exponential:      true,
		TileSize:         256,
		MinZoom:          0,
		MaxZoom:          18,
		KeepBuffer:       2,
		UpdateInterval:   200 * time.Millisecond,
		ErrorGCThreshold: 100,
		FadeDuration:     200 * time.Millisecond,
		UserAgent:        "tilepipe/1.0 (+https://github.com/atlasdatatech)",
	}
}

//OptionsFromViper reads the recognized config keys, falling back to defaults
func OptionsFromViper(v *viper.Viper) Options {
	o := DefaultOptions()
	if v.IsSet("cache.size") {
		o.CacheSize = v.GetInt("cache.size")
	}
	if v.IsSet("task.workers") {
		o.Workers = v.GetInt("task.workers")
	}
	if v.IsSet("retry.max") {
		o.MaxRetries = v.GetInt("retry.max")
	}
	if v.IsSet("retry.delay") {
		o.RetryDelay = time.Duration(v.GetInt("retry.delay")) * time.Millisecond
	}
	if v.IsSet("retry.exponential") {
		o.Exponential = v.GetBool("retry.exponential")
	}
	if v.IsSet("tile.size") {
		o.TileSize = v.GetInt("tile.size")
	}
	if v.IsSet("tile.minzoom") {
		o.MinZoom = uint32(v.GetInt("tile.minzoom"))
	}
	if v.IsSet("tile.maxzoom") {
		o.MaxZoom = uint32(v.GetInt("tile.maxzoom"))
	}
	if v.IsSet("tile.buffer") {
		o.KeepBuffer = v.GetInt("tile.buffer")
	}
	if v.IsSet("tile.errorgc") {
		o.ErrorGCThreshold = v.GetInt("tile.errorgc")
	}
	if v.IsSet("tile.interval") {
		o.UpdateInterval = time.Duration(v.GetInt("tile.interval")) * time.Millisecond
	}
	if v.IsSet("useragent") {
		o.UserAgent = v.GetString("useragent")
	}
	return o
}
