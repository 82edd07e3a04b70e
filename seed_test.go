package main

import (
	"database/sql"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tilepipe/tile"
)

func testRegion() orb.Collection {
	return orb.Collection{
		orb.Bound{Min: orb.Point{-10, -10}, Max: orb.Point{10, 10}},
	}
}

func TestSeedTaskMBTiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	viper.Set("output.format", "mbtiles")
	viper.Set("output.directory", t.TempDir())
	viper.Set("task.savepipe", 8)
	viper.Set("task.mergebuf", 16)

	src := tile.Template{
		ID:         "seedtest",
		URLPattern: srv.URL + "/{z}/{x}/{y}.png",
	}
	layers := []SeedLayer{{Zoom: 2, Collection: testRegion()}}

	opts := tile.DefaultOptions()
	task := NewSeedTask(layers, src, opts)
	require.NotNil(t, task)
	require.Greater(t, task.Total, int64(0))

	task.Download()

	db, err := sql.Open("sqlite3", task.File)
	require.NoError(t, err)
	defer db.Close()

	var tiles int64
	require.NoError(t, db.QueryRow("select count(*) from tiles").Scan(&tiles))
	assert.Equal(t, task.Total, tiles)

	var data []byte
	require.NoError(t, db.QueryRow("select tile_data from tiles limit 1").Scan(&data))
	assert.Equal(t, []byte("png-bytes"), data)

	var name string
	require.NoError(t, db.QueryRow("select value from metadata where name = 'name'").Scan(&name))
	assert.Equal(t, "seedtest", name)

	var minzoom string
	require.NoError(t, db.QueryRow("select value from metadata where name = 'minzoom'").Scan(&minzoom))
	assert.Equal(t, "2", minzoom)
}

func TestSeedTaskFiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	viper.Set("output.format", "files")
	viper.Set("output.directory", t.TempDir())
	viper.Set("task.savepipe", 8)
	viper.Set("task.mergebuf", 16)

	src := tile.Template{
		ID:         "filetest",
		URLPattern: srv.URL + "/{z}/{x}/{y}.png",
	}
	layers := []SeedLayer{{Zoom: 2, Collection: testRegion()}}

	task := NewSeedTask(layers, src, tile.DefaultOptions())
	require.NotNil(t, task)

	task.Download()

	var files int64
	err := filepath.Walk(task.File, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".png" {
			return nil
		}
		files++
		data, err := ioutil.ReadFile(path)
		if err != nil {
			return err
		}
		assert.Equal(t, []byte("png-bytes"), data)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, task.Total, files)
}

func TestSeedTaskAbort(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		time.Sleep(5 * time.Millisecond)
		w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	viper.Set("output.format", "files")
	viper.Set("output.directory", t.TempDir())
	viper.Set("task.savepipe", 8)
	viper.Set("task.mergebuf", 4)

	src := tile.Template{
		ID:         "aborttest",
		URLPattern: srv.URL + "/{z}/{x}/{y}.png",
	}
	opts := tile.DefaultOptions()
	opts.Workers = 2
	layers := []SeedLayer{{Zoom: 7, Collection: testRegion()}}

	task := NewSeedTask(layers, src, opts)
	require.NotNil(t, task)

	// the cancel must stop dispatch and still let the tile enumeration
	// goroutine run to completion
	go task.abortFun()
	task.Download()

	assert.True(t, task.canceled)
	assert.Less(t, atomic.LoadInt64(&hits), task.Total)
}

func TestSeedTaskEmptyLayers(t *testing.T) {
	assert.Nil(t, NewSeedTask(nil, tile.OpenStreetMap{}, tile.DefaultOptions()))
}

func TestSeedTileFlipY(t *testing.T) {
	st := SeedTile{T: maptile.Tile{X: 1, Y: 0, Z: 2}}
	assert.Equal(t, uint32(3), st.flipY())
}
