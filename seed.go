package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"database/sql"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/maptile/tilecover"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/teris-io/shortid"
	pb "gopkg.in/cheggaaa/pb.v1"

	"tilepipe/geo"
	"tilepipe/tile"
)

//MBTileVersion mbtiles spec version written to metadata
const MBTileVersion = "1.2"

//SeedTile one downloaded tile on its way to storage
type SeedTile struct {
	T maptile.Tile
	C []byte
}

func (t SeedTile) flipY() uint32 {
	return geo.FromMapTile(t.T).FlipY()
}

//SeedLayer one zoom level of region coverage
type SeedLayer struct {
	Zoom       int
	Count      int64
	Collection orb.Collection
}

//SeedTask bulk region download into mbtiles or a z/x/y file tree
type SeedTask struct {
	ID                 string
	Name               string
	File               string
	Min                int
	Max                int
	Layers             []SeedLayer
	Source             tile.Source
	Total              int64
	Bar                *pb.ProgressBar
	db                 *sql.DB
	loader             *tile.Loader
	workerCount        int
	savePipeSize       int
	bufSize            int
	wg                 sync.WaitGroup
	abort, pause, play chan struct{}
	workers            chan maptile.Tile
	savingpipe         chan SeedTile
	saveDone           chan struct{}
	outformat          string
	canceled           bool
}

//NewSeedTask builds a task covering every layer's region
func NewSeedTask(layers []SeedLayer, src tile.Source, opts tile.Options) *SeedTask {
	if len(layers) == 0 {
		return nil
	}
	id, _ := shortid.Generate()

	task := SeedTask{
		ID:     id,
		Name:   src.Name(),
		Layers: layers,
		Source: src,
		Min:    layers[0].Zoom,
		Max:    layers[len(layers)-1].Zoom,
		loader: tile.NewLoader(opts),
	}

	for i := 0; i < len(layers); i++ {
		layers[i].Count = tilecover.CollectionCount(layers[i].Collection, maptile.Zoom(layers[i].Zoom))
		log.Debugf("zoom %d, %d tiles", layers[i].Zoom, layers[i].Count)
		task.Total += layers[i].Count
	}
	task.abort = make(chan struct{})
	task.pause = make(chan struct{})
	task.play = make(chan struct{})

	task.workerCount = opts.Workers
	task.savePipeSize = viper.GetInt("task.savepipe")
	task.workers = make(chan maptile.Tile, task.workerCount)
	task.savingpipe = make(chan SeedTile, task.savePipeSize)
	task.saveDone = make(chan struct{})
	task.bufSize = viper.GetInt("task.mergebuf")

	task.outformat = viper.GetString("output.format")
	return &task
}

//Bound the union of all layer regions
func (task *SeedTask) Bound() orb.Bound {
	bound := orb.Bound{}
	for _, layer := range task.Layers {
		for _, g := range layer.Collection {
			bound = bound.Union(g.Bound())
		}
	}
	return bound
}

//Center of the deepest layer's region
func (task *SeedTask) Center() orb.Point {
	layer := task.Layers[len(task.Layers)-1]
	bound := orb.Bound{}
	for _, g := range layer.Collection {
		bound = bound.Union(g.Bound())
	}
	return bound.Center()
}

//MetaItems the mbtiles metadata rows
func (task *SeedTask) MetaItems() map[string]string {
	b := task.Bound()
	c := task.Center()
	return map[string]string{
		"id":          task.ID,
		"name":        task.Name,
		"format":      "png",
		"type":        "baselayer",
		"pixel_scale": strconv.Itoa(geo.TileSize),
		"version":     MBTileVersion,
		"bounds":      fmt.Sprintf(`%f,%f,%f,%f`, b.Left(), b.Bottom(), b.Right(), b.Top()),
		"center":      fmt.Sprintf(`%f,%f,%d`, c.X(), c.Y(), (task.Min+task.Max)/2),
		"minzoom":     strconv.Itoa(task.Min),
		"maxzoom":     strconv.Itoa(task.Max),
	}
}

func (task *SeedTask) abortFun() {
	task.abort <- struct{}{}
}

func (task *SeedTask) pauseFun() {
	task.pause <- struct{}{}
}

func (task *SeedTask) playFun() {
	task.play <- struct{}{}
}

//savePipe serialized writer draining the saving pipe into sqlite
func (task *SeedTask) savePipe() {
	defer close(task.saveDone)
	for t := range task.savingpipe {
		err := saveToMBTile(t, task.db)
		if err != nil {
			log.Errorf("save %v tile to mbtiles db error ~ %s", t.T, err)
		}
	}
}

func (task *SeedTask) saveTile(t SeedTile) error {
	defer task.wg.Done()
	err := saveToFiles(t, task.File)
	if err != nil {
		log.Errorf("create %v tile file error ~ %s", t.T, err)
	}
	return nil
}

//tileFetcher downloads one tile through the shared pipeline client
func (task *SeedTask) tileFetcher(t maptile.Tile) {
	defer task.wg.Done()
	defer func() {
		<-task.workers
	}()
	start := time.Now()
	coord := geo.FromMapTile(t)
	body, err := task.loader.Fetch(task.Source, coord)
	if err != nil {
		log.Errorf("fetch tile %v error ~ %s", coord, err)
		return
	}
	st := SeedTile{
		T: t,
		C: body,
	}
	if task.outformat == "mbtiles" {
		task.savingpipe <- st
	} else {
		task.wg.Add(1)
		task.saveTile(st)
	}
	secs := time.Since(start).Seconds()
	log.Debugf("tile %v, %.3fs, %.2f kb ~", coord, secs, float32(len(body))/1024.0)
}

func (task *SeedTask) downloadLayer(layer SeedLayer) {
	bar := pb.New64(layer.Count).Prefix(fmt.Sprintf("Zoom %d : ", layer.Zoom)).Postfix("\n")
	bar.Start()

	var tilelist = make(chan maptile.Tile, task.bufSize)

	go tilecover.CollectionChannel(layer.Collection, maptile.Zoom(layer.Zoom), tilelist)

	// the producer owns tilelist; after a cancel keep draining it so the
	// enumeration goroutine can finish and close it
	for t := range tilelist {
		if task.canceled {
			continue
		}
		select {
		case task.workers <- t:
			bar.Increment()
			task.Bar.Increment()
			task.wg.Add(1)
			go task.tileFetcher(t)
		case <-task.abort:
			log.Infof("task %s got canceled.", task.ID)
			task.canceled = true
		case <-task.pause:
			log.Infof("task %s suspended.", task.ID)
			select {
			case <-task.play:
				log.Infof("task %s go on.", task.ID)
			case <-task.abort:
				log.Infof("task %s got canceled.", task.ID)
				task.canceled = true
			}
		}
	}
	task.wg.Wait()
	bar.FinishPrint(fmt.Sprintf("task %s zoom %d finished ~", task.ID, layer.Zoom))
}

//Download runs the whole task
func (task *SeedTask) Download() {
	task.Bar = pb.New64(task.Total).Prefix("Task : ")
	task.Bar.Start()
	if task.outformat == "mbtiles" {
		if err := task.SetupMBTileTables(); err != nil {
			log.Fatalf("setup mbtiles %s error ~ %s", task.File, err)
		}
	} else if task.File == "" {
		outdir := viper.GetString("output.directory")
		task.File = filepath.Join(outdir, task.ID+"."+task.Name)
		os.MkdirAll(task.File, os.ModePerm)
	}
	go task.savePipe()
	for _, layer := range task.Layers {
		if task.canceled {
			break
		}
		task.downloadLayer(layer)
	}
	task.wg.Wait()
	close(task.savingpipe)
	<-task.saveDone
	if task.db != nil {
		if err := optimizeDatabase(task.db); err != nil {
			log.Errorf("optimize %s error ~ %s", task.File, err)
		}
		task.db.Close()
	}
	task.Bar.FinishPrint(fmt.Sprintf("task %s finished ~", task.ID))
}
