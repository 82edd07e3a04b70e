package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shiena/ansicolor"
	log "github.com/sirupsen/logrus"

	nested "github.com/antonfisher/nested-logrus-formatter"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/viper"

	"tilepipe/tile"
)

// flag
var (
	hf bool
	cf string
)

func init() {
	flag.BoolVar(&hf, "h", false, "this help")
	flag.StringVar(&cf, "c", "conf.toml", "set config `file`")
	flag.Usage = usage
	log.SetFormatter(&nested.Formatter{
		HideKeys:        true,
		ShowFullLevel:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	log.SetOutput(ansicolor.NewAnsiColorWriter(os.Stdout))
	log.SetLevel(log.DebugLevel)
}

func usage() {
	fmt.Fprintf(os.Stderr, `tilepipe version: tilepipe/v1.0.0
Usage: tilepipe [-h] [-c filename]
`)
	flag.PrintDefaults()
}

func initConf(cfgFile string) {
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		log.Warnf("config file(%s) not exist", cfgFile)
	}
	viper.SetConfigType("toml")
	viper.SetConfigFile(cfgFile)
	viper.AutomaticEnv()
	err := viper.ReadInConfig()
	if err != nil {
		log.Warnf("read config file(%s) error, details: %s", viper.ConfigFileUsed(), err)
	}
	viper.SetDefault("app.version", "v 1.0.0")
	viper.SetDefault("app.title", "tilepipe")
	viper.SetDefault("output.format", "mbtiles")
	viper.SetDefault("output.directory", "output")
	viper.SetDefault("task.workers", 4)
	viper.SetDefault("task.savepipe", 1)
	viper.SetDefault("cache.size", 2048)
	viper.SetDefault("retry.max", 2)
	viper.SetDefault("retry.delay", 1000)
	viper.SetDefault("retry.exponential", true)
	viper.SetDefault("tile.size", 256)
	viper.SetDefault("tile.minzoom", 0)
	viper.SetDefault("tile.maxzoom", 18)
	viper.SetDefault("tile.buffer", 2)
}

func main() {
	flag.Parse()
	if hf {
		flag.Usage()
		return
	}

	if cf == "" {
		cf = "conf.toml"
	}
	initConf(cf)
	start := time.Now()

	src := tile.Template{
		ID:         viper.GetString("tm.name"),
		URLPattern: viper.GetString("tm.url"),
		Subdomains: viper.GetStringSlice("tm.subdomains"),
		Schema:     viper.GetString("tm.schema"),
	}

	type cfgLayer struct {
		Min     int
		Max     int
		Geojson string
	}
	var cfgLrs []cfgLayer
	err := viper.UnmarshalKey("lrs", &cfgLrs)
	if err != nil {
		log.Fatal("lrs config malformed")
	}
	var layers []SeedLayer
	for _, lrs := range cfgLrs {
		for z := lrs.Min; z <= lrs.Max; z++ {
			c := loadCollection(lrs.Geojson)
			layers = append(layers, SeedLayer{
				Zoom:       z,
				Collection: c,
			})
		}
	}
	opts := tile.OptionsFromViper(viper.GetViper())
	task := NewSeedTask(layers, src, opts)
	if task == nil {
		log.Fatal("no layers configured")
	}
	task.Download()
	secs := time.Since(start).Seconds()
	log.Printf("\n%.3fs finished...", secs)
}
