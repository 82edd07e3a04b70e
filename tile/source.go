package tile

import (
	"strconv"
	"strings"

	"tilepipe/geo"
)

//Source builds the request URL for a tile
type Source interface {
	URL(c geo.TileCoord) string
	Name() string
}

//OpenStreetMap the standard osm raster source, load spread over the
//a/b/c subdomains
type OpenStreetMap struct{}

var osmSubdomains = []string{"a", "b", "c"}

//URL implements Source
func (OpenStreetMap) URL(c geo.TileCoord) string {
	sub := osmSubdomains[(c.X+c.Y)%uint32(len(osmSubdomains))]
	return "https://" + sub + ".tile.openstreetmap.org/" + c.String() + ".png"
}

//Name implements Source
func (OpenStreetMap) Name() string { return "openstreetmap" }

//Template url-template source, substitutes {x}/{y}/{z} and an optional
//{s} subdomain placeholder
type Template struct {
	ID         string
	URLPattern string
	Subdomains []string
	Schema     string //"xyz" or "tms"
}

//URL implements Source
func (m Template) URL(c geo.TileCoord) string {
	y := c.Y
	if m.Schema == "tms" {
		y = c.FlipY()
	}
	url := strings.Replace(m.URLPattern, "{x}", strconv.Itoa(int(c.X)), -1)
	url = strings.Replace(url, "{y}", strconv.Itoa(int(y)), -1)
	url = strings.Replace(url, "{z}", strconv.Itoa(int(c.Z)), -1)
	if len(m.Subdomains) > 0 {
		sub := m.Subdomains[(c.X+c.Y)%uint32(len(m.Subdomains))]
		url = strings.Replace(url, "{s}", sub, -1)
	}
	return url
}

//Name implements Source
func (m Template) Name() string {
	if m.ID != "" {
		return m.ID
	}
	return "template"
}
