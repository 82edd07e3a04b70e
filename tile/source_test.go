package tile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tilepipe/geo"
)

func TestOpenStreetMapURL(t *testing.T) {
	src := OpenStreetMap{}

	assert.Equal(t, "https://c.tile.openstreetmap.org/10/301/385.png",
		src.URL(geo.TileCoord{X: 301, Y: 385, Z: 10}))

	// subdomain rotates with (x+y) mod 3
	assert.Equal(t, "https://a.tile.openstreetmap.org/0/0/0.png",
		src.URL(geo.TileCoord{X: 0, Y: 0, Z: 0}))
	assert.Equal(t, "https://b.tile.openstreetmap.org/1/1/0.png",
		src.URL(geo.TileCoord{X: 1, Y: 0, Z: 1}))
	assert.Equal(t, "https://c.tile.openstreetmap.org/1/1/1.png",
		src.URL(geo.TileCoord{X: 1, Y: 1, Z: 1}))
}

func TestTemplateURL(t *testing.T) {
	src := Template{
		ID:         "custom",
		URLPattern: "http://tiles.example.com/{z}/{x}/{y}.png?key=abc",
	}
	assert.Equal(t, "http://tiles.example.com/3/1/2.png?key=abc",
		src.URL(geo.TileCoord{X: 1, Y: 2, Z: 3}))
	assert.Equal(t, "custom", src.Name())
}

func TestTemplateSubdomains(t *testing.T) {
	src := Template{
		URLPattern: "http://{s}.example.com/{z}/{x}/{y}.png",
		Subdomains: []string{"t1", "t2"},
	}
	assert.Equal(t, "http://t1.example.com/1/0/0.png", src.URL(geo.TileCoord{X: 0, Y: 0, Z: 1}))
	assert.Equal(t, "http://t2.example.com/1/1/0.png", src.URL(geo.TileCoord{X: 1, Y: 0, Z: 1}))
	assert.Equal(t, "template", src.Name())
}

func TestTemplateTMS(t *testing.T) {
	src := Template{
		URLPattern: "http://example.com/{z}/{x}/{y}.png",
		Schema:     "tms",
	}
	// z=2 grid has 4 rows, row 1 flips to 2
	assert.Equal(t, "http://example.com/2/1/2.png", src.URL(geo.TileCoord{X: 1, Y: 1, Z: 2}))
}
