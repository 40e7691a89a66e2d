package mapdocument

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/ownmap-image/mapview"
	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/spf13/viper"
)

const (
	LayerTypeTile    = "tile"
	LayerTypeDynamic = "dynamic"
	LayerTypeHeat    = "heat"
	LayerTypeMarker  = "marker"
)

const (
	DefaultMaxZoom = 18
	maxMapZoom     = 24
)

type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (ll LatLon) Point() orb.Point {
	return orb.Point{ll.Lon, ll.Lat}
}

// Document describes a map the way it is shown on screen: the viewport, and the layers in the order they are
// stacked in the DOM.
type Document struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Zoom   *int    `json:"zoom"`
	Center *LatLon `json:"center"`
	// Bounds is "W,N,E,S". Without a center the map is centered on the bounds, and without a zoom it is zoomed to fit them.
	Bounds string `json:"bounds"`
	// LegacyPathRoot puts the overlay on the legacy path root instead of the overlay pane
	LegacyPathRoot bool             `json:"legacyPathRoot"`
	Overlay        *OverlayDocument `json:"overlay"`
	Layers         []*LayerDocument `json:"layers"`

	// BaseDir is the directory local image files are opened from. When empty, only data URLs can be used for local images.
	BaseDir string `json:"-"`
}

// LayerDocument is one layer. Which fields apply depends on Type.
type LayerDocument struct {
	Type string `json:"type"`

	// tile layers
	URL          string            `json:"url"`
	Subdomains   Subdomains        `json:"subdomains"`
	TileSize     int               `json:"tileSize"`
	MinZoom      int               `json:"minZoom"`
	MaxZoom      *int              `json:"maxZoom"`
	ErrorTileURL string            `json:"errorTileUrl"`
	TMS          bool              `json:"tms"`
	NoWrap       bool              `json:"noWrap"`
	CanvasTiles  map[string]string `json:"canvasTiles"`

	// dynamic layers. URL is the map service URL, ImageURL overrides the computed export URL.
	ImageURL string `json:"imageUrl"`
	Format   string `json:"format"`

	// heat layers
	Image    string        `json:"image"`
	Position mapview.Point `json:"position"`

	// markers
	Location *LatLon       `json:"location"`
	Icon     *IconDocument `json:"icon"`
}

type IconDocument struct {
	URL        string         `json:"url"`
	IconSize   *mapview.Point `json:"iconSize"`
	IconAnchor *mapview.Point `json:"iconAnchor"`
}

// Subdomains is either a string of single letter subdomains ("abc"), or a list of subdomains
type Subdomains []string

func (s *Subdomains) UnmarshalJSON(data []byte) error {
	var str string
	err := json.Unmarshal(data, &str)
	if err == nil {
		*s = strings.Split(str, "")
		return nil
	}

	var list []string
	err = json.Unmarshal(data, &list)
	if err != nil {
		return fmt.Errorf("subdomains must be a string or a list of strings: %s", data)
	}

	*s = list
	return nil
}

// Load reads a map document from a JSON, YAML or TOML file. Local images are opened relative to the document.
func Load(path string) (*Document, errorsx.Error) {
	v := viper.New()
	v.SetConfigFile(path)

	err := v.ReadInConfig()
	if err != nil {
		return nil, errorsx.Wrap(err, "path", path)
	}

	doc, err := decode(v)
	if err != nil {
		return nil, errorsx.Wrap(err, "path", path)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}
	doc.BaseDir = filepath.Dir(absPath)

	return doc, nil
}

// Parse reads a map document in the given format ("json", "yaml" or "toml")
func Parse(reader io.Reader, format string) (*Document, errorsx.Error) {
	v := viper.New()
	v.SetConfigType(format)

	err := v.ReadConfig(reader)
	if err != nil {
		return nil, errorsx.Wrap(err, "format", format)
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Document, errorsx.Error) {
	// viper lower-cases keys, so the settings go back through JSON to get case-insensitive field matching
	settingsJSON, err := json.Marshal(normalizeSettings(v.AllSettings()))
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	doc := new(Document)
	decoder := json.NewDecoder(bytes.NewReader(settingsJSON))
	err = decoder.Decode(doc)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	err = doc.Validate()
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	return doc, nil
}

// normalizeSettings converts the map[interface{}]interface{} values the YAML decoder produces inside lists
func normalizeSettings(value interface{}) interface{} {
	switch v := value.(type) {
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(v))
		for key, val := range v {
			m[fmt.Sprintf("%v", key)] = normalizeSettings(val)
		}
		return m
	case map[string]interface{}:
		for key, val := range v {
			v[key] = normalizeSettings(val)
		}
		return v
	case []interface{}:
		for i, val := range v {
			v[i] = normalizeSettings(val)
		}
		return v
	default:
		return v
	}
}

func (d *Document) Validate() errorsx.Error {
	if d.Width <= 0 || d.Height <= 0 {
		return errorsx.Errorf("map size must be positive, but was %dx%d", d.Width, d.Height)
	}

	if d.Zoom != nil && (*d.Zoom < 0 || *d.Zoom > maxMapZoom) {
		return errorsx.Errorf("zoom must be between 0 and %d, but was %d", maxMapZoom, *d.Zoom)
	}

	if d.Bounds == "" {
		if d.Center == nil || d.Zoom == nil {
			return errorsx.Errorf("a center and a zoom, or bounds, must be given")
		}
	}

	if d.Bounds != "" {
		_, err := ParseBounds(d.Bounds)
		if err != nil {
			return errorsx.Wrap(err)
		}
	}

	for idx, layer := range d.Layers {
		if layer == nil {
			return errorsx.Errorf("layer %d is empty", idx)
		}

		switch layer.Type {
		case LayerTypeMarker:
			if layer.Location == nil {
				return errorsx.Errorf("marker (layer %d) has no location", idx)
			}
		case LayerTypeDynamic:
			if layer.URL == "" && layer.ImageURL == "" {
				return errorsx.Errorf("dynamic layer (layer %d) needs a url or an imageUrl", idx)
			}
		}
	}

	return nil
}

// ParseBounds parses a "W,N,E,S" string
func ParseBounds(boundsStr string) (osm.Bounds, errorsx.Error) {
	bounds := osm.Bounds{}

	fragments := strings.Split(boundsStr, ",")
	if len(fragments) != 4 {
		return bounds, errorsx.Errorf("expected 4 bounds (W,N,E,S), but found %d", len(fragments))
	}

	for idx, fragment := range fragments {
		boundFloat, err := strconv.ParseFloat(strings.TrimSpace(fragment), 64)
		if err != nil {
			return bounds, errorsx.Wrap(err)
		}
		switch idx {
		case 0:
			bounds.MinLon = boundFloat
		case 1:
			bounds.MaxLat = boundFloat
		case 2:
			bounds.MaxLon = boundFloat
		case 3:
			bounds.MinLat = boundFloat
		}
	}

	if bounds.MinLon >= bounds.MaxLon || bounds.MinLat >= bounds.MaxLat {
		return bounds, errorsx.Errorf("bounds %q are empty", boundsStr)
	}

	return bounds, nil
}
