package mapview

import (
	"fmt"
	"image"

	"github.com/paulmach/orb"
)

// MapView is the live map being exported. It is read-only as far as the export is concerned.
type MapView interface {
	// Size is the viewport size in pixels, and also the size of the exported image
	Size() image.Point
	// PixelBounds is the visible rectangle, in absolute pixel space at the current zoom
	PixelBounds() Bounds
	PixelOrigin() Point
	Zoom() int
	// Project converts a lon/lat point into absolute pixel space at the current zoom
	Project(ll orb.Point) Point
	// Layers returns the attached layers, in the order they are stacked in the DOM
	Layers() []Layer
	// PathRoot returns the legacy root element for vector paths, or nil
	PathRoot() OverlaySurface
	// OverlayPaneSurface returns the first pre-rendered surface in the overlay pane, or nil
	OverlayPaneSurface() OverlaySurface
}

// OverlaySurface is an already-rendered raster surface positioned in the DOM, such as a vector renderer's canvas
// or a heatmap canvas.
type OverlaySurface interface {
	// Position is the surface's DOM position, relative to the map pane
	Position() Point
	// Snapshot returns the current contents of the surface. It returns an error if the surface can't be read.
	Snapshot() (image.Image, error)
}

type LayerKind int

const (
	LayerKindUnknown LayerKind = iota
	LayerKindTile
	LayerKindDynamicImage
	LayerKindHeat
	LayerKindMarker
)

var layerKindNames = []string{
	"Unknown",
	"Tile",
	"DynamicImage",
	"Heat",
	"Marker",
}

func (k LayerKind) String() string {
	if int(k) < 0 || int(k) >= len(layerKindNames) {
		return fmt.Sprintf("LayerKind(%d)", int(k))
	}
	return layerKindNames[k]
}

// Layer is one of the layer variants below. The map's own layer objects are adapted into one of these once, when
// the map view is built.
type Layer interface {
	Kind() LayerKind
}

// TilePoint is an integer tile coordinate (column, row)
type TilePoint struct {
	X int
	Y int
}

// CanvasTileKey is the key a canvas-backed tile layer stores its rendered tiles under
func (p TilePoint) CanvasTileKey() string {
	return fmt.Sprintf("%d:%d", p.X, p.Y)
}

type TileSource interface {
	TileURL(p TilePoint, zoom int) string
}

type TileSourceFunc func(p TilePoint, zoom int) string

func (f TileSourceFunc) TileURL(p TilePoint, zoom int) string {
	return f(p, zoom)
}

type TileLayerOptions struct {
	TileSize     int
	MinZoom      int
	MaxZoom      int
	ErrorTileURL string
}

type TileLayer struct {
	Options TileLayerOptions
	// NoRenderableTiles is set on tile layers that are attached to the map but have no tiles configured yet
	NoRenderableTiles bool
	Source            TileSource
	// AdjustTilePoint optionally remaps a tile coordinate in place (wrap-around, TMS row flipping)
	AdjustTilePoint func(p *TilePoint)
	// CanvasTiles is non-nil for canvas-backed tile layers. The tiles are already rendered, keyed by CanvasTileKey.
	CanvasTiles map[string]image.Image
}

func (l *TileLayer) Kind() LayerKind {
	return LayerKindTile
}

func (l *TileLayer) IsCanvasBacked() bool {
	return l.CanvasTiles != nil
}

// DynamicImageLayer is a layer rendered server-side as a single image covering the whole viewport
type DynamicImageLayer struct {
	CurrentImageURL string
}

func (l *DynamicImageLayer) Kind() LayerKind {
	return LayerKindDynamicImage
}

type HeatLayer struct {
	Canvas OverlaySurface
}

func (l *HeatLayer) Kind() LayerKind {
	return LayerKindHeat
}

type IconOptions struct {
	// IconSize is nil when the icon declares no size
	IconSize *Point
	// IconAnchor is nil when the anchor should default to the middle of the icon
	IconAnchor *Point
}

type Icon struct {
	Src     string
	Options IconOptions
}

type MarkerLayer struct {
	LatLng orb.Point
	// Icon is nil for markers that are not drawn with an icon image
	Icon *Icon
}

func (l *MarkerLayer) Kind() LayerKind {
	return LayerKindMarker
}

// UnknownLayer is any layer the export doesn't know how to draw
type UnknownLayer struct {
	Name string
}

func (l *UnknownLayer) Kind() LayerKind {
	return LayerKindUnknown
}

// PositionedImage is an OverlaySurface backed by an image that is always readable
type PositionedImage struct {
	Image    image.Image
	Location Point
}

func (p *PositionedImage) Position() Point {
	return p.Location
}

func (p *PositionedImage) Snapshot() (image.Image, error) {
	return p.Image, nil
}
