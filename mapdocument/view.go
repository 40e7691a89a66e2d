package mapdocument

import (
	"image"
	"net/url"
	"strconv"
	"strings"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/ownmap-image/mapview"
	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
)

// View is a map view built from a Document. The map pane is never panned, so the top left of the viewport is the
// pixel origin.
type View struct {
	size        image.Point
	zoom        int
	center      orb.Point
	pixelOrigin mapview.Point
	layers      []mapview.Layer
	pathRoot    mapview.OverlaySurface
	overlayPane mapview.OverlaySurface
}

// NewView works out the view of the document (center, zoom, pixel origin), and adapts every layer of the
// document for the exporter. Images the map has already drawn itself are loaded here.
func NewView(logger *logpkg.Logger, doc *Document) (*View, errorsx.Error) {
	err := doc.Validate()
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	size := image.Pt(doc.Width, doc.Height)

	center, zoom, err := viewCenterAndZoom(doc, size)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	halfSize := mapview.Pt(float64(size.X), float64(size.Y)).DivideBy(2)

	view := &View{
		size:        size,
		zoom:        zoom,
		center:      center,
		pixelOrigin: mapview.Project(center, zoom).Subtract(halfSize).Round(),
	}

	for idx, layerDoc := range doc.Layers {
		layer, err := doc.buildLayer(view, layerDoc)
		if err != nil {
			return nil, errorsx.Wrap(err, "layerIndex", idx, "layerType", layerDoc.Type)
		}
		view.layers = append(view.layers, layer)
	}

	if doc.Overlay != nil {
		overlay, err := doc.buildOverlay(logger, view)
		if err != nil {
			return nil, errorsx.Wrap(err)
		}

		if overlay != nil {
			if doc.LegacyPathRoot {
				view.pathRoot = overlay
			} else {
				view.overlayPane = overlay
			}
		}
	}

	logger.Debug("built map view: %dx%d at zoom %d, centered on %v, %d layers", size.X, size.Y, zoom, center, len(view.layers))

	return view, nil
}

func viewCenterAndZoom(doc *Document, size image.Point) (orb.Point, int, errorsx.Error) {
	if doc.Bounds == "" {
		return doc.Center.Point(), *doc.Zoom, nil
	}

	bounds, err := ParseBounds(doc.Bounds)
	if err != nil {
		return orb.Point{}, 0, errorsx.Wrap(err)
	}

	var zoom int
	if doc.Zoom != nil {
		zoom = *doc.Zoom
	} else {
		zoom = boundsZoom(bounds, size)
	}

	if doc.Center != nil {
		return doc.Center.Point(), zoom, nil
	}

	nw, se := projectBounds(bounds, zoom)
	center := mapview.Unproject(nw.Add(se).DivideBy(2), zoom)

	return center, zoom, nil
}

// boundsZoom is the highest zoom level at which the whole of bounds fits in the viewport
func boundsZoom(bounds osm.Bounds, size image.Point) int {
	for zoom := DefaultMaxZoom; zoom > 0; zoom-- {
		nw, se := projectBounds(bounds, zoom)
		boundsSize := se.Subtract(nw)
		if boundsSize.X <= float64(size.X) && boundsSize.Y <= float64(size.Y) {
			return zoom
		}
	}

	return 0
}

func projectBounds(bounds osm.Bounds, zoom int) (mapview.Point, mapview.Point) {
	nw := mapview.Project(orb.Point{bounds.MinLon, bounds.MaxLat}, zoom)
	se := mapview.Project(orb.Point{bounds.MaxLon, bounds.MinLat}, zoom)
	return nw, se
}

func (v *View) Size() image.Point {
	return v.size
}

func (v *View) PixelBounds() mapview.Bounds {
	return mapview.Bounds{
		Min: v.pixelOrigin,
		Max: v.pixelOrigin.Add(mapview.Pt(float64(v.size.X), float64(v.size.Y))),
	}
}

func (v *View) PixelOrigin() mapview.Point {
	return v.pixelOrigin
}

func (v *View) Zoom() int {
	return v.zoom
}

func (v *View) Center() orb.Point {
	return v.center
}

func (v *View) Project(ll orb.Point) mapview.Point {
	return mapview.Project(ll, v.zoom)
}

func (v *View) Layers() []mapview.Layer {
	return v.layers
}

func (v *View) PathRoot() mapview.OverlaySurface {
	return v.pathRoot
}

func (v *View) OverlayPaneSurface() mapview.OverlaySurface {
	return v.overlayPane
}

// GeoBounds is the geographic area the viewport covers
func (v *View) GeoBounds() osm.Bounds {
	pixelBounds := v.PixelBounds()
	nw := mapview.Unproject(pixelBounds.Min, v.zoom)
	se := mapview.Unproject(pixelBounds.Max, v.zoom)

	return osm.Bounds{
		MinLat: se.Lat(),
		MaxLat: nw.Lat(),
		MinLon: nw.Lon(),
		MaxLon: se.Lon(),
	}
}

func (d *Document) buildLayer(view *View, layerDoc *LayerDocument) (mapview.Layer, errorsx.Error) {
	switch layerDoc.Type {
	case LayerTypeTile:
		return d.buildTileLayer(view, layerDoc)
	case LayerTypeDynamic:
		imageURL := layerDoc.ImageURL
		if imageURL == "" {
			imageURL = esriExportURL(layerDoc.URL, view.GeoBounds(), view.Size(), layerDoc.Format)
		}
		return &mapview.DynamicImageLayer{CurrentImageURL: imageURL}, nil
	case LayerTypeHeat:
		if layerDoc.Image == "" {
			return &mapview.HeatLayer{}, nil
		}
		img, err := d.openLocalImage(layerDoc.Image)
		if err != nil {
			return nil, errorsx.Wrap(err)
		}
		return &mapview.HeatLayer{Canvas: &mapview.PositionedImage{Image: img, Location: layerDoc.Position}}, nil
	case LayerTypeMarker:
		marker := &mapview.MarkerLayer{LatLng: layerDoc.Location.Point()}
		if layerDoc.Icon != nil && layerDoc.Icon.URL != "" {
			marker.Icon = &mapview.Icon{
				Src: layerDoc.Icon.URL,
				Options: mapview.IconOptions{
					IconSize:   layerDoc.Icon.IconSize,
					IconAnchor: layerDoc.Icon.IconAnchor,
				},
			}
		}
		return marker, nil
	default:
		return &mapview.UnknownLayer{Name: layerDoc.Type}, nil
	}
}

func (d *Document) buildTileLayer(view *View, layerDoc *LayerDocument) (*mapview.TileLayer, errorsx.Error) {
	maxZoom := DefaultMaxZoom
	if layerDoc.MaxZoom != nil {
		maxZoom = *layerDoc.MaxZoom
	}

	layer := &mapview.TileLayer{
		Options: mapview.TileLayerOptions{
			TileSize:     layerDoc.TileSize,
			MinZoom:      layerDoc.MinZoom,
			MaxZoom:      maxZoom,
			ErrorTileURL: layerDoc.ErrorTileURL,
		},
		AdjustTilePoint: newAdjustTilePoint(view.Zoom(), layerDoc.NoWrap, layerDoc.TMS),
	}

	if layerDoc.CanvasTiles != nil {
		layer.CanvasTiles = make(map[string]image.Image)
		for key, ref := range layerDoc.CanvasTiles {
			img, err := d.openLocalImage(ref)
			if err != nil {
				return nil, errorsx.Wrap(err, "canvasTile", key)
			}
			layer.CanvasTiles[key] = img
		}
		return layer, nil
	}

	if layerDoc.URL == "" {
		layer.NoRenderableTiles = true
		return layer, nil
	}

	subdomains := layerDoc.Subdomains
	if subdomains == nil {
		subdomains = defaultSubdomains
	}

	layer.Source = &urlTemplateTileSource{layerDoc.URL, subdomains}

	return layer, nil
}

// esriExportURL is the export URL of an ArcGIS dynamic map service, for an image covering bounds
func esriExportURL(serviceURL string, bounds osm.Bounds, size image.Point, format string) string {
	if format == "" {
		format = "png24"
	}

	params := url.Values{}
	params.Set("bbox", strings.Join([]string{
		formatCoordinate(bounds.MinLon),
		formatCoordinate(bounds.MinLat),
		formatCoordinate(bounds.MaxLon),
		formatCoordinate(bounds.MaxLat),
	}, ","))
	params.Set("size", strconv.Itoa(size.X)+","+strconv.Itoa(size.Y))
	params.Set("dpi", "96")
	params.Set("format", format)
	params.Set("transparent", "true")
	params.Set("bboxSR", "4326")
	params.Set("imageSR", "3857")
	params.Set("f", "image")

	return strings.TrimSuffix(serviceURL, "/") + "/export?" + params.Encode()
}

func formatCoordinate(f float64) string {
	return strconv.FormatFloat(f, 'f', 6, 64)
}
