package mapdocument

import (
	"encoding/json"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/ownmap-image/mapview"
	"github.com/llgcode/draw2d"
	"github.com/llgcode/draw2d/draw2dimg"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// overlayPanePadding is how far the overlay canvas reaches past each edge of the viewport, as a share of the viewport size
const overlayPanePadding = 0.1

// OverlayDocument is the vector overlay of the map, given either as GeoJSON paths the map draws onto its overlay
// canvas, or as an image of the canvas the map has already drawn.
type OverlayDocument struct {
	GeoJSON     json.RawMessage `json:"geojson"`
	GeoJSONFile string          `json:"geojsonFile"`
	Style       PathStyle       `json:"style"`

	Image    string        `json:"image"`
	Position mapview.Point `json:"position"`
}

// PathStyle is the default style of the overlay paths. Features can override any of it in their properties.
type PathStyle struct {
	Color       string   `json:"color"`
	Weight      *float64 `json:"weight"`
	Opacity     *float64 `json:"opacity"`
	FillColor   string   `json:"fillColor"`
	FillOpacity *float64 `json:"fillOpacity"`
}

var defaultPathStyle = resolvedPathStyle{
	Color:       "#3388ff",
	Weight:      3,
	Opacity:     1,
	FillOpacity: 0.2,
}

type resolvedPathStyle struct {
	Color       string
	Weight      float64
	Opacity     float64
	FillColor   string
	FillOpacity float64
}

func (s PathStyle) resolve() resolvedPathStyle {
	resolved := defaultPathStyle
	if s.Color != "" {
		resolved.Color = s.Color
	}
	if s.Weight != nil {
		resolved.Weight = *s.Weight
	}
	if s.Opacity != nil {
		resolved.Opacity = *s.Opacity
	}
	if s.FillColor != "" {
		resolved.FillColor = s.FillColor
	}
	if s.FillOpacity != nil {
		resolved.FillOpacity = *s.FillOpacity
	}
	return resolved
}

var stylePropertyKeys = []string{"color", "weight", "opacity", "fillColor", "fillOpacity"}

// styleProperties picks the style keys out of feature properties, matching keys regardless of case.
// Documents loaded from a file have their keys lower-cased, so "fillColor" may arrive as "fillcolor".
// An exact match wins over a match that only differs in case.
func styleProperties(properties geojson.Properties) geojson.Properties {
	styleProps := make(geojson.Properties)
	for key, value := range properties {
		for _, styleKey := range stylePropertyKeys {
			if key == styleKey {
				styleProps[styleKey] = value
				continue
			}

			_, alreadySet := styleProps[styleKey]
			if !alreadySet && strings.EqualFold(key, styleKey) {
				styleProps[styleKey] = value
			}
		}
	}
	return styleProps
}

func (s resolvedPathStyle) withProperties(featureProperties geojson.Properties) resolvedPathStyle {
	properties := styleProperties(featureProperties)
	s.Color = properties.MustString("color", s.Color)
	s.Weight = properties.MustFloat64("weight", s.Weight)
	s.Opacity = properties.MustFloat64("opacity", s.Opacity)
	s.FillColor = properties.MustString("fillColor", s.FillColor)
	s.FillOpacity = properties.MustFloat64("fillOpacity", s.FillOpacity)
	return s
}

// overlayCanvasBounds gives the position (relative to the map pane) and size of the overlay canvas
func overlayCanvasBounds(size image.Point) (mapview.Point, image.Point) {
	sizePt := mapview.Pt(float64(size.X), float64(size.Y))
	min := sizePt.MultiplyBy(-overlayPanePadding).Round()
	max := min.Add(sizePt.MultiplyBy(1 + 2*overlayPanePadding)).Round()

	return min, image.Pt(int(max.X-min.X), int(max.Y-min.Y))
}

func (d *Document) buildOverlay(logger *logpkg.Logger, view *View) (mapview.OverlaySurface, errorsx.Error) {
	overlay := d.Overlay

	if overlay.Image != "" {
		img, err := d.openLocalImage(overlay.Image)
		if err != nil {
			return nil, errorsx.Wrap(err)
		}
		return &mapview.PositionedImage{Image: img, Location: overlay.Position}, nil
	}

	geojsonData := []byte(overlay.GeoJSON)
	if overlay.GeoJSONFile != "" {
		var err errorsx.Error
		geojsonData, err = d.readLocalFile(overlay.GeoJSONFile)
		if err != nil {
			return nil, err
		}
	}

	if len(geojsonData) == 0 || string(geojsonData) == "null" {
		return nil, nil
	}

	features, err := parseFeatures(geojsonData)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	return renderOverlayCanvas(logger, view, features, overlay.Style.resolve())
}

func parseFeatures(data []byte) ([]*geojson.Feature, errorsx.Error) {
	var typed struct {
		Type string `json:"type"`
	}
	err := json.Unmarshal(data, &typed)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	switch typed.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, errorsx.Wrap(err)
		}
		return fc.Features, nil
	case "Feature":
		feature, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, errorsx.Wrap(err)
		}
		return []*geojson.Feature{feature}, nil
	default:
		return nil, errorsx.Errorf("expected a GeoJSON FeatureCollection or Feature, but got %q", typed.Type)
	}
}

// renderOverlayCanvas draws the paths onto a canvas that covers the viewport plus padding on each side
func renderOverlayCanvas(logger *logpkg.Logger, view *View, features []*geojson.Feature, style resolvedPathStyle) (mapview.OverlaySurface, errorsx.Error) {
	canvasMin, canvasSize := overlayCanvasBounds(view.Size())
	canvas := image.NewRGBA(image.Rectangle{Max: canvasSize})

	toCanvas := func(p orb.Point) (float64, float64) {
		layerPoint := view.Project(p).Round().Subtract(view.PixelOrigin()).Subtract(canvasMin)
		return layerPoint.X, layerPoint.Y
	}

	gc := draw2dimg.NewGraphicContext(canvas)
	gc.SetLineCap(draw2d.RoundCap)
	gc.SetLineJoin(draw2d.RoundJoin)

	for idx, feature := range features {
		if feature == nil || feature.Geometry == nil {
			continue
		}

		featureStyle := style.withProperties(feature.Properties)
		err := drawGeometry(gc, feature.Geometry, featureStyle, toCanvas)
		if err != nil {
			return nil, errorsx.Wrap(err, "featureIndex", idx)
		}
	}

	logger.Debug("drew %d overlay features onto a %v canvas at %v", len(features), canvasSize, canvasMin)

	return &mapview.PositionedImage{Image: canvas, Location: canvasMin}, nil
}

func drawGeometry(gc *draw2dimg.GraphicContext, geometry orb.Geometry, style resolvedPathStyle, toCanvas func(p orb.Point) (float64, float64)) errorsx.Error {
	switch g := geometry.(type) {
	case orb.LineString:
		return drawPath(gc, []orb.LineString{g}, false, style, toCanvas)
	case orb.MultiLineString:
		return drawPath(gc, g, false, style, toCanvas)
	case orb.Ring:
		return drawPath(gc, []orb.LineString{orb.LineString(g)}, true, style, toCanvas)
	case orb.Polygon:
		return drawPath(gc, polygonRings(g), true, style, toCanvas)
	case orb.MultiPolygon:
		var rings []orb.LineString
		for _, polygon := range g {
			rings = append(rings, polygonRings(polygon)...)
		}
		return drawPath(gc, rings, true, style, toCanvas)
	case orb.Collection:
		for _, child := range g {
			err := drawGeometry(gc, child, style, toCanvas)
			if err != nil {
				return err
			}
		}
		return nil
	default:
		// points are markers, not paths
		return nil
	}
}

func polygonRings(polygon orb.Polygon) []orb.LineString {
	var rings []orb.LineString
	for _, ring := range polygon {
		rings = append(rings, orb.LineString(ring))
	}
	return rings
}

func drawPath(gc *draw2dimg.GraphicContext, lines []orb.LineString, closed bool, style resolvedPathStyle, toCanvas func(p orb.Point) (float64, float64)) errorsx.Error {
	strokeColor, err := parseColor(style.Color, style.Opacity)
	if err != nil {
		return errorsx.Wrap(err)
	}

	fillColorStr := style.FillColor
	if fillColorStr == "" {
		fillColorStr = style.Color
	}
	fillColor, err := parseColor(fillColorStr, style.FillOpacity)
	if err != nil {
		return errorsx.Wrap(err)
	}

	gc.BeginPath()
	for _, line := range lines {
		for i, point := range line {
			x, y := toCanvas(point)
			if i == 0 {
				gc.MoveTo(x, y)
			} else {
				gc.LineTo(x, y)
			}
		}
		if closed {
			gc.Close()
		}
	}

	shouldStroke := style.Weight > 0 && style.Opacity > 0
	shouldFill := closed && style.FillOpacity > 0

	gc.SetStrokeColor(strokeColor)
	gc.SetFillColor(fillColor)
	gc.SetLineWidth(style.Weight)

	switch {
	case shouldFill && shouldStroke:
		gc.FillStroke()
	case shouldFill:
		gc.Fill()
	case shouldStroke:
		gc.Stroke()
	}

	return nil
}

// parseColor parses "#rgb", "#rrggbb" and "#rrggbbaa" colors, and applies the opacity to the alpha channel
func parseColor(hex string, opacity float64) (color.NRGBA, errorsx.Error) {
	hex = strings.TrimPrefix(strings.TrimSpace(hex), "#")

	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return color.NRGBA{}, errorsx.Errorf("unsupported color %q", hex)
	}

	value, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, errorsx.Wrap(err, "color", hex)
	}

	opacity = math.Max(0, math.Min(1, opacity))
	alpha := float64(uint8(value)) * opacity

	return color.NRGBA{
		R: uint8(value >> 24),
		G: uint8(value >> 16),
		B: uint8(value >> 8),
		A: uint8(math.Floor(alpha + 0.5)),
	}, nil
}
