package maprasterer

import (
	"context"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/ownmap-image/mapview"
)

type exportPhase int

const (
	// phaseBaseLayers draws tile layers, heat layers and dynamic image layers
	phaseBaseLayers exportPhase = iota
	// phaseMarkers draws markers, on top of everything else
	phaseMarkers
)

// layerRasterer draws one layer onto a new surface. A nil result means the layer contributes nothing.
type layerRasterer interface {
	Rasterize(ctx context.Context, env *rasterEnv) (*RasterResult, errorsx.Error)
}

// classify picks the rasterizer for a layer in the given phase, or nil if the layer isn't drawn in that phase.
func classify(layer mapview.Layer, phase exportPhase) layerRasterer {
	switch phase {
	case phaseBaseLayers:
		switch l := layer.(type) {
		case *mapview.TileLayer:
			if l.IsCanvasBacked() {
				return &tileRasterer{l, &canvasTileReader{l}}
			}
			if l.Source == nil {
				return nil
			}
			return &tileRasterer{l, &networkTileReader{l}}
		case *mapview.HeatLayer:
			if l.Canvas == nil {
				return nil
			}
			return &overlayRasterer{l.Canvas}
		case *mapview.DynamicImageLayer:
			return &dynamicImageRasterer{l}
		}
	case phaseMarkers:
		marker, ok := layer.(*mapview.MarkerLayer)
		if ok && marker.Icon != nil {
			return &markerRasterer{marker}
		}
	}

	return nil
}
