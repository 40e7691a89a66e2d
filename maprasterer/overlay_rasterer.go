package maprasterer

import (
	"context"
	"image"
	"math"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/ownmap-image/mapview"
)

// overlayRasterer copies an already-rendered surface (the vector overlay root, or a heatmap canvas) onto a
// new output-sized surface. A surface that can't be copied is logged and left out of the export.
type overlayRasterer struct {
	surface mapview.OverlaySurface
}

func (or *overlayRasterer) Rasterize(ctx context.Context, env *rasterEnv) (*RasterResult, errorsx.Error) {
	pixelBounds := env.view.PixelBounds()
	pos := or.surface.Position().Subtract(pixelBounds.Min).Add(env.view.PixelOrigin())

	dstRect, ok := overlayDestination(pos, env.size)
	if !ok {
		env.logger.Warn("overlay surface at %v could not be drawn: destination %v is empty", pos, dstRect)
		return nil, nil
	}

	src, err := or.surface.Snapshot()
	if err != nil {
		env.logger.Warn("overlay surface could not be drawn. Error: %q", err.Error())
		return nil, nil
	}
	if src == nil {
		env.logger.Warn("overlay surface could not be drawn: no contents")
		return nil, nil
	}

	surface := newSurface(env.size)
	paintImage(surface, src, dstRect)

	return &RasterResult{surface}, nil
}

// overlayDestination returns the rectangle an overlay surface at pos is stretched into.
// The size is clipped symmetrically (output size minus twice the offset), so that a surface with a large offset
// never paints outside the output.
func overlayDestination(pos mapview.Point, outputSize image.Point) (image.Rectangle, bool) {
	x := int(math.Floor(pos.X))
	y := int(math.Floor(pos.Y))

	width := outputSize.X - 2*x
	height := outputSize.Y - 2*y

	dstRect := image.Rect(x, y, x+width, y+height)
	if width <= 0 || height <= 0 {
		return dstRect, false
	}

	return dstRect, true
}
