package maprasterer

import (
	"context"
	"image"
	"math"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/ownmap-image/mapview"
	"golang.org/x/sync/errgroup"
)

// TileDescriptor is one tile to draw: the (possibly adjusted) tile coordinate to load, and where to draw it on the
// layer surface.
type TileDescriptor struct {
	Point    mapview.TilePoint
	Position mapview.Point
}

// tileReader gets the contents of one tile. It never fails; unavailable tiles are substituted with env.fallback.
type tileReader interface {
	readTile(ctx context.Context, env *rasterEnv, p mapview.TilePoint, zoom int) image.Image
}

type tileRasterer struct {
	layer  *mapview.TileLayer
	reader tileReader
}

func (tr *tileRasterer) Rasterize(ctx context.Context, env *rasterEnv) (*RasterResult, errorsx.Error) {
	layer := tr.layer
	zoom := env.view.Zoom()

	if zoom > layer.Options.MaxZoom || zoom < layer.Options.MinZoom || layer.NoRenderableTiles {
		return nil, nil
	}

	tileSize := layer.Options.TileSize
	if tileSize <= 0 {
		tileSize = mapview.DefaultTileSize
	}

	descriptors := TileDescriptors(env.view.PixelBounds(), tileSize, layer.AdjustTilePoint)

	tileImages := make([]image.Image, len(descriptors))

	var group errgroup.Group
	if env.options.MaxConcurrentTileFetches > 0 {
		group.SetLimit(env.options.MaxConcurrentTileFetches)
	}
	for idx, descriptor := range descriptors {
		idx, descriptor := idx, descriptor
		group.Go(func() error {
			tileImages[idx] = tr.reader.readTile(ctx, env, descriptor.Point, zoom)
			return nil
		})
	}
	// readers substitute failed tiles instead of returning errors
	_ = group.Wait()

	surface := newSurface(env.size)
	for idx, descriptor := range descriptors {
		x := int(math.Floor(descriptor.Position.X))
		y := int(math.Floor(descriptor.Position.Y))
		paintImage(surface, tileImages[idx], image.Rect(x, y, x+tileSize, y+tileSize))
	}

	env.logger.Debug("drew %d tiles at zoom %d", len(descriptors), zoom)

	return &RasterResult{surface}, nil
}

// TileDescriptors lists the tiles covering pixelBounds, row by row (top to bottom, then left to right).
// Tiles whose adjusted row is above the top of the grid are left out.
func TileDescriptors(pixelBounds mapview.Bounds, tileSize int, adjustTilePoint func(p *mapview.TilePoint)) []TileDescriptor {
	size := float64(tileSize)
	tileBoundsMin := pixelBounds.Min.DivideBy(size).Floor()
	tileBoundsMax := pixelBounds.Max.DivideBy(size).Floor()

	var descriptors []TileDescriptor
	for y := int(tileBoundsMin.Y); y <= int(tileBoundsMax.Y); y++ {
		for x := int(tileBoundsMin.X); x <= int(tileBoundsMax.X); x++ {
			original := mapview.TilePoint{X: x, Y: y}
			adjusted := original
			if adjustTilePoint != nil {
				adjustTilePoint(&adjusted)
			}

			if adjusted.Y < 0 {
				continue
			}

			position := mapview.Pt(float64(original.X), float64(original.Y)).MultiplyBy(size).Subtract(pixelBounds.Min)

			descriptors = append(descriptors, TileDescriptor{
				Point:    adjusted,
				Position: position,
			})
		}
	}

	return descriptors
}

// networkTileReader fetches tiles from the layer's tile URLs
type networkTileReader struct {
	layer *mapview.TileLayer
}

func (r *networkTileReader) readTile(ctx context.Context, env *rasterEnv, p mapview.TilePoint, zoom int) image.Image {
	url := env.cacheBuster.AddCacheString(r.layer.Source.TileURL(p, zoom))

	img, err := env.fetcher.FetchImage(ctx, url)
	if err == nil {
		return img
	}

	errorTileURL := r.layer.Options.ErrorTileURL
	if errorTileURL != "" {
		env.logger.Debug("failed to load tile %v from %q, trying error tile %q. Error: %q", p, url, errorTileURL, err.Error())

		img, err = env.fetcher.FetchImage(ctx, errorTileURL)
		if err == nil {
			return img
		}
	}

	env.logger.Debug("tile %v unavailable, leaving it transparent. Error: %q", p, err.Error())
	return env.fallback
}

// canvasTileReader reads tiles that the layer has already drawn itself
type canvasTileReader struct {
	layer *mapview.TileLayer
}

func (r *canvasTileReader) readTile(ctx context.Context, env *rasterEnv, p mapview.TilePoint, zoom int) image.Image {
	img, ok := r.layer.CanvasTiles[p.CanvasTileKey()]
	if !ok || img == nil {
		env.logger.Debug("canvas tile %q not rendered, leaving it transparent", p.CanvasTileKey())
		return env.fallback
	}

	return img
}
