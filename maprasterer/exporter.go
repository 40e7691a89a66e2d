package maprasterer

import (
	"context"
	"image"
	"image/draw"
	"time"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/ownmap-image/cachebust"
	"github.com/jamesrr39/ownmap-image/imagefetch"
	"github.com/jamesrr39/ownmap-image/mapview"
)

// RasterResult is the surface one layer was drawn onto. It is composited onto the output surface exactly once.
type RasterResult struct {
	Surface *image.RGBA
}

type Options struct {
	// MaxConcurrentTileFetches caps the number of tiles of one tile layer fetched at once. 0 means no limit.
	MaxConcurrentTileFetches int
}

// Exporter flattens a map view into a single image
type Exporter struct {
	logger      *logpkg.Logger
	fetcher     imagefetch.Fetcher
	cacheTokens cachebust.TokenSource
	options     Options
}

// NewExporter creates an Exporter. Every export takes a new token from cacheTokens, so resources are fetched
// fresh for each export and not reused from an earlier one.
func NewExporter(logger *logpkg.Logger, fetcher imagefetch.Fetcher, cacheTokens cachebust.TokenSource, options Options) *Exporter {
	return &Exporter{logger, fetcher, cacheTokens, options}
}

// rasterEnv is shared by all the rasterizers of one export
type rasterEnv struct {
	view        mapview.MapView
	size        image.Point
	fallback    image.Image
	fetcher     imagefetch.Fetcher
	cacheBuster *cachebust.CacheBuster
	logger      *logpkg.Logger
	options     Options
}

// Export draws every layer of the view onto its own surface, and then composites the surfaces in DOM stacking order:
// tile, heat and dynamic image layers first, then the overlay root, then markers.
// There are no timeouts inside Export. Cancel ctx to abandon an export.
func (e *Exporter) Export(ctx context.Context, view mapview.MapView) (*image.RGBA, errorsx.Error) {
	startTime := time.Now()

	size := view.Size()
	output := newSurface(size)

	cacheBuster := cachebust.NewCacheBuster(e.cacheTokens.NextToken())

	env := &rasterEnv{
		view:        view,
		size:        size,
		fallback:    newFallbackSurface(),
		fetcher:     e.fetcher,
		cacheBuster: cacheBuster,
		logger:      e.logger,
		options:     e.options,
	}

	// snapshot, so that layers added during the export don't change the paint order
	layers := append([]mapview.Layer(nil), view.Layers()...)

	results, err := e.rasterizeAll(ctx, env, layers)
	if err != nil {
		return nil, err
	}

	span := startSpan(ctx, "composite")
	for _, result := range results {
		draw.Draw(output, output.Bounds(), result.Surface, image.Point{}, draw.Over)
	}
	span.End(ctx)

	e.logger.Info("exported %dx%d map image at zoom %d (cache token %s): %d layers, %d layer surfaces composited in %s",
		size.X, size.Y, view.Zoom(), cacheBuster.Token(), len(layers), len(results), time.Since(startTime))

	return output, nil
}

// rasterizeAll draws every layer onto its own surface and returns the surfaces in paint order
func (e *Exporter) rasterizeAll(ctx context.Context, env *rasterEnv, layers []mapview.Layer) ([]*RasterResult, errorsx.Error) {
	var results []*RasterResult

	span := startSpan(ctx, "rasterize base layers")
	baseResults, err := e.rasterizeLayers(ctx, env, layers, phaseBaseLayers)
	span.End(ctx)
	if err != nil {
		return nil, err
	}
	results = append(results, baseResults...)

	span = startSpan(ctx, "rasterize overlay root")
	overlayResult, err := e.rasterizeOverlayRoot(ctx, env)
	span.End(ctx)
	if err != nil {
		return nil, err
	}
	if overlayResult != nil {
		results = append(results, overlayResult)
	}

	span = startSpan(ctx, "rasterize markers")
	markerResults, err := e.rasterizeLayers(ctx, env, layers, phaseMarkers)
	span.End(ctx)
	if err != nil {
		return nil, err
	}
	results = append(results, markerResults...)

	return results, nil
}

func (e *Exporter) rasterizeLayers(ctx context.Context, env *rasterEnv, layers []mapview.Layer, phase exportPhase) ([]*RasterResult, errorsx.Error) {
	var results []*RasterResult
	for idx, layer := range layers {
		if ctx.Err() != nil {
			return nil, errorsx.Wrap(&LayerError{
				Kind:       ErrorKindCancelled,
				LayerIndex: idx,
				LayerKind:  layer.Kind(),
				Err:        ctx.Err(),
			})
		}

		rasterer := classify(layer, phase)
		if rasterer == nil {
			if phase == phaseMarkers && classify(layer, phaseBaseLayers) == nil {
				env.logger.Debug("skipping layer %d (%s): nothing to draw", idx, layer.Kind())
			}
			continue
		}

		result, err := rasterer.Rasterize(ctx, env)
		if err != nil {
			layerErr, ok := AsLayerError(err)
			if ok {
				layerErr.LayerIndex = idx
				layerErr.LayerKind = layer.Kind()
			}
			return nil, errorsx.Wrap(err, "layerIndex", idx)
		}

		if result != nil {
			results = append(results, result)
		}
	}

	return results, nil
}

// rasterizeOverlayRoot draws the single pre-rendered vector overlay. The legacy path root is preferred over the
// first canvas of the overlay pane.
func (e *Exporter) rasterizeOverlayRoot(ctx context.Context, env *rasterEnv) (*RasterResult, errorsx.Error) {
	if ctx.Err() != nil {
		return nil, errorsx.Wrap(&LayerError{
			Kind:       ErrorKindCancelled,
			LayerIndex: overlayRootLayerIndex,
			Err:        ctx.Err(),
		})
	}

	root := env.view.PathRoot()
	if root == nil {
		root = env.view.OverlayPaneSurface()
	}
	if root == nil {
		return nil, nil
	}

	return (&overlayRasterer{root}).Rasterize(ctx, env)
}
