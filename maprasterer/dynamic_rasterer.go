package maprasterer

import (
	"context"
	"image"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/ownmap-image/mapview"
)

// dynamicImageRasterer draws a server-rendered image covering the whole viewport. There is no retry and no
// fallback: a failed fetch fails the export with ErrorKindDynamicImageFetch.
type dynamicImageRasterer struct {
	layer *mapview.DynamicImageLayer
}

func (dr *dynamicImageRasterer) Rasterize(ctx context.Context, env *rasterEnv) (*RasterResult, errorsx.Error) {
	url := env.cacheBuster.AddCacheString(dr.layer.CurrentImageURL)

	img, err := env.fetcher.FetchImage(ctx, url)
	if err != nil {
		return nil, newLayerError(ErrorKindDynamicImageFetch, err)
	}

	surface := newSurface(env.size)
	paintImage(surface, img, image.Rectangle{Max: img.Bounds().Size()})

	return &RasterResult{surface}, nil
}
