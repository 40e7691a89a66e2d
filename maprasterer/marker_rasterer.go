package maprasterer

import (
	"context"
	"image"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/ownmap-image/imagefetch"
	"github.com/jamesrr39/ownmap-image/mapview"
)

type markerRasterer struct {
	marker *mapview.MarkerLayer
}

func (mr *markerRasterer) Rasterize(ctx context.Context, env *rasterEnv) (*RasterResult, errorsx.Error) {
	icon := mr.marker.Icon

	pos := env.view.Project(mr.marker.LatLng).Subtract(env.view.PixelBounds().Min)

	img, err := loadIcon(ctx, env, icon.Src)
	if err != nil {
		return nil, newLayerError(ErrorKindMarkerIconLoad, err)
	}

	var size mapview.Point
	if icon.Options.IconSize != nil {
		size = *icon.Options.IconSize
	} else {
		naturalSize := img.Bounds().Size()
		size = mapview.Pt(float64(naturalSize.X), float64(naturalSize.Y))
	}

	topLeft := MarkerIconPosition(pos, size, icon.Options.IconAnchor)
	surface := newSurface(env.size)
	paintImage(surface, img, markerIconRect(topLeft, size))

	return &RasterResult{surface}, nil
}

// loadIcon decodes data URL icons in place, without going through the fetcher. Other icons are fetched.
func loadIcon(ctx context.Context, env *rasterEnv, src string) (image.Image, errorsx.Error) {
	if imagefetch.IsDataURL(src) {
		return imagefetch.DecodeDataURL(src)
	}

	return env.fetcher.FetchImage(ctx, env.cacheBuster.AddCacheString(src))
}

// markerIconRect is the rectangle an icon of size is drawn into, with its top left corner at topLeft.
// The size is rounded the same way as the position.
func markerIconRect(topLeft, size mapview.Point) image.Rectangle {
	x, y := int(topLeft.X), int(topLeft.Y)
	roundedSize := size.Round()

	return image.Rect(x, y, x+int(roundedSize.X), y+int(roundedSize.Y))
}

// MarkerIconPosition gives the top left corner to draw a marker icon at, for a marker at pos (viewport-relative
// pixels). When anchor is nil the anchor is the middle of the icon.
//
// The x formula places the icon's right edge, not its left edge, relative to the anchor. This matches the icons
// drawn by the browser map, which are mirrored horizontally.
func MarkerIconPosition(pos, size mapview.Point, anchor *mapview.Point) mapview.Point {
	var iconAnchor mapview.Point
	if anchor != nil {
		iconAnchor = *anchor
	} else {
		iconAnchor = size.DivideBy(2).Round()
	}

	return mapview.Point{
		X: mapview.RoundHalfUp(pos.X - size.X + iconAnchor.X),
		Y: mapview.RoundHalfUp(pos.Y - iconAnchor.Y),
	}
}
