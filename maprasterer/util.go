package maprasterer

import (
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

func NewImageWithBackground(r image.Rectangle, c color.Color) *image.RGBA {
	img := image.NewRGBA(r)

	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)

	return img
}

// newSurface creates a fully transparent surface of the given size
func newSurface(size image.Point) *image.RGBA {
	return image.NewRGBA(image.Rectangle{Max: size})
}

// newFallbackSurface creates the 1x1 transparent image that stands in for tiles that couldn't be loaded
func newFallbackSurface() image.Image {
	return NewImageWithBackground(image.Rect(0, 0, 1, 1), color.Transparent)
}

// paintImage draws src over dst, stretched to fill dstRect
func paintImage(dst draw.Image, src image.Image, dstRect image.Rectangle) {
	srcBounds := src.Bounds()
	if srcBounds.Size() == dstRect.Size() {
		draw.Draw(dst, dstRect, src, srcBounds.Min, draw.Over)
		return
	}

	xdraw.ApproxBiLinear.Scale(dst, dstRect, src, srcBounds, draw.Over, nil)
}
