package maprasterer

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/ownmap-image/cachebust"
	"github.com/jamesrr39/ownmap-image/mapview"
	"github.com/paulmach/orb"
)

const testCacheToken = "42"

var (
	red         = color.RGBA{R: 255, A: 255}
	green       = color.RGBA{G: 255, A: 255}
	blue        = color.RGBA{B: 255, A: 255}
	yellow      = color.RGBA{R: 255, G: 255, A: 255}
	transparent = color.RGBA{}
)

func solidImage(width, height int, c color.Color) *image.RGBA {
	return NewImageWithBackground(image.Rect(0, 0, width, height), c)
}

type fakeView struct {
	size        image.Point
	pixelBounds mapview.Bounds
	pixelOrigin mapview.Point
	zoom        int
	layers      []mapview.Layer
	pathRoot    mapview.OverlaySurface
	overlayPane mapview.OverlaySurface
	// projectFunc replaces the Web Mercator projection, if set
	projectFunc func(ll orb.Point) mapview.Point
}

// newFakeView creates a view at zoom 10 with the viewport's top left corner at the pixel origin
func newFakeView(width, height int, layers ...mapview.Layer) *fakeView {
	return &fakeView{
		size:        image.Pt(width, height),
		pixelBounds: mapview.Bounds{Min: mapview.Pt(0, 0), Max: mapview.Pt(float64(width), float64(height))},
		zoom:        10,
		layers:      layers,
	}
}

func (v *fakeView) Size() image.Point { return v.size }
func (v *fakeView) PixelBounds() mapview.Bounds { return v.pixelBounds }
func (v *fakeView) PixelOrigin() mapview.Point { return v.pixelOrigin }
func (v *fakeView) Zoom() int { return v.zoom }
func (v *fakeView) Layers() []mapview.Layer { return v.layers }
func (v *fakeView) PathRoot() mapview.OverlaySurface { return v.pathRoot }
func (v *fakeView) OverlayPaneSurface() mapview.OverlaySurface { return v.overlayPane }

func (v *fakeView) Project(ll orb.Point) mapview.Point {
	if v.projectFunc != nil {
		return v.projectFunc(ll)
	}
	return mapview.Project(ll, v.zoom)
}

// fakeFetcher serves images by URL prefix, and records every URL requested
type fakeFetcher struct {
	images    map[string]image.Image
	mu        sync.Mutex
	requested []string
	// onFetch is called for every fetch, if set
	onFetch func(url string)
}

func newFakeFetcher(images map[string]image.Image) *fakeFetcher {
	return &fakeFetcher{images: images}
}

func (f *fakeFetcher) FetchImage(ctx context.Context, url string) (image.Image, errorsx.Error) {
	f.mu.Lock()
	f.requested = append(f.requested, url)
	f.mu.Unlock()

	if f.onFetch != nil {
		f.onFetch(url)
	}

	for prefix, img := range f.images {
		if strings.HasPrefix(url, prefix) {
			return img, nil
		}
	}

	return nil, errorsx.Errorf("404 not found: %q", url)
}

func (f *fakeFetcher) requestCount(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := 0
	for _, url := range f.requested {
		if strings.HasPrefix(url, prefix) {
			count++
		}
	}
	return count
}

func newTestLogger() *logpkg.Logger {
	return logpkg.NewLogger(os.Stderr, logpkg.LogLevelWarn)
}

func newTestExporter(fetcher *fakeFetcher) *Exporter {
	return NewExporter(newTestLogger(), fetcher, cachebust.FixedToken(testCacheToken), Options{})
}

func newTestEnv(view mapview.MapView, fetcher *fakeFetcher) *rasterEnv {
	return &rasterEnv{
		view:        view,
		size:        view.Size(),
		fallback:    newFallbackSurface(),
		fetcher:     fetcher,
		cacheBuster: cachebust.NewCacheBuster(testCacheToken),
		logger:      newTestLogger(),
	}
}

// tileURLs builds tile URLs such as "https://host/10/1/2.png"
func tileURLs(host string) mapview.TileSource {
	return mapview.TileSourceFunc(func(p mapview.TilePoint, zoom int) string {
		return fmt.Sprintf("https://%s/%d/%d/%d.png", host, zoom, p.X, p.Y)
	})
}

func newTileLayer(host string, tileSize int) *mapview.TileLayer {
	return &mapview.TileLayer{
		Options: mapview.TileLayerOptions{
			TileSize: tileSize,
			MinZoom:  0,
			MaxZoom:  18,
		},
		Source: tileURLs(host),
	}
}

func assertColorAt(t *testing.T, img image.Image, x, y int, want color.Color) {
	t.Helper()

	r, g, b, a := img.At(x, y).RGBA()
	wr, wg, wb, wa := want.RGBA()
	if r != wr || g != wg || b != wb || a != wa {
		t.Errorf("color at (%d, %d): expected %v but got %v", x, y, want, img.At(x, y))
	}
}
