package maprasterer

import (
	"bytes"
	"context"
	"image"
	"testing"

	tracing "github.com/jamesrr39/go-tracing"
	"github.com/jamesrr39/ownmap-image/cachebust"
	"github.com/jamesrr39/ownmap-image/mapview"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func projectToCenter(ll orb.Point) mapview.Point {
	return mapview.Pt(2, 2)
}

func TestExporter_rasterizeAll_paintOrder(t *testing.T) {
	fetcher := newFakeFetcher(map[string]image.Image{
		"https://red/":            solidImage(4, 4, red),
		"https://blue/":           solidImage(4, 4, blue),
		"https://icons/green.png": solidImage(2, 2, green),
	})

	view := newFakeView(4, 4,
		newTileLayer("red", 4),
		&mapview.MarkerLayer{Icon: &mapview.Icon{Src: "https://icons/green.png"}},
		newTileLayer("blue", 4),
		&mapview.UnknownLayer{Name: "attribution"},
	)
	view.projectFunc = projectToCenter
	view.pathRoot = &mapview.PositionedImage{Image: solidImage(4, 4, yellow)}

	exporter := newTestExporter(fetcher)
	results, err := exporter.rasterizeAll(context.Background(), newTestEnv(view, fetcher), view.Layers())
	require.NoError(t, err)
	require.Len(t, results, 4)

	// tile layers in layer order, then the overlay root, then markers
	assertColorAt(t, results[0].Surface, 0, 0, red)
	assertColorAt(t, results[1].Surface, 0, 0, blue)
	assertColorAt(t, results[2].Surface, 0, 0, yellow)
	assertColorAt(t, results[3].Surface, 0, 0, transparent)
	assertColorAt(t, results[3].Surface, 1, 1, green)
}

func TestExporter_rasterizeAll_overlayRoot(t *testing.T) {
	pathRoot := &mapview.PositionedImage{Image: solidImage(4, 4, yellow)}
	overlayPane := &mapview.PositionedImage{Image: solidImage(4, 4, blue)}

	tests := []struct {
		name          string
		pathRoot      mapview.OverlaySurface
		overlayPane   mapview.OverlaySurface
		expectedColor *image.Uniform
	}{
		{
			name:          "path root is preferred",
			pathRoot:      pathRoot,
			overlayPane:   overlayPane,
			expectedColor: image.NewUniform(yellow),
		},
		{
			name:          "overlay pane surface is used without a path root",
			overlayPane:   overlayPane,
			expectedColor: image.NewUniform(blue),
		},
		{
			name: "no overlay",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := newFakeFetcher(nil)
			view := newFakeView(4, 4)
			view.pathRoot = tt.pathRoot
			view.overlayPane = tt.overlayPane

			results, err := newTestExporter(fetcher).rasterizeAll(context.Background(), newTestEnv(view, fetcher), nil)
			require.NoError(t, err)

			if tt.expectedColor == nil {
				assert.Empty(t, results)
				return
			}

			require.Len(t, results, 1)
			assertColorAt(t, results[0].Surface, 2, 2, tt.expectedColor.C)
		})
	}
}

func TestExporter_rasterizeAll_heatLayers(t *testing.T) {
	fetcher := newFakeFetcher(map[string]image.Image{
		"https://red/": solidImage(4, 4, red),
	})

	view := newFakeView(4, 4,
		&mapview.HeatLayer{Canvas: &mapview.PositionedImage{Image: solidImage(4, 4, green)}},
		&mapview.HeatLayer{},
		newTileLayer("red", 4),
	)

	results, err := newTestExporter(fetcher).rasterizeAll(context.Background(), newTestEnv(view, fetcher), view.Layers())
	require.NoError(t, err)
	require.Len(t, results, 2)

	assertColorAt(t, results[0].Surface, 0, 0, green)
	assertColorAt(t, results[1].Surface, 0, 0, red)
}

func TestExporter_Export(t *testing.T) {
	fetcher := newFakeFetcher(map[string]image.Image{
		"https://red/":            solidImage(2, 2, red),
		"https://icons/green.png": solidImage(2, 2, green),
	})

	view := newFakeView(4, 4,
		&mapview.MarkerLayer{Icon: &mapview.Icon{Src: "https://icons/green.png"}},
		newTileLayer("red", 2),
	)
	view.projectFunc = projectToCenter

	img, err := newTestExporter(fetcher).Export(context.Background(), view)
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 4, 4), img.Bounds())
	assertColorAt(t, img, 0, 0, red)
	assertColorAt(t, img, 3, 3, red)
	// the marker is drawn on top of the tiles, even though it comes first in the layer list
	assertColorAt(t, img, 1, 1, green)
	assertColorAt(t, img, 2, 2, green)

	assert.Equal(t, 1, fetcher.requestCount("https://icons/green.png?cache=42"))
}

type sequenceTokens struct {
	tokens []string
}

func (s *sequenceTokens) NextToken() string {
	token := s.tokens[0]
	s.tokens = s.tokens[1:]
	return token
}

func TestExporter_Export_newCacheTokenPerExport(t *testing.T) {
	fetcher := newFakeFetcher(map[string]image.Image{
		"https://icons/green.png": solidImage(2, 2, green),
	})

	view := newFakeView(4, 4, &mapview.MarkerLayer{Icon: &mapview.Icon{Src: "https://icons/green.png"}})
	view.projectFunc = projectToCenter

	var tokens cachebust.TokenSource = &sequenceTokens{[]string{"1600000000001", "1600000000002"}}
	exporter := NewExporter(newTestLogger(), fetcher, tokens, Options{})

	for i := 0; i < 2; i++ {
		_, err := exporter.Export(context.Background(), view)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{
		"https://icons/green.png?cache=1600000000001",
		"https://icons/green.png?cache=1600000000002",
	}, fetcher.requested)
}

func TestExporter_Export_noLayers(t *testing.T) {
	fetcher := newFakeFetcher(nil)
	view := newFakeView(5, 3)

	img, err := newTestExporter(fetcher).Export(context.Background(), view)
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 5, 3), img.Bounds())
	for y := 0; y < 3; y++ {
		for x := 0; x < 5; x++ {
			assertColorAt(t, img, x, y, transparent)
		}
	}
	assert.Empty(t, fetcher.requested)
}

func TestExporter_Export_errors(t *testing.T) {
	tests := []struct {
		name              string
		layers            []mapview.Layer
		expectedKind      ErrorKind
		expectedIndex     int
		expectedLayerKind mapview.LayerKind
	}{
		{
			name: "dynamic image fetch fails",
			layers: []mapview.Layer{
				newTileLayer("red", 2),
				&mapview.DynamicImageLayer{CurrentImageURL: "https://missing/export?bbox=1,2,3,4"},
			},
			expectedKind:      ErrorKindDynamicImageFetch,
			expectedIndex:     1,
			expectedLayerKind: mapview.LayerKindDynamicImage,
		},
		{
			name: "marker icon fails to load",
			layers: []mapview.Layer{
				&mapview.MarkerLayer{Icon: &mapview.Icon{Src: "https://missing/icon.png"}},
				newTileLayer("red", 2),
			},
			expectedKind:      ErrorKindMarkerIconLoad,
			expectedIndex:     0,
			expectedLayerKind: mapview.LayerKindMarker,
		},
		{
			name: "marker icon data URL is invalid",
			layers: []mapview.Layer{
				newTileLayer("red", 2),
				&mapview.MarkerLayer{Icon: &mapview.Icon{Src: "data:image/png;base64,bm90IGFuIGltYWdl"}},
			},
			expectedKind:      ErrorKindMarkerIconLoad,
			expectedIndex:     1,
			expectedLayerKind: mapview.LayerKindMarker,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := newFakeFetcher(map[string]image.Image{
				"https://red/": solidImage(2, 2, red),
			})
			view := newFakeView(4, 4, tt.layers...)
			view.projectFunc = projectToCenter

			img, err := newTestExporter(fetcher).Export(context.Background(), view)
			require.Error(t, err)
			assert.Nil(t, img)

			layerErr, ok := AsLayerError(err)
			require.True(t, ok)
			assert.Equal(t, tt.expectedKind, layerErr.Kind)
			assert.Equal(t, tt.expectedIndex, layerErr.LayerIndex)
			assert.Equal(t, tt.expectedLayerKind, layerErr.LayerKind)
		})
	}
}

func TestExporter_Export_cancelled(t *testing.T) {
	fetcher := newFakeFetcher(map[string]image.Image{
		"https://red/": solidImage(2, 2, red),
	})
	view := newFakeView(4, 4, newTileLayer("red", 2))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	img, err := newTestExporter(fetcher).Export(ctx, view)
	require.Error(t, err)
	assert.Nil(t, img)

	layerErr, ok := AsLayerError(err)
	require.True(t, ok)
	assert.Equal(t, ErrorKindCancelled, layerErr.Kind)
	assert.Equal(t, 0, layerErr.LayerIndex)
	assert.Empty(t, fetcher.requested)
}

func TestExporter_Export_cancelledDuringTileFetch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fetcher := newFakeFetcher(map[string]image.Image{
		"https://red/": solidImage(2, 2, red),
	})
	fetcher.onFetch = func(url string) {
		cancel()
	}

	view := newFakeView(2, 2,
		newTileLayer("red", 2),
		newTileLayer("red", 2),
	)

	_, err := newTestExporter(fetcher).Export(ctx, view)
	require.Error(t, err)

	layerErr, ok := AsLayerError(err)
	require.True(t, ok)
	assert.Equal(t, ErrorKindCancelled, layerErr.Kind)
	assert.Equal(t, 1, layerErr.LayerIndex)
	assert.Equal(t, mapview.LayerKindTile, layerErr.LayerKind)
}

func TestExporter_Export_tracing(t *testing.T) {
	tracer := tracing.NewTracer(bytes.NewBuffer(nil))
	trace := tracing.StartTrace(tracer, "export")

	ctx := context.WithValue(context.Background(), tracing.TraceCtxKey, trace)
	ctx = context.WithValue(ctx, tracing.TracerCtxKey, tracer)

	fetcher := newFakeFetcher(map[string]image.Image{
		"https://red/": solidImage(2, 2, red),
	})
	view := newFakeView(2, 2, newTileLayer("red", 2))

	_, err := newTestExporter(fetcher).Export(ctx, view)
	require.NoError(t, err)

	var spanNames []string
	for _, span := range trace.Spans {
		spanNames = append(spanNames, span.Name)
	}
	assert.Equal(t, []string{"rasterize base layers", "rasterize overlay root", "rasterize markers", "composite"}, spanNames)
}
