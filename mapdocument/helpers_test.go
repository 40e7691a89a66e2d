package mapdocument

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"testing"

	"github.com/jamesrr39/goutil/logpkg"
	"github.com/stretchr/testify/require"
)

var (
	red         = color.RGBA{R: 255, A: 255}
	transparent = color.RGBA{}
)

func newTestLogger() *logpkg.Logger {
	return logpkg.NewLogger(os.Stderr, logpkg.LogLevelWarn)
}

func encodeTestPNG(t *testing.T, width, height int, c color.Color) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)

	buf := bytes.NewBuffer(nil)
	err := png.Encode(buf, img)
	require.NoError(t, err)

	return buf.Bytes()
}

func encodeTestDataURL(t *testing.T, width, height int, c color.Color) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(encodeTestPNG(t, width, height, c))
}

func assertColorAt(t *testing.T, img image.Image, x, y int, want color.Color) {
	t.Helper()

	r, g, b, a := img.At(x, y).RGBA()
	wr, wg, wb, wa := want.RGBA()
	if r != wr || g != wg || b != wb || a != wa {
		t.Errorf("color at (%d, %d): expected %v but got %v", x, y, want, img.At(x, y))
	}
}

func intPtr(i int) *int {
	return &i
}
