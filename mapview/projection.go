package mapview

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// DefaultTileSize is the size, in pixels, of one tile of the Web Mercator world at zoom 0
const DefaultTileSize = 256

// Project converts a lon/lat point to absolute pixel space (Web Mercator, 256px world at zoom 0).
func Project(ll orb.Point, zoom int) Point {
	fraction := maptile.Fraction(ll, maptile.Zoom(zoom))

	return Point{
		X: fraction.X() * DefaultTileSize,
		Y: fraction.Y() * DefaultTileSize,
	}
}

// Unproject converts an absolute pixel position back to lon/lat.
func Unproject(p Point, zoom int) orb.Point {
	worldSize := DefaultTileSize * math.Exp2(float64(zoom))

	n := math.Pi - 2.0*math.Pi*p.Y/worldSize
	lat := 180.0 / math.Pi * math.Atan(0.5*(math.Exp(n)-math.Exp(-n)))
	lon := p.X/worldSize*360.0 - 180.0

	return orb.Point{lon, lat}
}
