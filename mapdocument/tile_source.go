package mapdocument

import (
	"strconv"
	"strings"

	"github.com/jamesrr39/ownmap-image/mapview"
)

var defaultSubdomains = Subdomains{"a", "b", "c"}

// urlTemplateTileSource fills in "{s}", "{z}", "{x}", "{y}" and "{-y}" placeholders in a tile URL template
type urlTemplateTileSource struct {
	template   string
	subdomains Subdomains
}

func (s *urlTemplateTileSource) TileURL(p mapview.TilePoint, zoom int) string {
	url := s.template

	if len(s.subdomains) > 0 {
		index := abs(p.X+p.Y) % len(s.subdomains)
		url = strings.Replace(url, "{s}", s.subdomains[index], -1)
	}

	url = strings.Replace(url, "{z}", strconv.Itoa(zoom), -1)
	url = strings.Replace(url, "{x}", strconv.Itoa(p.X), -1)
	url = strings.Replace(url, "{y}", strconv.Itoa(p.Y), -1)
	url = strings.Replace(url, "{-y}", strconv.Itoa(tilesPerSide(zoom)-p.Y-1), -1)
	url = strings.Replace(url, "{r}", "", -1)

	return url
}

// newAdjustTilePoint wraps tile columns around the antimeridian (unless noWrap is set), and flips rows for TMS tile
// servers, which count rows from the bottom.
func newAdjustTilePoint(zoom int, noWrap, tms bool) func(p *mapview.TilePoint) {
	limit := tilesPerSide(zoom)

	return func(p *mapview.TilePoint) {
		if !noWrap {
			p.X = ((p.X % limit) + limit) % limit
		}
		if tms {
			p.Y = limit - p.Y - 1
		}
	}
}

func tilesPerSide(zoom int) int {
	return 1 << uint(zoom)
}

func abs(i int) int {
	if i < 0 {
		return -i
	}
	return i
}
