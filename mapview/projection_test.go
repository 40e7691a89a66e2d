package mapview

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestProject(t *testing.T) {
	tests := []struct {
		name string
		ll   orb.Point
		zoom int
		want Point
	}{
		{"null island, zoom 0", orb.Point{0, 0}, 0, Pt(128, 128)},
		{"null island, zoom 2", orb.Point{0, 0}, 2, Pt(512, 512)},
		{"antimeridian, zoom 1", orb.Point{180, 0}, 1, Pt(512, 256)},
		{"west edge, zoom 1", orb.Point{-180, 0}, 1, Pt(0, 256)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Project(tt.ll, tt.zoom)
			assert.InDelta(t, tt.want.X, got.X, 1e-9)
			assert.InDelta(t, tt.want.Y, got.Y, 1e-9)
		})
	}
}

func TestUnproject(t *testing.T) {
	for _, ll := range []orb.Point{{0, 0}, {10.75, 59.91}, {-122.42, 37.77}, {151.21, -33.87}} {
		for _, zoom := range []int{0, 5, 13} {
			got := Unproject(Project(ll, zoom), zoom)
			assert.InDelta(t, ll.Lon(), got.Lon(), 1e-7)
			assert.InDelta(t, ll.Lat(), got.Lat(), 1e-7)
		}
	}
}
