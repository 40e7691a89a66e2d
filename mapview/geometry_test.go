package mapview

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoint_Round(t *testing.T) {
	tests := []struct {
		name  string
		point Point
		want  Point
	}{
		{"already whole", Pt(3, 4), Pt(3, 4)},
		{"halves round up", Pt(2.5, 7.5), Pt(3, 8)},
		{"negative halves round towards positive infinity", Pt(-2.5, -0.5), Pt(-2, 0)},
		{"below half rounds down", Pt(1.49, -1.51), Pt(1, -2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.point.Round())
		})
	}
}

func TestPoint_Arithmetic(t *testing.T) {
	p := Pt(300, 520).DivideBy(256).Floor()
	assert.Equal(t, Pt(1, 2), p)

	p = Pt(1, 2).MultiplyBy(256).Subtract(Pt(10, 20)).Add(Pt(1, 1))
	assert.Equal(t, Pt(247, 493), p)

	assert.Equal(t, Pt(80, 60), Bounds{Min: Pt(20, 40), Max: Pt(100, 100)}.Size())
}

func TestPoint_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		want    Point
		wantErr bool
	}{
		{"array form", `[32, 16]`, Pt(32, 16), false},
		{"object form", `{"x": 12.5, "y": 41}`, Pt(12.5, 41), false},
		{"array with too many components", `[1, 2, 3]`, Point{}, true},
		{"not a point", `"32x32"`, Point{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Point
			err := json.Unmarshal([]byte(tt.json), &p)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p)
		})
	}
}
