package mapview

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/jamesrr39/goutil/errorsx"
)

// Point is a position or a size in screen-pixel space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

func (p Point) Add(other Point) Point {
	return Point{p.X + other.X, p.Y + other.Y}
}

func (p Point) Subtract(other Point) Point {
	return Point{p.X - other.X, p.Y - other.Y}
}

func (p Point) DivideBy(n float64) Point {
	return Point{p.X / n, p.Y / n}
}

func (p Point) MultiplyBy(n float64) Point {
	return Point{p.X * n, p.Y * n}
}

func (p Point) Floor() Point {
	return Point{math.Floor(p.X), math.Floor(p.Y)}
}

// Round rounds both components half up (towards positive infinity), the way browsers round pixel positions.
// math.Round would round -2.5 to -3, whereas this gives -2.
func (p Point) Round() Point {
	return Point{RoundHalfUp(p.X), RoundHalfUp(p.Y)}
}

func RoundHalfUp(f float64) float64 {
	return math.Floor(f + 0.5)
}

func (p Point) String() string {
	return fmt.Sprintf("Point(%v, %v)", p.X, p.Y)
}

// UnmarshalJSON accepts both a two-component array ([x, y]) and an object ({"x": x, "y": y}).
func (p *Point) UnmarshalJSON(data []byte) error {
	var arr []float64
	err := json.Unmarshal(data, &arr)
	if err == nil {
		if len(arr) != 2 {
			return errorsx.Errorf("expected 2 components for a point, but got %d", len(arr))
		}
		p.X, p.Y = arr[0], arr[1]
		return nil
	}

	type pointObject Point
	var obj pointObject
	err = json.Unmarshal(data, &obj)
	if err != nil {
		return errorsx.Wrap(err, "data", string(data))
	}
	*p = Point(obj)
	return nil
}

// Bounds is a rectangle in screen-pixel space. Min is the top left corner.
type Bounds struct {
	Min Point `json:"min"`
	Max Point `json:"max"`
}

func (b Bounds) Size() Point {
	return b.Max.Subtract(b.Min)
}
