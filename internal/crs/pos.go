package crs

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// AxisOrder describes how the two numbers of a gml:pos map to (x, y).
type AxisOrder int

const (
	// XY means the first number is the easting (x).
	XY AxisOrder = iota
	// YX means the first number is the northing (y); EPSG:2180 declares this order.
	YX
)

func (o AxisOrder) String() string {
	if o == YX {
		return "yx"
	}
	return "xy"
}

// Point is a 2D coordinate; X is easting or longitude.
type Point struct {
	X, Y float64
}

// Apply maps a raw (first, second) pair to a Point according to the order.
// Applying the order that matches how the pair was written always yields the
// true (x, y).
func (o AxisOrder) Apply(first, second float64) Point {
	if o == YX {
		return Point{X: second, Y: first}
	}
	return Point{X: first, Y: second}
}

// ParsePos parses the text of a gml:pos holding exactly two numbers.
// "NaN NaN" (either value NaN) yields ok == false, meaning the point is absent.
func ParsePos(text string, order AxisOrder) (Point, bool, error) {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return Point{}, false, eris.Errorf("crs: expected 2 coordinates in gml:pos, got %d in %q", len(fields), text)
	}
	first, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return Point{}, false, eris.Wrapf(err, "crs: parse first coordinate of %q", text)
	}
	second, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return Point{}, false, eris.Wrapf(err, "crs: parse second coordinate of %q", text)
	}
	if math.IsNaN(first) || math.IsNaN(second) {
		return Point{}, false, nil
	}
	if math.IsInf(first, 0) || math.IsInf(second, 0) {
		return Point{}, false, eris.Errorf("crs: infinite coordinate in gml:pos %q", text)
	}
	return order.Apply(first, second), true, nil
}
