package valueobjects

import (
	"encoding/json"
	"math"

	pkgerrors "archsync-backend/pkg/errors"
)

// Point is a value object for a 2D coordinate on the canvas.
type Point struct {
	x float64
	y float64
}

// NewPoint creates a point with validation.
func NewPoint(x, y float64) (Point, error) {
	if !isValidCoordinate(x) || !isValidCoordinate(y) {
		return Point{}, pkgerrors.NewStructural("invalid coordinates: must be finite numbers")
	}
	return Point{x: x, y: y}, nil
}

// X returns the X coordinate
func (p Point) X() float64 {
	return p.x
}

// Y returns the Y coordinate
func (p Point) Y() float64 {
	return p.y
}

// DistanceTo calculates the Euclidean distance to another point
func (p Point) DistanceTo(other Point) float64 {
	dx := p.x - other.x
	dy := p.y - other.y
	return math.Sqrt(dx*dx + dy*dy)
}

// Bounds is a value object for an axis-aligned shape rectangle.
type Bounds struct {
	x      float64
	y      float64
	width  float64
	height float64
}

// NewBounds creates bounds with validation.
func NewBounds(x, y, width, height float64) (Bounds, error) {
	if !isValidCoordinate(x) || !isValidCoordinate(y) ||
		!isValidCoordinate(width) || !isValidCoordinate(height) {
		return Bounds{}, pkgerrors.NewStructural("invalid bounds: must be finite numbers")
	}
	if width < 0 || height < 0 {
		return Bounds{}, pkgerrors.NewStructural("invalid bounds: negative extent")
	}
	return Bounds{x: x, y: y, width: width, height: height}, nil
}

// MustBounds is a convenience constructor for fixtures and tests.
// It panics on invalid input.
func MustBounds(x, y, width, height float64) Bounds {
	b, err := NewBounds(x, y, width, height)
	if err != nil {
		panic(err)
	}
	return b
}

// X returns the left edge
func (b Bounds) X() float64 {
	return b.x
}

// Y returns the top edge
func (b Bounds) Y() float64 {
	return b.y
}

// Width returns the horizontal extent
func (b Bounds) Width() float64 {
	return b.width
}

// Height returns the vertical extent
func (b Bounds) Height() float64 {
	return b.height
}

// Center returns the geometric center of the bounds.
func (b Bounds) Center() Point {
	return Point{x: b.x + b.width/2, y: b.y + b.height/2}
}

// CenterDistanceTo calculates the distance between the centers of two bounds.
// This is the metric the proximity fallback of primary-shape resolution uses.
func (b Bounds) CenterDistanceTo(other Bounds) float64 {
	return b.Center().DistanceTo(other.Center())
}

// Equals checks if two bounds are equal
func (b Bounds) Equals(other Bounds) bool {
	const epsilon = 1e-9
	return math.Abs(b.x-other.x) < epsilon &&
		math.Abs(b.y-other.y) < epsilon &&
		math.Abs(b.width-other.width) < epsilon &&
		math.Abs(b.height-other.height) < epsilon
}

type boundsJSON struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// MarshalJSON serializes the bounds for wire payloads.
func (b Bounds) MarshalJSON() ([]byte, error) {
	return json.Marshal(boundsJSON{X: b.x, Y: b.y, Width: b.width, Height: b.height})
}

// UnmarshalJSON deserializes bounds, applying the same validation as
// NewBounds.
func (b *Bounds) UnmarshalJSON(data []byte) error {
	var raw boundsJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := NewBounds(raw.X, raw.Y, raw.Width, raw.Height)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// isValidCoordinate checks if a coordinate is a valid finite number
func isValidCoordinate(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
