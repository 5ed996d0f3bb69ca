// Package geometry holds the rectangle and affine-matrix math shared by the
// print-area engine and the canvas model.
//
// All coordinates are logical canvas pixels with the origin at the top-left
// and Y increasing downward.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/floats/scalar"
)

// Epsilon is the tolerance used for edge comparisons. Corrections are
// computed in floating point, so an edge that lands 1e-12 past the area
// still counts as inside.
const Epsilon = 1e-6

// Rect is an axis-aligned rectangle.
type Rect struct {
	X      float64 `json:"left"`
	Y      float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// RectFromEdges builds a Rect from its four edges.
func RectFromEdges(left, top, right, bottom float64) Rect {
	return Rect{X: left, Y: top, Width: right - left, Height: bottom - top}
}

func (r Rect) Left() float64   { return r.X }
func (r Rect) Top() float64    { return r.Y }
func (r Rect) Right() float64  { return r.X + r.Width }
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// IsEmpty checks if the rect has zero or negative area.
func (r Rect) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// IsFinite reports whether every field is a finite number.
func (r Rect) IsFinite() bool {
	for _, v := range [4]float64{r.X, r.Y, r.Width, r.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Contains checks if a point is inside the rect.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width && y >= r.Y && y <= r.Y+r.Height
}

// Translate returns r moved by (dx, dy).
func (r Rect) Translate(dx, dy float64) Rect {
	r.X += dx
	r.Y += dy
	return r
}

// Union returns the smallest rect containing both rects.
func (r Rect) Union(other Rect) Rect {
	if r.IsEmpty() {
		return other
	}
	if other.IsEmpty() {
		return r
	}

	return RectFromEdges(
		min(r.X, other.X),
		min(r.Y, other.Y),
		max(r.Right(), other.Right()),
		max(r.Bottom(), other.Bottom()),
	)
}

// Center returns the center point of the rect.
func (r Rect) Center() (float64, float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Bounds is the edge form of a rectangle, as returned by BoundsOf.
type Bounds struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// BoundsFromRect converts a Rect to edge form.
func BoundsFromRect(r Rect) Bounds {
	return Bounds{
		Left:   r.Left(),
		Top:    r.Top(),
		Right:  r.Right(),
		Bottom: r.Bottom(),
		Width:  r.Width,
		Height: r.Height,
	}
}

// BoundingRecter is anything that can report its rotated, scaled
// axis-aligned bounding box in canvas space.
type BoundingRecter interface {
	BoundingRect() Rect
}

// BoundsOf returns the true (rotated and scaled) bounding box of obj.
func BoundsOf(obj BoundingRecter) Bounds {
	return BoundsFromRect(obj.BoundingRect())
}

// IsInside reports whether every edge of b lies within area. Edges that
// coincide (within Epsilon) count as inside.
func IsInside(b Bounds, area Rect) bool {
	return geq(b.Left, area.Left()) &&
		geq(b.Top, area.Top()) &&
		geq(area.Right(), b.Right) &&
		geq(area.Bottom(), b.Bottom)
}

func geq(a, b float64) bool {
	return a >= b || scalar.EqualWithinAbs(a, b, Epsilon)
}
