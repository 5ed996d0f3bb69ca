package printarea

import (
	"math"

	"github.com/teeforge/customizer/internal/geometry"
)

// Correction reports what an operator changed. DX and DY are the
// translation applied to the object's position; Factor is the uniform scale
// multiplier (1 when scale was untouched).
type Correction struct {
	DX     float64 `json:"dx"`
	DY     float64 `json:"dy"`
	Factor float64 `json:"factor"`
}

var noCorrection = Correction{Factor: 1}

// Changed reports whether the operator wrote to the object.
func (c Correction) Changed() bool {
	return c.DX != 0 || c.DY != 0 || c.Factor != 1
}

// ClampPosition translates obj so that its bounding box re-enters area.
//
// When the box is wider (or taller) than the area both edges violate at
// once; the left (top) edge wins so an oversized object can still be
// dragged without jitter.
func ClampPosition(obj Transformable, area geometry.Rect) Correction {
	if !IsEditable(obj) || area.IsEmpty() {
		return noCorrection
	}

	b := geometry.BoundsOf(obj)
	dx := edgeShift(b.Left, b.Right, area.Left(), area.Right())
	dy := edgeShift(b.Top, b.Bottom, area.Top(), area.Bottom())
	if dx == 0 && dy == 0 {
		return noCorrection
	}

	left, top := obj.Position()
	obj.SetPosition(left+dx, top+dy)
	return Correction{DX: dx, DY: dy, Factor: 1}
}

// edgeShift returns the signed distance that brings [lo, hi] inside
// [minEdge, maxEdge]. The low edge is checked first. The high edge is only
// corrected as far as the low edge allows, so a span wider than the range
// settles with its low edge on minEdge instead of bouncing between edges on
// successive events.
func edgeShift(lo, hi, minEdge, maxEdge float64) float64 {
	if minEdge-lo > geometry.Epsilon {
		return minEdge - lo
	}
	if hi-maxEdge > geometry.Epsilon {
		shift := max(maxEdge-hi, minEdge-lo)
		if math.Abs(shift) <= geometry.Epsilon {
			return 0
		}
		return shift
	}
	return 0
}

// ClampScale shrinks obj uniformly until its bounding box fits inside area.
// The more restrictive axis decides the factor, so the aspect ratio is kept.
// Objects that already fit, and degenerate boxes with a zero or negative
// dimension, are left untouched.
func ClampScale(obj Transformable, area geometry.Rect) Correction {
	if !IsEditable(obj) || area.IsEmpty() {
		return noCorrection
	}

	b := geometry.BoundsOf(obj)
	if b.Width <= 0 || b.Height <= 0 {
		return noCorrection
	}
	if b.Width <= area.Width+geometry.Epsilon && b.Height <= area.Height+geometry.Epsilon {
		return noCorrection
	}

	factor := min(area.Width/b.Width, area.Height/b.Height)
	if factor >= 1 {
		return noCorrection
	}

	sx, sy := obj.Scale()
	obj.SetScale(sx*factor, sy*factor)
	return Correction{Factor: factor}
}

// SnapInside clamps scale and then position. Rotation can grow the bounding
// box past the area in a way translation alone cannot fix; shrinking first
// guarantees the position clamp has a feasible answer. Coordinates are
// refreshed between the two steps because the position clamp reads the
// post-scale bounding box.
func SnapInside(obj Transformable, area geometry.Rect) Correction {
	if !IsEditable(obj) || area.IsEmpty() {
		return noCorrection
	}

	scaled := ClampScale(obj, area)
	if scaled.Changed() {
		obj.SetCoords()
	}
	moved := ClampPosition(obj, area)
	return Correction{DX: moved.DX, DY: moved.DY, Factor: scaled.Factor}
}
