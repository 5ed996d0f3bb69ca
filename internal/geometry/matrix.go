package geometry

import (
	"math"

	"gonum.org/v1/gonum/floats/scalar"
)

// Matrix2D is an affine transform stored column-major as [a b c d e f]:
//
//	| a  c  e |
//	| b  d  f |
//	| 0  0  1 |
type Matrix2D [6]float64

// Identity returns the identity matrix.
func Identity() Matrix2D {
	return Matrix2D{1, 0, 0, 1, 0, 0}
}

// Translate returns a translation matrix.
func Translate(tx, ty float64) Matrix2D {
	return Matrix2D{1, 0, 0, 1, tx, ty}
}

// Scale returns a scale matrix.
func Scale(sx, sy float64) Matrix2D {
	return Matrix2D{sx, 0, 0, sy, 0, 0}
}

// Rotate returns a rotation matrix (angle in radians).
func Rotate(radians float64) Matrix2D {
	sin, cos := math.Sincos(radians)
	return Matrix2D{cos, sin, -sin, cos, 0, 0}
}

// RotateDegrees returns a rotation matrix (angle in degrees).
func RotateDegrees(degrees float64) Matrix2D {
	return Rotate(degrees * math.Pi / 180.0)
}

// Multiply returns m * other, which applies other first.
func (m Matrix2D) Multiply(other Matrix2D) Matrix2D {
	return Matrix2D{
		m[0]*other[0] + m[2]*other[1],
		m[1]*other[0] + m[3]*other[1],
		m[0]*other[2] + m[2]*other[3],
		m[1]*other[2] + m[3]*other[3],
		m[0]*other[4] + m[2]*other[5] + m[4],
		m[1]*other[4] + m[3]*other[5] + m[5],
	}
}

// TransformPoint applies the matrix to a point.
func (m Matrix2D) TransformPoint(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// Corners returns the four transformed corners of r in the order
// top-left, top-right, bottom-right, bottom-left.
func (m Matrix2D) Corners(r Rect) [4][2]float64 {
	var out [4][2]float64
	out[0][0], out[0][1] = m.TransformPoint(r.X, r.Y)
	out[1][0], out[1][1] = m.TransformPoint(r.Right(), r.Y)
	out[2][0], out[2][1] = m.TransformPoint(r.Right(), r.Bottom())
	out[3][0], out[3][1] = m.TransformPoint(r.X, r.Bottom())
	return out
}

// TransformRect transforms a rectangle and returns its axis-aligned bounding box.
func (m Matrix2D) TransformRect(r Rect) Rect {
	return CornersAABB(m.Corners(r))
}

// CornersAABB returns the axis-aligned box enclosing four points.
func CornersAABB(c [4][2]float64) Rect {
	minX, minY := c[0][0], c[0][1]
	maxX, maxY := minX, minY
	for _, p := range c[1:] {
		minX = min(minX, p[0])
		minY = min(minY, p[1])
		maxX = max(maxX, p[0])
		maxY = max(maxY, p[1])
	}
	return RectFromEdges(minX, minY, maxX, maxY)
}

// Determinant returns the determinant of the matrix.
func (m Matrix2D) Determinant() float64 {
	return m[0]*m[3] - m[1]*m[2]
}

// Invert returns the inverse of m. A singular matrix (an object scaled to
// zero) inverts to Identity.
func (m Matrix2D) Invert() Matrix2D {
	det := m.Determinant()
	if scalar.EqualWithinAbs(det, 0, 1e-12) {
		return Identity()
	}

	invDet := 1.0 / det
	return Matrix2D{
		m[3] * invDet,
		-m[1] * invDet,
		-m[2] * invDet,
		m[0] * invDet,
		(m[2]*m[5] - m[3]*m[4]) * invDet,
		(m[1]*m[4] - m[0]*m[5]) * invDet,
	}
}

// ObjectMatrix builds the object-to-canvas matrix for an object whose
// origin point sits at (left, top). The origin is given as fractions of the
// unscaled size (0 = left/top edge, 0.5 = center, 1 = right/bottom edge);
// scaling and rotation happen about that point.
//
//	T(left, top) * R(angle) * S(sx, sy) * T(-ox*width, -oy*height)
func ObjectMatrix(left, top, scaleX, scaleY, angleDeg, originX, originY, width, height float64) Matrix2D {
	return Translate(left, top).
		Multiply(RotateDegrees(angleDeg)).
		Multiply(Scale(scaleX, scaleY)).
		Multiply(Translate(-originX*width, -originY*height))
}

// IsIdentity reports whether m is the identity within Epsilon.
func (m Matrix2D) IsIdentity() bool {
	id := Identity()
	for i := range m {
		if !scalar.EqualWithinAbs(m[i], id[i], Epsilon) {
			return false
		}
	}
	return true
}
