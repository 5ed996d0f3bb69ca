package printarea

import "github.com/teeforge/customizer/internal/geometry"

// Object is the minimal capability a canvas object needs for the
// eligibility check.
type Object interface {
	geometry.BoundingRecter
	Selectable() bool
	IsBaseProduct() bool
}

// Transformable is an Object whose position and scale the operators may
// rewrite. SetCoords refreshes the host's cached corner coordinates and must
// be called after any manual mutation.
type Transformable interface {
	Object
	Position() (left, top float64)
	SetPosition(left, top float64)
	Scale() (scaleX, scaleY float64)
	SetScale(scaleX, scaleY float64)
	SetCoords()
}

// IsEditable reports whether obj is subject to print-area constraints.
// Base-product imagery and non-selectable objects are exempt.
func IsEditable(obj Object) bool {
	if obj == nil {
		return false
	}
	return obj.Selectable() && !obj.IsBaseProduct()
}
