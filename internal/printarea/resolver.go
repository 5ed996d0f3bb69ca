package printarea

import (
	"errors"
	"fmt"

	"github.com/teeforge/customizer/internal/geometry"
)

// ErrInvalidArea is returned when print-area fractions do not describe a
// region inside the canvas.
var ErrInvalidArea = errors.New("invalid print area")

// Resolver produces the print-area rectangle for a canvas of the given
// logical size. Resolvers never mutate canvas state and are called once per
// interaction event.
type Resolver interface {
	Resolve(canvasWidth, canvasHeight float64) geometry.Rect
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(canvasWidth, canvasHeight float64) geometry.Rect

func (f ResolverFunc) Resolve(canvasWidth, canvasHeight float64) geometry.Rect {
	return f(canvasWidth, canvasHeight)
}

// FractionResolver reserves a region expressed as fractions of the canvas
// dimensions.
type FractionResolver struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

// DefaultFractions is the policy used when no design-area reference exists:
// a 55% x 65% region with a 22.5% left margin and a 15% top margin.
var DefaultFractions = FractionResolver{Left: 0.225, Top: 0.15, Width: 0.55, Height: 0.65}

func (f FractionResolver) Resolve(canvasWidth, canvasHeight float64) geometry.Rect {
	if canvasWidth <= 0 || canvasHeight <= 0 {
		return geometry.Rect{}
	}
	return geometry.Rect{
		X:      canvasWidth * f.Left,
		Y:      canvasHeight * f.Top,
		Width:  canvasWidth * f.Width,
		Height: canvasHeight * f.Height,
	}
}

// Validate checks that the fractions describe a non-empty region that stays
// inside the canvas.
func (f FractionResolver) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{{"left", f.Left}, {"top", f.Top}, {"width", f.Width}, {"height", f.Height}}
	for _, fd := range fields {
		if fd.v < 0 || fd.v > 1 {
			return fmt.Errorf("%w: %s fraction %v out of [0,1]", ErrInvalidArea, fd.name, fd.v)
		}
	}
	if f.Width == 0 || f.Height == 0 {
		return fmt.Errorf("%w: zero-sized region", ErrInvalidArea)
	}
	if f.Left+f.Width > 1+geometry.Epsilon || f.Top+f.Height > 1+geometry.Epsilon {
		return fmt.Errorf("%w: region extends past the canvas", ErrInvalidArea)
	}
	return nil
}

// ReferenceResolver uses a rectangle supplied by the host, such as the
// measured position of a design-area overlay. Ref is queried on every call
// because the reference may move when the view is resized. A missing or
// malformed reference resolves to the zero rectangle, which callers treat as
// "no constraint this frame".
type ReferenceResolver struct {
	Ref func() (geometry.Rect, bool)
}

func (r ReferenceResolver) Resolve(_, _ float64) geometry.Rect {
	if r.Ref == nil {
		return geometry.Rect{}
	}
	rect, ok := r.Ref()
	if !ok || !rect.IsFinite() || rect.IsEmpty() {
		return geometry.Rect{}
	}
	return rect
}

// StaticResolver always returns the same rectangle.
type StaticResolver geometry.Rect

func (s StaticResolver) Resolve(_, _ float64) geometry.Rect {
	return geometry.Rect(s)
}
