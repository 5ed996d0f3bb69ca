package document

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/teeforge/customizer/internal/geometry"
)

type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindShape Kind = "shape"
	KindBase  Kind = "base" // the garment mockup the design sits on
)

func (k Kind) Valid() bool {
	switch k {
	case KindText, KindImage, KindShape, KindBase:
		return true
	}
	return false
}

// Origin is the fraction of an object's box that its left/top point refers
// to. It decodes from a number or from one of the keywords
// left, center, right, top, bottom.
type Origin float64

const (
	OriginStart  Origin = 0
	OriginCenter Origin = 0.5
	OriginEnd    Origin = 1
)

func (o *Origin) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch s {
		case "left", "top":
			*o = OriginStart
		case "center":
			*o = OriginCenter
		case "right", "bottom":
			*o = OriginEnd
		default:
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return fmt.Errorf("invalid origin %q", s)
			}
			*o = Origin(f)
		}
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("invalid origin %s", data)
	}
	*o = Origin(f)
	return nil
}

// Object is one item on the design canvas. Left/Top locate the origin point;
// scale and rotation are applied about it.
type Object struct {
	ID          string  `json:"id"`
	Kind        Kind    `json:"kind"`
	Left        float64 `json:"left"`
	Top         float64 `json:"top"`
	ScaleX      float64 `json:"scaleX"`
	ScaleY      float64 `json:"scaleY"`
	Angle       float64 `json:"angle"`
	OriginX     Origin  `json:"originX"`
	OriginY     Origin  `json:"originY"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	AllowSelect bool    `json:"selectable"`
	BaseProduct bool    `json:"baseProduct"`

	Text string `json:"text,omitempty"`
	Src  string `json:"src,omitempty"`
	Fill string `json:"fill,omitempty"`

	// Corner cache, refreshed by SetCoords.
	coords [4][2]float64
}

// NewObject returns a selectable, unscaled object with its cache populated.
func NewObject(id string, kind Kind, left, top, width, height float64) *Object {
	o := &Object{
		ID:          id,
		Kind:        kind,
		Left:        left,
		Top:         top,
		ScaleX:      1,
		ScaleY:      1,
		Width:       width,
		Height:      height,
		AllowSelect: kind != KindBase,
		BaseProduct: kind == KindBase,
	}
	o.SetCoords()
	return o
}

func (o *Object) UnmarshalJSON(data []byte) error {
	type plain Object
	p := plain{ScaleX: 1, ScaleY: 1, AllowSelect: true}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*o = Object(p)
	if o.Kind == KindBase {
		o.BaseProduct = true
	}
	o.SetCoords()
	return nil
}

// Matrix maps the object's local box onto the canvas.
func (o *Object) Matrix() geometry.Matrix2D {
	return geometry.ObjectMatrix(o.Left, o.Top, o.ScaleX, o.ScaleY, o.Angle,
		float64(o.OriginX), float64(o.OriginY), o.Width, o.Height)
}

// BoundingRect is computed from the live transform, not the corner cache.
func (o *Object) BoundingRect() geometry.Rect {
	return o.Matrix().TransformRect(geometry.Rect{Width: o.Width, Height: o.Height})
}

func (o *Object) Selectable() bool { return o.AllowSelect }

// Coords returns the cached canvas-space corners in top-left, top-right,
// bottom-right, bottom-left order. It lags the transform until SetCoords.
func (o *Object) Coords() [4][2]float64 { return o.coords }

// SetCoords refreshes the corner cache used for hit testing and handles.
func (o *Object) SetCoords() {
	o.coords = o.Matrix().Corners(geometry.Rect{Width: o.Width, Height: o.Height})
}

func (o *Object) Position() (float64, float64) { return o.Left, o.Top }

func (o *Object) SetPosition(left, top float64) {
	o.Left, o.Top = left, top
}

func (o *Object) Scale() (float64, float64) { return o.ScaleX, o.ScaleY }

func (o *Object) SetScale(scaleX, scaleY float64) {
	o.ScaleX, o.ScaleY = scaleX, scaleY
}

func (o *Object) IsBaseProduct() bool { return o.BaseProduct }

// ObjectID identifies the object in correction logs.
func (o *Object) ObjectID() string { return o.ID }

// HitTest reports whether the canvas point lies inside the object's box.
func (o *Object) HitTest(x, y float64) bool {
	inv := o.Matrix().Invert()
	lx, ly := inv.TransformPoint(x, y)
	return lx >= 0 && ly >= 0 && lx <= o.Width && ly <= o.Height
}

// Transform is the mutable part of an object, exchanged with the browser
// on every gesture frame.
type Transform struct {
	ID     string  `json:"id"`
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	ScaleX float64 `json:"scaleX"`
	ScaleY float64 `json:"scaleY"`
	Angle  float64 `json:"angle"`
}

func (o *Object) Transform() Transform {
	return Transform{
		ID:     o.ID,
		Left:   o.Left,
		Top:    o.Top,
		ScaleX: o.ScaleX,
		ScaleY: o.ScaleY,
		Angle:  o.Angle,
	}
}

// ApplyTransform overwrites the object's transform. It does not refresh
// the corner cache.
func (o *Object) ApplyTransform(t Transform) {
	o.Left, o.Top = t.Left, t.Top
	o.ScaleX, o.ScaleY = t.ScaleX, t.ScaleY
	o.Angle = t.Angle
}
