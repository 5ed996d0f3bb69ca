package document

import (
	"encoding/json"
	"fmt"

	"github.com/teeforge/customizer/internal/geometry"
)

// CanvasInfo is the serialised canvas header of a design.
type CanvasInfo struct {
	Width            float64 `json:"width"`
	Height           float64 `json:"height"`
	DevicePixelRatio float64 `json:"devicePixelRatio,omitempty"`
}

// Design is the load/save envelope exchanged with the browser and stored
// for templates. PrintArea is set when the layout pins an explicit
// rectangle instead of using the fraction policy.
type Design struct {
	ID        string          `json:"id,omitempty"`
	Canvas    CanvasInfo      `json:"canvas"`
	Objects   []*Object       `json:"objects"`
	PrintArea *geometry.Rect  `json:"printArea,omitempty"`
	Meta      json.RawMessage `json:"meta,omitempty"`
}

// ParseDesign decodes a design and checks object ids and kinds.
func ParseDesign(data []byte) (*Design, error) {
	var d Design
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode design: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

func (d *Design) Validate() error {
	if d.Canvas.Width < 0 || d.Canvas.Height < 0 {
		return fmt.Errorf("invalid canvas size %vx%v", d.Canvas.Width, d.Canvas.Height)
	}
	seen := make(map[string]struct{}, len(d.Objects))
	for i, obj := range d.Objects {
		if obj == nil || obj.ID == "" {
			return fmt.Errorf("object %d: missing id", i)
		}
		if _, dup := seen[obj.ID]; dup {
			return fmt.Errorf("object %s: %w", obj.ID, ErrDuplicateObject)
		}
		seen[obj.ID] = struct{}{}
		if !obj.Kind.Valid() {
			return fmt.Errorf("object %s: unknown kind %q", obj.ID, obj.Kind)
		}
	}
	return nil
}

// BuildCanvas builds a live canvas holding the design's objects.
func (d *Design) BuildCanvas() (*Canvas, error) {
	c := NewCanvas(d.Canvas.Width, d.Canvas.Height)
	if d.Canvas.DevicePixelRatio > 0 {
		c.DevicePixelRatio = d.Canvas.DevicePixelRatio
	}
	for _, obj := range d.Objects {
		if err := c.Add(obj); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Snapshot captures a canvas back into a design envelope.
func Snapshot(c *Canvas, printArea *geometry.Rect) *Design {
	return &Design{
		Canvas: CanvasInfo{
			Width:            c.Width,
			Height:           c.Height,
			DevicePixelRatio: c.DevicePixelRatio,
		},
		Objects:   c.Objects(),
		PrintArea: printArea,
	}
}
