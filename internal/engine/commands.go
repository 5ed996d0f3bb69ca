package engine

import (
	"encoding/json"

	"github.com/teeforge/customizer/internal/geometry"
)

// PathCommand is one Canvas2D path segment: ["M", x, y], ["L", x, y], ["Z"].
type PathCommand []interface{}

// DrawCommand is one overlay drawing operation. The frontend paints these
// above the canvas after each frame.
type DrawCommand struct {
	Op          string        `json:"op"`                    // "path"
	Role        string        `json:"role"`                  // "printArea" or "selection"
	ObjectID    string        `json:"objectId,omitempty"`    // for selection outlines
	Path        []PathCommand `json:"path"`                  // canvas-space points
	Stroke      string        `json:"stroke,omitempty"`      // stroke color
	StrokeWidth float64       `json:"strokeWidth,omitempty"` // in logical pixels
	Dash        []float64     `json:"dash,omitempty"`        // line dash pattern
}

const (
	guideStroke     = "#7f8c8d"
	selectionStroke = "#2e86de"
)

// Overlay returns the print area guide followed by one outline per
// selected object, drawn from the objects' cached corners.
func (e *Engine) Overlay() []DrawCommand {
	var commands []DrawCommand

	if area := e.PrintArea(); !area.IsEmpty() {
		commands = append(commands, DrawCommand{
			Op:          "path",
			Role:        "printArea",
			Path:        rectPath(area),
			Stroke:      guideStroke,
			StrokeWidth: 1,
			Dash:        []float64{6, 4},
		})
	}

	for _, obj := range e.canvas.Selected() {
		commands = append(commands, DrawCommand{
			Op:          "path",
			Role:        "selection",
			ObjectID:    obj.ID,
			Path:        cornersPath(obj.Coords()),
			Stroke:      selectionStroke,
			StrokeWidth: 1,
		})
	}
	return commands
}

// OverlayJSON serialises Overlay for the bridge.
func (e *Engine) OverlayJSON() string {
	commands := e.Overlay()
	if commands == nil {
		return "[]"
	}
	data, err := json.Marshal(commands)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func rectPath(r geometry.Rect) []PathCommand {
	return []PathCommand{
		{"M", r.Left(), r.Top()},
		{"L", r.Right(), r.Top()},
		{"L", r.Right(), r.Bottom()},
		{"L", r.Left(), r.Bottom()},
		{"Z"},
	}
}

func cornersPath(c [4][2]float64) []PathCommand {
	return []PathCommand{
		{"M", c[0][0], c[0][1]},
		{"L", c[1][0], c[1][1]},
		{"L", c[2][0], c[2][1]},
		{"L", c[3][0], c[3][1]},
		{"Z"},
	}
}
