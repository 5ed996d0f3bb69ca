package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/teeforge/customizer/internal/document"
	"github.com/teeforge/customizer/internal/geometry"
	"github.com/teeforge/customizer/internal/printarea"
)

var ErrNoDesign = errors.New("no design loaded")

// GestureResult is returned for every gesture frame: the transform the
// browser must apply, and whether the engine changed what it was sent.
type GestureResult struct {
	Transform document.Transform `json:"transform"`
	Corrected bool               `json:"corrected"`
}

// SelectionChange is queued whenever the selection changes. ObjectID is
// empty once the selection is cleared.
type SelectionChange struct {
	ObjectID string `json:"objectId"`
	Kind     string `json:"kind,omitempty"`
}

// Engine owns the design canvas and the print area session bound to it.
// The browser reports every gesture frame; the engine corrects it and
// hands back the transform to render.
type Engine struct {
	canvas  *document.Canvas
	session *printarea.Session
	logger  *slog.Logger

	fractions printarea.FractionResolver
	explicit  *geometry.Rect

	// Reference mode: the area is measured from an overlay element.
	useReference bool
	reference    *geometry.Rect

	selectionEvents []SelectionChange
}

// NewEngine creates an engine with an empty canvas and the given fraction
// policy.
func NewEngine(fractions printarea.FractionResolver, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		fractions: fractions,
		logger:    logger,
	}
	e.bind(document.NewCanvas(0, 0))
	return e
}

// bind swaps in a new canvas, tearing down the previous session.
func (e *Engine) bind(c *document.Canvas) {
	if e.session != nil {
		e.session.Dispose()
	}
	e.canvas = c
	e.session = printarea.NewSession(c,
		printarea.WithResolver(printarea.ResolverFunc(e.resolveArea)),
		printarea.WithSelectionObserver(e.onSelection),
		printarea.WithLogger(e.logger),
	)
	e.selectionEvents = nil
}

func (e *Engine) resolveArea(w, h float64) geometry.Rect {
	switch {
	case e.useReference:
		return printarea.ReferenceResolver{Ref: e.referenceRect}.Resolve(w, h)
	case e.explicit != nil:
		return printarea.StaticResolver(*e.explicit).Resolve(w, h)
	default:
		return e.fractions.Resolve(w, h)
	}
}

func (e *Engine) referenceRect() (geometry.Rect, bool) {
	if e.reference == nil {
		return geometry.Rect{}, false
	}
	return *e.reference, true
}

func (e *Engine) onSelection(obj printarea.Object) {
	change := SelectionChange{}
	if o, ok := obj.(*document.Object); ok && o != nil {
		change.ObjectID = o.ID
		change.Kind = string(o.Kind)
	}
	e.selectionEvents = append(e.selectionEvents, change)
}

// --- Commands (frontend → engine) ---

// LoadDesign replaces the canvas with the design in jsonData. Reference
// mode is left as it was.
func (e *Engine) LoadDesign(jsonData string) error {
	d, err := document.ParseDesign([]byte(jsonData))
	if err != nil {
		return err
	}
	return e.load(d)
}

// LoadSampleDesign loads the built-in t-shirt design.
func (e *Engine) LoadSampleDesign() {
	if err := e.load(document.NewSampleDesign()); err != nil {
		e.logger.Error("failed to load sample design", "error", err)
	}
}

func (e *Engine) load(d *document.Design) error {
	c, err := d.BuildCanvas()
	if err != nil {
		return fmt.Errorf("load design: %w", err)
	}
	e.explicit = d.PrintArea
	e.bind(c)
	e.logger.Debug("design loaded", "objects", len(d.Objects), "width", c.Width, "height", c.Height)
	return nil
}

// SetPrintAreaReference switches to reference mode. A nil rect means the
// overlay element is not mounted, and no constraint applies until it is.
func (e *Engine) SetPrintAreaReference(r *geometry.Rect) {
	e.useReference = true
	if r == nil {
		e.reference = nil
		return
	}
	ref := *r
	e.reference = &ref
}

// ClearPrintAreaReference leaves reference mode.
func (e *Engine) ClearPrintAreaReference() {
	e.useReference = false
	e.reference = nil
}

// Resize changes the logical canvas size. The print area follows on the
// next gesture frame.
func (e *Engine) Resize(width, height, devicePixelRatio float64) {
	e.canvas.Resize(width, height)
	if devicePixelRatio > 0 {
		e.canvas.DevicePixelRatio = devicePixelRatio
	}
}

// ObjectMoving applies the pending transform in jsonData and runs the
// drag constraint.
func (e *Engine) ObjectMoving(jsonData string) (string, error) {
	return e.gesture(printarea.EventObjectMoving, jsonData)
}

func (e *Engine) ObjectScaling(jsonData string) (string, error) {
	return e.gesture(printarea.EventObjectScaling, jsonData)
}

func (e *Engine) ObjectRotating(jsonData string) (string, error) {
	return e.gesture(printarea.EventObjectRotating, jsonData)
}

func (e *Engine) gesture(kind printarea.EventKind, jsonData string) (string, error) {
	var t document.Transform
	if err := json.Unmarshal([]byte(jsonData), &t); err != nil {
		return "", fmt.Errorf("decode transform: %w", err)
	}
	res, err := e.Gesture(kind, t)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(res)
	if err != nil {
		return "", fmt.Errorf("encode transform: %w", err)
	}
	return string(data), nil
}

// Gesture syncs the object to t, fires kind on the canvas and reports the
// transform after correction.
func (e *Engine) Gesture(kind printarea.EventKind, t document.Transform) (GestureResult, error) {
	obj, ok := e.canvas.Get(t.ID)
	if !ok {
		return GestureResult{}, fmt.Errorf("gesture %s on %s: %w", kind, t.ID, document.ErrObjectNotFound)
	}
	obj.ApplyTransform(t)
	obj.SetCoords()
	e.canvas.Fire(printarea.Event{Kind: kind, Target: obj})

	final := obj.Transform()
	return GestureResult{Transform: final, Corrected: final != t}, nil
}

// SetSelection selects the objects with the given ids.
func (e *Engine) SetSelection(ids []string) error {
	if len(ids) == 0 {
		e.canvas.ClearSelection()
		return nil
	}
	return e.canvas.Select(ids...)
}

// Dispose detaches the session from the canvas. Gestures are passed
// through uncorrected afterwards.
func (e *Engine) Dispose() {
	e.session.Dispose()
}

// --- Queries (frontend ← engine) ---

// PrintArea returns the print area for the current canvas size.
func (e *Engine) PrintArea() geometry.Rect {
	return e.session.Area()
}

// HitTest returns the id of the topmost selectable object at (x, y), or "".
func (e *Engine) HitTest(x, y float64) string {
	obj, ok := e.canvas.HitTest(x, y)
	if !ok {
		return ""
	}
	return obj.ID
}

// GetDesign serialises the canvas.
func (e *Engine) GetDesign() string {
	data, err := json.Marshal(document.Snapshot(e.canvas, e.explicit))
	if err != nil {
		return "{}"
	}
	return string(data)
}

// DrainSelectionEvents returns the queued selection changes as JSON and
// empties the queue.
func (e *Engine) DrainSelectionEvents() string {
	events := e.selectionEvents
	e.selectionEvents = nil
	if events == nil {
		events = []SelectionChange{}
	}
	data, _ := json.Marshal(events)
	return string(data)
}

// Canvas exposes the live canvas for callers inside the process.
func (e *Engine) Canvas() *document.Canvas {
	return e.canvas
}
