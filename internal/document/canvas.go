package document

import (
	"errors"
	"fmt"
	"slices"

	"github.com/teeforge/customizer/internal/printarea"
)

var (
	ErrObjectNotFound  = errors.New("object not found")
	ErrDuplicateObject = errors.New("object already exists")
)

// Canvas is an in-memory design canvas: an ordered object stack, a
// selection and an event registry. Width and Height are logical pixels;
// DevicePixelRatio only matters when rasterising.
//
// A Canvas is not safe for concurrent use.
type Canvas struct {
	Width            float64
	Height           float64
	DevicePixelRatio float64

	objects   []*Object
	byID      map[string]*Object
	selection []*Object

	handlers map[printarea.EventKind][]handler
	nextID   uint64
}

type handler struct {
	id uint64
	fn func(printarea.Event)
}

// subscription removes one handler from its canvas.
type subscription struct {
	canvas *Canvas
	kind   printarea.EventKind
	id     uint64
}

func (s subscription) Remove() {
	if s.canvas == nil {
		return
	}
	s.canvas.off(s.kind, s.id)
}

func NewCanvas(width, height float64) *Canvas {
	return &Canvas{
		Width:            width,
		Height:           height,
		DevicePixelRatio: 1,
		byID:             make(map[string]*Object),
		handlers:         make(map[printarea.EventKind][]handler),
	}
}

// Size reports the logical canvas size.
func (c *Canvas) Size() (float64, float64) {
	return c.Width, c.Height
}

// On registers fn for kind. Handlers run in registration order.
func (c *Canvas) On(kind printarea.EventKind, fn func(printarea.Event)) printarea.Handle {
	c.nextID++
	c.handlers[kind] = append(c.handlers[kind], handler{id: c.nextID, fn: fn})
	return subscription{canvas: c, kind: kind, id: c.nextID}
}

func (c *Canvas) off(kind printarea.EventKind, id uint64) {
	c.handlers[kind] = slices.DeleteFunc(c.handlers[kind], func(h handler) bool {
		return h.id == id
	})
}

// HandlerCount returns the number of live handlers across every kind.
func (c *Canvas) HandlerCount() int {
	n := 0
	for _, hs := range c.handlers {
		n += len(hs)
	}
	return n
}

// Fire delivers ev to every handler registered for its kind.
func (c *Canvas) Fire(ev printarea.Event) {
	// Copy so a handler may unsubscribe while we iterate.
	hs := slices.Clone(c.handlers[ev.Kind])
	for _, h := range hs {
		h.fn(ev)
	}
}

// Add appends obj to the top of the stack.
func (c *Canvas) Add(obj *Object) error {
	if obj == nil || obj.ID == "" {
		return fmt.Errorf("add object: missing id")
	}
	if _, ok := c.byID[obj.ID]; ok {
		return fmt.Errorf("add object %s: %w", obj.ID, ErrDuplicateObject)
	}
	obj.SetCoords()
	c.objects = append(c.objects, obj)
	c.byID[obj.ID] = obj
	return nil
}

// Remove deletes an object, dropping it from the selection first.
func (c *Canvas) Remove(id string) error {
	obj, ok := c.byID[id]
	if !ok {
		return fmt.Errorf("remove object %s: %w", id, ErrObjectNotFound)
	}
	if slices.Contains(c.selection, obj) {
		rest := slices.DeleteFunc(slices.Clone(c.selection), func(o *Object) bool { return o == obj })
		c.setSelection(rest)
	}
	c.objects = slices.DeleteFunc(c.objects, func(o *Object) bool { return o == obj })
	delete(c.byID, id)
	return nil
}

func (c *Canvas) Get(id string) (*Object, bool) {
	obj, ok := c.byID[id]
	return obj, ok
}

// Objects returns the stack bottom to top.
func (c *Canvas) Objects() []*Object {
	return slices.Clone(c.objects)
}

// Select replaces the selection. Unknown ids are an error and leave the
// selection unchanged; objects that cannot be selected are skipped.
func (c *Canvas) Select(ids ...string) error {
	next := make([]*Object, 0, len(ids))
	for _, id := range ids {
		obj, ok := c.byID[id]
		if !ok {
			return fmt.Errorf("select %s: %w", id, ErrObjectNotFound)
		}
		if !obj.Selectable() || slices.Contains(next, obj) {
			continue
		}
		next = append(next, obj)
	}
	c.setSelection(next)
	return nil
}

func (c *Canvas) ClearSelection() {
	c.setSelection(nil)
}

// Selected returns the selection in selection order.
func (c *Canvas) Selected() []*Object {
	return slices.Clone(c.selection)
}

// setSelection stores next and fires created, updated or cleared depending
// on the transition. Nothing fires when the selection is unchanged.
func (c *Canvas) setSelection(next []*Object) {
	if slices.Equal(c.selection, next) {
		return
	}
	prev := c.selection
	c.selection = next

	var kind printarea.EventKind
	switch {
	case len(next) == 0:
		kind = printarea.EventSelectionCleared
	case len(prev) == 0:
		kind = printarea.EventSelectionCreated
	default:
		kind = printarea.EventSelectionUpdated
	}

	selected := make([]printarea.Object, len(next))
	for i, o := range next {
		selected[i] = o
	}
	c.Fire(printarea.Event{Kind: kind, Selected: selected})
}

// Resize changes the logical size. Objects keep their canvas coordinates.
func (c *Canvas) Resize(width, height float64) {
	c.Width, c.Height = width, height
}

// MoveBy translates an object and fires a moving event, the way a drag
// frame does.
func (c *Canvas) MoveBy(id string, dx, dy float64) (*Object, error) {
	obj, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("move %s: %w", id, ErrObjectNotFound)
	}
	obj.SetPosition(obj.Left+dx, obj.Top+dy)
	c.Fire(printarea.Event{Kind: printarea.EventObjectMoving, Target: obj})
	return obj, nil
}

// ScaleTo sets an object's scale and fires a scaling event.
func (c *Canvas) ScaleTo(id string, scaleX, scaleY float64) (*Object, error) {
	obj, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("scale %s: %w", id, ErrObjectNotFound)
	}
	obj.SetScale(scaleX, scaleY)
	c.Fire(printarea.Event{Kind: printarea.EventObjectScaling, Target: obj})
	return obj, nil
}

// RotateTo sets an object's angle in degrees and fires a rotating event.
func (c *Canvas) RotateTo(id string, angle float64) (*Object, error) {
	obj, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("rotate %s: %w", id, ErrObjectNotFound)
	}
	obj.Angle = angle
	c.Fire(printarea.Event{Kind: printarea.EventObjectRotating, Target: obj})
	return obj, nil
}

// HitTest returns the topmost selectable object under the point.
func (c *Canvas) HitTest(x, y float64) (*Object, bool) {
	for i := len(c.objects) - 1; i >= 0; i-- {
		obj := c.objects[i]
		if obj.Selectable() && obj.HitTest(x, y) {
			return obj, true
		}
	}
	return nil, false
}
