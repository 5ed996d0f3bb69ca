package collab

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/teeforge/customizer/internal/document"
	"github.com/teeforge/customizer/internal/geometry"
	"github.com/teeforge/customizer/internal/printarea"
)

var (
	ErrUnknownOperation = errors.New("unknown operation type")
	ErrNotEditable      = errors.New("object is not editable")
)

// OpResult is what the room tells the sender about an applied operation.
type OpResult struct {
	// Applied is the operation as the server kept it, with corrected
	// values written back.
	Applied   Operation
	ServerSeq int64
	Transform *document.Transform
	Corrected bool
}

// DesignState holds the authoritative design for a room. Every transform
// that reaches it is forced back inside the print area before it is
// acknowledged, whatever the client did locally.
type DesignState struct {
	mu        sync.RWMutex
	canvas    *document.Canvas
	resolver  printarea.Resolver
	explicit  *geometry.Rect
	serverSeq int64
}

// NewDesignState builds room state from d. A design carrying its own print
// area overrides resolver.
func NewDesignState(d *document.Design, resolver printarea.Resolver) (*DesignState, error) {
	c, err := d.BuildCanvas()
	if err != nil {
		return nil, fmt.Errorf("build canvas: %w", err)
	}
	if d.PrintArea != nil {
		resolver = printarea.StaticResolver(*d.PrintArea)
	}
	if resolver == nil {
		resolver = printarea.DefaultFractions
	}
	return &DesignState{
		canvas:   c,
		resolver: resolver,
		explicit: d.PrintArea,
	}, nil
}

// Sync returns a snapshot for a joining client.
func (ds *DesignState) Sync() DesignSyncPayload {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.syncLocked()
}

func (ds *DesignState) syncLocked() DesignSyncPayload {
	d := document.Snapshot(ds.canvas, ds.explicit)
	// Deep copy so the snapshot can be marshalled outside the lock.
	data, _ := json.Marshal(d)
	var out document.Design
	_ = json.Unmarshal(data, &out)

	return DesignSyncPayload{
		Design:    &out,
		PrintArea: ds.areaLocked(),
		ServerSeq: ds.serverSeq,
	}
}

// PrintArea returns the rectangle operations are held to.
func (ds *DesignState) PrintArea() geometry.Rect {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.areaLocked()
}

func (ds *DesignState) areaLocked() geometry.Rect {
	return ds.resolver.Resolve(ds.canvas.Size())
}

// SetPrintArea replaces the rectangle the room is held to and pulls every
// editable object back inside it. A nil explicit area falls back to
// resolver. The returned snapshot is what clients should resync to.
func (ds *DesignState) SetPrintArea(explicit *geometry.Rect, resolver printarea.Resolver) DesignSyncPayload {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	switch {
	case explicit != nil:
		area := *explicit
		explicit = &area
		resolver = printarea.StaticResolver(area)
	case resolver == nil:
		resolver = printarea.DefaultFractions
	}
	ds.resolver = resolver
	ds.explicit = explicit

	area := ds.areaLocked()
	for _, obj := range ds.canvas.Objects() {
		if !printarea.IsEditable(obj) {
			continue
		}
		printarea.SnapInside(obj, area)
		obj.SetCoords()
	}

	ds.serverSeq++
	return ds.syncLocked()
}

// Object returns a copy of an object's transform.
func (ds *DesignState) Object(id string) (document.Transform, bool) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	obj, ok := ds.canvas.Get(id)
	if !ok {
		return document.Transform{}, false
	}
	return obj.Transform(), true
}

// ServerSeq returns the sequence number of the last applied operation.
func (ds *DesignState) ServerSeq() int64 {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.serverSeq
}

// ApplyOperation applies op and returns the server sequence and, for
// operations that place an object, its settled transform.
func (ds *DesignState) ApplyOperation(op Operation) (OpResult, error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	res, err := ds.applyOperationLocked(&op)
	if err != nil {
		return OpResult{}, err
	}

	ds.serverSeq++
	res.ServerSeq = ds.serverSeq
	res.Applied = op
	return res, nil
}

// applyOperationLocked applies the operation without locking (caller must hold lock)
func (ds *DesignState) applyOperationLocked(op *Operation) (OpResult, error) {
	switch op.Type {
	case OpObjectTransform:
		return ds.applyTransform(op)
	case OpObjectCreate:
		return ds.applyCreate(op)
	case OpObjectDelete:
		return OpResult{}, ds.applyDelete(op)
	default:
		return OpResult{}, fmt.Errorf("%w: %s", ErrUnknownOperation, op.Type)
	}
}

// transformChanges lists the fields an object.transform may carry.
type transformChanges struct {
	Left   *float64 `json:"left"`
	Top    *float64 `json:"top"`
	ScaleX *float64 `json:"scaleX"`
	ScaleY *float64 `json:"scaleY"`
	Angle  *float64 `json:"angle"`
}

func (ds *DesignState) applyTransform(op *Operation) (OpResult, error) {
	obj, err := ds.editable(op.ObjectID)
	if err != nil {
		return OpResult{}, err
	}

	var changes transformChanges
	if err := json.Unmarshal(op.Transform, &changes); err != nil {
		return OpResult{}, fmt.Errorf("invalid transform: %w", err)
	}

	t := obj.Transform()
	if changes.Left != nil {
		t.Left = *changes.Left
	}
	if changes.Top != nil {
		t.Top = *changes.Top
	}
	if changes.ScaleX != nil {
		t.ScaleX = *changes.ScaleX
	}
	if changes.ScaleY != nil {
		t.ScaleY = *changes.ScaleY
	}
	if changes.Angle != nil {
		t.Angle = *changes.Angle
	}

	op.Previous, _ = json.Marshal(obj.Transform())
	obj.ApplyTransform(t)
	return ds.settle(op, obj, t)
}

func (ds *DesignState) applyCreate(op *Operation) (OpResult, error) {
	var obj document.Object
	if err := json.Unmarshal(op.Object, &obj); err != nil {
		return OpResult{}, fmt.Errorf("invalid object: %w", err)
	}
	if !obj.Kind.Valid() {
		return OpResult{}, fmt.Errorf("invalid object: unknown kind %q", obj.Kind)
	}
	if !printarea.IsEditable(&obj) {
		return OpResult{}, fmt.Errorf("create %s: %w", obj.ID, ErrNotEditable)
	}
	if err := ds.canvas.Add(&obj); err != nil {
		return OpResult{}, err
	}
	op.ObjectID = obj.ID
	return ds.settle(op, &obj, obj.Transform())
}

func (ds *DesignState) applyDelete(op *Operation) error {
	obj, err := ds.editable(op.ObjectID)
	if err != nil {
		return err
	}
	op.PreviousObject, _ = json.Marshal(obj)
	return ds.canvas.Remove(op.ObjectID)
}

// editable looks up an object that clients may change.
func (ds *DesignState) editable(id string) (*document.Object, error) {
	obj, ok := ds.canvas.Get(id)
	if !ok {
		return nil, fmt.Errorf("object %s: %w", id, document.ErrObjectNotFound)
	}
	if !printarea.IsEditable(obj) {
		return nil, fmt.Errorf("object %s: %w", id, ErrNotEditable)
	}
	return obj, nil
}

// settle snaps obj inside the print area and rewrites op so that what is
// broadcast is the corrected state.
func (ds *DesignState) settle(op *Operation, obj *document.Object, submitted document.Transform) (OpResult, error) {
	printarea.SnapInside(obj, ds.areaLocked())
	obj.SetCoords()

	final := obj.Transform()
	if op.Type == OpObjectTransform {
		op.Transform, _ = json.Marshal(transformChanges{
			Left:   &final.Left,
			Top:    &final.Top,
			ScaleX: &final.ScaleX,
			ScaleY: &final.ScaleY,
			Angle:  &final.Angle,
		})
	} else {
		op.Object, _ = json.Marshal(obj)
	}
	return OpResult{Transform: &final, Corrected: final != submitted}, nil
}

// GetServerTimestamp returns the current server timestamp
func GetServerTimestamp() int64 {
	return time.Now().UnixMilli()
}
