package printarea

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teeforge/customizer/internal/geometry"
)

type fakeHandle struct {
	host *fakeHost
	kind EventKind
	idx  int
}

func (h fakeHandle) Remove() {
	h.host.handlers[h.kind][h.idx] = nil
}

type fakeHost struct {
	width, height float64
	handlers      map[EventKind][]func(Event)
}

func newFakeHost(w, h float64) *fakeHost {
	return &fakeHost{width: w, height: h, handlers: make(map[EventKind][]func(Event))}
}

func (h *fakeHost) Size() (float64, float64) { return h.width, h.height }

func (h *fakeHost) On(kind EventKind, fn func(Event)) Handle {
	h.handlers[kind] = append(h.handlers[kind], fn)
	return fakeHandle{host: h, kind: kind, idx: len(h.handlers[kind]) - 1}
}

func (h *fakeHost) emit(ev Event) {
	for _, fn := range h.handlers[ev.Kind] {
		if fn != nil {
			fn(ev)
		}
	}
}

func (h *fakeHost) live() int {
	n := 0
	for _, fns := range h.handlers {
		for _, fn := range fns {
			if fn != nil {
				n++
			}
		}
	}
	return n
}

// A 1000x800 canvas resolves to {225, 120, 550, 520} under the default policy.
var defaultArea = geometry.Rect{X: 225, Y: 120, Width: 550, Height: 520}

func TestSession_SubscribesEveryKind(t *testing.T) {
	host := newFakeHost(1000, 800)
	s := NewSession(host)

	assert.Equal(t, len(EventKinds), host.live())
	area := s.Area()
	assert.InDelta(t, defaultArea.X, area.X, 1e-9)
	assert.InDelta(t, defaultArea.Y, area.Y, 1e-9)
	assert.InDelta(t, defaultArea.Width, area.Width, 1e-9)
	assert.InDelta(t, defaultArea.Height, area.Height, 1e-9)
}

func TestSession_MovingClampsAndRefreshes(t *testing.T) {
	host := newFakeHost(1000, 800)
	NewSession(host)
	obj := newFake(10, 300, 100, 100)

	host.emit(Event{Kind: EventObjectMoving, Target: obj})

	assert.InDelta(t, 225, obj.left, 1e-9)
	assert.Equal(t, 300.0, obj.top)
	assert.Equal(t, 1, obj.setCoords)
}

func TestSession_ScalingClampsScaleThenPosition(t *testing.T) {
	host := newFakeHost(1000, 800)
	NewSession(host)
	obj := newFake(700, 200, 700, 260)

	host.emit(Event{Kind: EventObjectScaling, Target: obj})

	b := geometry.BoundsOf(obj)
	assert.Less(t, obj.scaleX, 1.0)
	assert.InDelta(t, obj.scaleX, obj.scaleY, 1e-12)
	assert.True(t, geometry.IsInside(b, defaultArea), "bounds %+v", b)
	assert.Equal(t, 2, obj.setCoords)
}

func TestSession_RotatingSnapsInside(t *testing.T) {
	host := newFakeHost(1000, 800)
	NewSession(host)
	obj := newFake(700, 600, 450, 300)
	obj.originX, obj.originY = 0.5, 0.5
	obj.angle = 60

	host.emit(Event{Kind: EventObjectRotating, Target: obj})

	assert.True(t, geometry.IsInside(geometry.BoundsOf(obj), defaultArea))
	assert.GreaterOrEqual(t, obj.setCoords, 1)
}

func TestSession_IneligibleObjectsNeverMutated(t *testing.T) {
	host := newFakeHost(1000, 800)
	NewSession(host)

	garment := newFake(-300, -300, 2000, 2000)
	garment.selectable = false
	garment.baseProduct = true
	before := *garment

	for _, kind := range []EventKind{EventObjectMoving, EventObjectScaling, EventObjectRotating} {
		host.emit(Event{Kind: kind, Target: garment})
	}

	assert.Equal(t, before, *garment)
}

func TestSession_EmptyAreaSkipsFrame(t *testing.T) {
	host := newFakeHost(1000, 800)
	ref := ReferenceResolver{Ref: func() (geometry.Rect, bool) { return geometry.Rect{}, false }}
	NewSession(host, WithResolver(ref))
	obj := newFake(-50, -50, 100, 100)

	host.emit(Event{Kind: EventObjectMoving, Target: obj})

	assert.Equal(t, -50.0, obj.left)
	assert.Zero(t, obj.setCoords)
}

func TestSession_ReferenceIsQueriedPerEvent(t *testing.T) {
	host := newFakeHost(1000, 800)
	ref := geometry.Rect{X: 0, Y: 0, Width: 100, Height: 100}
	calls := 0
	NewSession(host, WithResolver(ReferenceResolver{Ref: func() (geometry.Rect, bool) {
		calls++
		return ref, true
	}}))
	obj := newFake(150, 0, 20, 20)

	host.emit(Event{Kind: EventObjectMoving, Target: obj})
	assert.InDelta(t, 80, obj.left, 1e-9)

	// The overlay moved after a resize.
	ref = geometry.Rect{X: 500, Y: 0, Width: 100, Height: 100}
	host.emit(Event{Kind: EventObjectMoving, Target: obj})
	assert.InDelta(t, 500, obj.left, 1e-9)
	assert.Equal(t, 2, calls)
}

func TestSession_SelectionObserver(t *testing.T) {
	host := newFakeHost(1000, 800)
	var seen []Object
	NewSession(host, WithSelectionObserver(func(o Object) { seen = append(seen, o) }))

	a := newFake(300, 300, 10, 10)
	b := newFake(400, 300, 10, 10)
	host.emit(Event{Kind: EventSelectionCreated, Selected: []Object{a}})
	host.emit(Event{Kind: EventSelectionUpdated, Selected: []Object{b, a}})
	host.emit(Event{Kind: EventSelectionCleared})

	require.Len(t, seen, 3)
	assert.Same(t, a, seen[0])
	assert.Same(t, b, seen[1])
	assert.Nil(t, seen[2])
}

func TestSession_HandleWithoutHost(t *testing.T) {
	s := NewSession(nil, WithResolver(StaticResolver(testArea)))
	obj := newFake(0, 0, 50, 50)

	s.Handle(Event{Kind: EventObjectMoving, Target: obj})

	assert.InDelta(t, 100, obj.left, 1e-9)
	assert.InDelta(t, 100, obj.top, 1e-9)
}

func TestSession_Dispose(t *testing.T) {
	host := newFakeHost(1000, 800)
	s := NewSession(host)

	s.Dispose()
	s.Dispose()

	assert.True(t, s.IsDisposed())
	assert.Zero(t, host.live())

	obj := newFake(-100, -100, 50, 50)
	s.Handle(Event{Kind: EventObjectMoving, Target: obj})
	assert.Equal(t, -100.0, obj.left)
}

func TestSession_LogsCorrections(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := NewSession(nil, WithResolver(StaticResolver(testArea)), WithLogger(logger))

	s.Handle(Event{Kind: EventObjectMoving, Target: newFake(150, 150, 10, 10)})
	assert.Empty(t, buf.String())

	s.Handle(Event{Kind: EventObjectMoving, Target: newFake(0, 150, 10, 10)})
	assert.Contains(t, buf.String(), "print area correction")
	assert.Contains(t, buf.String(), "event=object:moving")
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "object:rotating", EventObjectRotating.String())
	assert.Equal(t, "selection:cleared", EventSelectionCleared.String())
	assert.Equal(t, "unknown", EventKind(200).String())
}
