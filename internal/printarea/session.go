package printarea

import (
	"log/slog"

	"github.com/teeforge/customizer/internal/geometry"
)

// EventKind identifies a host canvas notification.
type EventKind uint8

const (
	EventObjectMoving     EventKind = iota // an object is being dragged
	EventObjectScaling                     // a scale handle is being dragged
	EventObjectRotating                    // the rotation handle is being dragged
	EventSelectionCreated                  // nothing was selected, now something is
	EventSelectionUpdated                  // the selection changed to other objects
	EventSelectionCleared                  // the selection was emptied
)

var eventKindNames = [...]string{
	EventObjectMoving:     "object:moving",
	EventObjectScaling:    "object:scaling",
	EventObjectRotating:   "object:rotating",
	EventSelectionCreated: "selection:created",
	EventSelectionUpdated: "selection:updated",
	EventSelectionCleared: "selection:cleared",
}

func (k EventKind) String() string {
	if int(k) < len(eventKindNames) {
		return eventKindNames[k]
	}
	return "unknown"
}

// EventKinds lists every kind a Session subscribes to.
var EventKinds = []EventKind{
	EventObjectMoving,
	EventObjectScaling,
	EventObjectRotating,
	EventSelectionCreated,
	EventSelectionUpdated,
	EventSelectionCleared,
}

// Event is delivered by the host canvas. Target is set for transform
// events; Selected carries the new selection for selection events.
type Event struct {
	Kind     EventKind
	Target   Transformable
	Selected []Object
}

// Handle removes a host subscription.
type Handle interface {
	Remove()
}

// Host is the canvas the session is bound to.
type Host interface {
	Size() (width, height float64)
	On(kind EventKind, fn func(Event)) Handle
}

// SelectionObserver is told about the newly selected object, or nil when
// the selection is cleared.
type SelectionObserver func(selected Object)

// Option configures a Session.
type Option func(*Session)

// WithResolver replaces the default fraction policy.
func WithResolver(r Resolver) Option {
	return func(s *Session) {
		if r != nil {
			s.resolver = r
		}
	}
}

// WithSelectionObserver registers the selection-change callback.
func WithSelectionObserver(fn SelectionObserver) Option {
	return func(s *Session) {
		s.observer = fn
	}
}

// WithLogger sets the logger used for correction diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// Session binds the constraint operators to one host canvas. It holds no
// per-gesture state: every event is handled against the object's current
// transform and the print area resolved for that event.
type Session struct {
	host     Host
	resolver Resolver
	observer SelectionObserver
	logger   *slog.Logger

	handlers map[EventKind]func(Event)
	subs     []Handle
	disposed bool
}

// NewSession subscribes a session to every event kind on host.
func NewSession(host Host, opts ...Option) *Session {
	s := &Session{
		host:     host,
		resolver: DefaultFractions,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.handlers = map[EventKind]func(Event){
		EventObjectMoving:     s.handleMoving,
		EventObjectScaling:    s.handleScaling,
		EventObjectRotating:   s.handleRotating,
		EventSelectionCreated: s.handleSelection,
		EventSelectionUpdated: s.handleSelection,
		EventSelectionCleared: s.handleSelectionCleared,
	}

	if host != nil {
		for _, kind := range EventKinds {
			s.subs = append(s.subs, host.On(kind, s.Handle))
		}
	}
	return s
}

// Handle dispatches ev to its handler. It is what the session registers on
// the host, and can be called directly without a live canvas.
func (s *Session) Handle(ev Event) {
	if s.disposed {
		return
	}
	if h, ok := s.handlers[ev.Kind]; ok {
		h(ev)
	}
}

// Area resolves the print area for the host's current size.
func (s *Session) Area() geometry.Rect {
	var w, h float64
	if s.host != nil {
		w, h = s.host.Size()
	}
	return s.resolver.Resolve(w, h)
}

// Dispose removes every host subscription. Further events are ignored.
func (s *Session) Dispose() {
	if s.disposed {
		return
	}
	for _, sub := range s.subs {
		sub.Remove()
	}
	s.subs = nil
	s.disposed = true
}

// IsDisposed returns true once Dispose has run.
func (s *Session) IsDisposed() bool {
	return s.disposed
}

func (s *Session) handleMoving(ev Event) {
	area, ok := s.target(ev)
	if !ok {
		return
	}
	c := ClampPosition(ev.Target, area)
	ev.Target.SetCoords()
	s.logCorrection(ev, c)
}

func (s *Session) handleScaling(ev Event) {
	area, ok := s.target(ev)
	if !ok {
		return
	}
	scaled := ClampScale(ev.Target, area)
	ev.Target.SetCoords()
	moved := ClampPosition(ev.Target, area)
	ev.Target.SetCoords()
	s.logCorrection(ev, Correction{DX: moved.DX, DY: moved.DY, Factor: scaled.Factor})
}

func (s *Session) handleRotating(ev Event) {
	area, ok := s.target(ev)
	if !ok {
		return
	}
	c := SnapInside(ev.Target, area)
	ev.Target.SetCoords()
	s.logCorrection(ev, c)
}

func (s *Session) handleSelection(ev Event) {
	if s.observer == nil {
		return
	}
	var selected Object
	if len(ev.Selected) > 0 {
		selected = ev.Selected[0]
	}
	s.observer(selected)
}

func (s *Session) handleSelectionCleared(Event) {
	if s.observer != nil {
		s.observer(nil)
	}
}

// target gates a transform event: the object must be eligible and the print
// area must be non-empty.
func (s *Session) target(ev Event) (geometry.Rect, bool) {
	if ev.Target == nil || !IsEditable(ev.Target) {
		return geometry.Rect{}, false
	}
	area := s.Area()
	if area.IsEmpty() {
		return geometry.Rect{}, false
	}
	return area, true
}

func (s *Session) logCorrection(ev Event, c Correction) {
	if !c.Changed() {
		return
	}
	var id string
	if o, ok := ev.Target.(interface{ ObjectID() string }); ok {
		id = o.ObjectID()
	}
	s.logger.Debug("print area correction",
		"event", ev.Kind.String(),
		"object", id,
		"dx", c.DX,
		"dy", c.DY,
		"factor", c.Factor,
	)
}
