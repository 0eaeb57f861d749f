// Package droptarget is the target half of drag and drop. A Target
// negotiates a type and an operation with each drag passing over its
// control, keeps a hover heartbeat running while the pointer rests so
// auto-scroll and auto-expand can fire, and decodes the dropped payload.
//
// A Target is confined to the event loop given to New.
package droptarget

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.klb.dev/xfer/internal/dnd"
	"go.klb.dev/xfer/internal/loop"
	"go.klb.dev/xfer/internal/platform"
	"go.klb.dev/xfer/internal/registry"
	"go.klb.dev/xfer/internal/signals"
	"go.klb.dev/xfer/internal/transfer"
)

var (
	ErrDisposed = errors.New("droptarget: disposed")
	ErrNilCodec = errors.New("droptarget: nil codec")
)

// State is the drag lifecycle of a Target.
type State int

const (
	Idle State = iota
	Entered
	Hovering
	Dropping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Entered:
		return "entered"
	case Hovering:
		return "hovering"
	case Dropping:
		return "dropping"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Timing holds the hover intervals.
type Timing struct {
	// Heartbeat is both the heartbeat period and the time the pointer must
	// rest before the heartbeat re-evaluates the hover.
	Heartbeat time.Duration
	// Scroll and Expand are the dwell times over one item before it is
	// scrolled into view or expanded.
	Scroll time.Duration
	Expand time.Duration
}

// DefaultTiming returns the standard intervals.
func DefaultTiming() Timing {
	return Timing{
		Heartbeat: 50 * time.Millisecond,
		Scroll:    150 * time.Millisecond,
		Expand:    time.Second,
	}
}

// Option configures a Target.
type Option func(*Target)

// WithTiming overrides DefaultTiming. Zero fields keep their default.
func WithTiming(tm Timing) Option {
	return func(t *Target) {
		if tm.Heartbeat > 0 {
			t.timing.Heartbeat = tm.Heartbeat
		}
		if tm.Scroll > 0 {
			t.timing.Scroll = tm.Scroll
		}
		if tm.Expand > 0 {
			t.timing.Expand = tm.Expand
		}
	}
}

// WithEffect sets the control's hover effect.
func WithEffect(e Effect) Option { return func(t *Target) { t.effect = e } }

var targetSignals = []signals.Kind{
	signals.DragMotion,
	signals.DragLeave,
	signals.DragDrop,
	signals.DragDataReceived,
}

// targets holds every live Target by control handle. One Target per
// control.
var targets = signals.NewTable[platform.Handle]()

// Target turns one control into a drop target.
type Target struct {
	sched   loop.Scheduler
	backend platform.DragBackend
	handle  platform.Handle
	ops     dnd.Operation
	timing  Timing
	effect  Effect

	codecs    []transfer.Codec
	listeners []Listener

	state    State
	sess     session
	disposed bool
}

// New makes the control identified by handle a drop target accepting ops.
// A zero ops accepts Move. Only one Target may exist per handle.
func New(sched loop.Scheduler, backend platform.DragBackend, handle platform.Handle, ops dnd.Operation, opts ...Option) (*Target, error) {
	ops &= dnd.All
	if ops == dnd.None {
		ops = dnd.Move
	}
	t := &Target{
		sched:   sched,
		backend: backend,
		handle:  handle,
		ops:     ops,
		timing:  DefaultTiming(),
		sess:    newSession(),
	}
	for _, o := range opts {
		o(t)
	}
	if err := targets.ConnectAll(handle, t, targetSignals...); err != nil {
		return nil, fmt.Errorf("drop target for %d: %w", handle, err)
	}
	if err := backend.RegisterDropTarget(handle, sink{handle}); err != nil {
		targets.DisconnectAll(handle)
		return nil, fmt.Errorf("register drop target %d: %w", handle, err)
	}
	return t, nil
}

// Handle returns the control handle.
func (t *Target) Handle() platform.Handle { return t.handle }

// Operations returns the operations the target accepts.
func (t *Target) Operations() dnd.Operation { return t.ops }

// Timing returns the hover intervals in use.
func (t *Target) Timing() Timing { return t.timing }

// State returns the drag lifecycle state.
func (t *Target) State() State { return t.state }

// SetCodecs replaces the codecs whose types the target accepts.
func (t *Target) SetCodecs(codecs ...transfer.Codec) error {
	if t.disposed {
		return ErrDisposed
	}
	for i, c := range codecs {
		if c == nil {
			return fmt.Errorf("%w at %d", ErrNilCodec, i)
		}
	}
	t.codecs = append([]transfer.Codec(nil), codecs...)
	return nil
}

// AddListener registers l for drop events.
func (t *Target) AddListener(l Listener) {
	if l != nil {
		t.listeners = append(t.listeners, l)
	}
}

// Dispose stops the heartbeat and disconnects the target. A drag over the
// control is dropped without further events.
func (t *Target) Dispose() {
	if t.disposed {
		return
	}
	t.disposed = true
	t.reset()
	targets.DisconnectAll(t.handle)
	t.backend.UnregisterDropTarget(t.handle)
}

// event builds the event for a signal from dc at (x, y). It fails when the
// drag offers no type this target accepts. The suggested operation becomes
// the new key operation.
func (t *Target) event(dc platform.DragContext, x, y int, at time.Time) (*dnd.Event, bool) {
	types := transfer.Common(dc.SourceTypes(), t.codecs)
	allowed := dc.SourceActions() & t.ops
	if len(types) == 0 || allowed == dnd.None {
		return nil, false
	}
	suggested := dc.SuggestedAction() & dnd.All
	t.sess.keyOperation = suggested
	e := &dnd.Event{
		X:          x,
		Y:          y,
		Time:       at,
		DataTypes:  types,
		DataType:   types[0],
		Operations: allowed,
		Detail:     dnd.Negotiate(allowed, suggested),
		Doit:       true,
	}
	if t.effect != nil {
		e.Item = t.effect.ItemAt(x, y)
	}
	return e, true
}

// settle records the type and operation the listeners left in e. An
// operation outside e.Operations falls back to Move when allowed, else
// None; None, a cleared Doit or a type the drag does not offer reject.
func (t *Target) settle(e *dnd.Event) {
	s := &t.sess
	s.selectedType = registry.Invalid
	s.selectedOp = dnd.None
	if !e.Doit || e.Detail == dnd.None {
		return
	}
	if !slices.Contains(e.DataTypes, e.DataType) {
		return
	}
	s.selectedType = e.DataType
	s.selectedOp = dnd.Negotiate(e.Operations, e.Detail)
	if s.selectedOp == dnd.None {
		s.selectedType = registry.Invalid
	}
}

// report tells the platform the selected operation if it changed or force
// is set.
func (t *Target) report(force bool) {
	s := &t.sess
	if force || s.lastOperation != s.selectedOp {
		s.dc.Status(s.selectedOp)
	}
	s.lastOperation = s.selectedOp
}

func (t *Target) motion(dc platform.DragContext, x, y int, at time.Time) {
	if t.disposed {
		dc.Status(dnd.None)
		return
	}
	if t.state == Dropping && t.sess.dc == dc {
		return
	}
	if t.sess.active() && t.sess.dc != dc {
		t.leave(t.sess.dc)
	}
	s := &t.sess
	old := s.keyOperation
	if old == dnd.Unset {
		s.selectedType = registry.Invalid
		s.selectedOp = dnd.None
	}

	e, ok := t.event(dc, x, y, at)
	if !ok {
		if old != dnd.Unset {
			t.leave(dc)
		}
		s.keyOperation = dnd.Unset
		dc.Status(dnd.None)
		return
	}
	s.dc = dc

	kind := evEnter
	switch {
	case old == dnd.Unset:
	case s.keyOperation == old:
		kind = evOver
		e.DataType = s.selectedType
		e.Detail = s.selectedOp
	default:
		kind = evOperationChanged
		e.DataType = s.selectedType
	}

	t.updateHover(e)
	t.notify(kind, e)
	t.settle(e)
	t.report(true)

	switch kind {
	case evEnter:
		t.state = Entered
		if t.effect != nil {
			s.resetEffects()
		}
		t.startHeartbeat()
	case evOver:
		t.state = Hovering
		t.hover(e)
	default:
		t.state = Hovering
	}
}

// updateHover restarts the dwell window and keeps e for the heartbeat.
func (t *Target) updateHover(e *dnd.Event) {
	t.sess.hoverStart = e.Time.Add(t.timing.Heartbeat)
	t.sess.hoverEvent = e.Clone()
}

func (t *Target) startHeartbeat() {
	if t.sess.heartbeat != nil {
		t.sess.heartbeat.Stop()
	}
	t.sess.heartbeat = t.sched.AfterFunc(t.timing.Heartbeat, t.beat)
}

// beat re-evaluates the hover once the pointer has rested for a full
// heartbeat, then reschedules itself.
func (t *Target) beat() {
	s := &t.sess
	s.heartbeat = nil
	if t.disposed || !s.active() || (t.state != Entered && t.state != Hovering) {
		return
	}
	delay := t.timing.Heartbeat
	now := t.sched.Now()
	if now.Before(s.hoverStart) {
		delay = s.hoverStart.Sub(now)
	} else {
		e := s.hoverEvent.Clone()
		e.Time = now
		e.DataType = s.selectedType
		e.Detail = s.selectedOp
		e.Feedback = dnd.FeedbackNone
		e.Data = nil
		e.Doit = true
		t.notify(evOver, e)
		t.settle(e)
		t.report(false)
		t.state = Hovering
		t.hover(e)
	}
	if t.disposed || !s.active() {
		return
	}
	s.heartbeat = t.sched.AfterFunc(delay, t.beat)
}

// hover drives auto-scroll and auto-expand from the feedback a DragOver
// listener requested. Each effect fires once the pointer has stayed over
// the same item for its dwell time, then re-arms.
func (t *Target) hover(e *dnd.Event) {
	if t.effect == nil {
		return
	}
	s := &t.sess
	now := t.sched.Now()
	s.scroll.step(e.Feedback&dnd.FeedbackScroll != 0, e.Item, now, t.timing.Scroll, t.effect.Scroll)
	s.expand.step(e.Feedback&dnd.FeedbackExpand != 0, e.Item, now, t.timing.Expand, t.effect.Expand)
}

func (t *Target) leave(dc platform.DragContext) {
	if !t.sess.active() || t.sess.dc != dc {
		return
	}
	// A leave while Dropping means the drag was cancelled before its data
	// arrived; any data still in flight is then stale.
	e := &dnd.Event{Time: t.sched.Now(), Detail: dnd.None}
	t.reset()
	t.notify(evLeave, e)
}

func (t *Target) drop(dc platform.DragContext, x, y int, at time.Time) bool {
	if t.disposed {
		return false
	}
	s := &t.sess
	if !s.active() || s.dc != dc {
		slog.Debug("drop without hover", "target", t.handle)
		t.reset()
		return false
	}
	s.stopHeartbeat()

	e, ok := t.event(dc, x, y, at)
	if !ok {
		t.leave(dc)
		return false
	}
	e.DataType = s.selectedType
	e.Detail = s.selectedOp
	t.state = Dropping
	t.notify(evDropAccept, e)
	t.settle(e)

	if s.selectedOp == dnd.None {
		t.state = Hovering
		t.leave(dc)
		return false
	}
	e.DataType = s.selectedType
	e.Detail = s.selectedOp
	s.dropEvent = e
	dc.RequestData(s.selectedType)
	return true
}

func (t *Target) dataReceived(dc platform.DragContext, d transfer.Data) {
	s := &t.sess
	if t.state != Dropping || s.dc != dc || s.dropEvent == nil {
		slog.Warn("dropping stale drag data", "target", t.handle, "type", d.Type, "state", t.state)
		return
	}
	e := s.dropEvent
	e.Time = t.sched.Now()

	var value any
	if codec, ok := transfer.FirstSupported(t.codecs, d.Type); ok && d.OK() {
		value, _ = codec.Decode(d)
	}
	if value == nil {
		e.Data = nil
		e.Detail = dnd.None
	} else {
		e.Data = value
	}
	t.notify(evDrop, e)

	op := e.Detail
	if !op.Single() || e.Operations&op == 0 || !e.Doit || e.Data == nil {
		op = dnd.None
	}
	t.reset()
	if op != dnd.None {
		dc.Status(op)
	}
	dc.Finish(op != dnd.None, op == dnd.Move)
	slog.Debug("drop finished", "target", t.handle, "operation", op)
}

// reset ends the drag session and stops its timers.
func (t *Target) reset() {
	t.sess.stopHeartbeat()
	t.sess = newSession()
	t.state = Idle
}

type eventKind int

const (
	evEnter eventKind = iota
	evOver
	evOperationChanged
	evLeave
	evDropAccept
	evDrop
)

func (k eventKind) String() string {
	return [...]string{"drag-enter", "drag-over", "drag-operation-changed", "drag-leave", "drop-accept", "drop"}[k]
}

// notify calls every listener for kind. A panicking listener rejects: the
// operation is forced to None.
func (t *Target) notify(kind eventKind, e *dnd.Event) {
	for _, l := range t.listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Warn("drop target listener panicked", "event", kind, "target", t.handle, "panic", r)
					e.Detail = dnd.None
					e.Doit = false
				}
			}()
			switch kind {
			case evEnter:
				l.DragEnter(e)
			case evOver:
				l.DragOver(e)
			case evOperationChanged:
				l.DragOperationChanged(e)
			case evLeave:
				l.DragLeave(e)
			case evDropAccept:
				l.DropAccept(e)
			case evDrop:
				l.Drop(e)
			}
		}()
	}
}

// sink is what the backend holds: a handle, resolved to the live Target at
// each signal.
type sink struct{ handle platform.Handle }

func (k sink) Motion(dc platform.DragContext, x, y int, at time.Time) {
	if !signals.Emit(targets, signals.DragMotion, k.handle, func(t *Target) { t.motion(dc, x, y, at) }) {
		dc.Status(dnd.None)
	}
}

func (k sink) Leave(dc platform.DragContext) {
	signals.Emit(targets, signals.DragLeave, k.handle, func(t *Target) { t.leave(dc) })
}

func (k sink) Drop(dc platform.DragContext, x, y int, at time.Time) bool {
	ok, _ := signals.Call(targets, signals.DragDrop, k.handle, func(t *Target) bool { return t.drop(dc, x, y, at) })
	return ok
}

func (k sink) DataReceived(dc platform.DragContext, d transfer.Data) {
	signals.Emit(targets, signals.DragDataReceived, k.handle, func(t *Target) { t.dataReceived(dc, d) })
}
