// Package dragsource is the source half of drag and drop: it offers the
// types of its codecs to the platform, encodes the application's value on
// demand and reports the operation the drop actually performed.
//
// A Source is confined to the event loop given to New.
package dragsource

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	"go.klb.dev/xfer/internal/dnd"
	"go.klb.dev/xfer/internal/loop"
	"go.klb.dev/xfer/internal/platform"
	"go.klb.dev/xfer/internal/registry"
	"go.klb.dev/xfer/internal/signals"
	"go.klb.dev/xfer/internal/transfer"
)

var (
	ErrBusy     = errors.New("dragsource: drag in progress")
	ErrDisposed = errors.New("dragsource: disposed")
	ErrNilCodec = errors.New("dragsource: nil codec")
)

// State is the drag lifecycle of a Source.
type State int

const (
	Idle State = iota
	Preparing
	Active
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Preparing:
		return "preparing"
	case Active:
		return "active"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var sourceSignals = []signals.Kind{
	signals.DragDataGet,
	signals.DragDataDelete,
	signals.DragEnd,
}

// sources holds every live Source by control handle. One Source per
// control.
var sources = signals.NewTable[platform.Handle]()

// Source turns one control into a drag source.
type Source struct {
	sched   loop.Scheduler
	backend platform.DragBackend
	handle  platform.Handle
	ops     dnd.Operation

	codecs    []transfer.Codec
	listeners []Listener

	state    State
	types    []registry.TypeID
	image    image.Image
	moveData bool
	disposed bool
}

// New makes the control identified by handle a drag source allowing ops.
// A zero ops allows Move. Only one Source may exist per handle.
func New(sched loop.Scheduler, backend platform.DragBackend, handle platform.Handle, ops dnd.Operation) (*Source, error) {
	ops &= dnd.All
	if ops == dnd.None {
		ops = dnd.Move
	}
	s := &Source{sched: sched, backend: backend, handle: handle, ops: ops}
	if err := sources.ConnectAll(handle, s, sourceSignals...); err != nil {
		return nil, fmt.Errorf("drag source for %d: %w", handle, err)
	}
	return s, nil
}

// Handle returns the control handle.
func (s *Source) Handle() platform.Handle { return s.handle }

// Operations returns the operations the source allows.
func (s *Source) Operations() dnd.Operation { return s.ops }

// State returns the drag lifecycle state.
func (s *Source) State() State { return s.state }

// Image returns the feedback image requested by DragStart for the active
// drag.
func (s *Source) Image() image.Image { return s.image }

// SetCodecs replaces the codecs whose types the source offers.
func (s *Source) SetCodecs(codecs ...transfer.Codec) error {
	if s.disposed {
		return ErrDisposed
	}
	for i, c := range codecs {
		if c == nil {
			return fmt.Errorf("%w at %d", ErrNilCodec, i)
		}
	}
	s.codecs = append([]transfer.Codec(nil), codecs...)
	return nil
}

// Codecs returns the codecs set by SetCodecs.
func (s *Source) Codecs() []transfer.Codec { return append([]transfer.Codec(nil), s.codecs...) }

// AddListener registers l for drag events.
func (s *Source) AddListener(l Listener) {
	if l != nil {
		s.listeners = append(s.listeners, l)
	}
}

// Begin starts a drag from (x, y). It reports false, without error, when
// there is nothing to offer or a listener vetoed the drag.
func (s *Source) Begin(x, y int) (bool, error) {
	if s.disposed {
		return false, ErrDisposed
	}
	if s.state != Idle {
		return false, ErrBusy
	}
	s.state = Preparing

	types := transfer.TypesOf(s.codecs)
	if len(types) == 0 {
		slog.Debug("drag not started, no types", "source", s.handle)
		s.release()
		return false, nil
	}
	e := &dnd.Event{
		X:          x,
		Y:          y,
		Time:       s.sched.Now(),
		DataTypes:  types,
		Operations: s.ops,
		Doit:       true,
	}
	s.notify("drag-start", e, Listener.DragStart)
	if !e.Doit {
		slog.Debug("drag vetoed", "source", s.handle)
		s.release()
		return false, nil
	}

	s.types = types
	s.image = e.Image
	s.moveData = false
	if err := s.backend.StartDrag(s.handle, types, s.ops, sink{s.handle}); err != nil {
		s.release()
		return false, fmt.Errorf("start drag: %w", err)
	}
	s.state = Active
	return true, nil
}

// Dispose disconnects the source. A drag in progress is abandoned; the
// platform's later signals find no receiver.
func (s *Source) Dispose() {
	if s.disposed {
		return
	}
	s.disposed = true
	sources.DisconnectAll(s.handle)
	s.release()
}

func (s *Source) dataRequested(t registry.TypeID) transfer.Data {
	if s.state != Active {
		slog.Warn("drag data requested outside a drag", "source", s.handle, "state", s.state)
		return transfer.Failure(t)
	}
	codec, ok := transfer.FirstSupported(s.codecs, t)
	if !ok {
		return transfer.Failure(t)
	}
	e := &dnd.Event{Time: s.sched.Now(), DataType: t, Operations: s.ops, Doit: true}
	s.notify("drag-set-data", e, Listener.DragSetData)
	if !e.Doit || e.Data == nil {
		return transfer.Failure(t)
	}
	return codec.Encode(e.Data, t)
}

func (s *Source) dataDelete() {
	if s.state == Active {
		s.moveData = true
	}
}

// end resolves the operation performed. A Move is only reported when the
// target asked the source to delete its data; otherwise it becomes None.
// A delete request forces Move whatever the platform says.
func (s *Source) end(op dnd.Operation) {
	defer s.release()
	if s.state != Active {
		slog.Warn("drag end outside a drag", "source", s.handle, "state", s.state)
		return
	}
	final := op & dnd.All
	switch {
	case s.moveData:
		final = dnd.Move
	case final == dnd.Move:
		final = dnd.None
	}
	e := &dnd.Event{
		Time:       s.sched.Now(),
		Operations: s.ops,
		Detail:     final,
		Image:      s.image,
		Doit:       final != dnd.None,
	}
	s.notify("drag-finished", e, Listener.DragFinished)
	slog.Debug("drag finished", "source", s.handle, "reported", op, "operation", final)
}

// release drops every per-drag resource.
func (s *Source) release() {
	s.state = Idle
	s.types = nil
	s.image = nil
	s.moveData = false
}

// notify calls fn on every listener. A panicking listener vetoes the event.
func (s *Source) notify(name string, e *dnd.Event, fn func(Listener, *dnd.Event)) {
	for _, l := range s.listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Warn("drag source listener panicked", "event", name, "source", s.handle, "panic", r)
					e.Doit = false
				}
			}()
			fn(l, e)
		}()
	}
}

// sink is what the backend holds: a handle, resolved to the live Source at
// each signal.
type sink struct{ handle platform.Handle }

func (k sink) DataRequested(t registry.TypeID) transfer.Data {
	d, ok := signals.Call(sources, signals.DragDataGet, k.handle, func(s *Source) transfer.Data {
		return s.dataRequested(t)
	})
	if !ok {
		return transfer.Failure(t)
	}
	return d
}

func (k sink) DataDelete() {
	signals.Emit(sources, signals.DragDataDelete, k.handle, (*Source).dataDelete)
}

func (k sink) End(op dnd.Operation) {
	signals.Emit(sources, signals.DragEnd, k.handle, func(s *Source) { s.end(op) })
}
