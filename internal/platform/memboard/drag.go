package memboard

import (
	"slices"

	"go.klb.dev/xfer/internal/dnd"
	"go.klb.dev/xfer/internal/platform"
	"go.klb.dev/xfer/internal/registry"
	"go.klb.dev/xfer/internal/signals"
	"go.klb.dev/xfer/internal/transfer"
)

var dropSignals = []signals.Kind{
	signals.DragMotion,
	signals.DragLeave,
	signals.DragDrop,
	signals.DragDataReceived,
}

func (c *Client) RegisterDropTarget(target platform.Handle, sink platform.DropTargetSink) error {
	d := c.d
	d.mu.Lock()
	if c.closed {
		d.mu.Unlock()
		return ErrClientClosed
	}
	d.mu.Unlock()
	if err := d.targets.ConnectAll(target, sink, dropSignals...); err != nil {
		return err
	}
	d.mu.Lock()
	d.targetOwner[target] = c
	d.mu.Unlock()
	return nil
}

func (c *Client) UnregisterDropTarget(target platform.Handle) {
	d := c.d
	d.mu.Lock()
	if d.targetOwner[target] != c {
		d.mu.Unlock()
		return
	}
	delete(d.targetOwner, target)
	d.mu.Unlock()
	d.targets.DisconnectAll(target)
}

// StartDrag begins a drag session. The session is driven through the Drag
// returned by Display.ActiveDrag.
func (c *Client) StartDrag(src platform.Handle, types []registry.TypeID, ops dnd.Operation, sink platform.DragSourceSink) error {
	d := c.d
	d.mu.Lock()
	defer d.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	if d.drag != nil {
		return ErrDragActive
	}
	d.drag = &Drag{
		d:         d,
		src:       c,
		srcHandle: src,
		types:     slices.Clone(types),
		actions:   ops & dnd.All,
		suggested: defaultSuggested(ops),
		delivered: defaultSuggested(ops),
		sink:      sink,
		done:      make(chan struct{}),
	}
	return nil
}

// ActiveDrag returns the drag in progress, if any.
func (d *Display) ActiveDrag() (*Drag, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.drag, d.drag != nil
}

func defaultSuggested(ops dnd.Operation) dnd.Operation {
	for _, op := range []dnd.Operation{dnd.Move, dnd.Copy, dnd.Link} {
		if ops&op != 0 {
			return op
		}
	}
	return dnd.None
}

// Drag is one drag session. Its exported methods play the role of the
// pointer and keyboard; it is also the DragContext seen by drop targets.
type Drag struct {
	d         *Display
	src       *Client
	srcHandle platform.Handle
	types     []registry.TypeID
	actions   dnd.Operation
	sink      platform.DragSourceSink
	done      chan struct{}

	// Guarded by d.mu. suggested is what the pointer currently asks for;
	// delivered is the value carried by the event being dispatched.
	suggested dnd.Operation
	delivered dnd.Operation
	target    platform.Handle
	x, y      int
	status    dnd.Operation
	finished  bool
	result    dnd.Operation
}

var _ platform.DragContext = (*Drag)(nil)

// Source returns the handle the drag started from.
func (g *Drag) Source() platform.Handle { return g.srcHandle }

func (g *Drag) SourceTypes() []registry.TypeID { return slices.Clone(g.types) }

func (g *Drag) SourceActions() dnd.Operation { return g.actions }

// SuggestedAction returns the operation sent with the motion or drop
// currently being handled.
func (g *Drag) SuggestedAction() dnd.Operation {
	g.d.mu.Lock()
	defer g.d.mu.Unlock()
	return g.delivered
}

func (g *Drag) deliver(op dnd.Operation) {
	g.d.mu.Lock()
	g.delivered = op
	g.d.mu.Unlock()
}

func (g *Drag) Status(op dnd.Operation) {
	g.d.mu.Lock()
	g.status = op & dnd.All
	g.d.mu.Unlock()
}

// Accepted returns the operation last reported by the target under the
// pointer.
func (g *Drag) Accepted() dnd.Operation {
	g.d.mu.Lock()
	defer g.d.mu.Unlock()
	return g.status
}

// Target returns the drop target under the pointer, or 0.
func (g *Drag) Target() platform.Handle {
	g.d.mu.Lock()
	defer g.d.mu.Unlock()
	return g.target
}

func (g *Drag) RequestData(t registry.TypeID) {
	g.d.mu.Lock()
	target := g.target
	finished := g.finished
	g.d.mu.Unlock()
	if target == 0 {
		return
	}
	if finished {
		g.d.emit(target, signals.DragDataReceived, func(s platform.DropTargetSink) {
			s.DataReceived(g, transfer.Failure(t))
		})
		return
	}
	g.src.sched.Post(func() {
		data := transfer.Failure(t)
		if slices.Contains(g.types, t) {
			data = g.sink.DataRequested(t)
		}
		g.d.emit(target, signals.DragDataReceived, func(s platform.DropTargetSink) {
			s.DataReceived(g, data)
		})
	})
}

func (g *Drag) Finish(success, del bool) {
	d := g.d
	d.mu.Lock()
	if g.finished {
		d.mu.Unlock()
		return
	}
	g.finished = true
	result := dnd.None
	if success {
		result = g.status
	}
	g.result = result
	if d.drag == g {
		d.drag = nil
	}
	d.mu.Unlock()

	g.src.sched.Post(func() {
		if success && del {
			g.sink.DataDelete()
		}
		g.sink.End(result)
		close(g.done)
	})
}

// Move places the pointer over target at (x, y). Handle 0 is empty space.
// Leaving a target sends it a leave signal.
func (g *Drag) Move(target platform.Handle, x, y int) {
	d := g.d
	d.mu.Lock()
	if g.finished {
		d.mu.Unlock()
		return
	}
	old := g.target
	g.target, g.x, g.y = target, x, y
	if old != target {
		g.status = dnd.None
	}
	op := g.suggested
	d.mu.Unlock()

	if old != 0 && old != target {
		d.emit(old, signals.DragLeave, func(s platform.DropTargetSink) { s.Leave(g) })
	}
	if target != 0 {
		g.motion(target, x, y, op)
	}
}

// Suggest changes the requested operation, as holding a modifier key would,
// and re-sends motion to the current target.
func (g *Drag) Suggest(op dnd.Operation) {
	d := g.d
	d.mu.Lock()
	g.suggested = op
	target, x, y := g.target, g.x, g.y
	finished := g.finished
	d.mu.Unlock()
	if target != 0 && !finished {
		g.motion(target, x, y, op)
	}
}

// Drop releases the pointer. Dropping over empty space cancels the drag.
func (g *Drag) Drop() {
	d := g.d
	d.mu.Lock()
	target, x, y := g.target, g.x, g.y
	op := g.suggested
	finished := g.finished
	d.mu.Unlock()
	if finished {
		return
	}
	if target == 0 {
		g.Finish(false, false)
		return
	}
	c := d.clientOf(target)
	if c == nil {
		g.Finish(false, false)
		return
	}
	c.sched.Post(func() {
		g.deliver(op)
		accepted := false
		signals.Emit(d.targets, signals.DragDrop, target, func(s platform.DropTargetSink) {
			accepted = s.Drop(g, x, y, c.sched.Now())
		})
		if !accepted {
			g.Finish(false, false)
		}
	})
}

// Cancel aborts the drag, as pressing Escape would.
func (g *Drag) Cancel() {
	d := g.d
	d.mu.Lock()
	target := g.target
	finished := g.finished
	d.mu.Unlock()
	if finished {
		return
	}
	if target != 0 {
		d.emit(target, signals.DragLeave, func(s platform.DropTargetSink) { s.Leave(g) })
	}
	g.Finish(false, false)
}

// Done is closed after the source has received its end signal.
func (g *Drag) Done() <-chan struct{} { return g.done }

// Result returns the operation reported to the source. Valid after Done.
func (g *Drag) Result() dnd.Operation {
	g.d.mu.Lock()
	defer g.d.mu.Unlock()
	return g.result
}

// motion sends pointer position and suggested action as they were when the
// pointer moved, not when the target gets to run.
func (g *Drag) motion(target platform.Handle, x, y int, op dnd.Operation) {
	c := g.d.clientOf(target)
	if c == nil {
		return
	}
	g.d.emit(target, signals.DragMotion, func(s platform.DropTargetSink) {
		g.deliver(op)
		s.Motion(g, x, y, c.sched.Now())
	})
}

func (d *Display) clientOf(h platform.Handle) *Client {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.targetOwner[h]
}

// emit posts a drop-target signal to the client that registered target. The
// handler is resolved when the task runs.
func (d *Display) emit(target platform.Handle, k signals.Kind, fn func(platform.DropTargetSink)) {
	c := d.clientOf(target)
	if c == nil {
		return
	}
	c.sched.Post(func() {
		signals.Emit(d.targets, k, target, fn)
	})
}
