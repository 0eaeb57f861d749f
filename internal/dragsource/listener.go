package dragsource

import "go.klb.dev/xfer/internal/dnd"

// Listener receives drag source events on the event loop.
type Listener interface {
	// DragStart may clear e.Doit to veto the drag and may set e.Image.
	DragStart(e *dnd.Event)
	// DragSetData stores in e.Data the value to transfer as e.DataType.
	DragSetData(e *dnd.Event)
	// DragFinished reports the operation performed in e.Detail; e.Doit is
	// false when nothing was transferred.
	DragFinished(e *dnd.Event)
}

// Funcs adapts plain functions to Listener. Nil fields are skipped.
type Funcs struct {
	Start    func(*dnd.Event)
	SetData  func(*dnd.Event)
	Finished func(*dnd.Event)
}

func (f Funcs) DragStart(e *dnd.Event) {
	if f.Start != nil {
		f.Start(e)
	}
}

func (f Funcs) DragSetData(e *dnd.Event) {
	if f.SetData != nil {
		f.SetData(e)
	}
}

func (f Funcs) DragFinished(e *dnd.Event) {
	if f.Finished != nil {
		f.Finished(e)
	}
}
