package droptarget

import (
	"strconv"

	"go.klb.dev/xfer/internal/dnd"
)

// Listener receives drop target events on the event loop. Listeners write
// their decisions into the event: DataType picks among DataTypes, Detail
// picks the operation, Feedback requests hover effects and clearing Doit
// rejects.
type Listener interface {
	DragEnter(e *dnd.Event)
	DragOver(e *dnd.Event)
	DragOperationChanged(e *dnd.Event)
	DragLeave(e *dnd.Event)
	// DropAccept is the last chance to veto or change type and operation
	// before the data is requested.
	DropAccept(e *dnd.Event)
	// Drop delivers the decoded value in e.Data, or nil with Detail None
	// when nothing could be decoded.
	Drop(e *dnd.Event)
}

// Funcs adapts plain functions to Listener. Nil fields are skipped.
type Funcs struct {
	Enter            func(*dnd.Event)
	Over             func(*dnd.Event)
	OperationChanged func(*dnd.Event)
	Leave            func(*dnd.Event)
	Accept           func(*dnd.Event)
	Dropped          func(*dnd.Event)
}

func call(fn func(*dnd.Event), e *dnd.Event) {
	if fn != nil {
		fn(e)
	}
}

func (f Funcs) DragEnter(e *dnd.Event)            { call(f.Enter, e) }
func (f Funcs) DragOver(e *dnd.Event)             { call(f.Over, e) }
func (f Funcs) DragOperationChanged(e *dnd.Event) { call(f.OperationChanged, e) }
func (f Funcs) DragLeave(e *dnd.Event)            { call(f.Leave, e) }
func (f Funcs) DropAccept(e *dnd.Event)           { call(f.Accept, e) }
func (f Funcs) Drop(e *dnd.Event)                 { call(f.Dropped, e) }

// Effect is the per-control hover behaviour: hit testing plus the scroll
// and expand side effects.
type Effect interface {
	// ItemAt returns the item under (x, y), or nil. Items must be
	// comparable.
	ItemAt(x, y int) any
	Scroll(item any)
	Expand(item any)
}

// ListEffect is an Effect for a vertical list of fixed-height rows.
type ListEffect struct {
	Rows      []string
	RowHeight int

	OnScroll func(row string)
	OnExpand func(row string)
}

// ItemAt returns the row label under y, or nil outside the list.
func (l *ListEffect) ItemAt(_, y int) any {
	h := l.RowHeight
	if h <= 0 {
		h = 1
	}
	if y < 0 {
		return nil
	}
	i := y / h
	if i >= len(l.Rows) {
		return nil
	}
	return l.Rows[i]
}

func (l *ListEffect) Scroll(item any) {
	if l.OnScroll != nil {
		l.OnScroll(label(item))
	}
}

func (l *ListEffect) Expand(item any) {
	if l.OnExpand != nil {
		l.OnExpand(label(item))
	}
}

func label(item any) string {
	switch v := item.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	}
	return ""
}
