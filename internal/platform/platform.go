// Package platform declares the windowing-system services the clipboard and
// drag-and-drop core consumes. Two interchangeable implementations exist:
// memboard (in-process display, direct or stream negotiation) and sysboard
// (the OS clipboard).
//
// Callbacks handed to a backend are invoked on the scheduler the caller
// registered with the backend, never concurrently with each other.
package platform

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.klb.dev/xfer/internal/dnd"
	"go.klb.dev/xfer/internal/loop"
	"go.klb.dev/xfer/internal/registry"
	"go.klb.dev/xfer/internal/transfer"
)

//go:generate mockgen -destination=mocks/mock_platform.go -package=mocks go.klb.dev/xfer/internal/platform ClipboardBackend

// Selection names a logical clipboard channel with independent ownership.
type Selection uint8

const (
	Clipboard Selection = iota
	Primary
	Drag
)

func (s Selection) String() string {
	switch s {
	case Clipboard:
		return "clipboard"
	case Primary:
		return "primary"
	case Drag:
		return "drag"
	default:
		return fmt.Sprintf("selection(%d)", uint8(s))
	}
}

// ParseSelection is the inverse of Selection.String.
func ParseSelection(s string) (Selection, bool) {
	switch s {
	case "clipboard", "":
		return Clipboard, true
	case "primary":
		return Primary, true
	case "drag":
		return Drag, true
	}
	return 0, false
}

// Handle identifies a native object (a window or control) to the backend.
type Handle uint64

// Provider answers data requests for a selection this process owns.
type Provider interface {
	Provide(t registry.TypeID) transfer.Data
}

// StreamProvider is implemented by providers that can serialize a format to
// a writer. Stream-mode backends use it instead of Provide.
type StreamProvider interface {
	Provider
	Serialize(ctx context.Context, format string, w io.Writer) *loop.Future[struct{}]
}

// ClipboardBackend is the clipboard half of a windowing system.
type ClipboardBackend interface {
	// Name is a human-readable backend name.
	Name() string
	// RegisterFormat interns a format name with the platform.
	RegisterFormat(name string) registry.TypeID
	// OwnedTypes lists the types the current owner of sel offers.
	OwnedTypes(sel Selection) []registry.TypeID
	// RequestData is a synchronous best-effort read.
	RequestData(sel Selection, t registry.TypeID) (transfer.Data, bool)
	// RequestDataAsync reads t from sel. The future may complete on any
	// goroutine.
	RequestDataAsync(sel Selection, t registry.TypeID) *loop.Future[transfer.Data]
	// AssertOwnership atomically replaces the contents of sel with types
	// served by p. onLost fires once when another client takes sel.
	AssertOwnership(sel Selection, types []registry.TypeID, p Provider, onLost func()) bool
	// ReleaseOwnership gives up sel if this client owns it. onLost is not
	// called.
	ReleaseOwnership(sel Selection)
	// PersistOwnership asks the platform to store the contents of sel so
	// they outlive this client. The future completes once the platform
	// holds no further reference to the provider.
	PersistOwnership(sel Selection) *loop.Future[struct{}]
	// Close releases backend resources.
	Close() error
}

// StreamReader is implemented by backends that hand incoming content over
// as a byte stream rather than a buffer.
type StreamReader interface {
	// Streaming reports whether reads should go through OpenStream.
	Streaming() bool
	OpenStream(ctx context.Context, sel Selection, format string) *loop.Future[io.ReadCloser]
}

// DragContext is the platform side of one drag session as seen by a drop
// target.
type DragContext interface {
	// SourceTypes lists the types the drag source offers.
	SourceTypes() []registry.TypeID
	// SourceActions are the operations the source allows.
	SourceActions() dnd.Operation
	// SuggestedAction is the operation the user requested with the motion
	// or drop being handled, usually driven by modifier keys.
	SuggestedAction() dnd.Operation
	// Status reports acceptance to the source: None rejects.
	Status(op dnd.Operation)
	// RequestData asks the source for t; the answer arrives through
	// DropTargetSink.DataReceived, as a failure once the drag has ended.
	RequestData(t registry.TypeID)
	// Finish ends the drop. On success the source is told the operation last
	// passed to Status. del asks the source to delete the original.
	Finish(success, del bool)
}

// DragSourceSink receives source-side drag signals.
type DragSourceSink interface {
	DataRequested(t registry.TypeID) transfer.Data
	DataDelete()
	End(op dnd.Operation)
}

// DropTargetSink receives target-side drag signals.
type DropTargetSink interface {
	Motion(dc DragContext, x, y int, at time.Time)
	Leave(dc DragContext)
	// Drop returns false when the target declines the drop.
	Drop(dc DragContext, x, y int, at time.Time) bool
	DataReceived(dc DragContext, d transfer.Data)
}

// DragBackend is the drag-and-drop half of a windowing system.
type DragBackend interface {
	StartDrag(src Handle, types []registry.TypeID, ops dnd.Operation, sink DragSourceSink) error
	RegisterDropTarget(target Handle, sink DropTargetSink) error
	UnregisterDropTarget(target Handle)
}
