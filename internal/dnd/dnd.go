// Package dnd holds the vocabulary shared by drag sources, drop targets and
// drag backends: operations, feedback flags and the event record handed to
// application listeners.
package dnd

import (
	"image"
	"math/bits"
	"strings"
	"time"

	"go.klb.dev/xfer/internal/registry"
)

// Operation is a bitmask of drag-and-drop operations.
type Operation uint8

const (
	None Operation = 0
	Copy Operation = 1 << 0
	Move Operation = 1 << 1
	Link Operation = 1 << 2

	// Unset marks an operation that has not been determined yet in the
	// current drag session. It is never reported to a platform.
	Unset Operation = 1 << 7

	All = Copy | Move | Link
)

// Has reports whether every bit of x is set in o.
func (o Operation) Has(x Operation) bool { return x != None && o&x == x }

// Single reports whether o is exactly one of Copy, Move or Link.
func (o Operation) Single() bool {
	return o&^All == 0 && bits.OnesCount8(uint8(o)) == 1
}

func (o Operation) String() string {
	switch o {
	case None:
		return "none"
	case Unset:
		return "unset"
	}
	var parts []string
	for _, p := range []struct {
		op   Operation
		name string
	}{{Copy, "copy"}, {Move, "move"}, {Link, "link"}} {
		if o&p.op != 0 {
			parts = append(parts, p.name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseOperation parses a name produced by String.
func ParseOperation(s string) (Operation, bool) {
	var o Operation
	for _, part := range strings.Split(strings.ToLower(s), "|") {
		switch strings.TrimSpace(part) {
		case "none", "":
		case "copy":
			o |= Copy
		case "move":
			o |= Move
		case "link":
			o |= Link
		default:
			return None, false
		}
	}
	return o, true
}

// Negotiate picks the operation to perform given the operations allowed by
// both parties and the one requested. A single requested operation that is
// allowed wins; otherwise Move is used when allowed, else None.
func Negotiate(allowed, requested Operation) Operation {
	allowed &= All
	if requested.Single() && allowed&requested != 0 {
		return requested
	}
	if allowed&Move != 0 {
		return Move
	}
	return None
}

// Feedback is a bitmask of drag-over effects requested by a drop listener.
type Feedback uint8

const (
	FeedbackNone         Feedback = 0
	FeedbackSelect       Feedback = 1 << 0
	FeedbackInsertBefore Feedback = 1 << 1
	FeedbackInsertAfter  Feedback = 1 << 2
	FeedbackScroll       Feedback = 1 << 3
	FeedbackExpand       Feedback = 1 << 4
)

// Event is the mutable record passed to drag and drop listeners. Listeners
// communicate their decisions by writing to it.
type Event struct {
	X, Y int
	Time time.Time

	// DataTypes are the types both parties can exchange.
	DataTypes []registry.TypeID
	// DataType is the candidate or selected type.
	DataType registry.TypeID
	// Operations are the operations allowed by both parties.
	Operations Operation
	// Detail is the candidate or final operation.
	Detail Operation
	// Feedback requested by a drop listener while hovering.
	Feedback Feedback
	// Item is the target item under the pointer, if any.
	Item any
	// Data is the value being transferred.
	Data any
	// Image is an optional drag feedback image set by a drag source.
	Image image.Image
	// Doit is cleared by a listener to veto the action.
	Doit bool
}

// Clone returns a copy of e with its own DataTypes slice.
func (e *Event) Clone() *Event {
	c := *e
	c.DataTypes = append([]registry.TypeID(nil), e.DataTypes...)
	return &c
}
