// Package signals maps (signal kind, source handle) pairs to handler
// objects. Platform callbacks carry only a source handle; the receiver is
// looked up here and invoked through a typed trampoline.
package signals

import (
	"errors"
	"fmt"
	"sync"
)

// Kind identifies a platform signal.
type Kind uint8

const (
	DragDataGet Kind = iota + 1
	DragDataDelete
	DragEnd
	DragMotion
	DragLeave
	DragDrop
	DragDataReceived
)

var kindNames = map[Kind]string{
	DragDataGet:      "drag-data-get",
	DragDataDelete:   "drag-data-delete",
	DragEnd:          "drag-end",
	DragMotion:       "drag-motion",
	DragLeave:        "drag-leave",
	DragDrop:         "drag-drop",
	DragDataReceived: "drag-data-received",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ErrAlreadyConnected is returned when a handler is already connected for the
// same kind and source.
var ErrAlreadyConnected = errors.New("signals: handler already connected")

type key[S comparable] struct {
	kind Kind
	src  S
}

// Table is a handler registry keyed by (Kind, source). It is safe for
// concurrent use.
type Table[S comparable] struct {
	mu       sync.RWMutex
	handlers map[key[S]]any
}

// NewTable returns an empty Table.
func NewTable[S comparable]() *Table[S] {
	return &Table[S]{handlers: make(map[key[S]]any)}
}

// Connect registers h for (k, src). A second handler for the same pair is
// refused with ErrAlreadyConnected.
func (t *Table[S]) Connect(k Kind, src S, h any) error {
	if h == nil {
		return fmt.Errorf("signals: nil handler for %v", k)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	kk := key[S]{k, src}
	if _, ok := t.handlers[kk]; ok {
		return fmt.Errorf("%w: %v %v", ErrAlreadyConnected, k, src)
	}
	t.handlers[kk] = h
	return nil
}

// ConnectAll registers h for every kind in kinds, or none of them.
func (t *Table[S]) ConnectAll(src S, h any, kinds ...Kind) error {
	for i, k := range kinds {
		if err := t.Connect(k, src, h); err != nil {
			for _, done := range kinds[:i] {
				t.Disconnect(done, src)
			}
			return err
		}
	}
	return nil
}

// Disconnect removes the handler for (k, src) and reports whether one existed.
func (t *Table[S]) Disconnect(k Kind, src S) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	kk := key[S]{k, src}
	_, ok := t.handlers[kk]
	delete(t.handlers, kk)
	return ok
}

// DisconnectAll removes every handler registered for src.
func (t *Table[S]) DisconnectAll(src S) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for kk := range t.handlers {
		if kk.src == src {
			delete(t.handlers, kk)
			n++
		}
	}
	return n
}

// Lookup returns the handler registered for (k, src).
func (t *Table[S]) Lookup(k Kind, src S) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, ok := t.handlers[key[S]{k, src}]
	return h, ok
}

// Len returns the number of registered handlers.
func (t *Table[S]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.handlers)
}

// Emit is the typed trampoline for one signal kind: it resolves the handler
// for (k, src), asserts it to H and calls fn with it. It returns false when
// no handler of type H is connected.
func Emit[S comparable, H any](t *Table[S], k Kind, src S, fn func(H)) bool {
	v, ok := t.Lookup(k, src)
	if !ok {
		return false
	}
	h, ok := v.(H)
	if !ok {
		return false
	}
	fn(h)
	return true
}

// Call is Emit for signals whose handler produces a result.
func Call[S comparable, H any, R any](t *Table[S], k Kind, src S, fn func(H) R) (R, bool) {
	var zero R
	v, ok := t.Lookup(k, src)
	if !ok {
		return zero, false
	}
	h, ok := v.(H)
	if !ok {
		return zero, false
	}
	return fn(h), true
}
