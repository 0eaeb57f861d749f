// Package sysboard is the ClipboardBackend for the operating system
// clipboard. Build constraints select the implementation:
//
//	sysboard_native.go  linux, darwin, windows via golang.design/x/clipboard
//	sysboard_other.go   everything else falls back to an in-memory display
//
// The system clipboard has a single selection and holds one native format
// at a time: plain text or a PNG image. Every other format and selection is
// refused.
package sysboard

import (
	"log/slog"

	"github.com/zeebo/blake3"

	"go.klb.dev/xfer/internal/loop"
	"go.klb.dev/xfer/internal/platform"
	"go.klb.dev/xfer/internal/platform/memboard"
	"go.klb.dev/xfer/internal/registry"
	"go.klb.dev/xfer/internal/transfer"
)

// native is a format the system clipboard stores.
type native int

const (
	nativeNone native = iota
	nativeText
	nativeImage
)

func (n native) String() string {
	switch n {
	case nativeText:
		return "text"
	case nativeImage:
		return "image"
	default:
		return "none"
	}
}

// textFormats are served from the system's text slot, in preference order.
var textFormats = []string{
	transfer.FormatUTF8String,
	transfer.FormatTextUTF8,
	transfer.FormatTextPlain,
}

var imageFormats = []string{transfer.FormatPNG}

// nativeOf maps a format name onto the system slot that can carry it.
func nativeOf(name string) native {
	for _, f := range textFormats {
		if f == name {
			return nativeText
		}
	}
	for _, f := range imageFormats {
		if f == name {
			return nativeImage
		}
	}
	return nativeNone
}

// formatsOf lists the format names a slot serves.
func formatsOf(n native) []string {
	switch n {
	case nativeText:
		return textFormats
	case nativeImage:
		return imageFormats
	}
	return nil
}

// pick returns the first offered type the system can store and its slot.
func pick(reg *registry.Registry, types []registry.TypeID) (registry.TypeID, native) {
	for _, t := range types {
		name, ok := reg.Name(t)
		if !ok {
			continue
		}
		if n := nativeOf(name); n != nativeNone {
			return t, n
		}
	}
	return registry.Invalid, nativeNone
}

// servable narrows types to the ones the given slot answers.
func servable(reg *registry.Registry, types []registry.TypeID, n native) []registry.TypeID {
	var out []registry.TypeID
	for _, t := range types {
		if name, ok := reg.Name(t); ok && nativeOf(name) == n {
			out = append(out, t)
		}
	}
	return out
}

type fingerprint [32]byte

func sum(b []byte) fingerprint { return blake3.Sum256(b) }

// Option configures New.
type Option func(*options)

type options struct {
	reg *registry.Registry
}

// WithRegistry sets the registry formats are interned in.
func WithRegistry(r *registry.Registry) Option { return func(o *options) { o.reg = r } }

func buildOptions(opts []Option) options {
	o := options{reg: registry.Default()}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// fallback is used when no system clipboard is reachable.
func fallback(sched loop.Scheduler, o options, err error) platform.ClipboardBackend {
	slog.Warn("system clipboard unavailable, using in-memory clipboard", "err", err)
	return memboard.New(memboard.WithRegistry(o.reg)).Connect(sched)
}

// Native reports whether b talks to the system clipboard rather than the
// in-memory fallback New returns without a display.
func Native(b platform.ClipboardBackend) bool {
	_, mem := b.(*memboard.Client)
	return !mem
}
