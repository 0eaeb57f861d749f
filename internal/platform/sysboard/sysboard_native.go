//go:build linux || darwin || windows

package sysboard

import (
	"bytes"
	"log/slog"
	"slices"
	"sync"

	"golang.design/x/clipboard"

	"go.klb.dev/xfer/internal/loop"
	"go.klb.dev/xfer/internal/platform"
	"go.klb.dev/xfer/internal/registry"
	"go.klb.dev/xfer/internal/transfer"
)

// initClipboard is replaced in tests to force the fallback.
var initClipboard = clipboard.Init

type owned struct {
	types  []registry.TypeID
	slot   native
	sum    fingerprint
	onLost func()
}

// Backend talks to the system clipboard.
type Backend struct {
	sched loop.Scheduler
	reg   *registry.Registry

	mu     sync.Mutex
	owner  *owned
	closed bool
	done   chan struct{}
}

var _ platform.ClipboardBackend = (*Backend)(nil)

// New returns the system clipboard backend, or an in-memory backend when
// the display is unavailable (e.g. a headless server without X11). Init is
// called here rather than in init() so commands that never touch the
// clipboard don't trigger the warning.
func New(sched loop.Scheduler, opts ...Option) platform.ClipboardBackend {
	o := buildOptions(opts)
	if err := initClipboard(); err != nil {
		return fallback(sched, o, err)
	}
	for _, names := range [][]string{textFormats, imageFormats} {
		o.reg.RegisterAll(names...)
	}
	return &Backend{sched: sched, reg: o.reg, done: make(chan struct{})}
}

func (b *Backend) Name() string { return "system clipboard" }

func (b *Backend) RegisterFormat(name string) registry.TypeID { return b.reg.Register(name) }

func (b *Backend) OwnedTypes(sel platform.Selection) []registry.TypeID {
	if sel != platform.Clipboard {
		return nil
	}
	if o := b.current(); o != nil {
		return slices.Clone(o.types)
	}
	var out []registry.TypeID
	for _, n := range []native{nativeText, nativeImage} {
		if len(read(n)) == 0 {
			continue
		}
		for _, name := range formatsOf(n) {
			out = append(out, b.reg.Register(name))
		}
	}
	return out
}

func (b *Backend) RequestData(sel platform.Selection, t registry.TypeID) (transfer.Data, bool) {
	if sel != platform.Clipboard {
		return transfer.Failure(t), false
	}
	name, ok := b.reg.Name(t)
	if !ok {
		return transfer.Failure(t), false
	}
	n := nativeOf(name)
	if n == nativeNone {
		return transfer.Failure(t), false
	}
	buf := read(n)
	if len(buf) == 0 {
		return transfer.Failure(t), false
	}
	return transfer.Success(t, buf, 8), true
}

func (b *Backend) RequestDataAsync(sel platform.Selection, t registry.TypeID) *loop.Future[transfer.Data] {
	f := loop.NewFuture[transfer.Data]()
	go func() {
		d, _ := b.RequestData(sel, t)
		f.Resolve(d)
	}()
	return f
}

// AssertOwnership writes the first format the system can hold. The
// provider is asked for it immediately; the system keeps the bytes.
func (b *Backend) AssertOwnership(sel platform.Selection, types []registry.TypeID, p platform.Provider, onLost func()) bool {
	if sel != platform.Clipboard || p == nil {
		return false
	}
	t, slot := pick(b.reg, types)
	if slot == nativeNone {
		slog.Debug("no system clipboard format offered", "types", b.reg.Names(types))
		return false
	}
	d := p.Provide(t)
	if !d.OK() {
		return false
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}
	o := &owned{types: servable(b.reg, types, slot), slot: slot, sum: sum(d.Buffer), onLost: onLost}
	b.owner = o
	b.mu.Unlock()

	changed := write(slot, d.Buffer)
	go b.watch(o, changed)
	slog.Debug("system clipboard written", "slot", slot, "format", t)
	return true
}

// watch reports o lost once another writer replaces the content.
func (b *Backend) watch(o *owned, changed <-chan struct{}) {
	select {
	case <-changed:
	case <-b.done:
		return
	}
	b.lose(o)
}

// current returns the owner if the system still holds what it wrote.
func (b *Backend) current() *owned {
	b.mu.Lock()
	o := b.owner
	b.mu.Unlock()
	if o == nil {
		return nil
	}
	if sum(read(o.slot)) != o.sum {
		b.lose(o)
		return nil
	}
	return o
}

func (b *Backend) lose(o *owned) {
	b.mu.Lock()
	if b.owner != o {
		b.mu.Unlock()
		return
	}
	b.owner = nil
	b.mu.Unlock()
	if o.onLost != nil {
		b.sched.Post(o.onLost)
	}
}

// ReleaseOwnership forgets the owner. The system keeps the last content;
// the library has no way to clear it.
func (b *Backend) ReleaseOwnership(sel platform.Selection) {
	if sel != platform.Clipboard {
		return
	}
	b.mu.Lock()
	b.owner = nil
	b.mu.Unlock()
}

// PersistOwnership completes at once: content is copied to the system
// when ownership is asserted.
func (b *Backend) PersistOwnership(sel platform.Selection) *loop.Future[struct{}] {
	b.ReleaseOwnership(sel)
	return loop.Resolved(struct{}{})
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.owner = nil
	close(b.done)
	return nil
}

func formatOf(n native) clipboard.Format {
	if n == nativeImage {
		return clipboard.FmtImage
	}
	return clipboard.FmtText
}

func read(n native) []byte {
	return bytes.Clone(clipboard.Read(formatOf(n)))
}

func write(n native, buf []byte) <-chan struct{} {
	return clipboard.Write(formatOf(n), buf)
}
