// Package memboard implements an in-process display server. Clients connect
// with their own scheduler; the display routes ownership, data requests and
// drag signals between them. It is transport-agnostic in the same way a
// window system is: clients never talk to each other directly.
//
// Two negotiation modes are supported. In direct mode data requests are
// answered by Provider.Provide. In stream mode providers that implement
// platform.StreamProvider are asked to Serialize into a pipe and readers
// consume a byte stream.
package memboard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"go.klb.dev/xfer/internal/loop"
	"go.klb.dev/xfer/internal/platform"
	"go.klb.dev/xfer/internal/registry"
	"go.klb.dev/xfer/internal/signals"
	"go.klb.dev/xfer/internal/transfer"
)

const defaultSyncTimeout = 2 * time.Second

var (
	ErrNoContent    = errors.New("memboard: no content for type")
	ErrClientClosed = errors.New("memboard: client closed")
	ErrDragActive   = errors.New("memboard: a drag is already in progress")
)

// Mode selects the content negotiation mechanism.
type Mode int

const (
	ModeDirect Mode = iota
	ModeStream
)

func (m Mode) String() string {
	if m == ModeStream {
		return "stream"
	}
	return "direct"
}

// ParseMode converts "direct" or "stream" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "direct":
		return ModeDirect, nil
	case "stream":
		return ModeStream, nil
	}
	return ModeDirect, fmt.Errorf("memboard: unknown mode %q", s)
}

// Option configures a Display.
type Option func(*Display)

// WithMode selects the negotiation mode.
func WithMode(m Mode) Option { return func(d *Display) { d.mode = m } }

// WithRegistry sets the registry formats are interned in.
func WithRegistry(r *registry.Registry) Option { return func(d *Display) { d.reg = r } }

// WithPersistDelay delays the confirmation of PersistOwnership.
func WithPersistDelay(delay time.Duration) Option {
	return func(d *Display) { d.persistDelay = delay }
}

// WithoutPersistConfirm makes PersistOwnership store content but never
// confirm, as a display without a clipboard manager would.
func WithoutPersistConfirm() Option { return func(d *Display) { d.persistConfirm = false } }

// WithSyncTimeout bounds synchronous cross-client requests.
func WithSyncTimeout(t time.Duration) Option { return func(d *Display) { d.syncTimeout = t } }

type owner struct {
	client   *Client
	types    []registry.TypeID
	provider platform.Provider
	onLost   func()
}

// Display is the shared server all clients connect to.
type Display struct {
	reg            *registry.Registry
	mode           Mode
	persistDelay   time.Duration
	persistConfirm bool
	syncTimeout    time.Duration

	targets *signals.Table[platform.Handle]

	mu          sync.Mutex
	nextClient  uint64
	owners      map[platform.Selection]*owner
	stored      map[platform.Selection]map[registry.TypeID]transfer.Data
	storedOrder map[platform.Selection][]registry.TypeID
	targetOwner map[platform.Handle]*Client
	drag        *Drag
}

// New returns an empty Display.
func New(opts ...Option) *Display {
	d := &Display{
		reg:            registry.Default(),
		persistConfirm: true,
		syncTimeout:    defaultSyncTimeout,
		targets:        signals.NewTable[platform.Handle](),
		owners:         make(map[platform.Selection]*owner),
		stored:         make(map[platform.Selection]map[registry.TypeID]transfer.Data),
		storedOrder:    make(map[platform.Selection][]registry.TypeID),
		targetOwner:    make(map[platform.Handle]*Client),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Mode returns the negotiation mode.
func (d *Display) Mode() Mode { return d.mode }

// Registry returns the registry formats are interned in.
func (d *Display) Registry() *registry.Registry { return d.reg }

// Connect attaches a client whose callbacks run on sched.
func (d *Display) Connect(sched loop.Scheduler) *Client {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextClient++
	c := &Client{d: d, id: d.nextClient, sched: sched}
	slog.Debug("memboard client connected", "client", c.id, "mode", d.mode)
	return c
}

// Client is one application's connection to a Display. It implements
// platform.ClipboardBackend, platform.StreamReader and platform.DragBackend.
type Client struct {
	d      *Display
	id     uint64
	sched  loop.Scheduler
	closed bool
}

var (
	_ platform.ClipboardBackend = (*Client)(nil)
	_ platform.StreamReader     = (*Client)(nil)
	_ platform.DragBackend      = (*Client)(nil)
)

// ID returns the client's connection number.
func (c *Client) ID() uint64 { return c.id }

func (c *Client) Name() string { return "memory (" + c.d.mode.String() + ")" }

func (c *Client) RegisterFormat(name string) registry.TypeID { return c.d.reg.Register(name) }

// Owns reports whether c currently owns sel.
func (c *Client) Owns(sel platform.Selection) bool {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	o := c.d.owners[sel]
	return o != nil && o.client == c
}

func (c *Client) OwnedTypes(sel platform.Selection) []registry.TypeID {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	if o := c.d.owners[sel]; o != nil {
		return slices.Clone(o.types)
	}
	return slices.Clone(c.d.storedOrder[sel])
}

func (c *Client) AssertOwnership(sel platform.Selection, types []registry.TypeID, p platform.Provider, onLost func()) bool {
	if p == nil || len(types) == 0 {
		return false
	}
	d := c.d
	d.mu.Lock()
	if c.closed {
		d.mu.Unlock()
		return false
	}
	prev := d.owners[sel]
	d.owners[sel] = &owner{client: c, types: slices.Clone(types), provider: p, onLost: onLost}
	delete(d.stored, sel)
	delete(d.storedOrder, sel)
	d.mu.Unlock()

	slog.Debug("selection owned", "client", c.id, "selection", sel, "types", d.reg.Names(types))
	if prev != nil && prev.client != c && prev.onLost != nil {
		prev.client.sched.Post(prev.onLost)
	}
	return true
}

func (c *Client) ReleaseOwnership(sel platform.Selection) {
	d := c.d
	d.mu.Lock()
	defer d.mu.Unlock()
	if o := d.owners[sel]; o != nil && o.client == c {
		delete(d.owners, sel)
	}
}

func (c *Client) RequestData(sel platform.Selection, t registry.TypeID) (transfer.Data, bool) {
	o, stored, ok := c.d.lookup(sel, t)
	if !ok {
		return transfer.Failure(t), false
	}
	if o == nil {
		return stored, stored.OK()
	}
	var f *loop.Future[transfer.Data]
	if o.client.sched == c.sched {
		f = c.d.fetch(o, t)
	} else {
		f = loop.NewFuture[transfer.Data]()
		o.client.sched.Post(func() { chain(c.d.fetch(o, t), f) })
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.d.syncTimeout)
	defer cancel()
	data, err := f.Wait(ctx)
	if err != nil {
		slog.Warn("synchronous selection request failed", "selection", sel, "type", t, "err", err)
		return transfer.Failure(t), false
	}
	return data, data.OK()
}

func (c *Client) RequestDataAsync(sel platform.Selection, t registry.TypeID) *loop.Future[transfer.Data] {
	o, stored, ok := c.d.lookup(sel, t)
	if !ok {
		return loop.Resolved(transfer.Failure(t))
	}
	if o == nil {
		return loop.Resolved(stored)
	}
	f := loop.NewFuture[transfer.Data]()
	o.client.sched.Post(func() { chain(c.d.fetch(o, t), f) })
	return f
}

// Streaming reports whether the display negotiates through streams.
func (c *Client) Streaming() bool { return c.d.mode == ModeStream }

func (c *Client) OpenStream(ctx context.Context, sel platform.Selection, format string) *loop.Future[io.ReadCloser] {
	t, ok := c.d.reg.Lookup(format)
	if !ok {
		return loop.Failed[io.ReadCloser](fmt.Errorf("%w: %q", ErrNoContent, format))
	}
	o, stored, ok := c.d.lookup(sel, t)
	if !ok {
		return loop.Failed[io.ReadCloser](fmt.Errorf("%w: %q on %v", ErrNoContent, format, sel))
	}
	if o == nil {
		return loop.Resolved[io.ReadCloser](io.NopCloser(bytes.NewReader(stored.Buffer)))
	}

	pr, pw := io.Pipe()
	o.client.sched.Post(func() {
		if sp, ok := o.provider.(platform.StreamProvider); ok && c.d.mode == ModeStream {
			sf := sp.Serialize(ctx, format, pw)
			go func() {
				<-sf.Done()
				_, err := sf.Result()
				_ = pw.CloseWithError(err)
			}()
			return
		}
		data := o.provider.Provide(t)
		if !data.OK() {
			_ = pw.CloseWithError(fmt.Errorf("%w: %q", ErrNoContent, format))
			return
		}
		go func() {
			_, err := pw.Write(data.Buffer)
			_ = pw.CloseWithError(err)
		}()
	})
	return loop.Resolved[io.ReadCloser](pr)
}

// PersistOwnership snapshots every offered type into the display so it
// survives the owner, then confirms.
func (c *Client) PersistOwnership(sel platform.Selection) *loop.Future[struct{}] {
	d := c.d
	d.mu.Lock()
	o := d.owners[sel]
	d.mu.Unlock()
	if o == nil || o.client != c {
		return loop.Resolved(struct{}{})
	}

	done := loop.NewFuture[struct{}]()
	c.sched.Post(func() {
		fetches := make([]*loop.Future[transfer.Data], len(o.types))
		for i, t := range o.types {
			fetches[i] = d.fetch(o, t)
		}
		go func() {
			content := make(map[registry.TypeID]transfer.Data, len(fetches))
			var order []registry.TypeID
			for i, f := range fetches {
				<-f.Done()
				if data, err := f.Result(); err == nil && data.OK() {
					content[o.types[i]] = data
					order = append(order, o.types[i])
				}
			}
			d.mu.Lock()
			if d.owners[sel] == o {
				delete(d.owners, sel)
				d.stored[sel] = content
				d.storedOrder[sel] = order
			}
			d.mu.Unlock()
			slog.Debug("selection persisted", "client", c.id, "selection", sel, "types", len(order))

			if !d.persistConfirm {
				return
			}
			if d.persistDelay <= 0 {
				c.sched.Post(func() { done.Resolve(struct{}{}) })
				return
			}
			c.sched.AfterFunc(d.persistDelay, func() { done.Resolve(struct{}{}) })
		}()
	})
	return done
}

// Close drops the client's selections and drop targets and cancels a drag
// it started.
func (c *Client) Close() error {
	d := c.d
	d.mu.Lock()
	if c.closed {
		d.mu.Unlock()
		return nil
	}
	c.closed = true
	for sel, o := range d.owners {
		if o.client == c {
			delete(d.owners, sel)
		}
	}
	var handles []platform.Handle
	for h, owner := range d.targetOwner {
		if owner == c {
			handles = append(handles, h)
			delete(d.targetOwner, h)
		}
	}
	g := d.drag
	d.mu.Unlock()

	for _, h := range handles {
		d.targets.DisconnectAll(h)
	}
	if g != nil && g.src == c {
		g.Cancel()
	}
	return nil
}

// lookup returns the live owner of sel if it offers t, or the persisted
// data for t.
func (d *Display) lookup(sel platform.Selection, t registry.TypeID) (*owner, transfer.Data, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if o := d.owners[sel]; o != nil {
		if !slices.Contains(o.types, t) {
			return nil, transfer.Data{}, false
		}
		return o, transfer.Data{}, true
	}
	data, ok := d.stored[sel][t]
	if !ok {
		return nil, transfer.Data{}, false
	}
	data.Buffer = bytes.Clone(data.Buffer)
	return nil, data, true
}

// fetch asks o for t. It must run on o's scheduler.
func (d *Display) fetch(o *owner, t registry.TypeID) *loop.Future[transfer.Data] {
	sp, ok := o.provider.(platform.StreamProvider)
	if !ok || d.mode != ModeStream {
		return loop.Resolved(o.provider.Provide(t))
	}
	name, _ := d.reg.Name(t)
	var buf bytes.Buffer
	f := loop.NewFuture[transfer.Data]()
	sf := sp.Serialize(context.Background(), name, &buf)
	go func() {
		<-sf.Done()
		if _, err := sf.Result(); err != nil {
			slog.Debug("serialize failed", "format", name, "err", err)
			f.Resolve(transfer.Failure(t))
			return
		}
		if buf.Len() == 0 {
			f.Resolve(transfer.Failure(t))
			return
		}
		f.Resolve(transfer.Success(t, buf.Bytes(), transfer.ElementWidth(name)))
	}()
	return f
}

func chain[T any](src, dst *loop.Future[T]) {
	go func() {
		<-src.Done()
		v, err := src.Result()
		if err != nil {
			dst.Reject(err)
			return
		}
		dst.Resolve(v)
	}()
}
