// Package clipboard is the application-facing clipboard: it owns selections
// on a platform backend, answers the backend's data requests from the
// selection store and reads foreign content through codecs.
//
// A Clipboard is confined to the event loop given to New. Every method must
// be called on that loop; backend callbacks are delivered there too.
package clipboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"go.klb.dev/xfer/internal/bridge"
	"go.klb.dev/xfer/internal/logging"
	"go.klb.dev/xfer/internal/loop"
	"go.klb.dev/xfer/internal/platform"
	"go.klb.dev/xfer/internal/registry"
	"go.klb.dev/xfer/internal/selection"
	"go.klb.dev/xfer/internal/transfer"
)

// DefaultDisposeTimeout bounds how long Dispose waits for the platform to
// confirm it persisted owned selections.
const DefaultDisposeTimeout = 10 * time.Second

var (
	ErrDisposed        = errors.New("clipboard: disposed")
	ErrInvalidArgument = errors.New("clipboard: invalid argument")
	ErrNilCodec        = errors.New("clipboard: nil codec")
	ErrCannotSet       = errors.New("clipboard: cannot take selection ownership")

	errDisposeTimeout = errors.New("clipboard: persist confirmation timed out")
)

type lifecycle int

const (
	alive lifecycle = iota
	disposing
	disposed
)

// Option configures a Clipboard.
type Option func(*Clipboard)

// WithRegistry sets the registry used to name formats.
func WithRegistry(r *registry.Registry) Option { return func(c *Clipboard) { c.reg = r } }

// WithDisposeTimeout overrides DefaultDisposeTimeout.
func WithDisposeTimeout(d time.Duration) Option {
	return func(c *Clipboard) {
		if d > 0 {
			c.disposeTimeout = d
		}
	}
}

// WithMaxTransferSize caps payloads read through streams.
func WithMaxTransferSize(n int64) Option { return func(c *Clipboard) { c.maxSize = n } }

// Clipboard manages the selections one application owns.
type Clipboard struct {
	sched          loop.Scheduler
	backend        platform.ClipboardBackend
	reg            *registry.Registry
	disposeTimeout time.Duration
	maxSize        int64

	store     *selection.Store
	bridge    *bridge.Bridge
	providers map[platform.Selection]*content

	ctx    context.Context
	cancel context.CancelFunc

	life     lifecycle
	disposal *loop.Future[struct{}]
}

// New returns a Clipboard on backend whose callbacks run on sched.
func New(sched loop.Scheduler, backend platform.ClipboardBackend, opts ...Option) *Clipboard {
	c := &Clipboard{
		sched:          sched,
		backend:        backend,
		reg:            registry.Default(),
		disposeTimeout: DefaultDisposeTimeout,
		maxSize:        bridge.DefaultMaxSize,
		store:          selection.New(),
		providers:      make(map[platform.Selection]*content),
	}
	for _, o := range opts {
		o(c)
	}
	c.bridge = bridge.New(sched, bridge.WithRegistry(c.reg), bridge.WithMaxSize(c.maxSize))
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c
}

// Backend returns the platform backend.
func (c *Clipboard) Backend() platform.ClipboardBackend { return c.backend }

// SetContents takes ownership of sel and offers every format of the given
// entries. The previous contents are replaced in a single ownership
// assertion. An empty entry list leaves the current contents untouched.
func (c *Clipboard) SetContents(sel platform.Selection, entries ...selection.Entry) error {
	if c.life != alive {
		return ErrDisposed
	}
	if len(entries) == 0 {
		return nil
	}
	for i, e := range entries {
		if e.Codec == nil {
			return fmt.Errorf("%w: entry %d", ErrNilCodec, i)
		}
		if !e.Codec.Validate(e.Value) {
			return fmt.Errorf("%w: %T is not valid %s content", ErrInvalidArgument, e.Value, e.Codec.Name())
		}
	}

	st := c.store.Prepare(entries)
	p := &content{c: c, sel: sel, state: st}
	p.id = c.bridge.Register(st)
	st.Native = uint64(p.id)

	types := st.Types()
	if !c.backend.AssertOwnership(sel, types, p, c.ownershipLost(sel, p)) {
		c.bridge.Unregister(p.id)
		return fmt.Errorf("%w: %v", ErrCannotSet, sel)
	}
	if prev := c.providers[sel]; prev != nil {
		c.release(prev)
	}
	c.store.Set(sel, st)
	c.providers[sel] = p
	logging.Types("clipboard set", sel.String(), c.reg.Names(types))
	return nil
}

// GetContents returns the content of sel as codec decodes it, or nil when
// no offered format yields a value. Locally owned content is still encoded
// and decoded so the caller never shares a value with the owner.
func (c *Clipboard) GetContents(codec transfer.Codec, sel platform.Selection) (any, error) {
	if err := c.check(codec); err != nil {
		return nil, err
	}
	if st, ok := c.store.Get(sel); ok {
		v, _ := c.bridge.ReadLocal(st, codec)
		return v, nil
	}
	for _, t := range c.candidates(codec, sel) {
		d, ok := c.backend.RequestData(sel, t)
		if !ok {
			continue
		}
		if v, ok := codec.Decode(d); ok {
			c.logRead(sel, d)
			return v, nil
		}
	}
	return nil, nil
}

// GetContentsAsync is GetContents without blocking the loop. The future
// yields nil when nothing decodes, and fails only on usage or I/O errors.
func (c *Clipboard) GetContentsAsync(codec transfer.Codec, sel platform.Selection) *loop.Future[any] {
	if err := c.check(codec); err != nil {
		return loop.Failed[any](err)
	}
	if st, ok := c.store.Get(sel); ok {
		v, _ := c.bridge.ReadLocal(st, codec)
		return loop.Resolved(v)
	}
	f := loop.NewFuture[any]()
	c.fetch(codec, sel, c.candidates(codec, sel), f)
	return f
}

// fetch tries types in order until one decodes.
func (c *Clipboard) fetch(codec transfer.Codec, sel platform.Selection, types []registry.TypeID, f *loop.Future[any]) {
	if len(types) == 0 {
		f.Resolve(nil)
		return
	}
	t, rest := types[0], types[1:]
	next := func() { c.fetch(codec, sel, rest, f) }

	if sr, ok := c.backend.(platform.StreamReader); ok && sr.Streaming() {
		name, _ := c.reg.Name(t)
		loop.Then(c.sched, sr.OpenStream(c.ctx, sel, name), func(rc io.ReadCloser, err error) {
			if !c.stillAlive("stream open", sel) {
				closeQuietly(rc)
				f.Reject(ErrDisposed)
				return
			}
			if err != nil {
				slog.Debug("stream open failed", "selection", sel, "type", name, "err", err)
				next()
				return
			}
			loop.Then(c.sched, c.bridge.Deserialize(c.ctx, name, rc, codec), func(id uuid.UUID, err error) {
				closeQuietly(rc)
				if !c.stillAlive("deserialize", sel) {
					f.Reject(ErrDisposed)
					return
				}
				if err != nil {
					f.Reject(fmt.Errorf("read %v as %s: %w", sel, name, err))
					return
				}
				if v, ok := c.bridge.Take(id); ok {
					f.Resolve(v)
					return
				}
				next()
			})
		})
		return
	}

	loop.Then(c.sched, c.backend.RequestDataAsync(sel, t), func(d transfer.Data, err error) {
		if !c.stillAlive("data request", sel) {
			f.Reject(ErrDisposed)
			return
		}
		if err == nil {
			if v, ok := codec.Decode(d); ok {
				c.logRead(sel, d)
				f.Resolve(v)
				return
			}
		}
		next()
	})
}

// Clear gives up ownership of sel and drops its entries.
func (c *Clipboard) Clear(sel platform.Selection) error {
	if c.life != alive {
		return ErrDisposed
	}
	p := c.providers[sel]
	if p == nil {
		return nil
	}
	c.backend.ReleaseOwnership(sel)
	c.drop(sel, p)
	return nil
}

// Owns reports whether this clipboard holds content for sel.
func (c *Clipboard) Owns(sel platform.Selection) bool {
	_, ok := c.store.Get(sel)
	return ok
}

// AvailableTypes lists the types currently offered on sel by any owner.
func (c *Clipboard) AvailableTypes(sel platform.Selection) ([]registry.TypeID, error) {
	if c.life != alive {
		return nil, ErrDisposed
	}
	if st, ok := c.store.Get(sel); ok {
		return st.Types(), nil
	}
	return c.backend.OwnedTypes(sel), nil
}

// AvailableTypeNames is AvailableTypes by name.
func (c *Clipboard) AvailableTypeNames(sel platform.Selection) ([]string, error) {
	types, err := c.AvailableTypes(sel)
	if err != nil {
		return nil, err
	}
	return c.reg.Names(types), nil
}

// Dispose asks the platform to persist every owned selection and waits for
// all confirmations, bounded by the dispose timeout, before releasing the
// providers the platform may still call. The future completes once that has
// happened; it never fails.
func (c *Clipboard) Dispose() *loop.Future[struct{}] {
	if c.disposal != nil {
		return c.disposal
	}
	c.disposal = loop.NewFuture[struct{}]()
	c.life = disposing

	owned := c.store.Owned()
	if len(owned) == 0 {
		c.finalize()
		c.disposal.Resolve(struct{}{})
		return c.disposal
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	timer := c.sched.AfterFunc(c.disposeTimeout, func() { cancel(errDisposeTimeout) })
	confirmations := make([]*loop.Future[struct{}], len(owned))
	for i, sel := range owned {
		confirmations[i] = c.backend.PersistOwnership(sel)
	}

	go func() {
		err := joinAll(ctx, owned, confirmations)
		if err != nil && context.Cause(ctx) != nil {
			err = context.Cause(ctx)
		}
		timer.Stop()
		cancel(nil)
		c.sched.Post(func() {
			if err != nil {
				slog.Warn("disposing clipboard without persist confirmation", "selections", len(owned), "err", err)
			}
			c.finalize()
			c.disposal.Resolve(struct{}{})
		})
	}()
	return c.disposal
}

// Disposed reports whether Dispose has released the clipboard.
func (c *Clipboard) Disposed() bool { return c.life == disposed }

func (c *Clipboard) finalize() {
	for sel, p := range c.providers {
		c.release(p)
		delete(c.providers, sel)
	}
	c.store.Reset()
	c.bridge.Close()
	c.cancel()
	c.life = disposed
	slog.Debug("clipboard disposed", "backend", c.backend.Name())
}

func (c *Clipboard) check(codec transfer.Codec) error {
	if c.life != alive {
		return ErrDisposed
	}
	if codec == nil {
		return ErrNilCodec
	}
	return nil
}

// candidates returns codec's formats offered on sel, in codec order.
func (c *Clipboard) candidates(codec transfer.Codec, sel platform.Selection) []registry.TypeID {
	offered := c.backend.OwnedTypes(sel)
	var out []registry.TypeID
	for _, t := range codec.TypeIDs() {
		if slices.Contains(offered, t) {
			out = append(out, t)
		}
	}
	return out
}

func (c *Clipboard) ownershipLost(sel platform.Selection, p *content) func() {
	return func() {
		if c.life == disposed {
			slog.Warn("ownership-lost callback after dispose", "selection", sel)
			return
		}
		if c.providers[sel] != p {
			slog.Warn("stale ownership-lost callback", "selection", sel)
			return
		}
		c.drop(sel, p)
		slog.Info("selection ownership lost", "selection", sel)
	}
}

func (c *Clipboard) drop(sel platform.Selection, p *content) {
	c.release(p)
	delete(c.providers, sel)
	c.store.Clear(sel)
}

func (c *Clipboard) release(p *content) {
	p.released = true
	c.bridge.Unregister(p.id)
}

func (c *Clipboard) stillAlive(what string, sel platform.Selection) bool {
	if c.life == disposed {
		slog.Warn("dropping completion after dispose", "op", what, "selection", sel)
		return false
	}
	return true
}

func (c *Clipboard) logRead(sel platform.Selection, d transfer.Data) {
	name, _ := c.reg.Name(d.Type)
	logging.Items("clipboard read", sel.String(), []logging.Item{{Format: name, Data: d.Buffer}})
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}
