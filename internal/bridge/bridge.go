// Package bridge connects platform serialize and deserialize requests to
// codecs. Serialize encodes owned content and streams it to a writer;
// Deserialize drains a reader, decodes it and parks the value under a
// freshly minted id until it is taken exactly once.
//
// All errors reach the caller through the returned future.
package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"go.klb.dev/xfer/internal/loop"
	"go.klb.dev/xfer/internal/registry"
	"go.klb.dev/xfer/internal/transfer"
)

// DefaultMaxSize is the largest payload Deserialize accepts by default.
const DefaultMaxSize int64 = math.MaxInt32

var (
	ErrTooLarge          = errors.New("bridge: payload too large")
	ErrIO                = errors.New("bridge: i/o failure")
	ErrUnknownContent    = errors.New("bridge: unknown content")
	ErrUnsupportedFormat = errors.New("bridge: unsupported format")
	ErrEncode            = errors.New("bridge: encode failed")
	ErrClosed            = errors.New("bridge: closed")
)

// ContentID is the opaque content-kind handle given to the platform for a
// registered Resolver.
type ContentID uint64

// Resolver maps a requested type to the codec and value that serve it.
// selection.State implements it.
type Resolver interface {
	Resolve(t registry.TypeID) (transfer.Codec, any, bool)
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithMaxSize sets the Deserialize size limit.
func WithMaxSize(n int64) Option {
	return func(b *Bridge) {
		if n > 0 {
			b.maxSize = n
		}
	}
}

// WithRegistry sets the registry used to resolve format names.
func WithRegistry(r *registry.Registry) Option {
	return func(b *Bridge) { b.reg = r }
}

// Bridge is the per-process serialize/deserialize dispatcher. Completions
// that touch its stores run on the scheduler given to New.
type Bridge struct {
	sched   loop.Scheduler
	reg     *registry.Registry
	maxSize int64

	mu       sync.Mutex
	next     ContentID
	contents map[ContentID]Resolver
	data     map[uuid.UUID]any
	inflight int
	closed   bool
}

// New returns a Bridge completing on sched.
func New(sched loop.Scheduler, opts ...Option) *Bridge {
	b := &Bridge{
		sched:    sched,
		reg:      registry.Default(),
		maxSize:  DefaultMaxSize,
		contents: make(map[ContentID]Resolver),
		data:     make(map[uuid.UUID]any),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// MaxSize returns the Deserialize size limit.
func (b *Bridge) MaxSize() int64 { return b.maxSize }

// Register makes r reachable through the returned content id.
func (b *Bridge) Register(r Resolver) ContentID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	b.contents[b.next] = r
	return b.next
}

// Unregister forgets id. Serialize requests already past resolution are
// unaffected.
func (b *Bridge) Unregister(id ContentID) {
	b.mu.Lock()
	delete(b.contents, id)
	b.mu.Unlock()
}

// Serialize encodes the content registered under id in format and writes it
// to w. The future completes after the write finishes.
func (b *Bridge) Serialize(ctx context.Context, id ContentID, format string, w io.Writer) *loop.Future[struct{}] {
	b.mu.Lock()
	r, ok := b.contents[id]
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return loop.Failed[struct{}](ErrClosed)
	}
	if !ok {
		return loop.Failed[struct{}](fmt.Errorf("%w: %d", ErrUnknownContent, id))
	}
	t, ok := b.reg.Lookup(format)
	if !ok {
		return loop.Failed[struct{}](fmt.Errorf("%w: %q", ErrUnsupportedFormat, format))
	}
	codec, value, ok := r.Resolve(t)
	if !ok {
		return loop.Failed[struct{}](fmt.Errorf("%w: %q", ErrUnsupportedFormat, format))
	}
	d := codec.Encode(value, t)
	if !d.OK() {
		return loop.Failed[struct{}](fmt.Errorf("%w: %s as %q", ErrEncode, codec.Name(), format))
	}

	f := loop.NewFuture[struct{}]()
	b.track(1)
	go func() {
		defer b.track(-1)
		if err := writeAll(ctx, w, d.Buffer); err != nil {
			f.Reject(fmt.Errorf("%w: write %q: %w", ErrIO, format, err))
			return
		}
		slog.Debug("serialized", "format", format, "size", humanize.IBytes(uint64(len(d.Buffer))))
		f.Resolve(struct{}{})
	}()
	return f
}

// Deserialize reads r to the end, decodes it with c as format and stores
// the value. The future yields the id to pass to Take, or uuid.Nil when the
// payload decoded to no value.
func (b *Bridge) Deserialize(ctx context.Context, format string, r io.Reader, c transfer.Codec) *loop.Future[uuid.UUID] {
	if b.isClosed() {
		return loop.Failed[uuid.UUID](ErrClosed)
	}
	t, ok := b.reg.Lookup(format)
	if !ok || !transfer.Supports(c, t) {
		return loop.Failed[uuid.UUID](fmt.Errorf("%w: %q for %s", ErrUnsupportedFormat, format, c.Name()))
	}

	f := loop.NewFuture[uuid.UUID]()
	b.track(1)
	go func() {
		buf, err := readAll(ctx, r, b.maxSize)
		b.sched.Post(func() {
			defer b.track(-1)
			if err != nil {
				f.Reject(err)
				return
			}
			if b.isClosed() {
				slog.Warn("dropping deserialize completion after close", "format", format)
				f.Reject(ErrClosed)
				return
			}
			v, ok := c.Decode(transfer.Success(t, buf, transfer.ElementWidth(format)))
			if !ok {
				f.Resolve(uuid.Nil)
				return
			}
			id := uuid.New()
			b.mu.Lock()
			b.data[id] = v
			b.mu.Unlock()
			f.Resolve(id)
		})
	}()
	return f
}

// Take returns and removes the value stored under id.
func (b *Bridge) Take(id uuid.UUID) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.data[id]
	delete(b.data, id)
	return v, ok
}

// ReadLocal reads content r holds as codec c would receive it from the
// platform: the owning codec encodes to the first of c's formats r can
// serve, and c decodes. No platform round trip takes place but the caller
// still gets a distinct copy.
func (b *Bridge) ReadLocal(r Resolver, c transfer.Codec) (any, bool) {
	for _, t := range c.TypeIDs() {
		owner, value, ok := r.Resolve(t)
		if !ok {
			continue
		}
		if v, ok := c.Decode(owner.Encode(value, t)); ok {
			return v, true
		}
	}
	return nil, false
}

// Pending returns the number of stored values and in-flight requests.
func (b *Bridge) Pending() (stored, inflight int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data), b.inflight
}

// Close drops registered contents and stored values. Later completions are
// discarded with a warning.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	clear(b.contents)
	clear(b.data)
}

func (b *Bridge) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *Bridge) track(n int) {
	b.mu.Lock()
	b.inflight += n
	b.mu.Unlock()
}

// readAll drains r. Payloads over limit fail with ErrTooLarge instead of
// being truncated.
func readAll(ctx context.Context, r io.Reader, limit int64) ([]byte, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(ctxReader{ctx, r}, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read: %w", ErrIO, err)
	}
	if n > limit {
		return nil, fmt.Errorf("%w: more than %s", ErrTooLarge, humanize.IBytes(uint64(limit)))
	}
	return buf.Bytes(), nil
}

func writeAll(ctx context.Context, w io.Writer, p []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := w.Write(p)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	return err
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
