package clipboard

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"go.klb.dev/xfer/internal/bridge"
	"go.klb.dev/xfer/internal/loop"
	"go.klb.dev/xfer/internal/platform"
	"go.klb.dev/xfer/internal/registry"
	"go.klb.dev/xfer/internal/selection"
	"go.klb.dev/xfer/internal/transfer"
)

// content is the provider handed to the backend for one SetContents call.
// It stays valid until replaced, lost, cleared or disposed.
type content struct {
	c        *Clipboard
	sel      platform.Selection
	state    *selection.State
	id       bridge.ContentID
	released bool
}

var _ platform.StreamProvider = (*content)(nil)

func (p *content) Provide(t registry.TypeID) transfer.Data {
	if p.released {
		slog.Warn("data request for released clipboard content", "selection", p.sel, "type", t)
		return transfer.Failure(t)
	}
	codec, value, ok := p.state.Resolve(t)
	if !ok {
		return transfer.Failure(t)
	}
	return codec.Encode(value, t)
}

func (p *content) Serialize(ctx context.Context, format string, w io.Writer) *loop.Future[struct{}] {
	if p.released {
		slog.Warn("serialize request for released clipboard content", "selection", p.sel, "format", format)
		return loop.Failed[struct{}](ErrDisposed)
	}
	return p.c.bridge.Serialize(ctx, p.id, format, w)
}

// joinAll waits for every confirmation or for ctx to end.
func joinAll(ctx context.Context, sels []platform.Selection, fs []*loop.Future[struct{}]) error {
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range fs {
		sel := sels[i]
		g.Go(func() error {
			if f == nil {
				return nil
			}
			if _, err := f.Wait(gctx); err != nil {
				return fmt.Errorf("persist %v: %w", sel, err)
			}
			return nil
		})
	}
	return g.Wait()
}
