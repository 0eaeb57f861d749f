package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/spf13/viper"

	"go.klb.dev/xfer/internal/clipboard"
	"go.klb.dev/xfer/internal/config"
	"go.klb.dev/xfer/internal/loop"
	"go.klb.dev/xfer/internal/platform"
	"go.klb.dev/xfer/internal/platform/memboard"
	"go.klb.dev/xfer/internal/platform/sysboard"
	"go.klb.dev/xfer/internal/registry"
	"go.klb.dev/xfer/internal/transfer"
)

var errNoSystemClipboard = errors.New("system clipboard unavailable")

// runtime is the event loop, backend and clipboard one command works with.
// Every call into the clipboard goes through call or await so it runs on
// the loop goroutine.
type runtime struct {
	settings config.Settings
	reg      *registry.Registry
	codecs   *transfer.Set
	loop     *loop.Loop
	backend  platform.ClipboardBackend
	clip     *clipboard.Clipboard
	sel      platform.Selection

	stop context.CancelFunc
	done chan struct{}
}

// openRuntime resolves settings from v, starts the loop and connects the
// configured backend.
func openRuntime(v *viper.Viper) (*runtime, error) {
	s, err := config.FromViper(v)
	if err != nil {
		return nil, err
	}
	sel, ok := platform.ParseSelection(strings.ToLower(v.GetString("selection")))
	if !ok {
		return nil, fmt.Errorf("unknown selection %q", v.GetString("selection"))
	}

	rt := &runtime{
		settings: s,
		reg:      registry.New(nil),
		loop:     loop.New(0),
		sel:      sel,
		done:     make(chan struct{}),
	}
	rt.codecs = transfer.NewSet(rt.reg)

	var ctx context.Context
	ctx, rt.stop = context.WithCancel(context.Background())
	go func() {
		defer close(rt.done)
		_ = rt.loop.Run(ctx)
	}()

	rt.backend, err = newBackend(s, rt.loop, rt.reg)
	if err != nil {
		rt.stop()
		<-rt.done
		return nil, err
	}
	opts := append(s.ClipboardOptions(), clipboard.WithRegistry(rt.reg))
	rt.clip = clipboard.New(rt.loop, rt.backend, opts...)
	slog.Debug("runtime ready", "backend", rt.backend.Name(), "selection", sel)
	return rt, nil
}

// newBackend picks the clipboard backend the settings ask for.
func newBackend(s config.Settings, sched loop.Scheduler, reg *registry.Registry) (platform.ClipboardBackend, error) {
	switch s.Backend {
	case config.BackendMemory:
		return newMemory(s, reg).Connect(sched), nil
	case config.BackendSystem:
		b := sysboard.New(sched, sysboard.WithRegistry(reg))
		if !sysboard.Native(b) {
			_ = b.Close()
			return nil, errNoSystemClipboard
		}
		return b, nil
	default:
		return sysboard.New(sched, sysboard.WithRegistry(reg)), nil
	}
}

func newMemory(s config.Settings, reg *registry.Registry) *memboard.Display {
	return memboard.New(memboard.WithRegistry(reg), memboard.WithMode(s.Mode))
}

// close disposes the clipboard, waiting for the platform to take over any
// content this process still owns, then stops the loop.
func (rt *runtime) close() {
	if _, err := await(rt, rt.clip.Dispose); err != nil {
		slog.Warn("dispose clipboard", "err", err)
	}
	_ = rt.backend.Close()
	rt.stop()
	<-rt.done
}

// codec returns the built-in codec called name.
func (rt *runtime) codec(name string) (transfer.Codec, error) {
	if c, ok := rt.codecs.ByName(name); ok {
		return c, nil
	}
	return nil, fmt.Errorf("unknown type %q (want %s)", name, strings.Join(codecNames(rt.codecs), "|"))
}

// codecsFor lists the names of the codecs that read format t.
func (rt *runtime) codecsFor(t registry.TypeID) []string {
	var out []string
	for _, c := range rt.codecs.All() {
		if transfer.Supports(c, t) {
			out = append(out, c.Name())
		}
	}
	return out
}

func codecNames(s *transfer.Set) []string {
	var names []string
	for _, c := range s.All() {
		names = append(names, c.Name())
	}
	slices.Sort(names)
	return names
}

// call runs fn on the loop goroutine and waits for its result.
func call[T any](rt *runtime, fn func() (T, error)) (T, error) {
	f := loop.NewFuture[T]()
	rt.loop.Post(func() {
		v, err := fn()
		if err != nil {
			f.Reject(err)
			return
		}
		f.Resolve(v)
	})
	return f.Wait(context.Background())
}

// await starts an asynchronous operation on the loop goroutine and waits
// for it to complete.
func await[T any](rt *runtime, start func() *loop.Future[T]) (T, error) {
	started := make(chan *loop.Future[T], 1)
	rt.loop.Post(func() { started <- start() })
	return (<-started).Wait(context.Background())
}
