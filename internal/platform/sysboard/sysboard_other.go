//go:build !linux && !darwin && !windows

package sysboard

import (
	"errors"

	"go.klb.dev/xfer/internal/loop"
	"go.klb.dev/xfer/internal/platform"
)

// New returns an in-memory backend; this platform has no supported system
// clipboard.
func New(sched loop.Scheduler, opts ...Option) platform.ClipboardBackend {
	return fallback(sched, buildOptions(opts), errors.New("unsupported platform"))
}
