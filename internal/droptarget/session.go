package droptarget

import (
	"time"

	"go.klb.dev/xfer/internal/dnd"
	"go.klb.dev/xfer/internal/loop"
	"go.klb.dev/xfer/internal/platform"
	"go.klb.dev/xfer/internal/registry"
)

// session is the state of one drag over the target, from the first motion
// to drop or leave.
type session struct {
	dc platform.DragContext

	// keyOperation is the operation the pointer suggested at the last
	// motion; Unset while no drag is over the target.
	keyOperation dnd.Operation
	// lastOperation is the operation last reported to the platform.
	lastOperation dnd.Operation

	selectedType registry.TypeID
	selectedOp   dnd.Operation

	hoverStart time.Time
	hoverEvent *dnd.Event
	heartbeat  loop.Timer

	scroll dwell
	expand dwell

	dropEvent *dnd.Event
}

func newSession() session {
	return session{keyOperation: dnd.Unset, lastOperation: dnd.Unset}
}

func (s *session) active() bool { return s.keyOperation != dnd.Unset }

func (s *session) stopHeartbeat() {
	if s.heartbeat != nil {
		s.heartbeat.Stop()
		s.heartbeat = nil
	}
	s.hoverStart = time.Time{}
}

func (s *session) resetEffects() {
	s.scroll = dwell{}
	s.expand = dwell{}
}

// dwell is the hysteresis for one hover effect: it fires once the same key
// has been seen continuously until its deadline.
type dwell struct {
	key      any
	deadline time.Time
}

func (d *dwell) step(wanted bool, key any, now time.Time, window time.Duration, fire func(any)) {
	if !wanted || key == nil {
		*d = dwell{}
		return
	}
	if !d.deadline.IsZero() && d.key == key {
		if !now.Before(d.deadline) {
			*d = dwell{}
			fire(key)
		}
		return
	}
	d.key = key
	d.deadline = now.Add(window)
}
