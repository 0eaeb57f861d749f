// Package selection is the per-selection store of the (codec, value) pairs
// this process currently owns.
//
// A Store is confined to the event loop that drives its clipboard; it takes
// no locks.
package selection

import (
	"slices"

	"go.klb.dev/xfer/internal/platform"
	"go.klb.dev/xfer/internal/registry"
	"go.klb.dev/xfer/internal/transfer"
)

// Entry pairs a codec with the application value it encodes.
type Entry struct {
	Codec transfer.Codec
	Value any
}

// State is the owned content of one selection.
type State struct {
	// Generation increases with every Set on the owning Store and
	// identifies this content to late callbacks.
	Generation uint64
	// Native is the backend-visible content handle.
	Native uint64

	entries []Entry
}

// Entries returns the entries in the order they were set.
func (s *State) Entries() []Entry { return slices.Clone(s.entries) }

// Len returns the number of entries.
func (s *State) Len() int { return len(s.entries) }

// Value returns the value stored for codec c.
func (s *State) Value(c transfer.Codec) (any, bool) {
	for _, e := range s.entries {
		if e.Codec == c {
			return e.Value, true
		}
	}
	return nil, false
}

// Resolve returns the first entry whose codec supports t.
func (s *State) Resolve(t registry.TypeID) (transfer.Codec, any, bool) {
	for _, e := range s.entries {
		if transfer.Supports(e.Codec, t) {
			return e.Codec, e.Value, true
		}
	}
	return nil, nil, false
}

// Types returns the union of the entries' formats in entry order.
func (s *State) Types() []registry.TypeID {
	codecs := make([]transfer.Codec, len(s.entries))
	for i, e := range s.entries {
		codecs[i] = e.Codec
	}
	return transfer.TypesOf(codecs)
}

// Store holds the owned state of every selection.
type Store struct {
	states map[platform.Selection]*State
	gen    uint64
}

// New returns an empty Store.
func New() *Store {
	return &Store{states: make(map[platform.Selection]*State)}
}

// Prepare builds the state that Set would install, without installing it.
// Entries for the same codec collapse to the last value given.
func (s *Store) Prepare(entries []Entry) *State {
	st := &State{}
	for _, e := range entries {
		if i := slices.IndexFunc(st.entries, func(x Entry) bool { return x.Codec == e.Codec }); i >= 0 {
			st.entries[i].Value = e.Value
			continue
		}
		st.entries = append(st.entries, e)
	}
	s.gen++
	st.Generation = s.gen
	return st
}

// Set installs st for sel, returning the state it replaced.
func (s *Store) Set(sel platform.Selection, st *State) (prev *State) {
	prev = s.states[sel]
	s.states[sel] = st
	return prev
}

// Get returns the state owned for sel.
func (s *Store) Get(sel platform.Selection) (*State, bool) {
	st, ok := s.states[sel]
	return st, ok
}

// Current reports whether st is still the installed state for sel.
func (s *Store) Current(sel platform.Selection, st *State) bool {
	cur, ok := s.states[sel]
	return ok && cur == st
}

// Clear drops the state for sel, returning it.
func (s *Store) Clear(sel platform.Selection) (*State, bool) {
	st, ok := s.states[sel]
	delete(s.states, sel)
	return st, ok
}

// Owned lists the selections with installed state, in ascending order.
func (s *Store) Owned() []platform.Selection {
	out := make([]platform.Selection, 0, len(s.states))
	for sel := range s.states {
		out = append(out, sel)
	}
	slices.Sort(out)
	return out
}

// Reset drops every state.
func (s *Store) Reset() {
	clear(s.states)
}
