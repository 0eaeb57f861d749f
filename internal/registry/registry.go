// Package registry maps application-defined format names to stable numeric
// type identifiers. The mapping is append-only: once a name has an id it
// keeps it for the lifetime of the process.
package registry

import (
	"fmt"
	"sort"
	"sync"
)

// TypeID identifies a negotiated data format. The zero value is invalid.
type TypeID uint32

// Invalid is the "unknown" type id.
const Invalid TypeID = 0

// Valid reports whether id refers to a registered format.
func (id TypeID) Valid() bool { return id != Invalid }

func (id TypeID) String() string {
	if name, ok := Default().Name(id); ok {
		return fmt.Sprintf("%s(%d)", name, uint32(id))
	}
	return fmt.Sprintf("TypeID(%d)", uint32(id))
}

// Interner assigns ids on behalf of a platform that owns the numbering
// (an atom table, for example). It must return a stable non-zero id per name.
type Interner func(name string) TypeID

// Registry is a bidirectional name <-> TypeID table.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]TypeID
	byID   map[TypeID]string
	next   TypeID
	intern Interner
}

// New returns an empty registry. If intern is nil ids are assigned
// sequentially starting at 1.
func New(intern Interner) *Registry {
	return &Registry{
		byName: make(map[string]TypeID),
		byID:   make(map[TypeID]string),
		intern: intern,
	}
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the process-wide registry, creating it on first use.
// It is never torn down.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultReg = New(nil)
	})
	return defaultReg
}

// Register returns the id for name, assigning a new one the first time the
// name is seen. Registering an empty name returns Invalid.
func (r *Registry) Register(name string) TypeID {
	if name == "" {
		return Invalid
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byName[name]; ok {
		return id
	}
	var id TypeID
	if r.intern != nil {
		id = r.intern(name)
		if _, taken := r.byID[id]; !id.Valid() || taken {
			// Unusable or colliding platform id; number it locally.
			id = r.nextFreeLocked()
		}
	} else {
		id = r.nextFreeLocked()
	}
	r.byName[name] = id
	r.byID[id] = name
	return id
}

// RegisterAll registers every name and returns their ids in order.
func (r *Registry) RegisterAll(names ...string) []TypeID {
	ids := make([]TypeID, 0, len(names))
	for _, n := range names {
		ids = append(ids, r.Register(n))
	}
	return ids
}

// Lookup returns the id for a previously registered name.
func (r *Registry) Lookup(name string) (TypeID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	return id, ok
}

// Name returns the format name for id.
func (r *Registry) Name(id TypeID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.byID[id]
	return name, ok
}

// Names resolves ids to names, skipping unknown ids.
func (r *Registry) Names(ids []TypeID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if n, ok := r.byID[id]; ok {
			out = append(out, n)
		}
	}
	return out
}

// Len returns the number of registered formats.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

// Entry is one row of a registry snapshot.
type Entry struct {
	ID   TypeID `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Snapshot returns all registered formats ordered by id.
func (r *Registry) Snapshot() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.byID))
	for id, n := range r.byID {
		out = append(out, Entry{ID: id, Name: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) nextFreeLocked() TypeID {
	for {
		r.next++
		if _, taken := r.byID[r.next]; !taken {
			return r.next
		}
	}
}
