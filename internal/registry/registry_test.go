package registry

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIsIdempotent(t *testing.T) {
	r := New(nil)
	names := []string{"text/plain", "UTF8_STRING", "text/uri-list", "application/x-custom", "x"}
	for _, n := range names {
		first := r.Register(n)
		second := r.Register(n)
		require.True(t, first.Valid(), n)
		assert.Equal(t, first, second, n)
	}
	assert.Equal(t, len(names), r.Len())
}

func TestRegisterAssignsDistinctIDs(t *testing.T) {
	r := New(nil)
	seen := make(map[TypeID]string)
	for i := range 200 {
		n := fmt.Sprintf("fmt-%d", i)
		id := r.Register(n)
		prev, dup := seen[id]
		require.False(t, dup, "id %d reused for %q and %q", id, prev, n)
		seen[id] = n
	}
}

func TestLookupAndReverse(t *testing.T) {
	r := New(nil)
	id := r.Register("text/html")

	got, ok := r.Lookup("text/html")
	require.True(t, ok)
	assert.Equal(t, id, got)

	name, ok := r.Name(id)
	require.True(t, ok)
	assert.Equal(t, "text/html", name)

	_, ok = r.Lookup("text/rtf")
	assert.False(t, ok)
	_, ok = r.Name(TypeID(9999))
	assert.False(t, ok)
}

func TestEmptyNameIsInvalid(t *testing.T) {
	r := New(nil)
	assert.Equal(t, Invalid, r.Register(""))
	assert.Equal(t, 0, r.Len())
}

func TestInternerIDsAreUsedWhenUsable(t *testing.T) {
	atoms := map[string]TypeID{"PRIMARY": 1, "CLIPBOARD": 69, "BROKEN": 0, "CLASH": 69}
	r := New(func(name string) TypeID { return atoms[name] })

	assert.Equal(t, TypeID(69), r.Register("CLIPBOARD"))
	assert.Equal(t, TypeID(1), r.Register("PRIMARY"))

	broken := r.Register("BROKEN")
	clash := r.Register("CLASH")
	assert.True(t, broken.Valid())
	assert.NotEqual(t, TypeID(69), clash)
	assert.NotEqual(t, broken, clash)

	// Re-registering keeps the locally assigned fallback.
	assert.Equal(t, clash, r.Register("CLASH"))
}

func TestSnapshotOrderedByID(t *testing.T) {
	r := New(nil)
	r.RegisterAll("c", "a", "b")
	snap := r.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, []Entry{{1, "c"}, {2, "a"}, {3, "b"}}, snap)
	assert.Equal(t, []string{"a", "c"}, r.Names([]TypeID{2, 42, 1}))
}

func TestDefaultIsShared(t *testing.T) {
	a := Default()
	b := Default()
	assert.Same(t, a, b)
	id := a.Register("registry-test/shared")
	got, ok := b.Lookup("registry-test/shared")
	require.True(t, ok)
	assert.Equal(t, id, got)
	assert.Contains(t, id.String(), "registry-test/shared")
}
