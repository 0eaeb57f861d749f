package dnd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/xfer/internal/registry"
)

func TestNegotiateAlwaysYieldsAllowedOperation(t *testing.T) {
	for a := Operation(0); a <= All; a++ {
		for r := Operation(0); r <= All|Unset; r++ {
			got := Negotiate(a, r)
			if got != None {
				assert.True(t, a.Has(got), "allowed=%v requested=%v got=%v", a, r, got)
				assert.True(t, got.Single())
			}
			switch {
			case r.Single() && a&r != 0:
				assert.Equal(t, r, got)
			case a&Move != 0:
				assert.Equal(t, Move, got, "allowed=%v requested=%v", a, r)
			default:
				assert.Equal(t, None, got, "allowed=%v requested=%v", a, r)
			}
		}
	}
}

func TestNegotiateExamples(t *testing.T) {
	tests := []struct {
		allowed, requested, want Operation
	}{
		{Copy | Move, Copy, Copy},
		{Copy | Move, Link, Move},
		{Copy, Link, None},
		{Copy | Link, Copy | Link, None},
		{All, Copy | Move, Move},
		{None, Copy, None},
		{Move, Unset, Move},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Negotiate(tt.allowed, tt.requested), "%v/%v", tt.allowed, tt.requested)
	}
}

func TestOperationString(t *testing.T) {
	assert.Equal(t, "none", None.String())
	assert.Equal(t, "copy|move", (Copy | Move).String())
	assert.Equal(t, "unset", Unset.String())

	for _, o := range []Operation{None, Copy, Move, Link, Copy | Link, All} {
		got, ok := ParseOperation(o.String())
		require.True(t, ok)
		assert.Equal(t, o, got)
	}
	_, ok := ParseOperation("teleport")
	assert.False(t, ok)
}

func TestHasAndSingle(t *testing.T) {
	assert.True(t, All.Has(Copy|Link))
	assert.False(t, Copy.Has(None))
	assert.False(t, (Copy | Move).Single())
	assert.False(t, Unset.Single())
	assert.True(t, Link.Single())
}

func TestEventClone(t *testing.T) {
	e := &Event{DataTypes: []registry.TypeID{1, 2}, Detail: Copy}
	c := e.Clone()
	c.DataTypes[0] = 9
	c.Detail = Move
	assert.Equal(t, registry.TypeID(1), e.DataTypes[0])
	assert.Equal(t, Copy, e.Detail)
}
