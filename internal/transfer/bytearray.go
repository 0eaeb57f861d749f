package transfer

import (
	"bytes"
	"slices"
	"strings"

	"go.klb.dev/xfer/internal/registry"
)

// byteArray is the shared encode/decode path for codecs whose native form
// is a plain byte buffer. It registers its format names once.
type byteArray struct {
	names []string
	ids   []registry.TypeID
}

func newByteArray(reg *registry.Registry, names ...string) byteArray {
	if reg == nil {
		reg = registry.Default()
	}
	return byteArray{
		names: slices.Clone(names),
		ids:   reg.RegisterAll(names...),
	}
}

func (b byteArray) TypeIDs() []registry.TypeID { return slices.Clone(b.ids) }
func (b byteArray) TypeNames() []string        { return slices.Clone(b.names) }

func (b byteArray) supports(t registry.TypeID) bool {
	return t.Valid() && slices.Contains(b.ids, t)
}

// nameOf returns the format name registered for t by this codec.
func (b byteArray) nameOf(t registry.TypeID) string {
	if i := slices.Index(b.ids, t); i >= 0 {
		return b.names[i]
	}
	return ""
}

func (b byteArray) encodeBytes(buf []byte, t registry.TypeID) Data {
	if !b.supports(t) || len(buf) == 0 {
		return Failure(t)
	}
	return Success(t, bytes.Clone(buf), 8)
}

func (b byteArray) decodeBytes(d Data) ([]byte, bool) {
	if !b.supports(d.Type) || d.Result != ResultSuccess || len(d.Buffer) == 0 {
		return nil, false
	}
	return bytes.Clone(d.Buffer), true
}

// Bytes carries raw application-defined formats.
type Bytes struct {
	byteArray
	name string
}

// NewBytes returns a codec for the given application format names.
func NewBytes(reg *registry.Registry, name string, formats ...string) *Bytes {
	return &Bytes{byteArray: newByteArray(reg, formats...), name: name}
}

func (c *Bytes) Name() string { return c.name }

func (c *Bytes) Validate(value any) bool {
	b, ok := value.([]byte)
	return ok && len(b) > 0
}

func (c *Bytes) Encode(value any, t registry.TypeID) Data {
	if !c.Validate(value) {
		return Failure(t)
	}
	return c.encodeBytes(value.([]byte), t)
}

func (c *Bytes) Decode(d Data) (any, bool) {
	b, ok := c.decodeBytes(d)
	if !ok {
		return nil, false
	}
	return b, true
}

// trimTerminator cuts s at its first NUL.
func trimTerminator(s string) string {
	if i := strings.IndexByte(s, 0); i >= 0 {
		return s[:i]
	}
	return s
}
