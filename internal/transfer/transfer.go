// Package transfer defines the wire-level unit exchanged with the platform
// (Data) and the Codec contract that converts application values to and
// from it.
//
// Concrete codecs:
//
//	Text   string          UTF8_STRING, text/plain;charset=utf-8, text/plain, STRING
//	RTF    string          text/rtf, TEXT/RTF, text/richtext
//	HTML   string          text/html, TEXT/HTML
//	URL    string          text/unicode, text/x-moz-url (UTF-16LE)
//	Files  []string        text/uri-list, x-special/gnome-copied-files
//	Image  image.Image     image/png, image/jpeg, image/bmp, image/tiff, image/gif
//	Bytes  []byte          application-defined names
//	Proto  proto.Message   application/x-protobuf;type=<full name>
package transfer

import (
	"fmt"
	"slices"

	"go.klb.dev/xfer/internal/registry"
)

// Result codes carried by Data.
const (
	ResultFailure = 0
	ResultSuccess = 1
)

// Data is the tagged buffer handed between a codec and the platform.
//
// Result == ResultSuccess implies Buffer is fully owned by the holder and
// len(Buffer)*8 == Format*Count().
type Data struct {
	Type registry.TypeID
	// Buffer is the raw payload.
	Buffer []byte
	// Format is the element width in bits (8, 16 or 32).
	Format int
	// Result is ResultSuccess or ResultFailure.
	Result int
}

// OK reports whether d carries a successfully encoded payload.
func (d Data) OK() bool { return d.Result == ResultSuccess && d.Buffer != nil }

// Count returns the number of elements in the buffer.
func (d Data) Count() int {
	if d.Format <= 0 {
		return 0
	}
	return len(d.Buffer) * 8 / d.Format
}

func (d Data) String() string {
	return fmt.Sprintf("Data{type=%v len=%d format=%d result=%d}", d.Type, len(d.Buffer), d.Format, d.Result)
}

// Failure returns a Data for t with no buffer and ResultFailure.
func Failure(t registry.TypeID) Data {
	return Data{Type: t, Result: ResultFailure}
}

// Success wraps buf as a successful Data of the given element width.
func Success(t registry.TypeID, buf []byte, format int) Data {
	return Data{Type: t, Buffer: buf, Format: format, Result: ResultSuccess}
}

// Codec converts application values of one payload kind to and from Data.
// Exactly one Codec instance exists per payload kind; instances are
// comparable and are used as identity keys.
type Codec interface {
	// Name is a short human-readable name for the payload kind.
	Name() string
	// TypeIDs lists the formats this codec can produce and consume.
	TypeIDs() []registry.TypeID
	// TypeNames lists the same formats by name, in the same order.
	TypeNames() []string
	// Encode converts value to the format t. It fails closed: an invalid
	// value or unsupported t yields ResultFailure and no buffer.
	Encode(value any, t registry.TypeID) Data
	// Decode converts d back to a value. It returns false, never an
	// error, when d is empty, failed or of an unsupported type.
	Decode(d Data) (any, bool)
	// Validate reports whether value can be encoded by this codec.
	Validate(value any) bool
}

// Supports reports whether c lists t among its formats.
func Supports(c Codec, t registry.TypeID) bool {
	return t.Valid() && slices.Contains(c.TypeIDs(), t)
}

// SupportsName reports whether c lists the format name.
func SupportsName(c Codec, name string) bool {
	return slices.Contains(c.TypeNames(), name)
}

// FirstSupported returns the first codec in codecs that supports t.
func FirstSupported(codecs []Codec, t registry.TypeID) (Codec, bool) {
	for _, c := range codecs {
		if c != nil && Supports(c, t) {
			return c, true
		}
	}
	return nil, false
}

// Common returns the entries of offered that at least one of codecs
// supports, preserving the order of offered.
func Common(offered []registry.TypeID, codecs []Codec) []registry.TypeID {
	var out []registry.TypeID
	for _, t := range offered {
		if _, ok := FirstSupported(codecs, t); ok && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

// TypesOf returns the union of the formats of codecs, in codec order.
func TypesOf(codecs []Codec) []registry.TypeID {
	var out []registry.TypeID
	for _, c := range codecs {
		if c == nil {
			continue
		}
		for _, t := range c.TypeIDs() {
			if !slices.Contains(out, t) {
				out = append(out, t)
			}
		}
	}
	return out
}

// Clone runs value through one Encode followed by one Decode using the
// codec's first format. Reads of locally owned content go through this so
// the caller always gets a distinct copy.
func Clone(c Codec, value any) (any, bool) {
	ids := c.TypeIDs()
	if len(ids) == 0 {
		return nil, false
	}
	d := c.Encode(value, ids[0])
	if !d.OK() {
		return nil, false
	}
	return c.Decode(d)
}
