package transfer

import (
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"go.klb.dev/xfer/internal/registry"
)

const utf16ElementWidth = 16

var (
	utf16LE = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	latin1  = charmap.ISO8859_1
)

func validString(value any) bool {
	s, ok := value.(string)
	return ok && s != ""
}

// encodeWith converts s through enc. Unrepresentable runes fail the encode.
func encodeWith(enc encoding.Encoding, s string) ([]byte, bool) {
	b, err := enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, false
	}
	return b, true
}

func decodeWith(enc encoding.Encoding, b []byte) (string, bool) {
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", false
	}
	return string(out), true
}

// Text carries plain strings.
type Text struct{ byteArray }

// NewText registers the plain-text formats with reg (nil = registry.Default).
func NewText(reg *registry.Registry) *Text {
	return &Text{newByteArray(reg, FormatUTF8String, FormatTextUTF8, FormatTextPlain, FormatString)}
}

func (c *Text) Name() string            { return "text" }
func (c *Text) Validate(value any) bool { return validString(value) }

func (c *Text) Encode(value any, t registry.TypeID) Data {
	if !c.Validate(value) || !c.supports(t) {
		return Failure(t)
	}
	s := value.(string)
	if c.nameOf(t) == FormatString {
		b, ok := encodeWith(latin1, s)
		if !ok {
			return Failure(t)
		}
		return c.encodeBytes(b, t)
	}
	return c.encodeBytes([]byte(s), t)
}

func (c *Text) Decode(d Data) (any, bool) {
	b, ok := c.decodeBytes(d)
	if !ok {
		return nil, false
	}
	s := string(b)
	if c.nameOf(d.Type) == FormatString {
		if s, ok = decodeWith(latin1, b); !ok {
			return nil, false
		}
	}
	s = trimTerminator(s)
	if s == "" {
		return nil, false
	}
	return s, true
}

// RTF carries rich text documents as strings.
type RTF struct{ byteArray }

// NewRTF registers the rich-text formats with reg.
func NewRTF(reg *registry.Registry) *RTF {
	return &RTF{newByteArray(reg, FormatRTF, FormatRTFUpper, FormatRichText)}
}

func (c *RTF) Name() string            { return "rtf" }
func (c *RTF) Validate(value any) bool { return validString(value) }

func (c *RTF) Encode(value any, t registry.TypeID) Data {
	if !c.Validate(value) {
		return Failure(t)
	}
	return c.encodeBytes([]byte(value.(string)), t)
}

func (c *RTF) Decode(d Data) (any, bool) {
	b, ok := c.decodeBytes(d)
	if !ok {
		return nil, false
	}
	s := trimTerminator(string(b))
	if s == "" {
		return nil, false
	}
	return s, true
}

// HTML carries HTML fragments. Encoding is always UTF-8; decoding accepts
// the UTF-16 (BOM-prefixed) buffers some browsers place on the selection.
type HTML struct{ byteArray }

// NewHTML registers the HTML formats with reg.
func NewHTML(reg *registry.Registry) *HTML {
	return &HTML{newByteArray(reg, FormatHTML, FormatHTMLUpper)}
}

func (c *HTML) Name() string            { return "html" }
func (c *HTML) Validate(value any) bool { return validString(value) }

func (c *HTML) Encode(value any, t registry.TypeID) Data {
	if !c.Validate(value) {
		return Failure(t)
	}
	return c.encodeBytes([]byte(value.(string)), t)
}

func (c *HTML) Decode(d Data) (any, bool) {
	b, ok := c.decodeBytes(d)
	if !ok {
		return nil, false
	}
	// BOMOverride switches to UTF-16 when a BOM is present, else UTF-8.
	out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), b)
	if err != nil {
		return nil, false
	}
	s := trimTerminator(string(out))
	if s == "" {
		return nil, false
	}
	return s, true
}

// URL carries a single URL as UTF-16LE. text/x-moz-url appends a title line.
type URL struct{ byteArray }

// NewURL registers the URL formats with reg.
func NewURL(reg *registry.Registry) *URL {
	return &URL{newByteArray(reg, FormatUnicode, FormatMozURL)}
}

func (c *URL) Name() string            { return "url" }
func (c *URL) Validate(value any) bool { return validString(value) }

func (c *URL) Encode(value any, t registry.TypeID) Data {
	if !c.Validate(value) || !c.supports(t) {
		return Failure(t)
	}
	s := value.(string)
	if c.nameOf(t) == FormatMozURL {
		s = s + "\n" + s
	}
	b, ok := encodeWith(utf16LE, s)
	if !ok {
		return Failure(t)
	}
	d := c.encodeBytes(b, t)
	if d.OK() {
		d.Format = utf16ElementWidth
	}
	return d
}

func (c *URL) Decode(d Data) (any, bool) {
	if len(d.Buffer)%2 != 0 {
		return nil, false
	}
	b, ok := c.decodeBytes(d)
	if !ok {
		return nil, false
	}
	s, ok := decodeWith(utf16LE, b)
	if !ok {
		return nil, false
	}
	s = trimTerminator(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimRight(s, "\r")
	if s == "" {
		return nil, false
	}
	return s, true
}
