package transfer

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"go.klb.dev/xfer/internal/registry"
)

func newTestImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	for y := range 3 {
		for x := range 4 {
			img.Set(x, y, color.NRGBA{R: uint8(x * 60), G: uint8(y * 80), B: 200, A: 255})
		}
	}
	return img
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestRoundTripEveryCodecAndFormat(t *testing.T) {
	reg := registry.New(nil)
	set := NewSet(reg)
	rec := NewProto(reg, &structpb.Struct{})
	raw := NewBytes(reg, "custom", "application/x-xfer-test")

	tests := []struct {
		name  string
		codec Codec
		value any
		equal func(t *testing.T, want, got any)
	}{
		{name: "text", codec: set.Text, value: "hello, wörld"},
		{name: "rtf", codec: set.RTF, value: `{\rtf1\ansi hello}`},
		{name: "html", codec: set.HTML, value: "<b>bold</b> &amp; ünïcode"},
		{name: "url", codec: set.URL, value: "https://example.com/a?b=c"},
		{name: "files", codec: set.Files, value: []string{"/tmp/a b.txt", "/home/u/ünï.png", "/x"}},
		{name: "bytes", codec: raw, value: []byte{0, 1, 2, 255}},
		{
			name:  "proto",
			codec: rec,
			value: mustStruct(t, map[string]any{"k": "v", "n": 2.0}),
			equal: func(t *testing.T, want, got any) {
				assert.True(t, proto.Equal(want.(proto.Message), got.(proto.Message)))
			},
		},
	}
	for _, tt := range tests {
		for _, id := range tt.codec.TypeIDs() {
			name, _ := reg.Name(id)
			if tt.name == "text" && name == FormatString {
				continue // latin-1 only; covered separately
			}
			t.Run(tt.name+"/"+name, func(t *testing.T) {
				require.True(t, tt.codec.Validate(tt.value))
				d := tt.codec.Encode(tt.value, id)
				require.True(t, d.OK(), "encode %s", name)
				assert.Equal(t, id, d.Type)
				assert.Equal(t, len(d.Buffer)*8, d.Format*d.Count())

				got, ok := tt.codec.Decode(d)
				require.True(t, ok)
				if tt.equal != nil {
					tt.equal(t, tt.value, got)
					return
				}
				assert.Equal(t, tt.value, got)
			})
		}
	}
}

func TestImageRoundTripLossless(t *testing.T) {
	reg := registry.New(nil)
	c := NewImage(reg)
	src := newTestImage()
	for _, name := range []string{FormatPNG, FormatBMP, FormatTIFF} {
		t.Run(name, func(t *testing.T) {
			id, _ := reg.Lookup(name)
			d := c.Encode(src, id)
			require.True(t, d.OK())
			v, ok := c.Decode(d)
			require.True(t, ok)
			img := v.(image.Image)
			require.Equal(t, src.Bounds().Size(), img.Bounds().Size())
			for y := range 3 {
				for x := range 4 {
					r1, g1, b1, a1 := src.At(x, y).RGBA()
					r2, g2, b2, a2 := img.At(img.Bounds().Min.X+x, img.Bounds().Min.Y+y).RGBA()
					assert.Equal(t, []uint32{r1, g1, b1, a1}, []uint32{r2, g2, b2, a2})
				}
			}
		})
	}
}

func TestImageLossyFormatsStillDecode(t *testing.T) {
	reg := registry.New(nil)
	c := NewImage(reg)
	for _, name := range []string{FormatJPEG, FormatGIF} {
		id, _ := reg.Lookup(name)
		d := c.Encode(newTestImage(), id)
		require.True(t, d.OK(), name)
		v, ok := c.Decode(d)
		require.True(t, ok, name)
		assert.Equal(t, image.Pt(4, 3), v.(image.Image).Bounds().Size())
	}
}

func TestEncodeFailsClosed(t *testing.T) {
	reg := registry.New(nil)
	set := NewSet(reg)
	foreign := reg.Register("application/x-not-supported")

	tests := []struct {
		name  string
		codec Codec
		value any
	}{
		{"text nil", set.Text, nil},
		{"text empty", set.Text, ""},
		{"text wrong kind", set.Text, 42},
		{"rtf bytes", set.RTF, []byte("x")},
		{"html empty", set.HTML, ""},
		{"url number", set.URL, 3.14},
		{"files empty", set.Files, []string{}},
		{"files relative", set.Files, []string{"relative/path"}},
		{"files blank", set.Files, []string{"/ok", ""}},
		{"image nil", set.Image, nil},
		{"image empty", set.Image, image.NewRGBA(image.Rect(0, 0, 0, 0))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, tt.codec.Validate(tt.value))
			for _, id := range append(tt.codec.TypeIDs(), foreign, registry.Invalid) {
				d := tt.codec.Encode(tt.value, id)
				assert.Equal(t, ResultFailure, d.Result)
				assert.Nil(t, d.Buffer)
			}
		})
	}

	// Valid value, unsupported type.
	for _, c := range set.All() {
		var v any
		switch c.(type) {
		case *Files:
			v = []string{"/a"}
		case *Image:
			v = newTestImage()
		default:
			v = "value"
		}
		require.True(t, c.Validate(v), c.Name())
		d := c.Encode(v, foreign)
		assert.Equal(t, ResultFailure, d.Result, c.Name())
		assert.Nil(t, d.Buffer, c.Name())
	}
}

func TestDecodeAbsentIsNoValue(t *testing.T) {
	reg := registry.New(nil)
	set := NewSet(reg)
	foreign := reg.Register("application/x-other")
	for _, c := range set.All() {
		id := c.TypeIDs()[0]
		for _, d := range []Data{
			{},
			Failure(id),
			{Type: id, Result: ResultSuccess},
			{Type: id, Buffer: []byte{}, Format: 8, Result: ResultSuccess},
			{Type: foreign, Buffer: []byte("abc"), Format: 8, Result: ResultSuccess},
		} {
			v, ok := c.Decode(d)
			assert.False(t, ok, "%s %v", c.Name(), d)
			assert.Nil(t, v)
		}
	}
}

func TestTextTrimsAtTerminator(t *testing.T) {
	reg := registry.New(nil)
	set := NewSet(reg)
	utf8ID, _ := reg.Lookup(FormatUTF8String)
	rtfID, _ := reg.Lookup(FormatRTF)
	htmlID, _ := reg.Lookup(FormatHTML)

	v, ok := set.Text.Decode(Success(utf8ID, []byte("abc\x00garbage"), 8))
	require.True(t, ok)
	assert.Equal(t, "abc", v)

	v, ok = set.RTF.Decode(Success(rtfID, []byte("{\\rtf1}\x00\x00"), 8))
	require.True(t, ok)
	assert.Equal(t, "{\\rtf1}", v)

	v, ok = set.HTML.Decode(Success(htmlID, []byte("<p>x</p>\x00"), 8))
	require.True(t, ok)
	assert.Equal(t, "<p>x</p>", v)

	_, ok = set.Text.Decode(Success(utf8ID, []byte("\x00abc"), 8))
	assert.False(t, ok)
}

func TestTextLatin1Format(t *testing.T) {
	reg := registry.New(nil)
	c := NewText(reg)
	id, _ := reg.Lookup(FormatString)

	d := c.Encode("café", id)
	require.True(t, d.OK())
	assert.Equal(t, []byte{'c', 'a', 'f', 0xe9}, d.Buffer)
	v, ok := c.Decode(d)
	require.True(t, ok)
	assert.Equal(t, "café", v)

	d = c.Encode("日本", id)
	assert.Equal(t, ResultFailure, d.Result)
	assert.Nil(t, d.Buffer)
}

func TestHTMLDecodesUTF16WithBOM(t *testing.T) {
	reg := registry.New(nil)
	c := NewHTML(reg)
	id, _ := reg.Lookup(FormatHTML)
	// "<i>é</i>" as UTF-16LE with BOM.
	buf := []byte{0xff, 0xfe}
	for _, r := range "<i>é</i>" {
		buf = append(buf, byte(r), byte(r>>8))
	}
	v, ok := c.Decode(Success(id, buf, 8))
	require.True(t, ok)
	assert.Equal(t, "<i>é</i>", v)
}

func TestURLByteLayout(t *testing.T) {
	reg := registry.New(nil)
	c := NewURL(reg)
	uni, _ := reg.Lookup(FormatUnicode)
	moz, _ := reg.Lookup(FormatMozURL)

	d := c.Encode("ab", uni)
	require.True(t, d.OK())
	assert.Equal(t, []byte{'a', 0, 'b', 0}, d.Buffer)
	assert.Equal(t, 16, d.Format)
	assert.Equal(t, 2, d.Count())

	d = c.Encode("ab", moz)
	require.True(t, d.OK())
	assert.Equal(t, []byte{'a', 0, 'b', 0, '\n', 0, 'a', 0, 'b', 0}, d.Buffer)

	_, ok := c.Decode(Success(uni, []byte{'a', 0, 'b'}, 8))
	assert.False(t, ok, "odd-length UTF-16 buffer")
}

func TestFilesByteLayout(t *testing.T) {
	reg := registry.New(nil)
	c := NewFiles(reg)
	uriList, _ := reg.Lookup(FormatURIList)
	gnome, _ := reg.Lookup(FormatGnomeCopied)
	paths := []string{"/tmp/a b", "/etc/hosts"}

	d := c.Encode(paths, uriList)
	require.True(t, d.OK())
	assert.Equal(t, "file:///tmp/a%20b\r\nfile:///etc/hosts", string(d.Buffer))

	d = c.Encode(paths, gnome)
	require.True(t, d.OK())
	assert.Equal(t, "copy\nfile:///tmp/a%20b\nfile:///etc/hosts", string(d.Buffer))
}

func TestFilesDecodeTolerance(t *testing.T) {
	reg := registry.New(nil)
	c := NewFiles(reg)
	uriList, _ := reg.Lookup(FormatURIList)
	gnome, _ := reg.Lookup(FormatGnomeCopied)

	v, ok := c.Decode(Success(uriList, []byte("# comment\r\nfile:///a\r\nhttps://example.com/x\r\nfile://localhost/b\r\n\r\nfile://remote/c\r\n"), 8))
	require.True(t, ok)
	assert.Equal(t, []string{"/a", "/b"}, v)

	v, ok = c.Decode(Success(gnome, []byte("cut\nfile:///moved\n"), 8))
	require.True(t, ok)
	assert.Equal(t, []string{"/moved"}, v)

	_, ok = c.Decode(Success(uriList, []byte("https://only.example/"), 8))
	assert.False(t, ok)
}

func TestProtoRejectsOtherMessageTypes(t *testing.T) {
	reg := registry.New(nil)
	c := NewProto(reg, &structpb.Struct{})
	id := c.TypeIDs()[0]
	name, _ := reg.Name(id)
	assert.Equal(t, "application/x-protobuf;type=google.protobuf.Struct", name)

	assert.False(t, c.Validate(structpb.NewStringValue("x")))
	assert.False(t, c.Validate((*structpb.Struct)(nil)))
	d := c.Encode(structpb.NewStringValue("x"), id)
	assert.Equal(t, ResultFailure, d.Result)

}

func TestProtoEmptyPayloadCarriesNoValue(t *testing.T) {
	reg := registry.New(nil)
	c := NewProto(reg, &structpb.Struct{})
	id := c.TypeIDs()[0]

	assert.False(t, c.Validate(&structpb.Struct{}), "all-default message")
	assert.Equal(t, ResultFailure, c.Encode(&structpb.Struct{}, id).Result)

	for _, buf := range [][]byte{nil, {}} {
		v, ok := c.Decode(Success(id, buf, 8))
		assert.False(t, ok)
		assert.Nil(t, v)
	}
	_, ok := c.Decode(Failure(id))
	assert.False(t, ok)
}

func TestCloneYieldsDistinctEqualValue(t *testing.T) {
	reg := registry.New(nil)
	rec := NewProto(reg, &structpb.Struct{})
	orig := mustStruct(t, map[string]any{"title": "draft"})

	v, ok := Clone(rec, orig)
	require.True(t, ok)
	cp := v.(*structpb.Struct)
	assert.NotSame(t, orig, cp)
	assert.True(t, proto.Equal(orig, cp))

	cp.Fields["title"] = structpb.NewStringValue("changed")
	assert.Equal(t, "draft", orig.Fields["title"].GetStringValue())

	files := NewFiles(reg)
	paths := []string{"/a", "/b"}
	v, ok = Clone(files, paths)
	require.True(t, ok)
	assert.Equal(t, paths, v)
	v.([]string)[0] = "/z"
	assert.Equal(t, "/a", paths[0])
}

func TestNegotiationHelpers(t *testing.T) {
	reg := registry.New(nil)
	set := NewSet(reg)
	html, _ := reg.Lookup(FormatHTML)
	utf8, _ := reg.Lookup(FormatUTF8String)
	other := reg.Register("application/x-nobody")

	common := Common([]registry.TypeID{other, html, utf8, html}, []Codec{set.Text, set.HTML})
	assert.Equal(t, []registry.TypeID{html, utf8}, common)

	c, ok := FirstSupported([]Codec{nil, set.RTF, set.HTML, set.Text}, html)
	require.True(t, ok)
	assert.Same(t, set.HTML, c)

	_, ok = FirstSupported(set.All(), other)
	assert.False(t, ok)

	all := TypesOf([]Codec{set.Text, set.Text, nil})
	assert.Equal(t, set.Text.TypeIDs(), all)

	assert.True(t, SupportsName(set.Files, FormatURIList))
	got, ok := set.ByName("files")
	require.True(t, ok)
	assert.Same(t, set.Files, got)
}
