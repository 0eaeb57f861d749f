package transfer

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // decode-only: accept WebP buffers offered under an image/* name

	"go.klb.dev/xfer/internal/registry"
)

var imageFormats = map[string]imaging.Format{
	FormatPNG:  imaging.PNG,
	FormatJPEG: imaging.JPEG,
	FormatBMP:  imaging.BMP,
	FormatTIFF: imaging.TIFF,
	FormatGIF:  imaging.GIF,
}

// Image carries decoded images. Each format is the corresponding image
// file encoding.
type Image struct{ byteArray }

// NewImage registers the image formats with reg.
func NewImage(reg *registry.Registry) *Image {
	return &Image{newByteArray(reg, FormatPNG, FormatJPEG, FormatBMP, FormatTIFF, FormatGIF)}
}

func (c *Image) Name() string { return "image" }

// Validate requires a non-nil image with a non-empty bounds rectangle.
func (c *Image) Validate(value any) bool {
	img, ok := value.(image.Image)
	return ok && img != nil && !img.Bounds().Empty()
}

func (c *Image) Encode(value any, t registry.TypeID) Data {
	if !c.Validate(value) || !c.supports(t) {
		return Failure(t)
	}
	f, ok := imageFormats[c.nameOf(t)]
	if !ok {
		return Failure(t)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, value.(image.Image), f); err != nil {
		return Failure(t)
	}
	return c.encodeBytes(buf.Bytes(), t)
}

func (c *Image) Decode(d Data) (any, bool) {
	b, ok := c.decodeBytes(d)
	if !ok {
		return nil, false
	}
	img, err := imaging.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, false
	}
	return img, true
}
