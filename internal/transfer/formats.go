package transfer

// Well-known format names registered by the built-in codecs.
const (
	FormatUTF8String  = "UTF8_STRING"
	FormatTextUTF8    = "text/plain;charset=utf-8"
	FormatTextPlain   = "text/plain"
	FormatString      = "STRING"
	FormatRTF         = "text/rtf"
	FormatRTFUpper    = "TEXT/RTF"
	FormatRichText    = "text/richtext"
	FormatHTML        = "text/html"
	FormatHTMLUpper   = "TEXT/HTML"
	FormatUnicode     = "text/unicode"
	FormatMozURL      = "text/x-moz-url"
	FormatURIList     = "text/uri-list"
	FormatGnomeCopied = "x-special/gnome-copied-files"
	FormatPNG         = "image/png"
	FormatJPEG        = "image/jpeg"
	FormatBMP         = "image/bmp"
	FormatTIFF        = "image/tiff"
	FormatGIF         = "image/gif"

	protoFormatPrefix = "application/x-protobuf;type="
)

// ElementWidth returns the element width in bits that format is carried
// with. Streams carry bytes only, so readers use it to restore Data.Format.
func ElementWidth(format string) int {
	switch format {
	case FormatUnicode, FormatMozURL:
		return utf16ElementWidth
	}
	return 8
}
