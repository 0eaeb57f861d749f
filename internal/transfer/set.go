package transfer

import "go.klb.dev/xfer/internal/registry"

// Set bundles one instance of every built-in codec registered against the
// same registry.
type Set struct {
	Text  *Text
	RTF   *RTF
	HTML  *HTML
	URL   *URL
	Files *Files
	Image *Image
}

// NewSet constructs the built-in codecs against reg (nil = registry.Default).
func NewSet(reg *registry.Registry) *Set {
	return &Set{
		Text:  NewText(reg),
		RTF:   NewRTF(reg),
		HTML:  NewHTML(reg),
		URL:   NewURL(reg),
		Files: NewFiles(reg),
		Image: NewImage(reg),
	}
}

// All returns the codecs in a stable order.
func (s *Set) All() []Codec {
	return []Codec{s.Text, s.RTF, s.HTML, s.URL, s.Files, s.Image}
}

// ByName returns the codec whose Name matches.
func (s *Set) ByName(name string) (Codec, bool) {
	for _, c := range s.All() {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}
