package transfer

import (
	"net/url"
	"path/filepath"
	"strings"

	"go.klb.dev/xfer/internal/registry"
)

const gnomeCopyVerb = "copy"

// Files carries an ordered list of absolute file paths.
type Files struct{ byteArray }

// NewFiles registers the file-list formats with reg.
func NewFiles(reg *registry.Registry) *Files {
	return &Files{newByteArray(reg, FormatURIList, FormatGnomeCopied)}
}

func (c *Files) Name() string { return "files" }

// Validate requires a non-empty list of non-empty absolute paths.
func (c *Files) Validate(value any) bool {
	paths, ok := value.([]string)
	if !ok || len(paths) == 0 {
		return false
	}
	for _, p := range paths {
		if p == "" || !filepath.IsAbs(p) {
			return false
		}
	}
	return true
}

func (c *Files) Encode(value any, t registry.TypeID) Data {
	if !c.Validate(value) || !c.supports(t) {
		return Failure(t)
	}
	paths := value.([]string)
	uris := make([]string, len(paths))
	for i, p := range paths {
		uris[i] = fileURI(p)
	}
	var buf string
	switch c.nameOf(t) {
	case FormatGnomeCopied:
		buf = gnomeCopyVerb + "\n" + strings.Join(uris, "\n")
	default:
		buf = strings.Join(uris, "\r\n")
	}
	return c.encodeBytes([]byte(buf), t)
}

func (c *Files) Decode(d Data) (any, bool) {
	b, ok := c.decodeBytes(d)
	if !ok {
		return nil, false
	}
	text := trimTerminator(string(b))
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if c.nameOf(d.Type) == FormatGnomeCopied && len(lines) > 0 {
		if verb := strings.TrimSpace(lines[0]); verb == "copy" || verb == "cut" {
			lines = lines[1:]
		}
	}
	var paths []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if p, ok := pathFromURI(line); ok {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return nil, false
	}
	return paths, true
}

func fileURI(path string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}

func pathFromURI(s string) (string, bool) {
	u, err := url.Parse(s)
	if err != nil || u.Scheme != "file" {
		return "", false
	}
	if u.Host != "" && u.Host != "localhost" {
		return "", false
	}
	p := filepath.FromSlash(u.Path)
	if p == "" {
		return "", false
	}
	return p, true
}
