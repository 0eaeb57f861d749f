// Package logging configures the global slog logger for xfer binaries and
// holds the shared helpers for logging clipboard traffic.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/pwntr/tinter"
)

// Format selects the log output format.
type Format string

const (
	FormatAuto Format = "auto"
	FormatText Format = "text"
	FormatJSON Format = "json"
)

const previewLen = 120

// ParseFormat converts a string to a Format, returning FormatAuto for unknown values.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "text", "tint", "human":
		return FormatText
	case "json":
		return FormatJSON
	default:
		return FormatAuto
	}
}

// ParseLevel converts a string to a slog.Level, defaulting to Info.
func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// Setup configures the global slog logger. Call once after flag/viper parsing.
func Setup(format Format, level slog.Level) {
	slog.SetDefault(slog.New(NewHandler(os.Stderr, format, level)))
}

// NewHandler returns the handler Setup would install, writing to w.
func NewHandler(w io.Writer, format Format, level slog.Level) slog.Handler {
	useTint := format == FormatText || (format == FormatAuto && IsTTY(w))
	if useTint {
		return tinter.NewHandler(w, &tinter.Options{
			Level:      level,
			TimeFormat: "15:04:05.000",
		})
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
}

// Item is one encoded payload for Items.
type Item struct {
	Format string
	Data   []byte
}

// Types logs a clipboard event and the formats involved at INFO.
func Types(event, selection string, formats []string) {
	slog.Info(event, "selection", selection, "types", formats)
}

// Items logs a clipboard event at INFO (selection, formats) and DEBUG (text
// preview up to 120 chars, or the size of binary items).
func Items(event, selection string, items []Item) {
	formats := make([]string, len(items))
	for i, it := range items {
		formats[i] = it.Format
	}
	Types(event, selection, formats)

	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	for _, it := range items {
		if isText(it.Format) && utf8.Valid(it.Data) {
			slog.Debug("clipboard item", "format", it.Format, "preview", Preview(string(it.Data)))
		} else {
			slog.Debug("clipboard item", "format", it.Format, "size", humanize.IBytes(uint64(len(it.Data))))
		}
	}
}

// Preview shortens s to at most 120 runes.
func Preview(s string) string {
	if utf8.RuneCountInString(s) <= previewLen {
		return s
	}
	r := []rune(s)
	return string(r[:previewLen]) + "…"
}

func isText(format string) bool {
	return strings.HasPrefix(format, "text/") || format == "UTF8_STRING" || format == "STRING"
}
