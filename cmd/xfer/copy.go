package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/xfer/internal/config"
	"go.klb.dev/xfer/internal/selection"
	"go.klb.dev/xfer/internal/transfer"
)

var errNoPaths = errors.New("no paths in input")

func newCopyCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "copy",
		Short: "Copy stdin to the clipboard (like pbcopy)",
		Long: `Reads stdin and places it on the clipboard under every format of the
given types. Each --type reads the same input:

  text, rtf, html, url   the input as text
  files                  one path per line, made absolute
  image                  an encoded image (PNG, JPEG, GIF, BMP, TIFF, WebP)

  echo '<b>hi</b>' | xfer copy --type html,text

The command returns once the platform has taken over the data, or after
--dispose-timeout.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runCopy(cmd.InOrStdin(), v) },
	}

	cmd.Flags().StringSlice("type", []string{"text"}, "types to offer: text|rtf|html|url|files|image")
	addBackendFlags(cmd)
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runCopy(in io.Reader, v *viper.Viper) error {
	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	rt, err := openRuntime(v)
	if err != nil {
		return err
	}
	defer rt.close()
	if rt.settings.Backend == config.BackendMemory {
		slog.Warn("in-memory clipboard does not outlive this process")
	}

	var entries []selection.Entry
	for _, name := range v.GetStringSlice("type") {
		c, err := rt.codec(strings.TrimSpace(name))
		if err != nil {
			return err
		}
		val, err := parseValue(c, data)
		if err != nil {
			return fmt.Errorf("%s: %w", c.Name(), err)
		}
		entries = append(entries, selection.Entry{Codec: c, Value: val})
	}

	_, err = call(rt, func() (struct{}, error) {
		return struct{}{}, rt.clip.SetContents(rt.sel, entries...)
	})
	return err
}

// parseValue turns raw input into the value codec c carries.
func parseValue(c transfer.Codec, data []byte) (any, error) {
	switch c.(type) {
	case *transfer.Files:
		var paths []string
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			abs, err := filepath.Abs(line)
			if err != nil {
				return nil, err
			}
			paths = append(paths, abs)
		}
		if len(paths) == 0 {
			return nil, errNoPaths
		}
		return paths, nil
	case *transfer.Image:
		img, err := imaging.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode image: %w", err)
		}
		return img, nil
	default:
		return string(data), nil
	}
}
