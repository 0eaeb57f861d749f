package main

import (
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/xfer/internal/loop"
)

func newPasteCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "paste",
		Short: "Print the clipboard to stdout (like pbpaste)",
		Long: `Reads the clipboard as --type and writes it to stdout.

If no offered format decodes as --type, nothing is printed (exit 0). Images
are written as PNG, file lists one path per line:

  xfer paste --type image > screenshot.png`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runPaste(cmd.OutOrStdout(), v) },
	}

	cmd.Flags().String("type", "text", "type to read: text|rtf|html|url|files|image")
	addBackendFlags(cmd)
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runPaste(out io.Writer, v *viper.Viper) error {
	rt, err := openRuntime(v)
	if err != nil {
		return err
	}
	defer rt.close()

	c, err := rt.codec(v.GetString("type"))
	if err != nil {
		return err
	}
	val, err := await(rt, func() *loop.Future[any] { return rt.clip.GetContentsAsync(c, rt.sel) })
	if err != nil {
		return fmt.Errorf("paste: %w", err)
	}
	// Requested type not present: exit 0, print nothing (pbpaste behaviour).
	if val == nil {
		return nil
	}
	return render(out, val)
}

// render writes a decoded clipboard value.
func render(w io.Writer, val any) error {
	switch x := val.(type) {
	case string:
		_, err := io.WriteString(w, x)
		return err
	case []string:
		_, err := io.WriteString(w, strings.Join(x, "\n")+"\n")
		return err
	case image.Image:
		return imaging.Encode(w, x, imaging.PNG)
	default:
		return fmt.Errorf("cannot print %T", val)
	}
}
