// xfer: clipboard and drag-and-drop data exchange.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"go.klb.dev/xfer/internal/logging"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "xfer",
		Short: "Clipboard and drag-and-drop data exchange",
		Long: `xfer moves typed data through the system clipboard, or through an
in-memory display when no system clipboard is reachable.

Use "xfer copy/paste/types" against the clipboard and "xfer simulate-drag" to
run a scripted drag session between an in-process source and list target.

Config file search order (first found wins):
  /etc/xfer/xfer.toml
  $HOME/.config/xfer/xfer.toml
  path supplied via --config

All flags can be set via XFER_<FLAG> env vars or config-file keys.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newCopyCmd(),
		newPasteCmd(),
		newTypesCmd(),
		newSimulateCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "xfer %s\n", Version)
		},
	}
}

// resolveLogging sets up the global slog logger after flags are parsed.
func resolveLogging(interactive bool, formatStr, levelStr string) {
	format := logging.ParseFormat(formatStr)
	level := logging.ParseLevel(levelStr)
	if levelStr == "" {
		if interactive {
			level = logging.ParseLevel("debug")
		} else {
			level = logging.ParseLevel("warn")
		}
	}
	logging.Setup(format, level)
}
