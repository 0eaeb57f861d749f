package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/xfer/internal/config"
)

// bindViper wires a command's flags into a viper instance with the standard
// config file search order and XFER_* env var prefix.
//
// Precedence (lowest → highest): defaults → config file → XFER_* env vars → flags
func bindViper(cmd *cobra.Command, v *viper.Viper) error {
	configFlag, _ := cmd.Flags().GetString("config")
	if configFlag != "" {
		v.SetConfigFile(configFlag)
	} else {
		v.SetConfigName("xfer")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc/xfer/")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(fmt.Sprintf("%s/.config/xfer", home))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("config: %w", err)
		}
	}

	v.SetEnvPrefix("XFER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	config.SetDefaults(v)

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	setupLogging(v)
	return nil
}

// addLoggingFlags adds the standard logging flags to a command.
func addLoggingFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("verbose", false, "interactive logging: tinter logs + debug level")
	cmd.Flags().String(config.KeyLogFormat, "auto", "log format: auto|text|json")
	cmd.Flags().String(config.KeyLogLevel, "", "log level: debug|info|warn|error (default: warn, debug with --verbose)")
}

// addConfigFlag adds the --config flag to a command.
func addConfigFlag(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "path to config file (overrides auto-discovery)")
}

// addBackendFlags adds the flags that pick and tune the clipboard backend.
func addBackendFlags(cmd *cobra.Command) {
	d := config.Default()
	f := cmd.Flags()
	f.String(config.KeyBackend, string(d.Backend), "clipboard backend: auto|memory|system")
	f.String(config.KeyMode, d.Mode.String(), "in-memory negotiation mode: direct|stream")
	f.Duration(config.KeyDisposeTimeout, d.DisposeTimeout, "how long to wait for the platform to keep copied data")
	f.String(config.KeyMaxTransferSize, "", "largest payload accepted from a stream, e.g. 64MiB")
	f.String("selection", "clipboard", "selection: clipboard|primary")
}

// setupLogging reads logging flags from viper and configures slog.
func setupLogging(v *viper.Viper) {
	resolveLogging(v.GetBool("verbose"), v.GetString(config.KeyLogFormat), v.GetString(config.KeyLogLevel))
}
