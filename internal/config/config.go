// Package config holds the runtime settings shared by the xfer commands and
// reads them from viper.
//
// Precedence (lowest → highest): defaults → config file → XFER_* env vars → flags
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"go.klb.dev/xfer/internal/bridge"
	"go.klb.dev/xfer/internal/clipboard"
	"go.klb.dev/xfer/internal/droptarget"
	"go.klb.dev/xfer/internal/logging"
	"go.klb.dev/xfer/internal/platform/memboard"
)

// Keys shared by flags, env vars and the config file.
const (
	KeyBackend          = "backend"
	KeyMode             = "mode"
	KeyHoverInterval    = "hover-interval"
	KeyScrollHysteresis = "scroll-hysteresis"
	KeyExpandHysteresis = "expand-hysteresis"
	KeyDisposeTimeout   = "dispose-timeout"
	KeyMaxTransferSize  = "max-transfer-size"
	KeyLogFormat        = "log-format"
	KeyLogLevel         = "log-level"
)

// Backend selects the clipboard implementation.
type Backend string

const (
	// BackendAuto uses the system clipboard when a display is reachable and
	// the in-memory display otherwise.
	BackendAuto   Backend = "auto"
	BackendMemory Backend = "memory"
	BackendSystem Backend = "system"
)

var ErrInvalid = errors.New("config: invalid setting")

// Settings is the resolved configuration.
type Settings struct {
	Backend          Backend
	Mode             memboard.Mode
	HoverInterval    time.Duration
	ScrollHysteresis time.Duration
	ExpandHysteresis time.Duration
	DisposeTimeout   time.Duration
	MaxTransferSize  int64
	LogFormat        logging.Format
	LogLevel         string
}

// Default returns the built-in settings.
func Default() Settings {
	tm := droptarget.DefaultTiming()
	return Settings{
		Backend:          BackendAuto,
		Mode:             memboard.ModeDirect,
		HoverInterval:    tm.Heartbeat,
		ScrollHysteresis: tm.Scroll,
		ExpandHysteresis: tm.Expand,
		DisposeTimeout:   clipboard.DefaultDisposeTimeout,
		MaxTransferSize:  bridge.DefaultMaxSize,
		LogFormat:        logging.FormatAuto,
	}
}

// SetDefaults registers Default under the config keys.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault(KeyBackend, string(d.Backend))
	v.SetDefault(KeyMode, d.Mode.String())
	v.SetDefault(KeyHoverInterval, d.HoverInterval)
	v.SetDefault(KeyScrollHysteresis, d.ScrollHysteresis)
	v.SetDefault(KeyExpandHysteresis, d.ExpandHysteresis)
	v.SetDefault(KeyDisposeTimeout, d.DisposeTimeout)
	v.SetDefault(KeyMaxTransferSize, strconv.FormatInt(d.MaxTransferSize, 10))
	v.SetDefault(KeyLogFormat, string(d.LogFormat))
}

// FromViper resolves and validates the settings held by v.
func FromViper(v *viper.Viper) (Settings, error) {
	s := Default()
	if v.IsSet(KeyBackend) {
		s.Backend = Backend(strings.ToLower(v.GetString(KeyBackend)))
	}
	if v.IsSet(KeyMode) {
		m, err := memboard.ParseMode(v.GetString(KeyMode))
		if err != nil {
			return s, fmt.Errorf("%w: %s: %w", ErrInvalid, KeyMode, err)
		}
		s.Mode = m
	}
	for key, dst := range map[string]*time.Duration{
		KeyHoverInterval:    &s.HoverInterval,
		KeyScrollHysteresis: &s.ScrollHysteresis,
		KeyExpandHysteresis: &s.ExpandHysteresis,
		KeyDisposeTimeout:   &s.DisposeTimeout,
	} {
		if v.IsSet(key) {
			*dst = v.GetDuration(key)
		}
	}
	if v.IsSet(KeyMaxTransferSize) {
		raw := v.GetString(KeyMaxTransferSize)
		n, err := humanize.ParseBytes(raw)
		if err != nil {
			return s, fmt.Errorf("%w: %s %q: %w", ErrInvalid, KeyMaxTransferSize, raw, err)
		}
		if n > uint64(bridge.DefaultMaxSize) {
			return s, fmt.Errorf("%w: %s %s exceeds %s", ErrInvalid, KeyMaxTransferSize,
				humanize.IBytes(n), humanize.IBytes(uint64(bridge.DefaultMaxSize)))
		}
		s.MaxTransferSize = int64(n)
	}
	if v.IsSet(KeyLogFormat) {
		s.LogFormat = logging.ParseFormat(v.GetString(KeyLogFormat))
	}
	s.LogLevel = v.GetString(KeyLogLevel)
	return s, s.Validate()
}

// Validate checks every field.
func (s Settings) Validate() error {
	switch s.Backend {
	case BackendAuto, BackendMemory, BackendSystem:
	default:
		return fmt.Errorf("%w: %s %q (want auto|memory|system)", ErrInvalid, KeyBackend, s.Backend)
	}
	for _, d := range []struct {
		key string
		val time.Duration
	}{
		{KeyHoverInterval, s.HoverInterval},
		{KeyScrollHysteresis, s.ScrollHysteresis},
		{KeyExpandHysteresis, s.ExpandHysteresis},
		{KeyDisposeTimeout, s.DisposeTimeout},
	} {
		if d.val <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %v", ErrInvalid, d.key, d.val)
		}
	}
	if s.ExpandHysteresis < s.ScrollHysteresis {
		return fmt.Errorf("%w: %s (%v) is shorter than %s (%v)", ErrInvalid,
			KeyExpandHysteresis, s.ExpandHysteresis, KeyScrollHysteresis, s.ScrollHysteresis)
	}
	if s.MaxTransferSize <= 0 {
		return fmt.Errorf("%w: %s must be positive", ErrInvalid, KeyMaxTransferSize)
	}
	return nil
}

// Timing returns the drop target hover intervals.
func (s Settings) Timing() droptarget.Timing {
	return droptarget.Timing{
		Heartbeat: s.HoverInterval,
		Scroll:    s.ScrollHysteresis,
		Expand:    s.ExpandHysteresis,
	}
}

// ClipboardOptions returns the clipboard options the settings imply.
func (s Settings) ClipboardOptions() []clipboard.Option {
	return []clipboard.Option{
		clipboard.WithDisposeTimeout(s.DisposeTimeout),
		clipboard.WithMaxTransferSize(s.MaxTransferSize),
	}
}
