package progressor

import (
	"fmt"
	"time"

	"github.com/mcuadros/go-defaults"
	"gopkg.in/yaml.v3"
)

// Timings collects every delay the protocol depends on. The defaults encode
// empirically tuned Progressor firmware behavior: shortening the
// inter-command delay loses commands, shortening the stall window restarts
// healthy streams.
type Timings struct {
	// CommandTimeout bounds a single control write. Expiry resolves the
	// command as unconfirmed (false), not as an error.
	CommandTimeout time.Duration `yaml:"command_timeout" default:"2s"`

	// InterCommandDelay is the settle time between consecutive control
	// writes.
	InterCommandDelay time.Duration `yaml:"inter_command_delay" default:"200ms"`

	// BootstrapDelay is the gap between the post-connect device-info
	// commands.
	BootstrapDelay time.Duration `yaml:"bootstrap_delay" default:"300ms"`

	// StallWindow is how long the measurement stream may be silent before
	// the watchdog intervenes.
	StallWindow time.Duration `yaml:"stall_window" default:"3s"`

	// WatchdogInterval is how often the watchdog checks for a stall.
	WatchdogInterval time.Duration `yaml:"watchdog_interval" default:"1s"`

	// RecoverySettle is the pause between the stop and start commands of a
	// stall recovery.
	RecoverySettle time.Duration `yaml:"recovery_settle" default:"500ms"`

	// ReconnectDelay is the backoff before each automatic reconnect
	// attempt.
	ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"2s"`

	// MaxReconnectAttempts bounds automatic reconnection after an
	// unexpected disconnect.
	MaxReconnectAttempts int `yaml:"max_reconnect_attempts" default:"3"`
}

// DefaultTimings returns the stock firmware-friendly timing set.
func DefaultTimings() Timings {
	var t Timings
	defaults.SetDefaults(&t)
	return t
}

// UnmarshalYAML accepts durations in time.ParseDuration notation ("200ms",
// "2s"); yaml.v3 has no native duration support. Omitted keys keep the value
// already present in the receiver, so decoding over DefaultTimings yields a
// partial override.
func (t *Timings) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		CommandTimeout       string `yaml:"command_timeout"`
		InterCommandDelay    string `yaml:"inter_command_delay"`
		BootstrapDelay       string `yaml:"bootstrap_delay"`
		StallWindow          string `yaml:"stall_window"`
		WatchdogInterval     string `yaml:"watchdog_interval"`
		RecoverySettle       string `yaml:"recovery_settle"`
		ReconnectDelay       string `yaml:"reconnect_delay"`
		MaxReconnectAttempts *int   `yaml:"max_reconnect_attempts"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	for _, f := range []struct {
		key string
		src string
		dst *time.Duration
	}{
		{"command_timeout", raw.CommandTimeout, &t.CommandTimeout},
		{"inter_command_delay", raw.InterCommandDelay, &t.InterCommandDelay},
		{"bootstrap_delay", raw.BootstrapDelay, &t.BootstrapDelay},
		{"stall_window", raw.StallWindow, &t.StallWindow},
		{"watchdog_interval", raw.WatchdogInterval, &t.WatchdogInterval},
		{"recovery_settle", raw.RecoverySettle, &t.RecoverySettle},
		{"reconnect_delay", raw.ReconnectDelay, &t.ReconnectDelay},
	} {
		if f.src == "" {
			continue
		}
		d, err := time.ParseDuration(f.src)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", f.key, err)
		}
		*f.dst = d
	}
	if raw.MaxReconnectAttempts != nil {
		t.MaxReconnectAttempts = *raw.MaxReconnectAttempts
	}
	return nil
}
