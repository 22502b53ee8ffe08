// Package config loads the progctl configuration: an optional YAML file over
// struct-tag defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/gripforce/progctl/pkg/progressor"
)

// DeviceConfig selects and bounds the device connection.
type DeviceConfig struct {
	// NamePrefix filters scan results by advertised local name. Ignored when
	// Address is set.
	NamePrefix string `yaml:"name_prefix" default:"Progressor"`

	// Address pins a specific device (MAC on Linux, CoreBluetooth UUID on
	// macOS) and skips the name scan.
	Address string `yaml:"address"`

	ScanTimeout    time.Duration `yaml:"scan_timeout" default:"10s"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" default:"30s"`
}

// UnmarshalYAML accepts the timeout fields in time.ParseDuration notation.
// Omitted keys keep the value already present in the receiver.
func (c *DeviceConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		NamePrefix     *string `yaml:"name_prefix"`
		Address        *string `yaml:"address"`
		ScanTimeout    string  `yaml:"scan_timeout"`
		ConnectTimeout string  `yaml:"connect_timeout"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	if raw.NamePrefix != nil {
		c.NamePrefix = *raw.NamePrefix
	}
	if raw.Address != nil {
		c.Address = *raw.Address
	}
	for _, f := range []struct {
		key string
		src string
		dst *time.Duration
	}{
		{"scan_timeout", raw.ScanTimeout, &c.ScanTimeout},
		{"connect_timeout", raw.ConnectTimeout, &c.ConnectTimeout},
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
	return nil
}

// ServerConfig configures the WebSocket streaming server.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr" default:":8417"`

	// BufferSize is the capacity of the measurement recorder backing the
	// status endpoint.
	BufferSize int `yaml:"buffer_size" default:"256"`
}

// Config holds application configuration.
type Config struct {
	LogLevel string             `yaml:"log_level" default:"info"`
	Device   DeviceConfig       `yaml:"device"`
	Timings  progressor.Timings `yaml:"timings"`
	Server   ServerConfig       `yaml:"server"`
}

// Default returns the configuration with every field at its default.
func Default() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML configuration file over the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// NewLogger creates a configured logger instance.
func (c *Config) NewLogger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	return logger, nil
}
