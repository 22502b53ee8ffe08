package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gripforce/progctl/pkg/config"
)

// loadConfig resolves the effective configuration: the --config file (if any)
// over defaults, with device flags layered on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if addr, _ := cmd.Flags().GetString("address"); addr != "" {
		cfg.Device.Address = addr
	}
	if prefix, _ := cmd.Flags().GetString("name-prefix"); prefix != "" {
		cfg.Device.NamePrefix = prefix
	}
	return cfg, nil
}

// configureLogger creates a logger from the config. --log-level takes
// precedence, then --verbose, then the config file. Without any of them,
// commands run near-silent so log lines never interleave with live
// measurement output.
func configureLogger(cmd *cobra.Command, cfg *config.Config) (*logrus.Logger, error) {
	logLevelStr, _ := cmd.Flags().GetString("log-level")
	if logLevelStr != "" {
		switch logLevelStr {
		case "debug", "info", "warn", "error":
			cfg.LogLevel = logLevelStr
		default:
			return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", logLevelStr)
		}
		return cfg.NewLogger()
	}

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.LogLevel = "debug"
		return cfg.NewLogger()
	}

	configPath, _ := cmd.Flags().GetString("config")
	if configPath != "" {
		return cfg.NewLogger()
	}

	// No explicit level anywhere: essentially silent.
	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, err
	}
	logger.SetLevel(logrus.PanicLevel)
	return logger, nil
}
