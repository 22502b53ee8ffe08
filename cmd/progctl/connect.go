package main

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gripforce/progctl/internal/bluetooth"
	"github.com/gripforce/progctl/pkg/config"
	"github.com/gripforce/progctl/pkg/progressor"
)

// newSession builds the transport and session from the effective config.
func newSession(cfg *config.Config, logger *logrus.Logger) *progressor.Session {
	transport := bluetooth.NewTransport(bluetooth.Options{
		NamePrefix:     cfg.Device.NamePrefix,
		Address:        cfg.Device.Address,
		ScanTimeout:    cfg.Device.ScanTimeout,
		ConnectTimeout: cfg.Device.ConnectTimeout,
	}, logger)
	return progressor.NewSession(transport, cfg.Timings, logger)
}

// commandEnv is what every device command needs after the shared preamble.
type commandEnv struct {
	session *progressor.Session
	cfg     *config.Config
	logger  *logrus.Logger
}

// connectSession is the shared preamble of every device command: load config,
// configure logging, build the session, and connect. The returned cleanup
// disconnects; call it even after partial failures.
func connectSession(cmd *cobra.Command, ctx context.Context) (*commandEnv, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger, err := configureLogger(cmd, cfg)
	if err != nil {
		return nil, nil, err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	session := newSession(cfg, logger)
	if err := session.Connect(ctx); err != nil {
		return nil, nil, err
	}
	env := &commandEnv{session: session, cfg: cfg, logger: logger}
	return env, func() { _ = session.Disconnect() }, nil
}
