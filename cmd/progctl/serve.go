package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gripforce/progctl/internal/server"
	"github.com/gripforce/progctl/pkg/progressor"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve measurements over WebSocket",
	Long: `Connect to a Progressor, start a measurement, and expose the stream to
WebSocket clients.

Endpoints:
  /ws          - live JSON frames (measurements, device info, connection, errors)
  /api/status  - current session snapshot

The connection is re-established automatically if the device drops it.`,
	RunE: runServe,
}

var (
	serveListenAddr string
	serveNoMeasure  bool
)

func init() {
	serveCmd.Flags().StringVarP(&serveListenAddr, "listen", "l", "", "Listen address (default from config, :8417)")
	serveCmd.Flags().BoolVar(&serveNoMeasure, "no-measure", false, "Do not start a measurement; stream on demand only")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, cleanup, err := connectSession(cmd, ctx)
	if err != nil {
		return err
	}
	defer cleanup()
	session, cfg := env.session, env.cfg

	reconnector := progressor.NewReconnector(session, env.logger)
	defer reconnector.Close()

	recorder, err := progressor.NewRecorder(session.Events(), cfg.Server.BufferSize)
	if err != nil {
		return err
	}
	defer recorder.Close()

	if !serveNoMeasure {
		if !session.StartMeasurement(ctx) {
			return fmt.Errorf("start measurement: %w", ErrCommandUnconfirmed)
		}
	}

	addr := cfg.Server.ListenAddr
	if serveListenAddr != "" {
		addr = serveListenAddr
	}

	srv := server.New(session, recorder, env.logger)
	defer srv.Close()

	fmt.Printf("Serving on %s (WebSocket at /ws). Press Ctrl+C to stop.\n", addr)
	return srv.Run(ctx, addr)
}
