package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// tareCmd represents the tare command
var tareCmd = &cobra.Command{
	Use:   "tare",
	Short: "Zero the scale",
	Long:  `Connect to a Progressor and tare the load cell at its current reading.`,
	RunE:  runTare,
}

func runTare(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, cleanup, err := connectSession(cmd, ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if !env.session.TareScale(ctx) {
		return fmt.Errorf("tare: %w", ErrCommandUnconfirmed)
	}
	fmt.Println("Scale tared.")
	return nil
}
