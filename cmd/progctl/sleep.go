package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// sleepCmd represents the sleep command
var sleepCmd = &cobra.Command{
	Use:   "sleep",
	Short: "Put the device to sleep",
	Long: `Connect to a Progressor and switch it into its low-power sleep state.

The device drops the connection shortly after accepting the command; wake it
up again by pulling on the hook.`,
	RunE: runSleep,
}

func runSleep(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, cleanup, err := connectSession(cmd, ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if !env.session.EnterSleep(ctx) {
		return fmt.Errorf("sleep: %w", ErrCommandUnconfirmed)
	}
	fmt.Println("Device going to sleep.")
	return nil
}
