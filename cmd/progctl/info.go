package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gripforce/progctl/pkg/protocol"
)

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show device information",
	Long: `Connect to a Progressor and report its firmware version, battery voltage,
and stored error information.`,
	RunE: runInfo,
}

var infoFormat string

// infoWait bounds how long we wait for the three info responses after the
// connection bootstrap has written the queries.
const infoWait = 3 * time.Second

func init() {
	infoCmd.Flags().StringVarP(&infoFormat, "format", "f", "table", "Output format (table, json)")
}

func runInfo(cmd *cobra.Command, args []string) error {
	if infoFormat != "table" && infoFormat != "json" {
		return fmt.Errorf("invalid format '%s': must be table or json", infoFormat)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, cleanup, err := connectSession(cmd, ctx)
	if err != nil {
		return err
	}
	defer cleanup()
	session := env.session

	// The connect bootstrap has already queued the queries; wait for the
	// responses to trickle in.
	complete := make(chan struct{})
	sub := session.Events().OnDeviceInfo(func(info protocol.DeviceInfo) {
		if info.FirmwareVersion != nil && info.BatteryVoltage != nil && info.ErrorInfo != nil {
			select {
			case complete <- struct{}{}:
			default:
			}
		}
	})
	defer sub.Unsubscribe()

	if info := session.DeviceInfo(); info.FirmwareVersion == nil || info.BatteryVoltage == nil || info.ErrorInfo == nil {
		select {
		case <-complete:
		case <-time.After(infoWait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	info := session.DeviceInfo()
	if infoFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	return printInfoTable(info)
}

func printInfoTable(info protocol.DeviceInfo) error {
	bold := color.New(color.Bold).SprintFunc()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\n", bold("Firmware version:"), orPending(info.FirmwareVersion))
	if info.BatteryVoltage != nil {
		fmt.Fprintf(w, "%s\t%d mV\n", bold("Battery voltage:"), *info.BatteryVoltage)
	} else {
		fmt.Fprintf(w, "%s\t%s\n", bold("Battery voltage:"), "(no response)")
	}
	fmt.Fprintf(w, "%s\t%s\n", bold("Error info:"), orPending(info.ErrorInfo))
	return w.Flush()
}

func orPending(s *string) string {
	if s == nil {
		return "(no response)"
	}
	if *s == "" {
		return "(none)"
	}
	return *s
}
