package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/gripforce/progctl/internal/scanner"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for Progressor devices",
	Long: `Scan for Tindeq Progressor devices in the vicinity.

Devices are matched by advertised local name. Use --all to list every BLE
advertiser instead, or --name-prefix to match a different name.`,
	RunE: runScan,
}

var (
	scanDuration  time.Duration
	scanFormat    string
	scanAll       bool
	scanAllowList []string
	scanBlockList []string
)

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 10*time.Second, "Scan duration")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "table", "Output format (table, json)")
	scanCmd.Flags().BoolVar(&scanAll, "all", false, "Show all BLE devices, not only Progressors")
	scanCmd.Flags().StringSliceVar(&scanAllowList, "allow", nil, "Only show devices with these addresses")
	scanCmd.Flags().StringSliceVar(&scanBlockList, "block", nil, "Hide devices with these addresses")
}

func runScan(cmd *cobra.Command, args []string) error {
	if scanFormat != "table" && scanFormat != "json" {
		return fmt.Errorf("invalid format '%s': must be table or json", scanFormat)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := configureLogger(cmd, cfg)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	opts := scanner.DefaultOptions()
	opts.Duration = scanDuration
	opts.NamePrefix = cfg.Device.NamePrefix
	if scanAll {
		opts.NamePrefix = ""
	}
	opts.AllowList = scanAllowList
	opts.BlockList = scanBlockList

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Println("\nCtrl+C pressed, cancelling scan...")
		cancel()
	}()

	// First-seen ordering survives the concurrent updates underneath.
	found := orderedmap.New[string, scanner.Device]()
	s := scanner.New(logger, func(e scanner.DeviceEvent) {
		found.Set(e.Device.Address, e.Device)
	})

	fmt.Printf("Scanning for %s...\n", scanDuration)
	if _, err := s.Scan(ctx, opts); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if scanFormat == "json" {
		return printScanJSON(found)
	}
	return printScanTable(found)
}

func printScanJSON(found *orderedmap.OrderedMap[string, scanner.Device]) error {
	devices := make([]scanner.Device, 0, found.Len())
	for pair := found.Oldest(); pair != nil; pair = pair.Next() {
		devices = append(devices, pair.Value)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(devices)
}

func printScanTable(found *orderedmap.OrderedMap[string, scanner.Device]) error {
	if found.Len() == 0 {
		fmt.Println("No devices found.")
		return nil
	}

	bold := color.New(color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", bold("NAME"), bold("ADDRESS"), bold("RSSI"), bold("ADVS"))
	for pair := found.Oldest(); pair != nil; pair = pair.Next() {
		d := pair.Value
		name := d.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Fprintf(w, "%s\t%s\t%d dBm\t%d\n", green(name), d.Address, d.RSSI, d.AdvCount)
	}
	return w.Flush()
}
