package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "progctl",
	Short: "Tindeq Progressor command-line tool",
	Long: `Command-line tool for the Tindeq Progressor force measurement device:

- Scan for nearby Progressor devices
- Stream live force measurements to the terminal or a CSV file
- Query firmware version, battery voltage, and stored error information
- Tare the scale and put the device to sleep
- Serve measurements to WebSocket clients for dashboards and training apps

The device is selected by advertised name prefix, or pinned with --address.`,
	Version: formatVersion(version),
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}

func init() {
	// Silence Cobra's "Error:" prefix - main() prints clean errors
	rootCmd.SilenceErrors = true

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(tareCmd)
	rootCmd.AddCommand(sleepCmd)
	rootCmd.AddCommand(serveCmd)

	// Global flags
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Shorthand for --log-level debug")
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().String("address", "", "Device address (skips the name scan)")
	rootCmd.PersistentFlags().String("name-prefix", "", "Advertised name prefix to match (default Progressor)")

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
}
