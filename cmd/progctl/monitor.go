package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/gripforce/progctl/pkg/progressor"
	"github.com/gripforce/progctl/pkg/protocol"
)

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Stream live force measurements",
	Long: `Connect to a Progressor, start a measurement, and stream force readings.

On an interactive terminal the current and peak force update in place; piped
output prints one reading per line. Use --csv to also record every sample
(device timestamp in microseconds, weight in kg) to a file.

The stream runs until Ctrl+C or until --duration elapses. The connection is
re-established automatically if the device drops it mid-session.`,
	RunE: runMonitor,
}

var (
	monitorDuration time.Duration
	monitorCSVPath  string
	monitorTare     bool
)

func init() {
	monitorCmd.Flags().DurationVarP(&monitorDuration, "duration", "d", 0, "Stop after this long (0 = until Ctrl+C)")
	monitorCmd.Flags().StringVar(&monitorCSVPath, "csv", "", "Write samples to this CSV file")
	monitorCmd.Flags().BoolVar(&monitorTare, "tare", false, "Tare the scale before starting")
}

func runMonitor(cmd *cobra.Command, args []string) error {
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

	var csvWriter *csv.Writer
	if monitorCSVPath != "" {
		f, err := os.Create(monitorCSVPath)
		if err != nil {
			return fmt.Errorf("creating CSV file: %w", err)
		}
		defer f.Close()
		csvWriter = csv.NewWriter(f)
		defer csvWriter.Flush()
		if err := csvWriter.Write([]string{"timestamp_us", "weight_kg"}); err != nil {
			return err
		}
	}

	display := newMonitorDisplay()
	var csvMu sync.Mutex
	sub := session.Events().OnMeasurement(func(m protocol.Measurement) {
		display.update(m, recorder.Max())
		if csvWriter != nil {
			csvMu.Lock()
			_ = csvWriter.Write([]string{
				strconv.FormatUint(uint64(m.Timestamp), 10),
				strconv.FormatFloat(float64(m.Weight), 'f', 3, 32),
			})
			csvMu.Unlock()
		}
	})
	defer sub.Unsubscribe()

	errSub := session.Events().OnError(func(err error) {
		fmt.Fprintf(os.Stderr, "\n%s\n", FormatUserError(err))
	})
	defer errSub.Unsubscribe()

	if monitorTare {
		if !session.TareScale(ctx) {
			return fmt.Errorf("tare: %w", ErrCommandUnconfirmed)
		}
	}
	if !session.StartMeasurement(ctx) {
		return fmt.Errorf("start measurement: %w", ErrCommandUnconfirmed)
	}

	fmt.Println("Streaming measurements. Press Ctrl+C to stop.")

	if monitorDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, monitorDuration)
		defer cancel()
	}
	<-ctx.Done()
	display.finish()

	// Best effort: the device may already be gone.
	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Timings.CommandTimeout)
	defer cancel()
	session.StopMeasurement(stopCtx)

	if cur, ok := recorder.Current(); ok {
		fmt.Printf("Last reading: %.2f kg, peak %.2f kg\n", cur.Weight, recorder.Max())
	}
	if m := recorder.Metrics(); m.Overwritten() > 0 {
		fmt.Printf("Recorded %d samples (%d rotated out of the buffer)\n", m.Recorded(), m.Overwritten())
	}
	return nil
}

// monitorDisplay renders readings: in place on a terminal, line per sample
// otherwise.
type monitorDisplay struct {
	interactive bool
	cyan        func(a ...interface{}) string
	bold        func(a ...interface{}) string
}

func newMonitorDisplay() *monitorDisplay {
	return &monitorDisplay{
		interactive: term.IsTerminal(int(os.Stdout.Fd())),
		cyan:        color.New(color.FgCyan).SprintFunc(),
		bold:        color.New(color.Bold).SprintFunc(),
	}
}

func (d *monitorDisplay) update(m protocol.Measurement, peak float32) {
	if d.interactive {
		fmt.Printf("\r%s %s  %s %s   ",
			d.bold("Force:"), d.cyan(fmt.Sprintf("%7.2f kg", m.Weight)),
			d.bold("Peak:"), d.cyan(fmt.Sprintf("%7.2f kg", peak)))
		return
	}
	fmt.Printf("%d,%.3f\n", m.Timestamp, m.Weight)
}

func (d *monitorDisplay) finish() {
	if d.interactive {
		fmt.Println()
	}
}
