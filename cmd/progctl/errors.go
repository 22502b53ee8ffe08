package main

import (
	"errors"

	"github.com/gripforce/progctl/pkg/progressor"
)

// Command-level errors
var (
	// ErrCommandUnconfirmed indicates a device command did not visibly
	// complete; the device may or may not have executed it.
	ErrCommandUnconfirmed = errors.New("command not confirmed by device")
)

// FormatUserError rewrites internal errors into actionable messages for the
// terminal. Unrecognized errors pass through unchanged.
func FormatUserError(err error) string {
	switch {
	case errors.Is(err, progressor.ErrNoTransport):
		return "Bluetooth is unavailable. Check that Bluetooth is turned on and try again."
	case errors.Is(err, progressor.ErrNotConnected):
		return "Not connected to a device. Is the Progressor awake and in range?"
	case errors.Is(err, progressor.ErrAlreadyConnected):
		return "Already connected to a device."
	case errors.Is(err, progressor.ErrStreamStalled):
		return err.Error()
	default:
		return err.Error()
	}
}
