package bluetooth

import (
	"fmt"
	"strings"

	"github.com/gripforce/progctl/pkg/progressor"
)

// normalizeError maps known go-ble error strings to the structured errors the
// session layer understands. It keeps handling consistent even if the
// upstream library changes messages slightly; the original error is wrapped,
// never discarded.
func normalizeError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	switch {
	case msg == "central manager has invalid state: have=4 want=5: is Bluetooth turned on?":
		return fmt.Errorf("%w: %v", progressor.ErrNoTransport, err)
	case containsIgnoreCase(msg, "bluetooth is turned off"):
		return fmt.Errorf("%w: %v", progressor.ErrNoTransport, err)
	case containsIgnoreCase(msg, "device not connected"):
		return fmt.Errorf("%w: %v", progressor.ErrNotConnected, err)
	case containsIgnoreCase(msg, "disconnected"):
		return fmt.Errorf("%w: %v", progressor.ErrNotConnected, err)
	case containsIgnoreCase(msg, "device already connected"):
		return fmt.Errorf("%w: %v", progressor.ErrAlreadyConnected, err)
	default:
		return err
	}
}

// containsIgnoreCase checks the substring case-insensitively
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
