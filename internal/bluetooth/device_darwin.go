//go:build darwin

package bluetooth

import (
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/darwin"
)

// NewPlatformDevice creates the CoreBluetooth-backed BLE device.
func NewPlatformDevice() (ble.Device, error) {
	return darwin.NewDevice()
}
