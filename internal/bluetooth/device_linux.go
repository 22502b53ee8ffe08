//go:build linux

package bluetooth

import (
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
)

// NewPlatformDevice creates the BlueZ/HCI-backed BLE device.
func NewPlatformDevice() (ble.Device, error) {
	return linux.NewDevice()
}
