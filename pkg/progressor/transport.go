package progressor

import "context"

// Transport is the BLE session underneath a Session: one write-capable
// control endpoint and one notify data endpoint. Implementations must be
// safe for concurrent use; WriteControl in particular is called from the
// command channel's drain goroutine while notifications arrive.
//
// The production implementation lives in internal/bluetooth; tests use
// in-memory fakes.
type Transport interface {
	// Connect opens the device session: discovery, dial, service and
	// characteristic resolution, notification subscription.
	Connect(ctx context.Context) error

	// Disconnect tears the session down. Safe to call when already
	// disconnected.
	Disconnect() error

	IsConnected() bool

	// WriteControl writes one encoded command frame to the control
	// characteristic.
	WriteControl(data []byte) error

	// SetNotificationHandler installs the sink for data-characteristic
	// notifications. Must be set before Connect.
	SetNotificationHandler(fn func(data []byte))

	// SetDisconnectHandler installs the callback for transport-initiated
	// disconnects. It is not invoked for Disconnect calls.
	SetDisconnectHandler(fn func())
}
