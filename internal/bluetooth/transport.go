// Package bluetooth implements the go-ble backed transport for Progressor
// devices: discovery by advertised name, connection, characteristic
// resolution, and notification plumbing.
package bluetooth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/gripforce/progctl/pkg/progressor"
	"github.com/gripforce/progctl/pkg/protocol"
)

var (
	serviceUUID = ble.MustParse(protocol.ServiceUUID)
	dataUUID    = ble.MustParse(protocol.DataCharUUID)
	controlUUID = ble.MustParse(protocol.ControlCharUUID)
)

// Options configures device selection and connection bounds.
type Options struct {
	// NamePrefix filters scan results by advertised local name. Ignored when
	// Address is set.
	NamePrefix string

	// Address pins a specific device and skips the scan.
	Address string

	ScanTimeout    time.Duration
	ConnectTimeout time.Duration
}

// DefaultOptions returns name-prefix discovery with standard timeouts.
func DefaultOptions() Options {
	return Options{
		NamePrefix:     protocol.DefaultNamePrefix,
		ScanTimeout:    10 * time.Second,
		ConnectTimeout: 30 * time.Second,
	}
}

// Transport is the production progressor.Transport over go-ble.
type Transport struct {
	opts   Options
	logger *logrus.Logger

	writeMutex sync.Mutex
	connMutex  sync.RWMutex

	client       ble.Client
	dataChar     *ble.Characteristic
	controlChar  *ble.Characteristic
	isConnected  bool
	notify       func([]byte)
	onDisconnect func()

	// monitorGen invalidates the disconnect monitor of a torn-down
	// connection so it cannot fire against a newer one.
	monitorGen uint64
}

var _ progressor.Transport = (*Transport)(nil)

// NewTransport creates an unconnected transport.
func NewTransport(opts Options, logger *logrus.Logger) *Transport {
	if logger == nil {
		logger = logrus.New()
	}
	return &Transport{opts: opts, logger: logger}
}

// SetNotificationHandler installs the sink for data-characteristic
// notifications. Must be called before Connect.
func (t *Transport) SetNotificationHandler(fn func([]byte)) {
	t.connMutex.Lock()
	t.notify = fn
	t.connMutex.Unlock()
}

// SetDisconnectHandler installs the callback for link-initiated disconnects.
func (t *Transport) SetDisconnectHandler(fn func()) {
	t.connMutex.Lock()
	t.onDisconnect = fn
	t.connMutex.Unlock()
}

// IsConnected reports whether a device session is live.
func (t *Transport) IsConnected() bool {
	t.connMutex.RLock()
	defer t.connMutex.RUnlock()
	return t.isConnected
}

// Connect locates the device, dials it, resolves the Progressor service and
// its two characteristics, and subscribes to the data stream.
func (t *Transport) Connect(ctx context.Context) error {
	t.connMutex.Lock()
	defer t.connMutex.Unlock()

	if t.isConnected {
		return fmt.Errorf("already connected")
	}

	dev, err := NewPlatformDevice()
	if err != nil {
		return fmt.Errorf("failed to create BLE device: %w", normalizeError(err))
	}
	ble.SetDefaultDevice(dev)

	addr := t.opts.Address
	if addr == "" {
		addr, err = t.locate(ctx)
		if err != nil {
			return err
		}
	}

	t.logger.WithField("address", addr).Info("Connecting to device...")

	connectCtx, cancel := context.WithTimeout(ctx, t.opts.ConnectTimeout)
	defer cancel()

	client, err := ble.Dial(connectCtx, ble.NewAddr(addr))
	if err != nil {
		return fmt.Errorf("failed to connect to device: %w", normalizeError(err))
	}

	profile, err := client.DiscoverProfile(true)
	if err != nil {
		client.CancelConnection()
		return fmt.Errorf("failed to discover profile: %w", err)
	}

	var svc *ble.Service
	for _, service := range profile.Services {
		if service.UUID.Equal(serviceUUID) {
			svc = service
			break
		}
	}
	if svc == nil {
		client.CancelConnection()
		return fmt.Errorf("progressor service %s not found: is this a Progressor device?", serviceUUID)
	}

	var dataChar, controlChar *ble.Characteristic
	for _, char := range svc.Characteristics {
		switch {
		case char.UUID.Equal(dataUUID):
			dataChar = char
		case char.UUID.Equal(controlUUID):
			controlChar = char
		}
	}
	if dataChar == nil || controlChar == nil {
		client.CancelConnection()
		return fmt.Errorf("progressor characteristics not found (data=%v, control=%v)",
			dataChar != nil, controlChar != nil)
	}

	if err := client.Subscribe(dataChar, false, t.handleNotification); err != nil {
		client.CancelConnection()
		return fmt.Errorf("failed to subscribe to data characteristic: %w", err)
	}

	t.client = client
	t.dataChar = dataChar
	t.controlChar = controlChar
	t.isConnected = true
	t.monitorGen++
	go t.watchDisconnect(client, t.monitorGen)

	t.logger.Info("Device session established")
	return nil
}

// locate scans for the first advertisement whose local name carries the
// configured prefix and returns its address. The scan stops as soon as a
// match is seen.
func (t *Transport) locate(ctx context.Context) (string, error) {
	prefix := t.opts.NamePrefix
	if prefix == "" {
		prefix = protocol.DefaultNamePrefix
	}

	t.logger.WithFields(logrus.Fields{
		"name_prefix": prefix,
		"timeout":     t.opts.ScanTimeout,
	}).Info("Scanning for device...")

	scanCtx, cancel := context.WithTimeout(ctx, t.opts.ScanTimeout)
	defer cancel()

	var (
		mu    sync.Mutex
		found string
	)
	handler := func(adv ble.Advertisement) {
		if !strings.HasPrefix(adv.LocalName(), prefix) {
			return
		}
		mu.Lock()
		if found == "" {
			found = adv.Addr().String()
			t.logger.WithFields(logrus.Fields{
				"name":    adv.LocalName(),
				"address": found,
			}).Info("Found device")
		}
		mu.Unlock()
		cancel()
	}

	err := ble.Scan(scanCtx, true, handler, nil)

	mu.Lock()
	defer mu.Unlock()
	if found != "" {
		// The scan ends with context.Canceled when we stop it ourselves.
		return found, nil
	}
	if err != nil && scanCtx.Err() != context.Canceled {
		if scanCtx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("no device matching %q found within %s", prefix, t.opts.ScanTimeout)
		}
		return "", fmt.Errorf("scan failed: %w", normalizeError(err))
	}
	return "", fmt.Errorf("no device matching %q found", prefix)
}

// handleNotification forwards data-characteristic values to the installed
// sink.
func (t *Transport) handleNotification(data []byte) {
	t.connMutex.RLock()
	fn := t.notify
	t.connMutex.RUnlock()
	if fn != nil {
		fn(data)
	}
}

// watchDisconnect monitors the client's disconnect channel and fires the
// handler when the link drops underneath us. Clients without the channel
// (some platforms) simply go unmonitored.
func (t *Transport) watchDisconnect(client ble.Client, gen uint64) {
	watcher, ok := client.(interface{ Disconnected() <-chan struct{} })
	if !ok {
		t.logger.Debug("Client does not expose a disconnect channel")
		return
	}
	<-watcher.Disconnected()

	t.connMutex.Lock()
	// Stale monitor: Disconnect already ran, or a newer connection exists.
	if gen != t.monitorGen || !t.isConnected {
		t.connMutex.Unlock()
		return
	}
	t.teardownLocked()
	fn := t.onDisconnect
	t.connMutex.Unlock()

	t.logger.Warn("Device connection lost")
	if fn != nil {
		fn()
	}
}

// WriteControl writes one command frame to the control characteristic.
// Command frames are a single byte; no MTU chunking is needed.
func (t *Transport) WriteControl(data []byte) error {
	t.connMutex.RLock()
	connected := t.isConnected
	client := t.client
	char := t.controlChar
	t.connMutex.RUnlock()

	if !connected || client == nil || char == nil {
		return fmt.Errorf("not connected")
	}

	t.writeMutex.Lock()
	defer t.writeMutex.Unlock()

	if err := client.WriteCharacteristic(char, data, false); err != nil {
		return fmt.Errorf("control write failed: %w", normalizeError(err))
	}
	return nil
}

// Disconnect unsubscribes and drops the connection. Safe to call when
// already disconnected; the disconnect handler is not invoked.
func (t *Transport) Disconnect() error {
	t.connMutex.Lock()
	defer t.connMutex.Unlock()

	if !t.isConnected {
		return nil
	}

	if t.dataChar != nil {
		if err := t.client.Unsubscribe(t.dataChar, false); err != nil {
			t.logger.WithField("error", err).Debug("Unsubscribe failed")
		}
	}
	err := t.client.CancelConnection()
	t.teardownLocked()

	if err != nil {
		return fmt.Errorf("failed to cancel connection: %w", normalizeError(err))
	}
	t.logger.Info("Disconnected from device")
	return nil
}

// teardownLocked clears connection state. Callers hold connMutex.
func (t *Transport) teardownLocked() {
	t.isConnected = false
	t.monitorGen++
	t.client = nil
	t.dataChar = nil
	t.controlChar = nil
}
