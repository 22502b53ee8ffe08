package progressor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gripforce/progctl/pkg/protocol"
)

// Session is the high-level handle to one Progressor device. It owns the
// transport, the command channel, the notification router, and the stall
// watchdog, and exposes the typed event hub applications subscribe to.
//
// A Session is reusable across connections: Disconnect followed by Connect
// starts a fresh device conversation with cleared state.
type Session struct {
	transport Transport
	timings   Timings
	log       *logrus.Logger

	events  *Events
	pending *pendingCommand
	cmds    *CommandChannel
	router  *Router
	dog     *watchdog

	mu                sync.Mutex
	state             ConnectionState
	manualDisconnect  bool
	reconnectAttempts int

	measuring atomic.Bool
	lastData  atomic.Int64 // UnixNano of the most recent measurement
}

// NewSession wires a Session around the given transport. A nil transport is
// accepted so hosts without a Bluetooth stack can still construct the object
// graph; Connect will then fail with ErrNoTransport.
func NewSession(t Transport, timings Timings, log *logrus.Logger) *Session {
	if log == nil {
		log = logrus.StandardLogger()
	}

	s := &Session{
		transport: t,
		timings:   timings,
		log:       log,
		events:    NewEvents(),
		pending:   &pendingCommand{},
	}
	s.cmds = newCommandChannel(t, s.pending, s.events, timings, log)
	s.router = newRouter(s.pending, s.events, log)
	s.dog = newWatchdog(s)

	if t != nil {
		t.SetNotificationHandler(s.router.HandleNotification)
		t.SetDisconnectHandler(s.handleUnexpectedDisconnect)
	}

	// Any decoded measurement proves the stream is alive.
	s.events.OnMeasurement(func(protocol.Measurement) {
		s.lastData.Store(time.Now().UnixNano())
	})

	return s
}

// Events returns the session's event hub.
func (s *Session) Events() *Events { return s.events }

// State returns the current connection state.
func (s *Session) State() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsConnected reports whether the session is fully connected.
func (s *Session) IsConnected() bool { return s.State() == StateConnected }

// IsMeasuring reports whether a measurement stream is active.
func (s *Session) IsMeasuring() bool { return s.measuring.Load() }

// DeviceInfo returns the accumulated device-info record for this connection.
func (s *Session) DeviceInfo() protocol.DeviceInfo { return s.router.snapshot() }

// Connect establishes the device session and synchronously bootstraps the
// device-info record (firmware version, battery voltage, error information).
// Bootstrap failures are reported on the error stream but do not fail the
// connection.
func (s *Session) Connect(ctx context.Context) error {
	if s.transport == nil {
		s.events.emitError(ErrNoTransport)
		return ErrNoTransport
	}

	s.mu.Lock()
	if s.state != StateDisconnected {
		state := s.state
		s.mu.Unlock()
		s.log.WithField("state", state.String()).Debug("Connect ignored")
		return ErrAlreadyConnected
	}
	s.state = StateConnecting
	s.manualDisconnect = false
	s.mu.Unlock()

	if err := s.transport.Connect(ctx); err != nil {
		s.mu.Lock()
		s.state = StateDisconnected
		s.mu.Unlock()
		s.events.emitError(err)
		return err
	}

	s.mu.Lock()
	s.state = StateConnected
	s.reconnectAttempts = 0
	s.mu.Unlock()

	s.log.Info("Device connected")
	s.events.emitConnectionChange(true)

	s.bootstrapDeviceInfo(ctx)
	return nil
}

// bootstrapDeviceInfo interrogates the device right after connect. The
// firmware drops back-to-back queries, so each command is separated by the
// bootstrap delay. Individual failures are already surfaced by the command
// channel; the sequence always runs to completion.
func (s *Session) bootstrapDeviceInfo(ctx context.Context) {
	for i, cmd := range []protocol.Command{
		protocol.CmdGetAppVersion,
		protocol.CmdGetBatteryVoltage,
		protocol.CmdGetErrorInfo,
	} {
		if i > 0 {
			time.Sleep(s.timings.BootstrapDelay)
		}
		if !s.cmds.Enqueue(ctx, cmd) {
			s.log.WithField("command", cmd.String()).Debug("Device info query unconfirmed")
		}
	}
}

// Disconnect tears the session down. Safe to call when already disconnected.
// It marks the disconnect as intentional so automatic reconnection stays out
// of the way.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	if s.state == StateDisconnected {
		s.mu.Unlock()
		return nil
	}
	s.manualDisconnect = true
	s.mu.Unlock()

	s.log.Info("Disconnecting")
	return s.teardown()
}

// handleUnexpectedDisconnect is the transport's disconnect callback.
func (s *Session) handleUnexpectedDisconnect() {
	s.mu.Lock()
	if s.state == StateDisconnected {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.log.Warn("Connection lost")
	_ = s.teardown()
}

// teardown releases everything a live connection holds: the watchdog, the
// measurement flag, queued commands (settled false), the accumulated device
// info, and finally the transport itself. Idempotent: a manual Disconnect
// racing a link drop tears down once. The connection-change event fires last
// so listeners observe a fully settled session.
func (s *Session) teardown() error {
	s.mu.Lock()
	if s.state == StateDisconnected {
		s.mu.Unlock()
		return nil
	}
	s.state = StateDisconnected
	s.mu.Unlock()

	s.dog.stop()
	s.measuring.Store(false)
	s.cmds.Flush()
	s.router.reset()

	var err error
	if s.transport != nil {
		err = s.transport.Disconnect()
	}

	s.events.emitConnectionChange(false)
	return err
}

// StartMeasurement begins the continuous weight stream and arms the stall
// watchdog. Returns false when not connected or when the command could not be
// confirmed.
func (s *Session) StartMeasurement(ctx context.Context) bool {
	if !s.IsConnected() {
		s.log.Debug("StartMeasurement while not connected")
		return false
	}
	if !s.cmds.Enqueue(ctx, protocol.CmdStartWeightMeasurement) {
		return false
	}
	s.measuring.Store(true)
	s.lastData.Store(time.Now().UnixNano())
	s.dog.start()
	return true
}

// StopMeasurement ends the weight stream and disarms the watchdog.
func (s *Session) StopMeasurement(ctx context.Context) bool {
	if !s.IsConnected() {
		return false
	}
	s.dog.stop()
	s.measuring.Store(false)
	return s.cmds.Enqueue(ctx, protocol.CmdStopWeightMeasurement)
}

// TareScale zeroes the load cell at its current reading.
func (s *Session) TareScale(ctx context.Context) bool {
	if !s.IsConnected() {
		return false
	}
	return s.cmds.Enqueue(ctx, protocol.CmdTareScale)
}

// EnterSleep puts the device into its low-power state. The device drops the
// connection shortly after; the resulting disconnect is expected.
func (s *Session) EnterSleep(ctx context.Context) bool {
	if !s.IsConnected() {
		return false
	}
	return s.cmds.Enqueue(ctx, protocol.CmdEnterSleep)
}

// ClearErrorInfo clears the device's stored error information.
func (s *Session) ClearErrorInfo(ctx context.Context) bool {
	if !s.IsConnected() {
		return false
	}
	return s.cmds.Enqueue(ctx, protocol.CmdClearErrorInfo)
}

// IsManualDisconnect reports whether the latest disconnect was requested by
// the application rather than the link dropping.
func (s *Session) IsManualDisconnect() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manualDisconnect
}

// ReconnectAttempts returns the count of automatic reconnect attempts since
// the last successful connection.
func (s *Session) ReconnectAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconnectAttempts
}

func (s *Session) bumpReconnectAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconnectAttempts++
	return s.reconnectAttempts
}

func (s *Session) resetReconnectAttempts() {
	s.mu.Lock()
	s.reconnectAttempts = 0
	s.mu.Unlock()
}

func (s *Session) lastDataAge() time.Duration {
	return time.Duration(time.Now().UnixNano() - s.lastData.Load())
}
