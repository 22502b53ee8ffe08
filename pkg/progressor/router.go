package progressor

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/gripforce/progctl/pkg/protocol"
)

// Router dispatches raw data-characteristic notifications. It decodes each
// frame, fans measurements out to listeners, and interprets command responses
// against the pending-command tag it shares with the command channel.
//
// The router owns the accumulated DeviceInfo record; command responses merge
// into it field by field and every merge emits the full snapshot.
type Router struct {
	pending *pendingCommand
	events  *Events
	log     *logrus.Logger

	mu   sync.Mutex
	info protocol.DeviceInfo
}

func newRouter(pending *pendingCommand, events *Events, log *logrus.Logger) *Router {
	return &Router{
		pending: pending,
		events:  events,
		log:     log,
	}
}

// HandleNotification is the transport's notification sink. It never panics:
// a malformed frame is logged and dropped, a panicking listener is contained
// and surfaced on the error stream, and the stream keeps flowing either way.
func (r *Router) HandleNotification(data []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.WithField("panic", rec).Error("Notification handler panicked")
			r.events.emitError(fmt.Errorf("notification handler panicked: %v", rec))
		}
	}()

	n, err := protocol.DecodeNotification(data)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"len":   len(data),
			"error": err,
		}).Debug("Dropping undecodable notification")
		return
	}

	switch n.Type {
	case protocol.ResponseWeightMeasurement:
		for _, m := range n.Measurements {
			r.events.emitMeasurement(m)
		}

	case protocol.ResponseCommand:
		r.handleCommandResponse(n.Payload)

	case protocol.ResponseLowPowerWarning:
		r.log.Warn("Device reports low battery")
		r.events.emitError(fmt.Errorf("device battery low"))

	case protocol.ResponseRFDPeak, protocol.ResponseRFDPeakSeries:
		// Peak rate-of-force data arrives only after the dedicated RFD
		// commands; nothing upstream consumes it yet.
		r.log.WithField("type", n.Type.String()).Debug("Ignoring RFD notification")
	}
}

// handleCommandResponse merges a response payload into the device-info record
// according to which command is pending. A response with no pending command
// has nothing to correlate against and is dropped.
func (r *Router) handleCommandResponse(payload []byte) {
	cmd, ok := r.pending.current()
	if !ok {
		r.log.WithField("len", len(payload)).Debug("Command response with no pending command")
		return
	}

	r.mu.Lock()
	switch cmd {
	case protocol.CmdGetAppVersion:
		v := protocol.DecodeInfoString(payload)
		r.info.FirmwareVersion = &v

	case protocol.CmdGetBatteryVoltage:
		mv, err := protocol.DecodeBatteryVoltage(payload)
		if err != nil {
			r.mu.Unlock()
			r.log.WithField("error", err).Debug("Short battery voltage payload")
			return
		}
		r.info.BatteryVoltage = &mv

	case protocol.CmdGetErrorInfo:
		s := protocol.DecodeInfoString(payload)
		r.info.ErrorInfo = &s

	default:
		// Bare acknowledgement (tare, start, stop, ...): nothing to merge.
		r.mu.Unlock()
		r.log.WithField("command", cmd.String()).Trace("Command acknowledged")
		return
	}
	snapshot := r.info
	r.mu.Unlock()

	r.events.emitDeviceInfo(snapshot)
}

// snapshot returns the accumulated device-info record.
func (r *Router) snapshot() protocol.DeviceInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.info
}

// reset clears the accumulated record; called on disconnect so a later
// session starts from scratch.
func (r *Router) reset() {
	r.mu.Lock()
	r.info = protocol.DeviceInfo{}
	r.mu.Unlock()
}
