package progressor

import (
	"errors"
	"fmt"
)

// ConnectionState names the session lifecycle states.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("unknown_state(%d)", int32(s))
	}
}

// ErrorKind classifies connection-related failures.
type ErrorKind string

const (
	KindNoTransport      ErrorKind = "transport_unavailable"
	KindNotConnected     ErrorKind = "not_connected"
	KindAlreadyConnected ErrorKind = "already_connected"
)

// ConnectionError represents any connection-related problem.
type ConnectionError struct {
	Kind ErrorKind
	Msg  string
}

func (e *ConnectionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Is allows errors.Is to compare ConnectionError values by Kind.
func (e *ConnectionError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*ConnectionError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel errors for connection states.
var (
	// ErrNoTransport means the host has no usable Bluetooth stack. This is
	// a connect-time fatal condition, not something a retry fixes.
	ErrNoTransport = &ConnectionError{Kind: KindNoTransport}

	ErrNotConnected     = &ConnectionError{Kind: KindNotConnected}
	ErrAlreadyConnected = &ConnectionError{Kind: KindAlreadyConnected}
)

// ErrStreamStalled is emitted when the watchdog's single recovery attempt
// fails; the measurement session is over at that point.
var ErrStreamStalled = errors.New("data stream interrupted: stop and start the measurement again")
