package progressor

import (
	"context"
	"sync"
	"time"

	"github.com/gripforce/progctl/pkg/protocol"
)

// fakeTransport is an in-memory Transport for tests. It records every control
// write with its timestamp and lets tests inject notifications, disconnects,
// write delays, and failures.
type fakeTransport struct {
	mu           sync.Mutex
	connected    bool
	writes       [][]byte
	writeTimes   []time.Time
	writeDelay   time.Duration
	writeErr     error
	connectErr   error
	notify       func([]byte)
	onDisconnect func()
}

var _ Transport = (*fakeTransport)(nil)

func (f *fakeTransport) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeTransport) Disconnect() error {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) WriteControl(data []byte) error {
	f.mu.Lock()
	delay := f.writeDelay
	err := f.writeErr
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return err
	}

	f.mu.Lock()
	buf := make([]byte, len(data))
	copy(buf, data)
	f.writes = append(f.writes, buf)
	f.writeTimes = append(f.writeTimes, time.Now())
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) SetNotificationHandler(fn func([]byte)) {
	f.mu.Lock()
	f.notify = fn
	f.mu.Unlock()
}

func (f *fakeTransport) SetDisconnectHandler(fn func()) {
	f.mu.Lock()
	f.onDisconnect = fn
	f.mu.Unlock()
}

// writtenCommands returns the opcodes written so far, in order.
func (f *fakeTransport) writtenCommands() []protocol.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]protocol.Command, 0, len(f.writes))
	for _, w := range f.writes {
		if len(w) == 1 {
			out = append(out, protocol.Command(w[0]))
		}
	}
	return out
}

// pushNotification delivers a raw frame to the installed handler.
func (f *fakeTransport) pushNotification(frame []byte) {
	f.mu.Lock()
	fn := f.notify
	f.mu.Unlock()
	if fn != nil {
		fn(frame)
	}
}

// dropLink simulates an unexpected disconnect.
func (f *fakeTransport) dropLink() {
	f.mu.Lock()
	f.connected = false
	fn := f.onDisconnect
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// fastTimings compresses every protocol delay so tests run in milliseconds.
func fastTimings() Timings {
	return Timings{
		CommandTimeout:       200 * time.Millisecond,
		InterCommandDelay:    20 * time.Millisecond,
		BootstrapDelay:       5 * time.Millisecond,
		StallWindow:          60 * time.Millisecond,
		WatchdogInterval:     20 * time.Millisecond,
		RecoverySettle:       10 * time.Millisecond,
		ReconnectDelay:       20 * time.Millisecond,
		MaxReconnectAttempts: 3,
	}
}
