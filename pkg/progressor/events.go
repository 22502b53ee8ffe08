package progressor

import (
	"sync"

	"github.com/gripforce/progctl/pkg/protocol"
)

// Subscription is the handle returned by the Events On* methods.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Unsubscribe removes the listener. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

// Events is the session's typed event hub. Any number of listeners may
// subscribe per topic; emission order across listeners is unspecified, but
// a single listener observes events in emission order.
//
// Listeners run synchronously on the emitting goroutine (the BLE
// notification callback for measurements). They must return quickly and must
// copy anything they retain.
type Events struct {
	mu     sync.RWMutex
	nextID uint64

	measurement map[uint64]func(protocol.Measurement)
	deviceInfo  map[uint64]func(protocol.DeviceInfo)
	connection  map[uint64]func(connected bool)
	errs        map[uint64]func(error)
}

// NewEvents creates an empty event hub.
func NewEvents() *Events {
	return &Events{
		measurement: make(map[uint64]func(protocol.Measurement)),
		deviceInfo:  make(map[uint64]func(protocol.DeviceInfo)),
		connection:  make(map[uint64]func(bool)),
		errs:        make(map[uint64]func(error)),
	}
}

func (e *Events) id() uint64 {
	e.nextID++
	return e.nextID
}

// OnMeasurement subscribes to the live measurement stream. Callbacks fire
// once per decoded record, in device payload order.
func (e *Events) OnMeasurement(fn func(protocol.Measurement)) *Subscription {
	e.mu.Lock()
	id := e.id()
	e.measurement[id] = fn
	e.mu.Unlock()
	return &Subscription{cancel: func() {
		e.mu.Lock()
		delete(e.measurement, id)
		e.mu.Unlock()
	}}
}

// OnDeviceInfo subscribes to device-info snapshots. Each emission carries the
// full accumulated record, not a delta.
func (e *Events) OnDeviceInfo(fn func(protocol.DeviceInfo)) *Subscription {
	e.mu.Lock()
	id := e.id()
	e.deviceInfo[id] = fn
	e.mu.Unlock()
	return &Subscription{cancel: func() {
		e.mu.Lock()
		delete(e.deviceInfo, id)
		e.mu.Unlock()
	}}
}

// OnConnectionChange subscribes to connected/disconnected transitions.
func (e *Events) OnConnectionChange(fn func(connected bool)) *Subscription {
	e.mu.Lock()
	id := e.id()
	e.connection[id] = fn
	e.mu.Unlock()
	return &Subscription{cancel: func() {
		e.mu.Lock()
		delete(e.connection, id)
		e.mu.Unlock()
	}}
}

// OnError subscribes to the error stream. Every failure the core swallows at
// its boundary is re-expressed here as a human-readable error.
func (e *Events) OnError(fn func(error)) *Subscription {
	e.mu.Lock()
	id := e.id()
	e.errs[id] = fn
	e.mu.Unlock()
	return &Subscription{cancel: func() {
		e.mu.Lock()
		delete(e.errs, id)
		e.mu.Unlock()
	}}
}

// snapshot copies a listener map so callbacks run without holding the lock;
// a listener may subscribe, unsubscribe, or trigger a nested emission.
func snapshot[T any](mu *sync.RWMutex, m map[uint64]T) []T {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]T, 0, len(m))
	for _, fn := range m {
		out = append(out, fn)
	}
	return out
}

func (e *Events) emitMeasurement(m protocol.Measurement) {
	for _, fn := range snapshot(&e.mu, e.measurement) {
		fn(m)
	}
}

func (e *Events) emitDeviceInfo(info protocol.DeviceInfo) {
	for _, fn := range snapshot(&e.mu, e.deviceInfo) {
		fn(info)
	}
}

func (e *Events) emitConnectionChange(connected bool) {
	for _, fn := range snapshot(&e.mu, e.connection) {
		fn(connected)
	}
}

func (e *Events) emitError(err error) {
	for _, fn := range snapshot(&e.mu, e.errs) {
		fn(err)
	}
}
