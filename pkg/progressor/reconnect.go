package progressor

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Reconnector restores a session after an unexpected disconnect. It listens
// for connection-change events: an intentional Disconnect is left alone, a
// dropped link is retried after a delay, up to the configured attempt limit.
// A successful connection resets the attempt counter.
type Reconnector struct {
	session *Session
	log     *logrus.Logger
	sub     *Subscription

	mu     sync.Mutex
	timer  *time.Timer
	closed bool
}

// NewReconnector attaches automatic reconnection to the session. Call Close
// to detach.
func NewReconnector(s *Session, log *logrus.Logger) *Reconnector {
	if log == nil {
		log = logrus.StandardLogger()
	}
	r := &Reconnector{session: s, log: log}
	r.sub = s.Events().OnConnectionChange(func(connected bool) {
		if connected {
			s.resetReconnectAttempts()
			return
		}
		if s.IsManualDisconnect() {
			return
		}
		r.scheduleAttempt()
	})
	return r
}

func (r *Reconnector) scheduleAttempt() {
	s := r.session
	attempt := s.bumpReconnectAttempts()
	max := s.timings.MaxReconnectAttempts

	if attempt > max {
		r.log.WithField("attempts", max).Warn("Giving up on reconnection")
		s.events.emitError(&ConnectionError{
			Kind: KindNotConnected,
			Msg:  "automatic reconnection exhausted",
		})
		return
	}

	r.log.WithFields(logrus.Fields{
		"attempt": attempt,
		"max":     max,
		"delay":   s.timings.ReconnectDelay,
	}).Info("Scheduling reconnect")

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.timer = time.AfterFunc(s.timings.ReconnectDelay, func() { r.attempt(attempt) })
}

func (r *Reconnector) attempt(n int) {
	s := r.session

	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed || s.IsManualDisconnect() || s.IsConnected() {
		return
	}

	r.log.WithField("attempt", n).Info("Reconnecting")
	if err := s.Connect(context.Background()); err != nil {
		r.log.WithFields(logrus.Fields{
			"attempt": n,
			"error":   err,
		}).Warn("Reconnect attempt failed")
		r.scheduleAttempt()
	}
}

// Close detaches the reconnector and cancels any pending attempt.
func (r *Reconnector) Close() {
	r.mu.Lock()
	r.closed = true
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.mu.Unlock()
	r.sub.Unsubscribe()
}
