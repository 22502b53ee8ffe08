package progressor

import (
	"context"
	"sync"
	"time"

	"github.com/gripforce/progctl/pkg/protocol"
)

// watchdog monitors the measurement stream for stalls. The Progressor
// occasionally stops notifying mid-stream without dropping the link; the
// watchdog detects the silence and restarts the stream with a stop/start
// cycle. A failed restart is terminal: the watchdog disarms and the session
// reports ErrStreamStalled.
type watchdog struct {
	session *Session

	mu     sync.Mutex
	cancel context.CancelFunc
}

func newWatchdog(s *Session) *watchdog {
	return &watchdog{session: s}
}

func (w *watchdog) start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	go w.run(ctx)
}

func (w *watchdog) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
}

func (w *watchdog) run(ctx context.Context) {
	s := w.session
	ticker := time.NewTicker(s.timings.WatchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !s.measuring.Load() {
			continue
		}
		age := s.lastDataAge()
		if age <= s.timings.StallWindow {
			continue
		}

		s.log.WithField("silent_for", age.Round(time.Millisecond)).
			Warn("Measurement stream stalled, restarting")

		if w.recover(ctx) {
			s.lastData.Store(time.Now().UnixNano())
			continue
		}
		if ctx.Err() != nil {
			// Disarmed mid-recovery; not a stall verdict.
			return
		}

		// Recovery failed; the stream is gone for good.
		s.measuring.Store(false)
		s.events.emitError(ErrStreamStalled)
		w.stop()
		return
	}
}

// recover cycles the measurement stream: stop, settle, start. Both commands
// must confirm for the recovery to count.
func (w *watchdog) recover(ctx context.Context) bool {
	s := w.session
	if !s.cmds.Enqueue(ctx, protocol.CmdStopWeightMeasurement) {
		return false
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(s.timings.RecoverySettle):
	}
	return s.cmds.Enqueue(ctx, protocol.CmdStartWeightMeasurement)
}
