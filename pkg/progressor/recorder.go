package progressor

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hedzr/go-ringbuf/v2/mpmc"

	"github.com/gripforce/progctl/pkg/protocol"
)

// RecorderMetrics tracks recorder activity with atomic counters.
type RecorderMetrics struct {
	recorded    atomic.Uint64
	overwritten atomic.Uint64
}

// Recorded returns the total number of measurements accepted.
func (m *RecorderMetrics) Recorded() uint64 { return m.recorded.Load() }

// Overwritten returns the number of measurements lost to buffer overwrite.
func (m *RecorderMetrics) Overwritten() uint64 { return m.overwritten.Load() }

// Recorder retains the most recent measurements in a fixed-size overwriting
// ring buffer. It subscribes to the session's measurement stream; when the
// buffer fills, the oldest samples are overwritten, so Drain always returns
// the newest window.
//
// All methods are safe for concurrent use.
type Recorder struct {
	buffer  mpmc.RichOverlappedRingBuffer[protocol.Measurement]
	sub     *Subscription
	metrics RecorderMetrics

	mu      sync.Mutex
	current protocol.Measurement
	max     float32
	seen    bool
}

// NewRecorder attaches a recorder of the given capacity to the event hub.
// Capacity must be positive; the ring rounds it up to a power of two.
func NewRecorder(events *Events, capacity int) (*Recorder, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("recorder capacity must be positive, got %d", capacity)
	}
	r := &Recorder{
		buffer: mpmc.NewOverlappedRingBuffer[protocol.Measurement](uint32(capacity)),
	}
	r.sub = events.OnMeasurement(r.record)
	return r, nil
}

func (r *Recorder) record(m protocol.Measurement) {
	overwrites, err := r.buffer.EnqueueM(m)
	if err != nil {
		// Overlapped ring never rejects; treat a failure as a dropped sample.
		return
	}
	r.metrics.recorded.Add(1)
	if overwrites > 0 {
		r.metrics.overwritten.Add(uint64(overwrites))
	}

	r.mu.Lock()
	r.current = m
	if !r.seen || m.Weight > r.max {
		r.max = m.Weight
	}
	r.seen = true
	r.mu.Unlock()
}

// Current returns the most recent measurement, if any has arrived.
func (r *Recorder) Current() (protocol.Measurement, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current, r.seen
}

// Max returns the highest weight observed since the last Reset.
func (r *Recorder) Max() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.max
}

// Reset clears the running current/max tracking. Buffered samples are
// unaffected.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.current = protocol.Measurement{}
	r.max = 0
	r.seen = false
	r.mu.Unlock()
}

// Drain removes and returns all buffered measurements, oldest first.
func (r *Recorder) Drain() ([]protocol.Measurement, error) {
	var out []protocol.Measurement
	for !r.buffer.IsEmpty() {
		m, err := r.buffer.Dequeue()
		if err != nil {
			return out, fmt.Errorf("buffer dequeue error: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}

// Metrics exposes the recorder's counters.
func (r *Recorder) Metrics() *RecorderMetrics { return &r.metrics }

// Close detaches the recorder from the event hub. Buffered samples remain
// drainable.
func (r *Recorder) Close() {
	r.sub.Unsubscribe()
}
