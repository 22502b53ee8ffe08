package progressor

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gripforce/progctl/pkg/protocol"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestChannel(t *fakeTransport) (*CommandChannel, *pendingCommand, *Events) {
	pending := &pendingCommand{}
	events := NewEvents()
	return newCommandChannel(t, pending, events, fastTimings(), quietLogger()), pending, events
}

func TestCommandChannelWritesFrame(t *testing.T) {
	ft := &fakeTransport{}
	ch, pending, _ := newTestChannel(ft)

	ok := ch.Enqueue(context.Background(), protocol.CmdTareScale)
	require.True(t, ok)
	require.Equal(t, []protocol.Command{protocol.CmdTareScale}, ft.writtenCommands())

	cmd, valid := pending.current()
	assert.True(t, valid)
	assert.Equal(t, protocol.CmdTareScale, cmd)
}

func TestCommandChannelFIFOWithGap(t *testing.T) {
	ft := &fakeTransport{}
	ch, _, _ := newTestChannel(ft)

	cmds := []protocol.Command{
		protocol.CmdTareScale,
		protocol.CmdStartWeightMeasurement,
		protocol.CmdStopWeightMeasurement,
	}

	var wg sync.WaitGroup
	results := make([]bool, len(cmds))
	for i, cmd := range cmds {
		wg.Add(1)
		go func(i int, cmd protocol.Command) {
			defer wg.Done()
			results[i] = ch.Enqueue(context.Background(), cmd)
		}(i, cmd)
		// Stagger the enqueues so the queue order is deterministic.
		time.Sleep(5 * time.Millisecond)
	}
	wg.Wait()

	for i, ok := range results {
		assert.True(t, ok, "command %d", i)
	}
	require.Equal(t, cmds, ft.writtenCommands())

	ft.mu.Lock()
	times := append([]time.Time(nil), ft.writeTimes...)
	ft.mu.Unlock()
	require.Len(t, times, 3)
	gap := fastTimings().InterCommandDelay
	for i := 1; i < len(times); i++ {
		assert.GreaterOrEqual(t, times[i].Sub(times[i-1]), gap,
			"writes %d and %d closer than the settle delay", i-1, i)
	}
}

func TestCommandChannelTimeout(t *testing.T) {
	ft := &fakeTransport{writeDelay: time.Second}
	ch, _, _ := newTestChannel(ft)

	start := time.Now()
	ok := ch.Enqueue(context.Background(), protocol.CmdTareScale)
	elapsed := time.Since(start)

	assert.False(t, ok)
	timeout := fastTimings().CommandTimeout
	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.Less(t, elapsed, timeout+500*time.Millisecond)
}

func TestCommandChannelWriteError(t *testing.T) {
	ft := &fakeTransport{writeErr: errors.New("gatt write rejected")}
	ch, _, events := newTestChannel(ft)

	var mu sync.Mutex
	var seen []error
	events.OnError(func(err error) {
		mu.Lock()
		seen = append(seen, err)
		mu.Unlock()
	})

	ok := ch.Enqueue(context.Background(), protocol.CmdEnterSleep)
	assert.False(t, ok)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 1)
	assert.Contains(t, seen[0].Error(), "gatt write rejected")
}

func TestCommandChannelFlushSettlesFalse(t *testing.T) {
	ft := &fakeTransport{writeDelay: 50 * time.Millisecond}
	ch, pending, _ := newTestChannel(ft)

	var wg sync.WaitGroup
	results := make([]bool, 3)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = ch.Enqueue(context.Background(), protocol.CmdTareScale)
		}(i)
		time.Sleep(5 * time.Millisecond)
	}

	// The first command is in flight; flush the two still queued.
	time.Sleep(10 * time.Millisecond)
	ch.Flush()
	wg.Wait()

	falses := 0
	for _, ok := range results {
		if !ok {
			falses++
		}
	}
	assert.GreaterOrEqual(t, falses, 2, "flushed commands must settle false")
	assert.Equal(t, 0, ch.PendingLen())

	_, valid := pending.current()
	assert.False(t, valid, "flush must invalidate the correlation tag")
}

func TestCommandChannelContextCancel(t *testing.T) {
	ft := &fakeTransport{writeDelay: 100 * time.Millisecond}
	ch, _, _ := newTestChannel(ft)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	ok := ch.Enqueue(ctx, protocol.CmdTareScale)
	assert.False(t, ok)
	assert.Less(t, time.Since(start), 80*time.Millisecond,
		"a canceled caller must not wait out the write")
}
