package progressor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gripforce/progctl/pkg/protocol"
)

// pendingCommand is the single-slot correlation tag shared between the
// command channel and the notification router. The wire protocol carries no
// per-request IDs, so a command response is interpreted against the most
// recently dispatched opcode. The tag stays valid until the next dispatch or
// a disconnect; a late response after a timeout is therefore still attributed
// to the timed-out command — an accepted protocol limitation.
type pendingCommand struct {
	mu     sync.Mutex
	opcode protocol.Command
	valid  bool
}

func (p *pendingCommand) set(cmd protocol.Command) {
	p.mu.Lock()
	p.opcode = cmd
	p.valid = true
	p.mu.Unlock()
}

func (p *pendingCommand) clear() {
	p.mu.Lock()
	p.valid = false
	p.mu.Unlock()
}

func (p *pendingCommand) current() (protocol.Command, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opcode, p.valid
}

type queueItem struct {
	cmd  protocol.Command
	done chan bool
}

// CommandChannel serializes command execution over the control
// characteristic. The transport forbids concurrent GATT operations, so at
// most one write is ever outstanding; queued commands drain in FIFO order
// with a settle delay between consecutive writes.
type CommandChannel struct {
	transport Transport
	pending   *pendingCommand
	events    *Events
	timings   Timings
	log       *logrus.Logger

	mu       sync.Mutex
	queue    []*queueItem
	draining bool
}

func newCommandChannel(t Transport, pending *pendingCommand, events *Events, timings Timings, log *logrus.Logger) *CommandChannel {
	return &CommandChannel{
		transport: t,
		pending:   pending,
		events:    events,
		timings:   timings,
		log:       log,
	}
}

// Enqueue appends the command to the queue and blocks until it settles.
// False means the write did not visibly complete within the timeout — the
// device may still have executed it. Transport write failures also resolve
// false; detail travels on the error event stream.
func (c *CommandChannel) Enqueue(ctx context.Context, cmd protocol.Command) bool {
	item := &queueItem{cmd: cmd, done: make(chan bool, 1)}

	c.mu.Lock()
	c.queue = append(c.queue, item)
	start := !c.draining
	if start {
		c.draining = true
	}
	c.mu.Unlock()

	if start {
		go c.drain()
	}

	select {
	case ok := <-item.done:
		return ok
	case <-ctx.Done():
		// The item stays queued; its buffered channel absorbs the
		// eventual settlement.
		return false
	}
}

// drain pops and executes queued commands until the queue is empty, then
// returns the channel to idle.
func (c *CommandChannel) drain() {
	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			c.draining = false
			c.mu.Unlock()
			return
		}
		item := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()

		item.done <- c.send(item.cmd)

		c.mu.Lock()
		more := len(c.queue) > 0
		c.mu.Unlock()
		if more {
			// The device loses commands written back to back; give it
			// settle time before the next control write.
			time.Sleep(c.timings.InterCommandDelay)
		}
	}
}

// send tags the command as pending, writes its frame, and races the write
// against the command timeout.
func (c *CommandChannel) send(cmd protocol.Command) bool {
	c.pending.set(cmd)

	written := make(chan error, 1)
	go func() {
		written <- c.transport.WriteControl(protocol.EncodeCommand(cmd))
	}()

	timer := time.NewTimer(c.timings.CommandTimeout)
	defer timer.Stop()

	select {
	case err := <-written:
		if err != nil {
			c.log.WithFields(logrus.Fields{
				"command": cmd.String(),
				"error":   err,
			}).Warn("Control write failed")
			c.events.emitError(fmt.Errorf("command %s failed: %w", cmd, err))
			return false
		}
		return true
	case <-timer.C:
		c.log.WithField("command", cmd.String()).Warn("Command timed out")
		return false
	}
}

// Flush abandons all queued commands, settling each one as false, and
// invalidates the correlation tag. Called on disconnect; the session emits
// the connection-change event separately, so callers waiting on flushed
// commands still learn why the queue collapsed.
func (c *CommandChannel) Flush() {
	c.mu.Lock()
	items := c.queue
	c.queue = nil
	c.mu.Unlock()

	for _, item := range items {
		item.done <- false
	}
	c.pending.clear()

	if len(items) > 0 {
		c.log.WithField("abandoned", len(items)).Debug("Flushed command queue")
	}
}

// PendingLen returns the number of queued, not-yet-dispatched commands.
func (c *CommandChannel) PendingLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}
