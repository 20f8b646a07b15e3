// Package mailbox hands the latest actuator command from the control server
// to the stepping loop.
package mailbox

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"aisim/internal/protocol"
)

// ErrTerminated is returned by WaitTaken once the mailbox has been terminated.
var ErrTerminated = errors.New("mailbox: terminated")

// Stats counts mailbox traffic.
type Stats struct {
	Put         uint64 `json:"put"`
	Taken       uint64 `json:"taken"`
	Overwritten uint64 `json:"overwritten"`
	Resets      uint64 `json:"resets"`
}

// Mailbox is a single-slot, last-write-wins handoff. One goroutine produces
// with Put and one consumes with TryTake; the slot is guarded by a mutex so a
// command is never observed half written.
type Mailbox struct {
	mu      sync.Mutex
	pending protocol.Command
	full    bool
	seq     uint64 // sequence of the most recent Put
	taken   uint64 // sequence of the most recent TryTake
	changed chan struct{}
	reset   bool
	stats   Stats

	terminated atomic.Bool
	done       chan struct{}
	once       sync.Once
}

// New returns an empty mailbox.
func New() *Mailbox {
	return &Mailbox{
		changed: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Put stores cmd, replacing any command not yet taken. It returns the
// sequence number assigned to cmd and whether an unconsumed command was
// discarded.
func (m *Mailbox) Put(cmd protocol.Command) (seq uint64, overwritten bool) {
	if m == nil {
		return 0, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	overwritten = m.full
	if overwritten {
		m.stats.Overwritten++
	}
	m.pending = cmd
	m.full = true
	m.seq++
	m.stats.Put++
	return m.seq, overwritten
}

// TryTake removes and returns the pending command without blocking.
func (m *Mailbox) TryTake() (cmd protocol.Command, seq uint64, ok bool) {
	if m == nil {
		return protocol.Command{}, 0, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.full {
		return protocol.Command{}, 0, false
	}
	cmd, seq = m.pending, m.seq
	m.pending = protocol.Command{}
	m.full = false
	m.taken = seq
	m.stats.Taken++
	m.notifyLocked()
	return cmd, seq, true
}

// Pending reports whether a command is waiting to be taken.
func (m *Mailbox) Pending() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.full
}

// WaitTaken blocks until the command with sequence seq is no longer pending:
// it was taken, or a later command replaced it and was taken. It returns
// early with ErrTerminated or the context error. A nil mailbox never takes a
// command, so it waits for ctx.
func (m *Mailbox) WaitTaken(ctx context.Context, seq uint64) error {
	if m == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	for {
		m.mu.Lock()
		if m.taken >= seq {
			m.mu.Unlock()
			return nil
		}
		ch := m.changed
		m.mu.Unlock()

		select {
		case <-ch:
		case <-m.done:
			return ErrTerminated
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// notifyLocked wakes every WaitTaken caller.
func (m *Mailbox) notifyLocked() {
	close(m.changed)
	m.changed = make(chan struct{})
}

// RequestReset asks the consumer to reset the simulation on its next tick.
func (m *Mailbox) RequestReset() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset = true
	m.stats.Resets++
}

// TakeReset reports and clears a pending reset request.
func (m *Mailbox) TakeReset() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.reset
	m.reset = false
	return r
}

// Stats returns a copy of the traffic counters.
func (m *Mailbox) Stats() Stats {
	if m == nil {
		return Stats{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Terminate sets the termination flag. It is safe to call more than once.
func (m *Mailbox) Terminate() {
	if m == nil {
		return
	}
	m.once.Do(func() {
		m.terminated.Store(true)
		close(m.done)
	})
}

// Terminated reports whether Terminate has been called.
func (m *Mailbox) Terminated() bool {
	if m == nil {
		return false
	}
	return m.terminated.Load()
}

// Done is closed by Terminate. It is nil, and never ready, for a nil mailbox.
func (m *Mailbox) Done() <-chan struct{} {
	if m == nil {
		return nil
	}
	return m.done
}
