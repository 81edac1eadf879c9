// Package mailbox implements a scheduler's local message queue (spec
// §3): an ordered sequence with exactly one consumer, the owning
// scheduler's own loop. Producers may be the scheduler itself
// (self-sends) or the scheduler's HostService drain step; both run on
// the scheduler's own goroutine, so Push never races with Pop and no
// lock is needed on that path. The queue is still built on the lock-free
// MPSC structure because timers (SPEC_FULL §4.1) deliver self-sends from
// a separate timer-wheel goroutine.
package mailbox

import "infoton/pkg/lib"

// Mailbox is a thin, typed wrapper over the lock-free MPSC queue.
type Mailbox struct {
	queue *lib.Mpsc
}

// New returns an empty mailbox.
func New() *Mailbox {
	return &Mailbox{queue: lib.NewMpsc()}
}

// Push enqueues msg. Safe to call from any goroutine.
func (m *Mailbox) Push(msg any) {
	m.queue.Push(msg)
}

// Pop removes and returns the oldest message, or nil if empty. Must only
// be called by the owning scheduler's loop.
func (m *Mailbox) Pop() any {
	return m.queue.Pop()
}

// Empty reports whether the mailbox currently holds no messages.
func (m *Mailbox) Empty() bool {
	return m.queue.Empty()
}
