package scheduler

import (
	"sync/atomic"
	"time"

	"infoton/pkg/lib/timex/asynctime"
)

// taskMessage is a self-sent closure, delivered through the same
// mailbox as ordinary envelopes so a firing timer never races the
// scheduler's own loop (spec §4.1 step 5's "external-facing events").
type taskMessage struct {
	fn func()
}

// timer wraps the underlying timing-wheel timer so Context.AfterFunc and
// Context.TickFunc can hand callers a Stop-able handle (SPEC_FULL §4.1).
type timer struct {
	stopped atomic.Bool
	stop    func() bool
}

func (t *timer) Stop() bool {
	if !t.stopped.CompareAndSwap(false, true) {
		return false
	}
	return t.stop()
}

// afterFunc schedules fn to run once after d, delivered via the
// scheduler's mailbox rather than invoked directly on the timer-wheel
// goroutine, grounded in the teacher's timerManager.AfterFunc.
func (s *Scheduler) afterFunc(d time.Duration, fn func()) *timer {
	t := &timer{}
	tw := asynctime.AfterFunc(d, func() {
		s.mailbox.Push(&taskMessage{fn: fn})
	})
	t.stop = tw.Stop
	return t
}

// tickFunc schedules fn to run every d until Stop is called, grounded in
// the teacher's timerManager.TickFunc self-rescheduling pattern.
func (s *Scheduler) tickFunc(d time.Duration, fn func()) *timer {
	t := &timer{}
	var scheduleNext func()
	scheduleNext = func() {
		if t.stopped.Load() {
			return
		}
		tw := asynctime.AfterFunc(d, func() {
			if t.stopped.Load() {
				return
			}
			s.mailbox.Push(&taskMessage{fn: fn})
			scheduleNext()
		})
		t.stop = tw.Stop
	}
	scheduleNext()
	return t
}
