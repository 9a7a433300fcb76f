package watchface

import (
	"time"

	"github.com/timschmolka/go-watchface/scheduler"
)

// Stopper is the part of *time.Timer the runner needs.
type Stopper interface {
	Stop() bool
}

// AfterFunc runs f in its own goroutine after d.
type AfterFunc func(d time.Duration, f func()) Stopper

func realAfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}

// timerService runs the scheduler's one-shot timers. Every arm or cancel
// bumps the timer's generation, so a fire that raced with a cancel or a
// re-arm is recognized as stale. It is only used from the runner
// goroutine; the callbacks only post.
type timerService struct {
	after AfterFunc
	fire  func(t scheduler.Timer, gen uint64)

	slots [2]timerSlot
}

type timerSlot struct {
	gen     uint64
	armed   bool
	stopper Stopper
}

func (ts *timerService) arm(t scheduler.Timer, d time.Duration) {
	s := &ts.slots[t]
	ts.stop(s)
	s.gen++
	s.armed = true
	gen := s.gen
	s.stopper = ts.after(d, func() { ts.fire(t, gen) })
}

func (ts *timerService) cancel(t scheduler.Timer) {
	s := &ts.slots[t]
	ts.stop(s)
	s.gen++
	s.armed = false
}

// take reports whether a fire of t with gen is current and, if so, marks
// the timer as no longer armed.
func (ts *timerService) take(t scheduler.Timer, gen uint64) bool {
	s := &ts.slots[t]
	if !s.armed || s.gen != gen {
		return false
	}
	s.armed = false
	s.stopper = nil
	return true
}

func (ts *timerService) stopAll() {
	for t := range ts.slots {
		ts.cancel(scheduler.Timer(t))
	}
}

func (ts *timerService) stop(s *timerSlot) {
	if s.stopper != nil {
		s.stopper.Stop()
		s.stopper = nil
	}
}
