// Package watchface runs the animation scheduler against a face: it
// serializes clock, sensor and timer events onto one goroutine and
// carries out the scheduler's effects.
package watchface

import (
	"context"

	"github.com/timschmolka/go-watchface/face"
	"github.com/timschmolka/go-watchface/gesture"
	"github.com/timschmolka/go-watchface/scheduler"
	"github.com/timschmolka/go-watchface/sensor"
)

type Config struct {
	Clock Clock

	// AfterFunc schedules timer and minute tick callbacks. Defaults to
	// time.AfterFunc.
	AfterFunc AfterFunc

	// EventBuffer is the capacity of the event queue.
	EventBuffer int

	// Logf receives panel errors. Tracef receives dropped timer fires.
	// Either may be nil.
	Logf   func(format string, args ...any)
	Tracef func(format string, args ...any)
}

func DefaultConfig() Config {
	return Config{
		Clock:       SystemClock{},
		AfterFunc:   realAfterFunc,
		EventBuffer: 64,
	}
}

type event any

type (
	tickEvent    struct{}
	minuteEvent  struct{}
	gestureEvent struct{ batch []gesture.Sample }
	batteryEvent struct{ state sensor.BatteryState }
	timerEvent   struct {
		timer scheduler.Timer
		gen   uint64
	}
)

// Runner owns a scheduler and a face. All of their methods are called
// from the goroutine running Run; the Post methods are safe to call from
// anywhere.
type Runner struct {
	sched  *scheduler.Scheduler
	face   *face.Face
	cfg    Config
	events chan event
	done   chan struct{}
	timers timerService
	minute Stopper
	primed bool
}

func New(sched *scheduler.Scheduler, f *face.Face) *Runner {
	return NewWithConfig(sched, f, DefaultConfig())
}

func NewWithConfig(sched *scheduler.Scheduler, f *face.Face, cfg Config) *Runner {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.AfterFunc == nil {
		cfg.AfterFunc = realAfterFunc
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 64
	}

	r := &Runner{
		sched:  sched,
		face:   f,
		cfg:    cfg,
		events: make(chan event, cfg.EventBuffer),
		done:   make(chan struct{}),
	}
	r.timers = timerService{
		after: cfg.AfterFunc,
		fire: func(t scheduler.Timer, gen uint64) {
			r.post(timerEvent{timer: t, gen: gen})
		},
	}
	return r
}

// PostGesture queues an accelerometer batch. Empty batches are ignored.
func (r *Runner) PostGesture(batch []gesture.Sample) {
	if len(batch) == 0 {
		return
	}
	r.post(gestureEvent{batch: batch})
}

func (r *Runner) PostBattery(st sensor.BatteryState) {
	r.post(batteryEvent{state: st})
}

// PostTick queues an extra clock update, e.g. after the time was set.
func (r *Runner) PostTick() {
	r.post(tickEvent{})
}

func (r *Runner) post(ev event) {
	select {
	case r.events <- ev:
	case <-r.done:
	}
}

// Prime shows the current time and the idle sequence without touching
// the panel. Run calls it when it was not called before.
func (r *Runner) Prime() {
	if r.primed {
		return
	}
	r.primed = true
	r.exec(r.sched.ClockTick(r.cfg.Clock.Now()))
}

// Run processes events until ctx is done, then closes the scheduler,
// carries out its final effects and flushes the face once more.
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.done)

	r.Prime()
	r.scheduleMinute()
	r.flush()

	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			return nil
		case ev := <-r.events:
			r.handle(ev)
			r.drain()
			r.flush()
		}
	}
}

// drain handles everything already queued so that one panel update
// covers a burst of events.
func (r *Runner) drain() {
	for {
		select {
		case ev := <-r.events:
			r.handle(ev)
		default:
			return
		}
	}
}

func (r *Runner) handle(ev event) {
	now := r.cfg.Clock.Now()
	switch ev := ev.(type) {
	case tickEvent:
		r.exec(r.sched.ClockTick(now))
	case minuteEvent:
		r.exec(r.sched.ClockTick(now))
		r.scheduleMinute()
	case gestureEvent:
		r.exec(r.sched.Gesture(now, ev.batch))
	case batteryEvent:
		r.exec(r.sched.Battery(ev.state.Percent, ev.state.Charging))
	case timerEvent:
		if !r.timers.take(ev.timer, ev.gen) {
			r.tracef("%s timer: stale fire dropped", ev.timer)
			return
		}
		switch ev.timer {
		case scheduler.TimerAdvance:
			r.exec(r.sched.FrameAdvance())
		case scheduler.TimerDeadline:
			r.exec(r.sched.PlaybackDeadline(now))
		}
	}
}

func (r *Runner) scheduleMinute() {
	if r.minute != nil {
		r.minute.Stop()
	}
	r.minute = r.cfg.AfterFunc(untilNextMinute(r.cfg.Clock.Now()), func() {
		r.post(minuteEvent{})
	})
}

func (r *Runner) exec(fx []scheduler.Effect) {
	for _, e := range fx {
		switch e := e.(type) {
		case scheduler.Paint:
			r.face.Paint(e.Frame)
		case scheduler.SetText:
			r.face.SetText(faceRegion(e.Region), e.Text)
		case scheduler.SetIcon:
			r.face.SetIcon(faceIcon(e.Icon))
		case scheduler.Arm:
			r.timers.arm(e.Timer, e.Delay)
		case scheduler.Cancel:
			r.timers.cancel(e.Timer)
		case scheduler.Release:
			r.face.Release()
		}
	}
}

func (r *Runner) flush() {
	if err := r.face.Flush(); err != nil {
		r.logf("%v", err)
	}
}

func (r *Runner) shutdown() {
	if r.minute != nil {
		r.minute.Stop()
		r.minute = nil
	}
	r.exec(r.sched.Close())
	r.timers.stopAll()
	r.flush()
}

func (r *Runner) logf(format string, args ...any) {
	if r.cfg.Logf != nil {
		r.cfg.Logf(format, args...)
	}
}

func (r *Runner) tracef(format string, args ...any) {
	if r.cfg.Tracef != nil {
		r.cfg.Tracef(format, args...)
	}
}

func faceRegion(r scheduler.Region) face.Region {
	switch r {
	case scheduler.RegionDate:
		return face.RegionDate
	case scheduler.RegionBattery:
		return face.RegionBattery
	default:
		return face.RegionTime
	}
}

func faceIcon(i scheduler.BatteryIcon) face.Icon {
	switch i {
	case scheduler.IconCharging:
		return face.IconCharging
	case scheduler.IconFull:
		return face.IconFull
	case scheduler.IconHealthy:
		return face.IconHealthy
	case scheduler.IconHalf:
		return face.IconHalf
	case scheduler.IconLow:
		return face.IconLow
	default:
		return face.IconNone
	}
}
