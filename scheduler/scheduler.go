// Package scheduler decides which frame sequence the face shows and
// drives its frame timing.
//
// The Scheduler is a state machine. Each operation is one delivered
// event (clock tick, accelerometer batch, timer expiry, battery change)
// and returns the effects the host has to execute: paint a frame, set a
// text, arm or cancel a timer. The scheduler owns no timers itself, so
// it can be driven by a real event loop or stepped by tests.
//
// The scheduler is not safe for concurrent use; the host must deliver
// events one at a time.
package scheduler

import (
	"fmt"
	"time"

	"github.com/timschmolka/go-watchface/frames"
	"github.com/timschmolka/go-watchface/gesture"
)

// Mode is the scheduler's display state.
type Mode uint8

const (
	IdleDay Mode = iota
	IdleNight
	PlayingDay
	PlayingNight
)

func (m Mode) String() string {
	switch m {
	case IdleDay:
		return "idle-day"
	case IdleNight:
		return "idle-night"
	case PlayingDay:
		return "playing-day"
	case PlayingNight:
		return "playing-night"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// Playing reports whether m is a gesture-triggered playback mode.
func (m Mode) Playing() bool {
	return m == PlayingDay || m == PlayingNight
}

func idleMode(day bool) Mode {
	if day {
		return IdleDay
	}
	return IdleNight
}

func playingMode(day bool) Mode {
	if day {
		return PlayingDay
	}
	return PlayingNight
}

// Config holds the sequence identifiers and timing of a Scheduler.
type Config struct {
	IdleDay   string
	IdleNight string
	PlayDay   string
	PlayNight string

	// Playback is how long a gesture-triggered animation runs.
	Playback time.Duration

	// AnimateIdle loops multi-frame idle sequences instead of freezing
	// them on frame 0.
	AnimateIdle bool

	Zone gesture.Zone

	// Logf receives load failures. Tracef receives transitions and
	// dropped stale callbacks. Either may be nil.
	Logf   func(format string, args ...any)
	Tracef func(format string, args ...any)
}

func DefaultConfig() Config {
	return Config{
		IdleDay:   frames.IdleDay,
		IdleNight: frames.IdleNight,
		PlayDay:   frames.PlayDay,
		PlayNight: frames.PlayNight,

		Playback: 3000 * time.Millisecond,

		Zone: gesture.DefaultZone(),
	}
}

type loadResult uint8

const (
	loadReplaced loadResult = iota
	loadRedundant
	loadFailed
)

// Scheduler is the animation state machine.
type Scheduler struct {
	cfg      Config
	store    frames.Store
	detector *gesture.Detector

	mode      Mode
	day       bool
	seq       *frames.Sequence
	advancing bool
	pending   [numTimers]bool
	closed    bool
}

func New(store frames.Store) *Scheduler {
	return NewWithConfig(store, DefaultConfig())
}

func NewWithConfig(store frames.Store, cfg Config) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		store:    store,
		detector: gesture.NewDetector(cfg.Zone),
		mode:     IdleNight,
	}
}

// Mode returns the current display state. Before the first ClockTick it
// is IdleNight with nothing loaded.
func (s *Scheduler) Mode() Mode {
	return s.mode
}

// Daytime returns the day/night flag computed by the last event that
// looked at the clock.
func (s *Scheduler) Daytime() bool {
	return s.day
}

// Loaded returns the identifier of the active sequence, or "".
func (s *Scheduler) Loaded() string {
	if s.seq == nil {
		return ""
	}
	return s.seq.ID()
}

// Pending reports whether t is armed.
func (s *Scheduler) Pending(t Timer) bool {
	return s.pending[t]
}

// ClockTick handles a minute tick or the initial time update. Outside
// playback it shows the idle sequence matching the time of day. It
// always refreshes the time and date text.
func (s *Scheduler) ClockTick(now time.Time) []Effect {
	if s.closed {
		return nil
	}

	s.day = IsDaytime(now.Hour())

	var fx []Effect
	if !s.mode.Playing() {
		fx = s.enterIdle(fx)
	}

	return append(fx,
		SetText{Region: RegionTime, Text: now.Format("15:04")},
		SetText{Region: RegionDate, Text: now.Format("Mon Jan 2")},
	)
}

// Gesture handles one batch of accelerometer samples. A rising edge into
// the gesture zone starts the playing sequence for the time of day. An
// edge while that sequence is already playing extends the playback.
func (s *Scheduler) Gesture(now time.Time, batch []gesture.Sample) []Effect {
	if s.closed || !s.detector.Feed(batch) {
		return nil
	}

	s.day = IsDaytime(now.Hour())
	id := s.playID(s.day)

	var fx []Effect
	if s.mode.Playing() && s.Loaded() == id {
		s.tracef("gesture: extending %s", s.mode)
		return s.arm(fx, TimerDeadline, s.cfg.Playback)
	}

	fx, res := s.load(fx, id)
	if res == loadFailed {
		return fx
	}

	fx = s.cancel(fx, TimerAdvance)
	s.setMode(playingMode(s.day))
	fx = s.arm(fx, TimerDeadline, s.cfg.Playback)
	if !s.seq.Static() {
		s.advancing = true
		fx = s.arm(fx, TimerAdvance, 0)
	}
	return fx
}

// FrameAdvance handles expiry of the advance timer. It shows the next
// frame and re-arms for that frame's delay; past the last frame it
// rewinds and re-arms immediately, so the loop only ends when something
// else stops it.
func (s *Scheduler) FrameAdvance() []Effect {
	if s.closed || !s.pending[TimerAdvance] || !s.advancing || s.seq == nil {
		s.tracef("advance: stale callback dropped")
		return nil
	}
	s.pending[TimerAdvance] = false

	f, ok := s.seq.Next()
	if !ok {
		s.seq.Restart()
		return s.arm(nil, TimerAdvance, 0)
	}
	return s.arm([]Effect{Paint{Frame: f.Image}}, TimerAdvance, f.Delay)
}

// PlaybackDeadline handles expiry of the deadline timer. Playback stops
// and the idle sequence for the time of day at now is shown.
func (s *Scheduler) PlaybackDeadline(now time.Time) []Effect {
	if s.closed || !s.pending[TimerDeadline] {
		s.tracef("deadline: stale callback dropped")
		return nil
	}
	s.pending[TimerDeadline] = false

	s.advancing = false
	fx := s.cancel(nil, TimerAdvance)

	s.day = IsDaytime(now.Hour())
	return s.enterIdle(fx)
}

// Battery handles a charge state change.
func (s *Scheduler) Battery(percent int, charging bool) []Effect {
	if s.closed {
		return nil
	}
	percent = max(0, min(100, percent))
	return []Effect{
		SetText{Region: RegionBattery, Text: fmt.Sprintf("%d%%", percent)},
		SetIcon{Icon: batteryIcon(percent, charging)},
	}
}

// Close cancels the deadline, then the advance timer, then releases the
// bitmap. Every later call returns no effects.
func (s *Scheduler) Close() []Effect {
	if s.closed {
		return nil
	}
	fx := s.cancel(nil, TimerDeadline)
	fx = s.cancel(fx, TimerAdvance)
	fx = append(fx, Release{})

	s.closed = true
	s.advancing = false
	s.seq = nil
	return fx
}

func (s *Scheduler) enterIdle(fx []Effect) []Effect {
	s.setMode(idleMode(s.day))

	fx, res := s.load(fx, s.idleID(s.day))
	if res == loadFailed || s.seq == nil || !s.cfg.AnimateIdle || s.seq.Static() || s.advancing {
		return fx
	}
	s.advancing = true
	return s.arm(fx, TimerAdvance, 0)
}

// load makes id the active sequence and shows its first frame. Loading
// the identifier that is already active does nothing. On failure the
// active sequence is kept.
func (s *Scheduler) load(fx []Effect, id string) ([]Effect, loadResult) {
	if s.seq != nil && s.seq.ID() == id {
		return fx, loadRedundant
	}

	seq, err := s.store.Resolve(id)
	if err != nil {
		s.logf("load %s: %v", id, err)
		return fx, loadFailed
	}

	fx = s.cancel(fx, TimerAdvance)
	s.seq = seq
	s.advancing = false
	return append(fx, Paint{Frame: seq.First().Image}), loadReplaced
}

func (s *Scheduler) arm(fx []Effect, t Timer, d time.Duration) []Effect {
	fx = s.cancel(fx, t)
	s.pending[t] = true
	return append(fx, Arm{Timer: t, Delay: d})
}

func (s *Scheduler) cancel(fx []Effect, t Timer) []Effect {
	if !s.pending[t] {
		return fx
	}
	s.pending[t] = false
	return append(fx, Cancel{Timer: t})
}

func (s *Scheduler) setMode(m Mode) {
	if m != s.mode {
		s.tracef("mode %s -> %s", s.mode, m)
	}
	s.mode = m
}

func (s *Scheduler) idleID(day bool) string {
	if day {
		return s.cfg.IdleDay
	}
	return s.cfg.IdleNight
}

func (s *Scheduler) playID(day bool) string {
	if day {
		return s.cfg.PlayDay
	}
	return s.cfg.PlayNight
}

func (s *Scheduler) logf(format string, args ...any) {
	if s.cfg.Logf != nil {
		s.cfg.Logf(format, args...)
	}
}

func (s *Scheduler) tracef(format string, args ...any) {
	if s.cfg.Tracef != nil {
		s.cfg.Tracef(format, args...)
	}
}
