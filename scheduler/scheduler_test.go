package scheduler

import (
	"errors"
	"fmt"
	"image"
	"math/rand"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/timschmolka/go-watchface/frames"
	"github.com/timschmolka/go-watchface/gesture"
)

var (
	inZone  = []gesture.Sample{{X: 0, Y: -700, Z: -600}}
	outZone = []gesture.Sample{{X: 0, Y: 300, Z: -950}}
)

// fakeStore builds sequences of distinct 1x1 images. Frame i of id is
// images[id][i].
type fakeStore struct {
	images map[string][]image.Image
	delay  time.Duration
	fail   map[string]bool
	calls  []string
}

func newFakeStore() *fakeStore {
	st := &fakeStore{
		images: make(map[string][]image.Image),
		delay:  100 * time.Millisecond,
		fail:   make(map[string]bool),
	}
	st.add(frames.IdleDay, 1)
	st.add(frames.IdleNight, 1)
	st.add(frames.PlayDay, 3)
	st.add(frames.PlayNight, 3)
	return st
}

func (st *fakeStore) add(id string, n int) {
	imgs := make([]image.Image, n)
	for i := range imgs {
		imgs[i] = image.NewGray(image.Rect(0, 0, 1, 1))
	}
	st.images[id] = imgs
}

func (st *fakeStore) Resolve(id string) (*frames.Sequence, error) {
	st.calls = append(st.calls, id)
	if st.fail[id] {
		return nil, fmt.Errorf("%w: %s broken", frames.ErrUnavailable, id)
	}
	imgs, ok := st.images[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", frames.ErrUnavailable, id)
	}
	if len(imgs) == 1 {
		return frames.Still(id, imgs[0]), nil
	}
	fs := make([]frames.Frame, len(imgs))
	for i, img := range imgs {
		fs[i] = frames.Frame{Image: img, Delay: st.delay}
	}
	return frames.Animated(id, fs)
}

// frameOf maps a painted image back to "id#index".
func (st *fakeStore) frameOf(img image.Image) string {
	for id, imgs := range st.images {
		for i, candidate := range imgs {
			if candidate == img {
				return fmt.Sprintf("%s#%d", id, i)
			}
		}
	}
	return "?"
}

type paint struct {
	at    time.Time
	frame string
}

// sim is a virtual event loop: it executes effects, keeps timer due
// times and delivers timer expiries and minute ticks in time order.
type sim struct {
	t      *testing.T
	s      *Scheduler
	store  *fakeStore
	now    time.Time
	due    [numTimers]*time.Time
	paints []paint
	texts  map[Region]string
	icon   BatteryIcon
}

func newSim(t *testing.T, cfg Config, start time.Time) *sim {
	t.Helper()
	store := newFakeStore()
	return &sim{
		t:     t,
		s:     NewWithConfig(store, cfg),
		store: store,
		now:   start,
		texts: make(map[Region]string),
	}
}

func at(hour, minute, sec int) time.Time {
	return time.Date(2026, 3, 14, hour, minute, sec, 0, time.UTC)
}

func (h *sim) apply(fx []Effect) {
	h.t.Helper()
	for _, e := range fx {
		switch e := e.(type) {
		case Arm:
			if h.due[e.Timer] != nil {
				h.t.Fatalf("%s: Arm(%s) while already pending", h.now.Format(time.StampMilli), e.Timer)
			}
			d := h.now.Add(e.Delay)
			h.due[e.Timer] = &d
		case Cancel:
			if h.due[e.Timer] == nil {
				h.t.Fatalf("%s: Cancel(%s) while not pending", h.now.Format(time.StampMilli), e.Timer)
			}
			h.due[e.Timer] = nil
		case Paint:
			h.paints = append(h.paints, paint{at: h.now, frame: h.store.frameOf(e.Frame)})
		case SetText:
			h.texts[e.Region] = e.Text
		case SetIcon:
			h.icon = e.Icon
		case Release:
		}
	}
	for tm := Timer(0); tm < numTimers; tm++ {
		if h.s.Pending(tm) != (h.due[tm] != nil) {
			h.t.Fatalf("%s: scheduler pending(%s)=%v, host=%v", h.now.Format(time.StampMilli), tm, h.s.Pending(tm), h.due[tm] != nil)
		}
	}
}

func (h *sim) tick() {
	h.t.Helper()
	h.apply(h.s.ClockTick(h.now))
}

func (h *sim) gesture(batch []gesture.Sample) {
	h.t.Helper()
	h.apply(h.s.Gesture(h.now, batch))
}

// run delivers every timer expiry and minute tick up to and including end.
func (h *sim) run(end time.Time) {
	h.t.Helper()
	for {
		next := h.now.Truncate(time.Minute).Add(time.Minute)
		which := numTimers
		for tm := Timer(0); tm < numTimers; tm++ {
			if h.due[tm] != nil && h.due[tm].Before(next) {
				next, which = *h.due[tm], tm
			}
		}
		if next.After(end) {
			h.now = end
			return
		}
		h.now = next
		switch which {
		case TimerAdvance:
			h.due[TimerAdvance] = nil
			h.apply(h.s.FrameAdvance())
		case TimerDeadline:
			h.due[TimerDeadline] = nil
			h.apply(h.s.PlaybackDeadline(h.now))
		default:
			h.tick()
		}
	}
}

func (h *sim) lastPaint() paint {
	h.t.Helper()
	if len(h.paints) == 0 {
		h.t.Fatal("nothing painted")
	}
	return h.paints[len(h.paints)-1]
}

func TestIsDaytime(t *testing.T) {
	for h := 0; h < 24; h++ {
		want := h >= 8 && h < 18
		if got := IsDaytime(h); got != want {
			t.Errorf("IsDaytime(%d) = %v, want %v", h, got, want)
		}
	}
}

func TestIdleSwitchesAtEight(t *testing.T) {
	h := newSim(t, DefaultConfig(), at(7, 59, 0))
	h.tick()

	if h.s.Mode() != IdleNight || h.lastPaint().frame != "idle-night#0" {
		t.Fatalf("07:59: mode %s, painted %s", h.s.Mode(), h.lastPaint().frame)
	}
	if h.texts[RegionTime] != "07:59" {
		t.Errorf("time text = %q", h.texts[RegionTime])
	}

	h.run(at(8, 0, 30))

	p := h.lastPaint()
	if h.s.Mode() != IdleDay || p.frame != "idle-day#0" || !p.at.Equal(at(8, 0, 0)) {
		t.Errorf("after 08:00: mode %s, last paint %s at %s", h.s.Mode(), p.frame, p.at.Format(time.TimeOnly))
	}
	if h.texts[RegionTime] != "08:00" || h.texts[RegionDate] != "Sat Mar 14" {
		t.Errorf("texts = %v", h.texts)
	}
	if h.due[TimerAdvance] != nil || h.due[TimerDeadline] != nil {
		t.Error("idle mode left a timer pending")
	}
}

func TestGesturePlaysForPlaybackThenReverts(t *testing.T) {
	start := at(8, 5, 0)
	h := newSim(t, DefaultConfig(), start)
	h.tick()
	h.gesture(outZone)
	h.gesture(inZone)

	if h.s.Mode() != PlayingDay {
		t.Fatalf("mode = %s, want playing-day", h.s.Mode())
	}

	h.run(start.Add(10 * time.Second))

	end := start.Add(3000 * time.Millisecond)
	p := h.lastPaint()
	if p.frame != "idle-day#0" || !p.at.Equal(end) {
		t.Errorf("last paint %s at %s, want idle-day#0 at %s", p.frame, p.at.Format(time.StampMilli), end.Format(time.StampMilli))
	}

	var first, last time.Time
	for _, pt := range h.paints {
		if !strings.HasPrefix(pt.frame, "play-day") {
			continue
		}
		if first.IsZero() {
			first = pt.at
		}
		last = pt.at
	}
	if !first.Equal(start) {
		t.Errorf("animation started at %s", first.Format(time.StampMilli))
	}
	if last.After(end) {
		t.Errorf("animation frame painted at %s after deadline", last.Format(time.StampMilli))
	}
	if h.s.Mode() != IdleDay {
		t.Errorf("mode = %s", h.s.Mode())
	}
}

func TestDeadlineRecomputesDayNight(t *testing.T) {
	start := at(17, 59, 59)
	h := newSim(t, DefaultConfig(), start)
	h.tick()
	h.gesture(inZone)
	if h.s.Mode() != PlayingDay {
		t.Fatalf("mode = %s, want playing-day", h.s.Mode())
	}

	h.run(at(18, 0, 10))

	if h.s.Mode() != IdleNight {
		t.Errorf("mode = %s, want idle-night", h.s.Mode())
	}
	p := h.lastPaint()
	if p.frame != "idle-night#0" || !p.at.Equal(start.Add(3*time.Second)) {
		t.Errorf("last paint %s at %s", p.frame, p.at.Format(time.StampMilli))
	}
	if h.texts[RegionTime] != "18:00" {
		t.Errorf("tick during playback did not update text: %q", h.texts[RegionTime])
	}
}

func TestFrameAdvanceLoops(t *testing.T) {
	h := newSim(t, DefaultConfig(), at(9, 0, 0))
	h.tick()
	h.gesture(inZone)

	want := []string{"play-day#0", "play-day#1", "play-day#2", "", "play-day#0", "play-day#1", "play-day#2", "", "play-day#0"}
	for i, w := range want {
		fx := h.s.FrameAdvance()
		h.due[TimerAdvance] = nil
		h.apply(fx)

		var painted string
		var armed *Arm
		for _, e := range fx {
			switch e := e.(type) {
			case Paint:
				painted = h.store.frameOf(e.Frame)
			case Arm:
				armed = &e
			}
		}
		if painted != w {
			t.Errorf("step %d: painted %q, want %q", i, painted, w)
		}
		wantDelay := h.store.delay
		if w == "" {
			wantDelay = 0
		}
		if armed == nil || armed.Timer != TimerAdvance || armed.Delay != wantDelay {
			t.Errorf("step %d: armed %+v, want advance after %v", i, armed, wantDelay)
		}
	}
}

func TestRedundantLoadIsNoop(t *testing.T) {
	h := newSim(t, DefaultConfig(), at(12, 0, 0))
	h.tick()
	calls := len(h.store.calls)

	fx := h.s.ClockTick(at(12, 1, 0))
	h.apply(fx)

	if len(h.store.calls) != calls {
		t.Errorf("store resolved again: %v", h.store.calls)
	}
	for _, e := range fx {
		switch e.(type) {
		case Paint, Arm, Cancel:
			t.Errorf("redundant tick emitted %T", e)
		}
	}
}

func TestLoadFailureKeepsPreviousSequence(t *testing.T) {
	var logged []string
	cfg := DefaultConfig()
	cfg.Logf = func(format string, args ...any) { logged = append(logged, fmt.Sprintf(format, args...)) }

	h := newSim(t, cfg, at(8, 30, 0))
	h.tick()
	h.store.fail[frames.PlayDay] = true

	fx := h.s.Gesture(h.now, inZone)
	h.apply(fx)
	if len(fx) != 0 {
		t.Errorf("failed load emitted %v", fx)
	}
	if h.s.Mode() != IdleDay || h.s.Loaded() != frames.IdleDay {
		t.Errorf("mode %s loaded %s", h.s.Mode(), h.s.Loaded())
	}
	if len(logged) != 1 {
		t.Errorf("logged %v", logged)
	}

	// A failing idle load at the boundary keeps the night frame and is
	// retried on the next tick.
	h = newSim(t, DefaultConfig(), at(7, 59, 0))
	h.tick()
	h.store.fail[frames.IdleDay] = true
	h.run(at(8, 0, 30))
	if h.s.Loaded() != frames.IdleNight || h.lastPaint().frame != "idle-night#0" {
		t.Errorf("loaded %s after failure", h.s.Loaded())
	}

	delete(h.store.fail, frames.IdleDay)
	h.run(at(8, 1, 30))
	if h.s.Loaded() != frames.IdleDay || h.lastPaint().frame != "idle-day#0" {
		t.Errorf("retry did not load idle-day: %s", h.s.Loaded())
	}
}

func TestStaleCallbacksAreDropped(t *testing.T) {
	h := newSim(t, DefaultConfig(), at(10, 0, 0))
	h.tick()

	if fx := h.s.FrameAdvance(); fx != nil {
		t.Errorf("advance while idle: %v", fx)
	}
	if fx := h.s.PlaybackDeadline(h.now); fx != nil {
		t.Errorf("deadline while idle: %v", fx)
	}

	h.gesture(inZone)
	h.run(h.now.Add(5 * time.Second))

	if fx := h.s.FrameAdvance(); fx != nil {
		t.Errorf("advance after deadline: %v", fx)
	}
}

func TestGestureDuringPlaybackExtends(t *testing.T) {
	start := at(11, 0, 0)
	h := newSim(t, DefaultConfig(), start)
	h.tick()
	h.gesture(inZone)

	h.run(start.Add(2 * time.Second))
	h.gesture(outZone)
	calls := len(h.store.calls)
	fx := h.s.Gesture(h.now, inZone)
	h.apply(fx)

	want := []Effect{Cancel{Timer: TimerDeadline}, Arm{Timer: TimerDeadline, Delay: 3 * time.Second}}
	if !reflect.DeepEqual(fx, want) {
		t.Errorf("retrigger effects = %v, want %v", fx, want)
	}
	if len(h.store.calls) != calls {
		t.Error("retrigger reloaded the sequence")
	}

	h.run(start.Add(10 * time.Second))
	if p := h.lastPaint(); p.frame != "idle-day#0" || !p.at.Equal(start.Add(5*time.Second)) {
		t.Errorf("last paint %s at %s", p.frame, p.at.Format(time.StampMilli))
	}
}

func TestStillPlaybackArmsOnlyDeadline(t *testing.T) {
	h := newSim(t, DefaultConfig(), at(14, 0, 0))
	h.store.add(frames.PlayDay, 1)
	h.tick()
	h.gesture(inZone)

	if h.due[TimerAdvance] != nil || h.due[TimerDeadline] == nil {
		t.Errorf("pending advance=%v deadline=%v", h.due[TimerAdvance] != nil, h.due[TimerDeadline] != nil)
	}
	if h.lastPaint().frame != "play-day#0" {
		t.Errorf("painted %s", h.lastPaint().frame)
	}
}

func TestAnimateIdleLoops(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AnimateIdle = true
	h := newSim(t, cfg, at(13, 0, 0))
	h.store.add(frames.IdleDay, 2)
	h.tick()

	if h.due[TimerAdvance] == nil {
		t.Fatal("animated idle did not arm advance")
	}
	h.run(at(13, 2, 0))
	if h.due[TimerAdvance] == nil {
		t.Error("idle loop stopped")
	}
	if h.due[TimerDeadline] != nil {
		t.Error("idle armed a deadline")
	}
	if n := len(h.paints); n < 100 {
		t.Errorf("only %d paints in two minutes", n)
	}
}

func TestBatteryIcons(t *testing.T) {
	tests := []struct {
		percent  int
		charging bool
		text     string
		icon     BatteryIcon
	}{
		{50, true, "50%", IconCharging},
		{100, false, "100%", IconFull},
		{60, false, "60%", IconHealthy},
		{59, false, "59%", IconHalf},
		{40, false, "40%", IconHalf},
		{39, false, "39%", IconLow},
		{-5, false, "0%", IconLow},
		{120, false, "100%", IconFull},
	}
	s := New(newFakeStore())
	for _, tt := range tests {
		fx := s.Battery(tt.percent, tt.charging)
		want := []Effect{SetText{Region: RegionBattery, Text: tt.text}, SetIcon{Icon: tt.icon}}
		if !reflect.DeepEqual(fx, want) {
			t.Errorf("Battery(%d, %v) = %v, want %v", tt.percent, tt.charging, fx, want)
		}
	}
}

func TestCloseOrder(t *testing.T) {
	h := newSim(t, DefaultConfig(), at(9, 30, 0))
	h.tick()
	h.gesture(inZone)
	fx := h.s.FrameAdvance()
	h.due[TimerAdvance] = nil
	h.apply(fx)

	fx = h.s.Close()
	want := []Effect{Cancel{Timer: TimerDeadline}, Cancel{Timer: TimerAdvance}, Release{}}
	if !reflect.DeepEqual(fx, want) {
		t.Errorf("Close = %v, want %v", fx, want)
	}
	if h.s.Loaded() != "" {
		t.Error("sequence kept after Close")
	}

	for name, fx := range map[string][]Effect{
		"tick":     h.s.ClockTick(h.now),
		"gesture":  h.s.Gesture(h.now, outZone),
		"advance":  h.s.FrameAdvance(),
		"deadline": h.s.PlaybackDeadline(h.now),
		"battery":  h.s.Battery(50, false),
		"close":    h.s.Close(),
	} {
		if fx != nil {
			t.Errorf("%s after Close = %v", name, fx)
		}
	}
}

// TestAtMostOnePendingTimer drives random event sequences, including
// stale timer deliveries, and relies on sim.apply to fail on any double
// arm or on host and scheduler disagreeing about pending timers.
func TestAtMostOnePendingTimer(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for run := 0; run < 50; run++ {
		cfg := DefaultConfig()
		cfg.AnimateIdle = run%2 == 0
		h := newSim(t, cfg, at(rng.Intn(24), rng.Intn(60), 0))
		h.store.add(frames.IdleDay, 1+rng.Intn(3))
		if run%7 == 0 {
			h.store.fail[frames.PlayNight] = true
		}
		h.tick()

		for step := 0; step < 200; step++ {
			switch rng.Intn(6) {
			case 0:
				h.run(h.now.Add(time.Duration(rng.Intn(90)) * time.Second))
				h.tick()
			case 1:
				h.gesture(inZone)
			case 2:
				h.gesture(outZone)
			case 3:
				h.run(h.now.Add(time.Duration(rng.Intn(4000)) * time.Millisecond))
			case 4:
				if h.due[TimerAdvance] == nil {
					if fx := h.s.FrameAdvance(); fx != nil {
						t.Fatalf("run %d step %d: stale advance produced %v", run, step, fx)
					}
				}
			case 5:
				if h.due[TimerDeadline] == nil {
					if fx := h.s.PlaybackDeadline(h.now); fx != nil {
						t.Fatalf("run %d step %d: stale deadline produced %v", run, step, fx)
					}
				}
			}
		}
	}
}

func TestModeString(t *testing.T) {
	if PlayingNight.String() != "playing-night" || Mode(9).String() != "Mode(9)" {
		t.Error("unexpected Mode strings")
	}
	if !errors.Is(fmt.Errorf("x: %w", frames.ErrUnavailable), frames.ErrUnavailable) {
		t.Error("ErrUnavailable does not unwrap")
	}
}
