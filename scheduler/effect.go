package scheduler

import (
	"fmt"
	"image"
	"time"
)

// Timer names one of the two wake-ups the scheduler can have pending.
type Timer uint8

const (
	// TimerAdvance moves the active sequence to its next frame.
	TimerAdvance Timer = iota
	// TimerDeadline ends gesture playback.
	TimerDeadline

	numTimers
)

func (t Timer) String() string {
	switch t {
	case TimerAdvance:
		return "advance"
	case TimerDeadline:
		return "deadline"
	default:
		return fmt.Sprintf("Timer(%d)", uint8(t))
	}
}

// Region names a text area of the face.
type Region uint8

const (
	RegionTime Region = iota
	RegionDate
	RegionBattery
)

// BatteryIcon selects the battery glyph.
type BatteryIcon uint8

const (
	IconNone BatteryIcon = iota
	IconCharging
	IconFull
	IconHealthy
	IconHalf
	IconLow
)

// Effect is a side effect requested by a transition. The host executes
// effects in order.
type Effect interface {
	effect()
}

// Paint shows a frame in the bitmap area.
type Paint struct {
	Frame image.Image
}

// SetText replaces the string shown in a region.
type SetText struct {
	Region Region
	Text   string
}

// SetIcon replaces the battery icon.
type SetIcon struct {
	Icon BatteryIcon
}

// Arm schedules a one-shot wake-up. The scheduler never arms a timer that
// is already pending.
type Arm struct {
	Timer Timer
	Delay time.Duration
}

// Cancel drops a pending wake-up.
type Cancel struct {
	Timer Timer
}

// Release drops the bitmap buffer. Emitted once, by Close.
type Release struct{}

func (Paint) effect()   {}
func (SetText) effect() {}
func (SetIcon) effect() {}
func (Arm) effect()     {}
func (Cancel) effect()  {}
func (Release) effect() {}

// batteryIcon picks the glyph for a charge state.
func batteryIcon(percent int, charging bool) BatteryIcon {
	switch {
	case charging:
		return IconCharging
	case percent >= 100:
		return IconFull
	case percent >= 60:
		return IconHealthy
	case percent >= 40:
		return IconHalf
	default:
		return IconLow
	}
}

// IsDaytime reports whether hour falls in the day band [8, 18).
func IsDaytime(hour int) bool {
	return hour >= 8 && hour < 18
}
