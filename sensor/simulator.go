package sensor

import (
	"sync"
	"time"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
	"github.com/timschmolka/go-watchface/gesture"
)

// Wrist poses in milli-g. Raised is inside the default gesture zone.
var (
	restPose   = gesture.Sample{X: 0, Y: 300, Z: -950}
	raisedPose = gesture.Sample{X: 0, Y: -700, Z: -700}
)

const (
	raiseSeconds = 0.4
	holdSeconds  = 0.6
	lowerSeconds = 0.4
)

// Simulator stands in for the accelerometer and the battery gauge when
// there is no hardware. Flick raises and lowers the virtual wrist; each
// ReadBatch returns the samples of one batch period.
type Simulator struct {
	mu      sync.Mutex
	y, z    *gween.Sequence
	period  time.Duration
	perRead int
	battery BatteryState
}

// NewSimulator returns a simulator at rest that produces perRead samples,
// period apart, per ReadBatch.
func NewSimulator(period time.Duration, perRead int) *Simulator {
	return &Simulator{
		period:  period,
		perRead: perRead,
		battery: BatteryState{Percent: 80},
	}
}

// Flick starts a raise, hold and lower movement from the rest pose.
func (s *Simulator) Flick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.y = movement(restPose.Y, raisedPose.Y)
	s.z = movement(restPose.Z, raisedPose.Z)
}

func movement(rest, raised int16) *gween.Sequence {
	from, to := float32(rest), float32(raised)
	seq := gween.NewSequence()
	seq.Add(
		gween.New(from, to, raiseSeconds, ease.OutQuad),
		gween.New(to, to, holdSeconds, ease.Linear),
		gween.New(to, from, lowerSeconds, ease.InQuad),
	)
	return seq
}

func (s *Simulator) ReadBatch() ([]gesture.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dt := float32(s.period.Seconds())
	batch := make([]gesture.Sample, 0, s.perRead)
	for i := 0; i < s.perRead; i++ {
		sample := restPose
		if s.y != nil {
			y, _, yDone := s.y.Update(dt)
			z, _, zDone := s.z.Update(dt)
			sample.Y, sample.Z = int16(y), int16(z)
			if yDone && zDone {
				s.y, s.z = nil, nil
				sample = restPose
			}
		}
		batch = append(batch, sample)
	}
	return batch, nil
}

// Moving reports whether a flick is in progress.
func (s *Simulator) Moving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.y != nil
}

func (s *Simulator) ReadBattery() (BatteryState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.battery, nil
}

func (s *Simulator) ToggleCharging() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.battery.Charging = !s.battery.Charging
}

// AdjustBattery changes the charge by delta percent, clamped to 0..100.
func (s *Simulator) AdjustBattery(delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.battery.Percent = clampPercent(s.battery.Percent + delta)
}
