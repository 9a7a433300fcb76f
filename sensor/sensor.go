// Package sensor reads the wrist accelerometer and the battery gauge.
package sensor

import (
	"context"
	"errors"
	"time"

	"github.com/timschmolka/go-watchface/gesture"
)

var ErrNoDevice = errors.New("sensor: device not present")

// BatteryState is the charge in percent, 0 to 100.
type BatteryState struct {
	Percent  int
	Charging bool
}

// Accelerometer returns the samples gathered since the previous call.
type Accelerometer interface {
	ReadBatch() ([]gesture.Sample, error)
}

type Gauge interface {
	ReadBattery() (BatteryState, error)
}

// PollAccel reads a every interval and posts non-empty batches until ctx
// is done. Read errors go to onErr, if set, and polling continues.
func PollAccel(ctx context.Context, a Accelerometer, every time.Duration, post func([]gesture.Sample), onErr func(error)) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		batch, err := a.ReadBatch()
		if err != nil {
			if onErr != nil {
				onErr(err)
			}
			continue
		}
		if len(batch) > 0 {
			post(batch)
		}
	}
}

// PollBattery posts the battery state once right away and then whenever
// it changes, checking every interval until ctx is done.
func PollBattery(ctx context.Context, g Gauge, every time.Duration, post func(BatteryState), onErr func(error)) {
	var (
		last BatteryState
		seen bool
	)
	read := func() {
		st, err := g.ReadBattery()
		if err != nil {
			if onErr != nil {
				onErr(err)
			}
			return
		}
		if seen && st == last {
			return
		}
		last, seen = st, true
		post(st)
	}

	read()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			read()
		}
	}
}

func clampPercent(p int) int {
	return max(0, min(100, p))
}
