// Package gesture detects the wrist-raise gesture from batches of
// accelerometer samples.
package gesture

// Sample is one 3-axis acceleration reading in milli-g.
type Sample struct {
	X, Y, Z int16
}

// Zone is an inclusive box in acceleration space.
type Zone struct {
	Min Sample
	Max Sample
}

// DefaultZone returns the box for a raised wrist with the screen facing
// the wearer.
func DefaultZone() Zone {
	return Zone{
		Min: Sample{X: -500, Y: -1200, Z: -900},
		Max: Sample{X: 500, Y: -250, Z: 300},
	}
}

// Contains reports whether s lies inside the zone.
func (z Zone) Contains(s Sample) bool {
	return s.X >= z.Min.X && s.X <= z.Max.X &&
		s.Y >= z.Min.Y && s.Y <= z.Max.Y &&
		s.Z >= z.Min.Z && s.Z <= z.Max.Z
}

// Any reports whether at least one sample of the batch is in the zone.
func (z Zone) Any(batch []Sample) bool {
	for _, s := range batch {
		if z.Contains(s) {
			return true
		}
	}
	return false
}

// Detector turns per-batch zone tests into rising-edge events. It starts
// in the outside state.
type Detector struct {
	zone   Zone
	inside bool
}

func NewDetector(zone Zone) *Detector {
	return &Detector{zone: zone}
}

// Feed evaluates one batch and reports a rising edge: the previous batch
// was entirely outside the zone and this one has a sample inside it.
// However many samples of the batch are inside, it yields one event.
func (d *Detector) Feed(batch []Sample) bool {
	in := d.zone.Any(batch)
	edge := in && !d.inside
	d.inside = in
	return edge
}

// Inside reports the zone state recorded from the last batch.
func (d *Detector) Inside() bool {
	return d.inside
}

// Reset puts the detector back into the outside state.
func (d *Detector) Reset() {
	d.inside = false
}
