// Package frames resolves animation identifiers to frame sequences.
//
// A Sequence is an ordered list of frames with a display duration each.
// A single-frame sequence is a still image; longer sequences loop. The
// Store implementations decode frames once and hand out fresh cursors
// over the shared frame data on every Resolve.
package frames

import (
	"errors"
	"fmt"
	"image"
	"time"
)

var (
	// ErrUnavailable is wrapped by every Store failure.
	ErrUnavailable = errors.New("frames: resource unavailable")

	errEmpty = errors.New("sequence has no frames")
)

// Frame is one bitmap and how long it stays on screen.
type Frame struct {
	Image image.Image
	Delay time.Duration
}

// Sequence is a cursor over a list of frames.
type Sequence struct {
	id     string
	frames []Frame
	next   int
}

// Still returns a one-frame sequence.
func Still(id string, img image.Image) *Sequence {
	return &Sequence{id: id, frames: []Frame{{Image: img}}}
}

// Animated returns a looping sequence over frames.
func Animated(id string, frames []Frame) (*Sequence, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("%s: %w", id, errEmpty)
	}
	for i, f := range frames {
		if f.Image == nil {
			return nil, fmt.Errorf("%s: frame %d has no image", id, i)
		}
		if f.Delay < 0 {
			return nil, fmt.Errorf("%s: frame %d has negative delay", id, i)
		}
	}
	return &Sequence{id: id, frames: frames}, nil
}

func (s *Sequence) ID() string {
	return s.id
}

func (s *Sequence) Len() int {
	return len(s.frames)
}

// Static reports whether the sequence is a single still frame.
func (s *Sequence) Static() bool {
	return len(s.frames) == 1
}

// First returns frame 0 without moving the cursor.
func (s *Sequence) First() Frame {
	return s.frames[0]
}

// Next returns the frame under the cursor and moves past it. It reports
// false once every frame has been returned; Restart rewinds.
func (s *Sequence) Next() (Frame, bool) {
	if s.next >= len(s.frames) {
		return Frame{}, false
	}
	f := s.frames[s.next]
	s.next++
	return f, true
}

// Index is the index of the frame most recently returned by Next, or -1.
func (s *Sequence) Index() int {
	return s.next - 1
}

func (s *Sequence) Restart() {
	s.next = 0
}

// Duration is the sum of all frame delays.
func (s *Sequence) Duration() time.Duration {
	var d time.Duration
	for _, f := range s.frames {
		d += f.Delay
	}
	return d
}

// Clone returns a rewound cursor sharing the frame data.
func (s *Sequence) Clone() *Sequence {
	return &Sequence{id: s.id, frames: s.frames}
}

// Store resolves identifiers to sequences.
type Store interface {
	Resolve(id string) (*Sequence, error)
}

// MapStore is a Store over prebuilt sequences.
type MapStore map[string]*Sequence

func (m MapStore) Resolve(id string) (*Sequence, error) {
	seq, ok := m[id]
	if !ok {
		return nil, fmt.Errorf("%w: unknown identifier %q", ErrUnavailable, id)
	}
	return seq.Clone(), nil
}
