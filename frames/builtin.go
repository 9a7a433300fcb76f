package frames

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"time"
)

// Identifiers served by BuiltinStore.
const (
	IdleDay   = "idle-day"
	IdleNight = "idle-night"
	PlayDay   = "play-day"
	PlayNight = "play-night"
)

const (
	sunFrames   = 8
	sunDelay    = 120 * time.Millisecond
	starFrames  = 6
	starDelay   = 150 * time.Millisecond
	inkLevel    = 0
	paperLevel  = 255
)

// BuiltinStore draws a sun for the day sequences and a moon for the night
// ones, so the face runs without any asset files.
type BuiltinStore struct {
	seqs MapStore
}

// NewBuiltinStore renders every builtin sequence at size.
func NewBuiltinStore(size image.Point) (*BuiltinStore, error) {
	if size.X <= 0 || size.Y <= 0 {
		return nil, fmt.Errorf("builtin frames: invalid size %v", size)
	}

	sunDance := make([]Frame, sunFrames)
	for i := range sunDance {
		phase := float64(i) / sunFrames
		sunDance[i] = Frame{Image: render(size, func(c *canvas) { c.sun(phase) }), Delay: sunDelay}
	}
	starDance := make([]Frame, starFrames)
	for i := range starDance {
		starDance[i] = Frame{Image: render(size, func(c *canvas) { c.moon(i) }), Delay: starDelay}
	}

	playDay, err := Animated(PlayDay, sunDance)
	if err != nil {
		return nil, err
	}
	playNight, err := Animated(PlayNight, starDance)
	if err != nil {
		return nil, err
	}

	return &BuiltinStore{seqs: MapStore{
		IdleDay:   Still(IdleDay, render(size, func(c *canvas) { c.sun(0) })),
		IdleNight: Still(IdleNight, render(size, func(c *canvas) { c.moon(-1) })),
		PlayDay:   playDay,
		PlayNight: playNight,
	}}, nil
}

func (s *BuiltinStore) Resolve(id string) (*Sequence, error) {
	return s.seqs.Resolve(id)
}

type canvas struct {
	img    *image.Gray
	cx, cy float64
	r      float64
}

func render(size image.Point, paint func(*canvas)) image.Image {
	img := image.NewGray(image.Rect(0, 0, size.X, size.Y))
	for i := range img.Pix {
		img.Pix[i] = paperLevel
	}
	c := &canvas{
		img: img,
		cx:  float64(size.X) / 2,
		cy:  float64(size.Y) / 2,
		r:   math.Min(float64(size.X), float64(size.Y)) / 2,
	}
	paint(c)
	return Dither(img, img.Bounds())
}

func (c *canvas) ink(x, y int) {
	if image.Pt(x, y).In(c.img.Rect) {
		c.img.SetGray(x, y, color.Gray{Y: inkLevel})
	}
}

func (c *canvas) disc(cx, cy, r float64, keep func(x, y float64) bool) {
	for y := int(cy - r); y <= int(cy+r); y++ {
		for x := int(cx - r); x <= int(cx+r); x++ {
			dx, dy := float64(x)-cx, float64(y)-cy
			if dx*dx+dy*dy <= r*r && (keep == nil || keep(float64(x), float64(y))) {
				c.ink(x, y)
			}
		}
	}
}

// sun draws a disc with twelve rays rotated by phase of a ray spacing.
func (c *canvas) sun(phase float64) {
	core := c.r * 0.4
	c.disc(c.cx, c.cy, core, nil)

	const rays = 12
	for i := 0; i < rays; i++ {
		angle := (float64(i) + phase) * 2 * math.Pi / rays
		for d := core * 1.25; d <= c.r*0.9; d += 0.5 {
			x := c.cx + d*math.Cos(angle)
			y := c.cy + d*math.Sin(angle)
			c.disc(x, y, 1.2, nil)
		}
	}
}

// moon draws a crescent and four stars; lit selects the star drawn
// large, -1 for none.
func (c *canvas) moon(lit int) {
	r := c.r * 0.55
	ox, oy := c.cx+r*0.45, c.cy-r*0.25
	c.disc(c.cx, c.cy, r, func(x, y float64) bool {
		dx, dy := x-ox, y-oy
		return dx*dx+dy*dy > r*r*0.8
	})

	stars := [...][2]float64{{0.15, 0.2}, {0.8, 0.15}, {0.85, 0.75}, {0.2, 0.85}}
	for i, s := range stars {
		size := 1.5
		if lit >= 0 && i == lit%len(stars) {
			size = 3.5
		}
		x := s[0] * float64(c.img.Rect.Dx())
		y := s[1] * float64(c.img.Rect.Dy())
		c.disc(x, y, size, nil)
	}
}
