package face

import (
	"image"

	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// Icon is the battery glyph shown next to the charge text.
type Icon uint8

const (
	IconNone Icon = iota
	IconCharging
	IconFull
	IconHealthy
	IconHalf
	IconLow
)

// level is the filled fraction of the battery body in percent.
func (i Icon) level() int {
	switch i {
	case IconFull:
		return 100
	case IconHealthy:
		return 75
	case IconHalf:
		return 50
	case IconLow:
		return 20
	default:
		return 0
	}
}

// drawIcon draws a battery outline with a terminal nub on the right,
// filled to the icon's level, or with a bolt when charging.
func drawIcon(c *image1bit.VerticalLSB, r image.Rectangle, icon Icon) {
	if icon == IconNone || r.Dx() < 6 || r.Dy() < 4 {
		return
	}

	body := image.Rect(r.Min.X, r.Min.Y, r.Max.X-2, r.Max.Y)
	for x := body.Min.X; x < body.Max.X; x++ {
		c.SetBit(x, body.Min.Y, image1bit.Off)
		c.SetBit(x, body.Max.Y-1, image1bit.Off)
	}
	for y := body.Min.Y; y < body.Max.Y; y++ {
		c.SetBit(body.Min.X, y, image1bit.Off)
		c.SetBit(body.Max.X-1, y, image1bit.Off)
	}
	for y := body.Min.Y + body.Dy()/4; y < body.Max.Y-body.Dy()/4; y++ {
		c.SetBit(r.Max.X-2, y, image1bit.Off)
		c.SetBit(r.Max.X-1, y, image1bit.Off)
	}

	inner := body.Inset(2)
	if icon == IconCharging {
		drawBolt(c, inner)
		return
	}
	fill := inner.Dx() * icon.level() / 100
	for y := inner.Min.Y; y < inner.Max.Y; y++ {
		for x := inner.Min.X; x < inner.Min.X+fill; x++ {
			c.SetBit(x, y, image1bit.Off)
		}
	}
}

// drawBolt draws a zigzag from the top right to the bottom left of r.
func drawBolt(c *image1bit.VerticalLSB, r image.Rectangle) {
	if r.Empty() {
		return
	}
	midX := r.Min.X + r.Dx()/2
	midY := r.Min.Y + r.Dy()/2
	for y := r.Min.Y; y < r.Max.Y; y++ {
		var x0, x1 int
		if y <= midY {
			x0, x1 = midX, r.Max.X-1-(y-r.Min.Y)
		} else {
			x0, x1 = r.Min.X+(r.Max.Y-1-y), midX
		}
		if x0 > x1 {
			x0, x1 = x1, x0
		}
		for x := x0; x <= x1; x++ {
			c.SetBit(x, y, image1bit.Off)
		}
	}
}
