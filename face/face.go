// Package face composes the watchface screen: one bitmap, a few text
// regions and a battery icon, pushed to a panel as a single 1-bit image.
package face

import (
	"errors"
	"fmt"
	"image"
	"image/draw"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/math/fixed"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// Panel is a display the face can be flushed to.
type Panel interface {
	DrawImage(img image.Image) error
	Size() (int, int)
}

// PartialPanel can update without a full refresh cycle.
type PartialPanel interface {
	Panel
	DrawPartial(img image.Image) error
}

// Discard is a Panel that drops every image.
type Discard struct{}

func (Discard) DrawImage(image.Image) error { return nil }
func (Discard) Size() (int, int)            { return 0, 0 }

type Config struct {
	Layout       Layout
	TimeFontSize float64

	// PartialRefresh pushes bitmap-only changes with DrawPartial when the
	// panel supports it. Every FullRefreshEvery partial updates, or
	// whenever text changed, a full refresh is done instead.
	PartialRefresh   bool
	FullRefreshEvery int

	// OnFlush, if set, is called after every successful panel update.
	OnFlush func(partial bool)
}

func DefaultConfig() Config {
	return Config{
		Layout:           DefaultLayout(),
		TimeFontSize:     36,
		PartialRefresh:   true,
		FullRefreshEvery: 20,
	}
}

// Face is the display sink. It is not safe for concurrent use.
type Face struct {
	panel Panel
	cfg   Config

	timeFace font.Face
	textFace font.Face

	bitmap image.Image
	texts  [numRegions]string
	icon   Icon

	canvas    *image1bit.VerticalLSB
	dirty     bool
	textDirty bool
	partials  int
}

func New(panel Panel, cfg Config) (*Face, error) {
	size := cfg.Layout.Size
	if size.X <= 0 || size.Y <= 0 {
		return nil, errors.New("face: layout has no size")
	}
	if w, h := panel.Size(); w != 0 || h != 0 {
		if image.Pt(w, h) != size && image.Pt(h, w) != size {
			return nil, fmt.Errorf("face: layout %v does not fit panel %dx%d", size, w, h)
		}
	}

	ttf, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("face: parse time font: %w", err)
	}

	return &Face{
		panel: panel,
		cfg:   cfg,
		timeFace: truetype.NewFace(ttf, &truetype.Options{
			Size:    cfg.TimeFontSize,
			DPI:     72,
			Hinting: font.HintingFull,
		}),
		textFace:  basicfont.Face7x13,
		canvas:    image1bit.NewVerticalLSB(image.Rect(0, 0, size.X, size.Y)),
		dirty:     true,
		textDirty: true,
	}, nil
}

// Paint replaces the bitmap.
func (f *Face) Paint(img image.Image) {
	f.bitmap = img
	f.dirty = true
}

// SetText replaces the text of a region.
func (f *Face) SetText(r Region, text string) {
	if f.texts[r] == text {
		return
	}
	f.texts[r] = text
	f.dirty = true
	f.textDirty = true
}

func (f *Face) Text(r Region) string {
	return f.texts[r]
}

func (f *Face) SetIcon(icon Icon) {
	if f.icon == icon {
		return
	}
	f.icon = icon
	f.dirty = true
	f.textDirty = true
}

// Release drops the bitmap; the bitmap area is left blank.
func (f *Face) Release() {
	f.bitmap = nil
	f.dirty = true
	f.textDirty = true
}

// Dirty reports whether the next Flush will update the panel.
func (f *Face) Dirty() bool {
	return f.dirty
}

// Flush pushes the composed face to the panel if anything changed since
// the last successful flush.
func (f *Face) Flush() error {
	if !f.dirty {
		return nil
	}
	img := f.compose()

	pp, canPartial := f.panel.(PartialPanel)
	partial := canPartial && f.cfg.PartialRefresh && !f.textDirty && f.partials < f.cfg.FullRefreshEvery

	var err error
	if partial {
		err = pp.DrawPartial(img)
	} else {
		err = f.panel.DrawImage(img)
	}
	if err != nil {
		return fmt.Errorf("face: flush: %w", err)
	}

	if partial {
		f.partials++
	} else {
		f.partials = 0
	}
	f.dirty = false
	f.textDirty = false
	if f.cfg.OnFlush != nil {
		f.cfg.OnFlush(partial)
	}
	return nil
}

// Snapshot returns a copy of the composed face.
func (f *Face) Snapshot() image.Image {
	img := f.compose()
	out := image1bit.NewVerticalLSB(img.Bounds())
	copy(out.Pix, img.Pix)
	return out
}

func (f *Face) compose() *image1bit.VerticalLSB {
	c := f.canvas
	for i := range c.Pix {
		c.Pix[i] = 0xFF
	}

	if f.bitmap != nil {
		r := f.cfg.Layout.Slot(RegionBitmap).Rect
		draw.Draw(c, r, f.bitmap, f.bitmap.Bounds().Min, draw.Src)
	}

	for _, r := range [...]Region{RegionTime, RegionDate, RegionBattery} {
		face := f.textFace
		if r == RegionTime {
			face = f.timeFace
		}
		f.drawText(f.cfg.Layout.Slot(r), f.texts[r], face)
	}

	drawIcon(c, f.cfg.Layout.Slot(RegionBatteryIcon).Rect, f.icon)
	return c
}

func (f *Face) drawText(slot Slot, text string, face font.Face) {
	if text == "" {
		return
	}
	d := font.Drawer{
		Dst:  f.canvas,
		Src:  image.NewUniform(image1bit.Off),
		Face: face,
	}

	width := d.MeasureString(text).Round()
	x := slot.Rect.Min.X
	switch slot.Align {
	case AlignCenter:
		x += (slot.Rect.Dx() - width) / 2
	case AlignRight:
		x = slot.Rect.Max.X - width
	}

	m := face.Metrics()
	y := slot.Rect.Min.Y + (slot.Rect.Dy()+m.Ascent.Round()-m.Descent.Round())/2

	d.Dot = fixed.P(x, y)
	d.DrawString(text)
}
