package face

import "image"

// Region names an area of the face.
type Region uint8

const (
	RegionTime Region = iota
	RegionDate
	RegionBattery
	RegionBatteryIcon
	RegionBitmap

	numRegions
)

// Align is the horizontal placement of text inside its region.
type Align uint8

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

// Slot is the rectangle and text alignment of one region.
type Slot struct {
	Rect  image.Rectangle
	Align Align
}

// Layout places every region on a canvas of Size.
type Layout struct {
	Size  image.Point
	Slots [numRegions]Slot
}

// DefaultLayout is a portrait layout for a 122x250 panel: battery row,
// large time, date, then the bitmap filling the rest.
func DefaultLayout() Layout {
	const w, h = 122, 250
	var l Layout
	l.Size = image.Pt(w, h)
	l.Slots[RegionBatteryIcon] = Slot{Rect: image.Rect(3, 3, 23, 13)}
	l.Slots[RegionBattery] = Slot{Rect: image.Rect(26, 0, w-3, 16), Align: AlignRight}
	l.Slots[RegionTime] = Slot{Rect: image.Rect(0, 16, w, 58), Align: AlignCenter}
	l.Slots[RegionDate] = Slot{Rect: image.Rect(0, 58, w, 76), Align: AlignCenter}
	l.Slots[RegionBitmap] = Slot{Rect: image.Rect(0, 80, w, h)}
	return l
}

// Slot returns the slot of r.
func (l Layout) Slot(r Region) Slot {
	return l.Slots[r]
}

// BitmapSize is the size frames should be fitted to.
func (l Layout) BitmapSize() image.Point {
	return l.Slots[RegionBitmap].Rect.Size()
}
