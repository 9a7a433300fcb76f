package epd

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
)

var palette = color.Palette{color.Black, color.White}

// orient returns img in panel orientation. Landscape images of the
// transposed size are rotated 90 degrees clockwise.
func orient(img image.Image, width, height int) (image.Image, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	switch {
	case w == width && h == height:
		return img, nil
	case w == height && h == width:
		rotated := image.NewRGBA(image.Rect(0, 0, h, w))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				rotated.Set(y, w-x-1, img.At(bounds.Min.X+x, bounds.Min.Y+y))
			}
		}
		return rotated, nil
	default:
		return nil, fmt.Errorf("invalid image dimensions %dx%d: must be %dx%d or %dx%d",
			w, h, width, height, height, width)
	}
}

// pack converts img to the panel's RAM layout: rows of ceil(width/8)
// bytes, MSB first, a set bit is white.
func pack(img image.Image, width, height int) ([]byte, error) {
	src, err := orient(img, width, height)
	if err != nil {
		return nil, err
	}

	bounds := image.Rect(0, 0, width, height)
	paletted := image.NewPaletted(bounds, palette)
	draw.Draw(paletted, bounds, src, src.Bounds().Min, draw.Src)

	lineWidth := (width + 7) / 8
	buf := make([]byte, lineWidth*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if paletted.ColorIndexAt(x, y) == 1 {
				buf[x/8+y*lineWidth] |= 1 << uint(7-x%8)
			}
		}
	}
	return buf, nil
}

// fill returns a full-panel buffer of one color.
func fill(width, height int, white bool) []byte {
	buf := make([]byte, ((width+7)/8)*height)
	if white {
		for i := range buf {
			buf[i] = 0xFF
		}
	}
	return buf
}
