package frames

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

var monochrome = color.Palette{color.Black, color.White}

// Fit scales img to fit inside size, centers it on a white canvas and
// dithers the result to a 1-bit bitmap. image1bit.On is white.
func Fit(img image.Image, size image.Point) *image1bit.VerticalLSB {
	bounds := image.Rect(0, 0, size.X, size.Y)

	src := img
	if img.Bounds().Size() != size {
		fitted := imaging.Fit(img, size.X, size.Y, imaging.Lanczos)
		src = imaging.PasteCenter(imaging.New(size.X, size.Y, color.White), fitted)
	}

	return Dither(src, bounds)
}

// Dither quantizes src into a 1-bit bitmap covering bounds using
// Floyd-Steinberg error diffusion.
func Dither(src image.Image, bounds image.Rectangle) *image1bit.VerticalLSB {
	paletted := image.NewPaletted(bounds, monochrome)
	draw.FloydSteinberg.Draw(paletted, bounds, src, src.Bounds().Min)

	out := image1bit.NewVerticalLSB(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			out.SetBit(x, y, image1bit.Bit(paletted.ColorIndexAt(x, y) == 1))
		}
	}
	return out
}
