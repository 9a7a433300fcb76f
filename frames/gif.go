package frames

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"io"
	"time"
)

// Frames without a usable delay are shown for this long. GIF delays of 0
// or 1 hundredths get it too, the way browsers treat them.
const minFrameDelay = 100 * time.Millisecond

// DecodeGIF decodes an animated GIF into a sequence of fully composed
// frames fitted to size.
func DecodeGIF(id string, r io.Reader, size image.Point) (*Sequence, error) {
	g, err := gif.DecodeAll(r)
	if err != nil {
		return nil, fmt.Errorf("%s: decode gif: %w", id, err)
	}
	if len(g.Image) == 0 {
		return nil, fmt.Errorf("%s: %w", id, errEmpty)
	}

	canvasRect := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if canvasRect.Empty() {
		canvasRect = g.Image[0].Bounds()
	}
	canvas := image.NewRGBA(canvasRect)
	draw.Draw(canvas, canvasRect, image.NewUniform(color.White), image.Point{}, draw.Src)

	frames := make([]Frame, 0, len(g.Image))
	for i, src := range g.Image {
		var previous *image.RGBA
		disposal := byte(gif.DisposalNone)
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}
		if disposal == gif.DisposalPrevious {
			previous = image.NewRGBA(canvasRect)
			draw.Draw(previous, canvasRect, canvas, canvasRect.Min, draw.Src)
		}

		draw.Draw(canvas, src.Bounds(), src, src.Bounds().Min, draw.Over)

		delay := 0
		if i < len(g.Delay) {
			delay = g.Delay[i]
		}
		frames = append(frames, Frame{
			Image: Fit(canvas, size),
			Delay: gifDelayDuration(delay),
		})

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, src.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			draw.Draw(canvas, canvasRect, previous, canvasRect.Min, draw.Src)
		}
	}

	return Animated(id, frames)
}

// gifDelayDuration converts a delay in hundredths of a second.
func gifDelayDuration(delay int) time.Duration {
	if delay <= 1 {
		return minFrameDelay
	}
	return time.Second / 100 * time.Duration(delay)
}
