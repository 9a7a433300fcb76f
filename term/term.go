// Package term previews the watchface in a terminal. The 1-bit face is
// drawn with braille characters, one cell per 2x4 pixels, and a few keys
// stand in for the wrist sensors.
package term

import (
	"image"
	"image/color"
	"sync"

	"github.com/gdamore/tcell/v2"
)

// Action is what a key press asks the preview to do.
type Action int

const (
	ActionNone Action = iota
	ActionFlick
	ActionToggleCharging
	ActionBatteryUp
	ActionBatteryDown
	ActionQuit
)

const (
	cellWidth  = 2
	cellHeight = 4

	help = "f/space flick  c charge  +/- battery  q quit"
)

// braille dot bit for pixel (x, y) inside a cell
var dots = [cellWidth][cellHeight]rune{
	{0x01, 0x02, 0x04, 0x40},
	{0x08, 0x10, 0x20, 0x80},
}

var (
	paperStyle = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorWhite)
	helpStyle  = tcell.StyleDefault.Foreground(tcell.ColorGray)
)

// Panel draws faces onto a tcell screen. DrawImage and Poll may be
// called from different goroutines.
type Panel struct {
	screen        tcell.Screen
	width, height int

	mu   sync.Mutex
	last image.Image
}

// New wraps an initialized screen. width and height are the size of the
// faces that will be drawn, in pixels.
func New(screen tcell.Screen, width, height int) *Panel {
	return &Panel{screen: screen, width: width, height: height}
}

// Open initializes the terminal and returns a panel on it.
func Open(width, height int) (*Panel, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	screen.HideCursor()
	return New(screen, width, height), nil
}

func (p *Panel) Size() (int, int) {
	return p.width, p.height
}

func (p *Panel) DrawImage(img image.Image) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = img
	p.render()
	return nil
}

// render must be called with mu held.
func (p *Panel) render() {
	p.screen.Clear()
	if p.last == nil {
		p.screen.Show()
		return
	}

	b := p.last.Bounds()
	cols := (b.Dx() + cellWidth - 1) / cellWidth
	rows := (b.Dy() + cellHeight - 1) / cellHeight
	for cy := 0; cy < rows; cy++ {
		for cx := 0; cx < cols; cx++ {
			p.screen.SetContent(cx, cy, cell(p.last, b.Min.X+cx*cellWidth, b.Min.Y+cy*cellHeight), nil, paperStyle)
		}
	}
	for i, r := range help {
		p.screen.SetContent(i, rows+1, r, nil, helpStyle)
	}
	p.screen.Show()
}

// cell returns the braille rune whose dots mark the ink pixels of the
// cell with top left corner (x0, y0).
func cell(img image.Image, x0, y0 int) rune {
	b := img.Bounds()
	r := rune(0x2800)
	for dx := 0; dx < cellWidth; dx++ {
		for dy := 0; dy < cellHeight; dy++ {
			pt := image.Pt(x0+dx, y0+dy)
			if !pt.In(b) {
				continue
			}
			if color.GrayModel.Convert(img.At(pt.X, pt.Y)).(color.Gray).Y < 0x80 {
				r |= dots[dx][dy]
			}
		}
	}
	return r
}

// Poll reads terminal events until the user quits or the screen is
// closed, passing every key action to handle. It redraws the last face
// on resize.
func (p *Panel) Poll(handle func(Action)) {
	for {
		ev := p.screen.PollEvent()
		switch ev := ev.(type) {
		case nil:
			return
		case *tcell.EventResize:
			p.mu.Lock()
			p.screen.Sync()
			p.render()
			p.mu.Unlock()
		case *tcell.EventKey:
			a := actionFor(ev.Key(), ev.Rune(), ev.Modifiers())
			if a == ActionNone {
				continue
			}
			handle(a)
			if a == ActionQuit {
				return
			}
		}
	}
}

func actionFor(key tcell.Key, r rune, mod tcell.ModMask) Action {
	switch key {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return ActionQuit
	case tcell.KeyRune:
	default:
		return ActionNone
	}
	if mod&(tcell.ModCtrl|tcell.ModAlt) != 0 {
		return ActionNone
	}
	switch r {
	case 'f', ' ':
		return ActionFlick
	case 'c':
		return ActionToggleCharging
	case '+', '=':
		return ActionBatteryUp
	case '-':
		return ActionBatteryDown
	case 'q':
		return ActionQuit
	}
	return ActionNone
}

// Close restores the terminal.
func (p *Panel) Close() error {
	p.screen.Fini()
	return nil
}
