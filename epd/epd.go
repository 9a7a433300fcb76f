// Package epd drives a 2.13" 122x250 SPI e-paper panel.
package epd

import (
	"errors"
	"fmt"
	"image"
	"io"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

const (
	cmdSoftwareReset         byte = 0x12
	cmdDriverOutputControl   byte = 0x01
	cmdDataEntryMode         byte = 0x11
	cmdSetRamXStartEndPos    byte = 0x44
	cmdSetRamYStartEndPos    byte = 0x45
	cmdSetRamXCounter        byte = 0x4E
	cmdSetRamYCounter        byte = 0x4F
	cmdBorderWaveformControl byte = 0x3C
	cmdDisplayUpdateControl1 byte = 0x21
	cmdDisplayUpdateControl2 byte = 0x22
	cmdWriteRAM              byte = 0x24
	cmdWriteBaseRAM          byte = 0x26
	cmdEnterDeepSleep        byte = 0x10

	dataEntryX                       byte = 0x03
	displayUpdateSequence            byte = 0x20
	displayUpdateSequenceNormalMode  byte = 0xF7
	displayUpdateSequencePartialMode byte = 0xFF

	borderFull    byte = 0x05
	borderPartial byte = 0x80

	panelWidth  = 122
	panelHeight = 250

	// spidev rejects transfers larger than its bufsiz, 4096 by default.
	maxTxSize = 4096
)

var ErrBusyTimeout = errors.New("epd: timeout waiting for display to be ready")

type DisplayConfig struct {
	SPIPort string

	DCPin   string
	CSPin   string
	RSTPin  string
	BUSYPin string

	SPIFrequency physic.Frequency
	SPIMode      spi.Mode

	ResetHoldTime  time.Duration
	ResetDelayTime time.Duration
	BusyPollTime   time.Duration
	RefreshTimeout time.Duration

	OnBusyStateChange func(busy bool)
}

func DefaultConfig() DisplayConfig {
	return DisplayConfig{
		DCPin:   "GPIO25",
		CSPin:   "GPIO8",
		RSTPin:  "GPIO17",
		BUSYPin: "GPIO24",

		SPIFrequency: 1 * physic.MegaHertz,
		SPIMode:      spi.Mode0,

		ResetHoldTime:  20 * time.Millisecond,
		ResetDelayTime: 2 * time.Millisecond,
		BusyPollTime:   10 * time.Millisecond,
		RefreshTimeout: 10 * time.Second,
	}
}

// Display is an initialized panel. It satisfies face.Panel and
// face.PartialPanel.
type Display struct {
	port   io.Closer
	conn   spi.Conn
	dc     gpio.PinOut
	cs     gpio.PinOut
	rst    gpio.PinOut
	busy   gpio.PinIn
	width  int
	height int
	config DisplayConfig
	asleep bool
}

func New() (*Display, error) {
	return NewWithConfig(DefaultConfig())
}

func NewWithConfig(config DisplayConfig) (*Display, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init failed: %w", err)
	}

	port, err := spireg.Open(config.SPIPort)
	if err != nil {
		return nil, fmt.Errorf("SPI open failed: %w", err)
	}

	conn, err := port.Connect(config.SPIFrequency, config.SPIMode, 8)
	if err != nil {
		if closeErr := port.Close(); closeErr != nil {
			return nil, fmt.Errorf("SPI connect failed and port close failed: %w", closeErr)
		}
		return nil, fmt.Errorf("SPI connect failed: %w", err)
	}

	dc := gpioreg.ByName(config.DCPin)
	cs := gpioreg.ByName(config.CSPin)
	rst := gpioreg.ByName(config.RSTPin)
	busy := gpioreg.ByName(config.BUSYPin)

	if dc == nil || cs == nil || rst == nil || busy == nil {
		if closeErr := port.Close(); closeErr != nil {
			return nil, fmt.Errorf("GPIO init failed and port close failed: %w", closeErr)
		}
		return nil, errors.New("failed to initialize GPIO pins")
	}

	return newDisplay(port, conn, dc, cs, rst, busy, config)
}

func newDisplay(port io.Closer, conn spi.Conn, dc, cs, rst gpio.PinOut, busy gpio.PinIn, config DisplayConfig) (*Display, error) {
	d := &Display{
		port:   port,
		conn:   conn,
		dc:     dc,
		cs:     cs,
		rst:    rst,
		busy:   busy,
		width:  panelWidth,
		height: panelHeight,
		config: config,
	}

	if err := d.init(); err != nil {
		if closeErr := port.Close(); closeErr != nil {
			return nil, fmt.Errorf("display init failed and close failed: %w", closeErr)
		}
		return nil, fmt.Errorf("display init failed: %w", err)
	}

	return d, nil
}

func (d *Display) reset() error {
	if err := d.setPin(d.rst, gpio.High); err != nil {
		return err
	}
	time.Sleep(d.config.ResetHoldTime)

	if err := d.setPin(d.rst, gpio.Low); err != nil {
		return err
	}
	time.Sleep(d.config.ResetDelayTime)

	if err := d.setPin(d.rst, gpio.High); err != nil {
		return err
	}
	time.Sleep(d.config.ResetHoldTime)
	return nil
}

func (d *Display) waitBusy() error {
	if d.config.OnBusyStateChange != nil {
		d.config.OnBusyStateChange(true)
		defer d.config.OnBusyStateChange(false)
	}

	deadline := time.Now().Add(d.config.RefreshTimeout)
	for {
		if d.busy.Read() == gpio.Low {
			return nil
		}
		if !time.Now().Before(deadline) {
			return ErrBusyTimeout
		}
		time.Sleep(d.config.BusyPollTime)
	}
}

func (d *Display) init() error {
	if err := d.reset(); err != nil {
		return err
	}
	if err := d.waitBusy(); err != nil {
		return err
	}

	if err := d.sendCommand(cmdSoftwareReset); err != nil {
		return err
	}
	if err := d.waitBusy(); err != nil {
		return err
	}

	if err := d.sendCommand(cmdDriverOutputControl, 0xf9, 0x00, 0x00); err != nil {
		return err
	}
	if err := d.sendCommand(cmdDataEntryMode, dataEntryX); err != nil {
		return err
	}
	if err := d.setWindow(0, 0, d.width-1, d.height-1); err != nil {
		return err
	}
	if err := d.setCursor(0, 0); err != nil {
		return err
	}
	if err := d.sendCommand(cmdBorderWaveformControl, borderFull); err != nil {
		return err
	}
	if err := d.sendCommand(cmdDisplayUpdateControl1, 0x00, 0x80); err != nil {
		return err
	}

	d.asleep = false
	return d.waitBusy()
}

func (d *Display) setWindow(xStart, yStart, xEnd, yEnd int) error {
	if err := d.sendCommand(cmdSetRamXStartEndPos,
		byte((xStart>>3)&0xFF),
		byte((xEnd>>3)&0xFF),
	); err != nil {
		return err
	}
	return d.sendCommand(cmdSetRamYStartEndPos,
		byte(yStart&0xFF), byte((yStart>>8)&0xFF),
		byte(yEnd&0xFF), byte((yEnd>>8)&0xFF),
	)
}

func (d *Display) setCursor(x, y int) error {
	if err := d.sendCommand(cmdSetRamXCounter, byte((x>>3)&0xFF)); err != nil {
		return err
	}
	return d.sendCommand(cmdSetRamYCounter, byte(y&0xFF), byte((y>>8)&0xFF))
}

// wake re-initializes the controller after Sleep.
func (d *Display) wake() error {
	if !d.asleep {
		return nil
	}
	return d.init()
}

// DrawImage shows img with a full refresh. img must be 122x250, or
// 250x122 to be rotated. The image is also written as the base for
// following partial updates.
func (d *Display) DrawImage(img image.Image) error {
	buf, err := pack(img, d.width, d.height)
	if err != nil {
		return err
	}
	if err := d.wake(); err != nil {
		return err
	}

	if err := d.writeRAM(cmdWriteRAM, buf); err != nil {
		return err
	}
	if err := d.writeRAM(cmdWriteBaseRAM, buf); err != nil {
		return err
	}
	return d.update(displayUpdateSequenceNormalMode)
}

// DrawPartial shows img with a partial refresh, which is faster and does
// not flash but slowly accumulates ghosting. Callers should interleave
// full refreshes.
func (d *Display) DrawPartial(img image.Image) error {
	buf, err := pack(img, d.width, d.height)
	if err != nil {
		return err
	}
	if err := d.wake(); err != nil {
		return err
	}

	if err := d.setPin(d.rst, gpio.Low); err != nil {
		return err
	}
	time.Sleep(d.config.ResetDelayTime)
	if err := d.setPin(d.rst, gpio.High); err != nil {
		return err
	}

	if err := d.sendCommand(cmdBorderWaveformControl, borderPartial); err != nil {
		return err
	}
	if err := d.sendCommand(cmdDisplayUpdateControl1, 0x00, 0x80); err != nil {
		return err
	}
	if err := d.sendCommand(cmdDataEntryMode, dataEntryX); err != nil {
		return err
	}
	if err := d.setWindow(0, 0, d.width-1, d.height-1); err != nil {
		return err
	}
	if err := d.writeRAM(cmdWriteRAM, buf); err != nil {
		return err
	}
	return d.update(displayUpdateSequencePartialMode)
}

func (d *Display) writeRAM(cmd byte, buf []byte) error {
	if err := d.setCursor(0, 0); err != nil {
		return err
	}
	if err := d.sendCommand(cmd); err != nil {
		return err
	}
	return d.sendDataBulk(buf)
}

func (d *Display) update(sequence byte) error {
	if err := d.sendCommand(cmdDisplayUpdateControl2, sequence); err != nil {
		return err
	}
	if err := d.sendCommand(displayUpdateSequence); err != nil {
		return err
	}
	return d.waitBusy()
}

// Clear fills the panel with white or black using a full refresh.
func (d *Display) Clear(white bool) error {
	if err := d.wake(); err != nil {
		return err
	}
	buf := fill(d.width, d.height, white)
	if err := d.writeRAM(cmdWriteRAM, buf); err != nil {
		return err
	}
	if err := d.writeRAM(cmdWriteBaseRAM, buf); err != nil {
		return err
	}
	return d.update(displayUpdateSequenceNormalMode)
}

// Sleep puts the controller into deep sleep. The next draw wakes it.
func (d *Display) Sleep() error {
	if err := d.sendCommand(cmdEnterDeepSleep, 0x01); err != nil {
		return err
	}
	d.asleep = true
	return nil
}

func (d *Display) Size() (int, int) {
	return d.width, d.height
}

func (d *Display) Bounds() image.Rectangle {
	return image.Rect(0, 0, d.width, d.height)
}

func (d *Display) Close() error {
	if err := d.Sleep(); err != nil {
		return err
	}
	return d.port.Close()
}

func (d *Display) setPin(pin gpio.PinOut, level gpio.Level) error {
	if err := pin.Out(level); err != nil {
		return fmt.Errorf("failed to set pin: %w", err)
	}
	return nil
}

// sendCommand sends cmd followed by its parameter bytes.
func (d *Display) sendCommand(cmd byte, params ...byte) error {
	if err := d.setPin(d.dc, gpio.Low); err != nil {
		return err
	}
	if err := d.setPin(d.cs, gpio.Low); err != nil {
		return err
	}
	if err := d.conn.Tx([]byte{cmd}, nil); err != nil {
		return fmt.Errorf("command 0x%02X failed: %w", cmd, err)
	}
	if err := d.setPin(d.cs, gpio.High); err != nil {
		return err
	}
	if len(params) == 0 {
		return nil
	}
	return d.sendDataBulk(params)
}

func (d *Display) sendDataBulk(data []byte) error {
	if err := d.setPin(d.dc, gpio.High); err != nil {
		return fmt.Errorf("DC pin set failed: %w", err)
	}
	if err := d.setPin(d.cs, gpio.Low); err != nil {
		return fmt.Errorf("CS pin set failed: %w", err)
	}
	for len(data) > 0 {
		n := min(len(data), maxTxSize)
		if err := d.conn.Tx(data[:n], nil); err != nil {
			return fmt.Errorf("bulk data transmission failed: %w", err)
		}
		data = data[n:]
	}
	return d.setPin(d.cs, gpio.High)
}
