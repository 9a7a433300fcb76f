package sensor

import (
	"fmt"

	"github.com/timschmolka/go-watchface/gesture"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

const (
	regWhoAmI   byte = 0x0F
	regCtrl1    byte = 0x20
	regCtrl4    byte = 0x23
	regCtrl5    byte = 0x24
	regOutXL    byte = 0x28
	regFIFOCtrl byte = 0x2E
	regFIFOSrc  byte = 0x2F

	whoAmI = 0x33

	autoIncrement byte = 0x80

	ctrl1Rate50HzXYZ byte = 0x47
	ctrl4BDUHighRes  byte = 0x88
	ctrl5FIFOEnable  byte = 0x40
	fifoStreamMode   byte = 0x80

	fifoOverrun byte = 0x40
	fifoEmpty   byte = 0x20
	fifoCount   byte = 0x1F
	fifoDepth        = 32

	DefaultAddr uint16 = 0x18
)

// LIS3DH is an ST LIS3DH accelerometer sampling at 50 Hz into its FIFO.
type LIS3DH struct {
	bus i2c.BusCloser
	dev conn.Conn
}

// OpenLIS3DH opens the named I2C bus ("" for the first one) and
// configures the sensor at addr.
func OpenLIS3DH(busName string, addr uint16) (*LIS3DH, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init failed: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("I2C open failed: %w", err)
	}
	l, err := newLIS3DH(bus, &i2c.Dev{Bus: bus, Addr: addr})
	if err != nil {
		if closeErr := bus.Close(); closeErr != nil {
			return nil, fmt.Errorf("%w (bus close: %v)", err, closeErr)
		}
		return nil, err
	}
	return l, nil
}

func newLIS3DH(bus i2c.BusCloser, dev conn.Conn) (*LIS3DH, error) {
	l := &LIS3DH{bus: bus, dev: dev}

	id, err := l.read(regWhoAmI, 1)
	if err != nil {
		return nil, fmt.Errorf("%w: lis3dh: %v", ErrNoDevice, err)
	}
	if id[0] != whoAmI {
		return nil, fmt.Errorf("%w: lis3dh: unexpected id 0x%02X", ErrNoDevice, id[0])
	}

	for _, w := range [][2]byte{
		{regCtrl1, ctrl1Rate50HzXYZ},
		{regCtrl4, ctrl4BDUHighRes},
		{regCtrl5, ctrl5FIFOEnable},
		{regFIFOCtrl, fifoStreamMode},
	} {
		if err := l.write(w[0], w[1]); err != nil {
			return nil, fmt.Errorf("lis3dh: configure 0x%02X: %w", w[0], err)
		}
	}
	return l, nil
}

func (l *LIS3DH) read(reg byte, n int) ([]byte, error) {
	if n > 1 {
		reg |= autoIncrement
	}
	r := make([]byte, n)
	if err := l.dev.Tx([]byte{reg}, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (l *LIS3DH) write(reg, b byte) error {
	return l.dev.Tx([]byte{reg, b}, nil)
}

// ReadBatch drains the FIFO. Samples are in milli-g.
func (l *LIS3DH) ReadBatch() ([]gesture.Sample, error) {
	src, err := l.read(regFIFOSrc, 1)
	if err != nil {
		return nil, fmt.Errorf("lis3dh: fifo status: %w", err)
	}
	n := fifoLevel(src[0])
	if n == 0 {
		return nil, nil
	}

	// the output registers wrap back to OUT_X_L while the FIFO is on
	raw, err := l.read(regOutXL, n*6)
	if err != nil {
		return nil, fmt.Errorf("lis3dh: fifo read: %w", err)
	}
	return decodeSamples(raw), nil
}

func (l *LIS3DH) Close() error {
	if err := l.write(regCtrl1, 0); err != nil {
		return err
	}
	return l.bus.Close()
}

func fifoLevel(src byte) int {
	switch {
	case src&fifoOverrun != 0:
		return fifoDepth
	case src&fifoEmpty != 0:
		return 0
	default:
		return int(src & fifoCount)
	}
}

// decodeSamples converts little endian, left justified 12-bit readings
// at 1 mg per digit.
func decodeSamples(raw []byte) []gesture.Sample {
	out := make([]gesture.Sample, 0, len(raw)/6)
	for i := 0; i+6 <= len(raw); i += 6 {
		out = append(out, gesture.Sample{
			X: axis(raw[i], raw[i+1]),
			Y: axis(raw[i+2], raw[i+3]),
			Z: axis(raw[i+4], raw[i+5]),
		})
	}
	return out
}

func axis(lo, hi byte) int16 {
	return int16(uint16(lo)|uint16(hi)<<8) >> 4
}
