// Package config loads the watchface daemon settings from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/timschmolka/go-watchface/frames"
	"github.com/timschmolka/go-watchface/gesture"
	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("config: invalid")

const (
	BackendEPD  = "epd"
	BackendTerm = "term"
)

type Config struct {
	Backend     string        `yaml:"backend"`
	Playback    time.Duration `yaml:"playback"`
	AnimateIdle bool          `yaml:"animate_idle"`
	Animations  Animations    `yaml:"animations"`
	Manifest    string        `yaml:"manifest"` // empty for the builtin frames
	Gesture     Gesture       `yaml:"gesture"`
	Battery     Battery       `yaml:"battery"`
	Accel       Accel         `yaml:"accel"`
	Display     Display       `yaml:"display"`
}

// Animations names the frame sequences for each mode.
type Animations struct {
	IdleDay   string `yaml:"idle_day"`
	IdleNight string `yaml:"idle_night"`
	PlayDay   string `yaml:"play_day"`
	PlayNight string `yaml:"play_night"`
}

// Gesture is the raised-wrist box in milli-g, as X, Y, Z triples.
type Gesture struct {
	Min  []int16       `yaml:"min"`
	Max  []int16       `yaml:"max"`
	Poll time.Duration `yaml:"poll"`
}

type Battery struct {
	Supply string        `yaml:"supply"`
	Poll   time.Duration `yaml:"poll"`
}

type Accel struct {
	Bus  string `yaml:"bus"`
	Addr uint16 `yaml:"addr"`
}

type Display struct {
	DC               string `yaml:"dc"`
	CS               string `yaml:"cs"`
	RST              string `yaml:"rst"`
	Busy             string `yaml:"busy"`
	SPIPort          string `yaml:"spi_port"`
	SPIHz            int64  `yaml:"spi_hz"`
	PartialRefresh   bool   `yaml:"partial_refresh"`
	FullRefreshEvery int    `yaml:"full_refresh_every"`
}

func Default() Config {
	zone := gesture.DefaultZone()
	return Config{
		Backend:  BackendEPD,
		Playback: 3 * time.Second,
		Animations: Animations{
			IdleDay:   frames.IdleDay,
			IdleNight: frames.IdleNight,
			PlayDay:   frames.PlayDay,
			PlayNight: frames.PlayNight,
		},
		Gesture: Gesture{
			Min:  []int16{zone.Min.X, zone.Min.Y, zone.Min.Z},
			Max:  []int16{zone.Max.X, zone.Max.Y, zone.Max.Z},
			Poll: 200 * time.Millisecond,
		},
		Battery: Battery{
			Supply: "BAT0",
			Poll:   time.Minute,
		},
		Accel: Accel{
			Bus:  "1",
			Addr: 0x18,
		},
		Display: Display{
			DC:               "GPIO25",
			CS:               "GPIO8",
			RST:              "GPIO17",
			Busy:             "GPIO24",
			SPIHz:            1_000_000,
			PartialRefresh:   true,
			FullRefreshEvery: 20,
		},
	}
}

// Load reads the YAML file at path over the defaults. An empty path
// returns the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every bad value, each wrapping ErrInvalid.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Backend != BackendEPD && c.Backend != BackendTerm {
		bad("backend %q, want %q or %q", c.Backend, BackendEPD, BackendTerm)
	}
	if c.Playback <= 0 {
		bad("playback %v must be positive", c.Playback)
	}
	for _, a := range [...]struct{ name, id string }{
		{"idle_day", c.Animations.IdleDay},
		{"idle_night", c.Animations.IdleNight},
		{"play_day", c.Animations.PlayDay},
		{"play_night", c.Animations.PlayNight},
	} {
		if a.id == "" {
			bad("animations.%s is empty", a.name)
		}
	}
	if len(c.Gesture.Min) != 3 || len(c.Gesture.Max) != 3 {
		bad("gesture min and max need 3 values, got %d and %d", len(c.Gesture.Min), len(c.Gesture.Max))
	} else {
		for i, axis := range "xyz" {
			if c.Gesture.Min[i] > c.Gesture.Max[i] {
				bad("gesture %c: min %d above max %d", axis, c.Gesture.Min[i], c.Gesture.Max[i])
			}
		}
	}
	if c.Gesture.Poll <= 0 {
		bad("gesture.poll %v must be positive", c.Gesture.Poll)
	}
	if c.Battery.Poll <= 0 {
		bad("battery.poll %v must be positive", c.Battery.Poll)
	}
	if c.Accel.Addr > 0x7F {
		bad("accel.addr 0x%X is not a 7-bit address", c.Accel.Addr)
	}
	if c.Display.SPIHz <= 0 {
		bad("display.spi_hz %d must be positive", c.Display.SPIHz)
	}
	if c.Display.PartialRefresh && c.Display.FullRefreshEvery < 1 {
		bad("display.full_refresh_every %d must be at least 1", c.Display.FullRefreshEvery)
	}
	return errors.Join(errs...)
}

// Zone returns the gesture box. Call only on a validated config.
func (c Config) Zone() gesture.Zone {
	g := c.Gesture
	return gesture.Zone{
		Min: gesture.Sample{X: g.Min[0], Y: g.Min[1], Z: g.Min[2]},
		Max: gesture.Sample{X: g.Max[0], Y: g.Max[1], Z: g.Max[2]},
	}
}
