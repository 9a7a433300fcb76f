package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/timschmolka/go-watchface/gesture"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Zone() != gesture.DefaultZone() {
		t.Errorf("Zone = %+v", cfg.Zone())
	}
	if cfg.Playback != 3*time.Second {
		t.Errorf("Playback = %v", cfg.Playback)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend != BackendEPD {
		t.Errorf("Backend = %q", cfg.Backend)
	}
}

func TestParseOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watchface.yaml")
	data := `
backend: term
playback: 5s
animate_idle: true
animations: {play_day: wave}
gesture: {min: [-400, -1000, -800], max: [400, -300, 200]}
accel: {addr: 0x19}
display: {partial_refresh: false}
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Backend != BackendTerm || cfg.Playback != 5*time.Second || !cfg.AnimateIdle {
		t.Errorf("top level = %+v", cfg)
	}
	if cfg.Animations.PlayDay != "wave" || cfg.Animations.IdleNight != "idle-night" {
		t.Errorf("Animations = %+v", cfg.Animations)
	}
	want := gesture.Zone{
		Min: gesture.Sample{X: -400, Y: -1000, Z: -800},
		Max: gesture.Sample{X: 400, Y: -300, Z: 200},
	}
	if cfg.Zone() != want {
		t.Errorf("Zone = %+v", cfg.Zone())
	}
	if cfg.Gesture.Poll != 200*time.Millisecond {
		t.Errorf("gesture poll default lost: %v", cfg.Gesture.Poll)
	}
	if cfg.Accel.Addr != 0x19 || cfg.Accel.Bus != "1" {
		t.Errorf("Accel = %+v", cfg.Accel)
	}
	if cfg.Display.PartialRefresh || cfg.Display.DC != "GPIO25" {
		t.Errorf("Display = %+v", cfg.Display)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"backend", "backend: lcd", "backend"},
		{"playback", "playback: 0s", "playback"},
		{"animation", "animations: {idle_day: \"\"}", "idle_day"},
		{"axes", "gesture: {min: [1, 2]}", "3 values"},
		{"inverted", "gesture: {min: [600, -1200, -900]}", "gesture x"},
		{"poll", "battery: {poll: -1s}", "battery.poll"},
		{"address", "accel: {addr: 0x80}", "accel.addr"},
		{"refresh", "display: {full_refresh_every: 0}", "full_refresh_every"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("err = %v, want ErrInvalid", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestParseUnknownKey(t *testing.T) {
	_, err := Parse([]byte("playbak: 3s"))
	if err == nil || errors.Is(err, ErrInvalid) {
		t.Errorf("err = %v, want a decode error", err)
	}
}

func TestValidateReportsAll(t *testing.T) {
	cfg := Default()
	cfg.Backend = ""
	cfg.Playback = 0
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"backend", "playback"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("%v does not mention %s", err, want)
		}
	}
}
