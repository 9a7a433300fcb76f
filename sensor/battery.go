package sensor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const powerSupplyDir = "/sys/class/power_supply"

// SysfsBattery reads a Linux power supply, e.g.
// /sys/class/power_supply/BAT0.
type SysfsBattery struct {
	Dir string
}

func NewSysfsBattery(supply string) *SysfsBattery {
	return &SysfsBattery{Dir: filepath.Join(powerSupplyDir, supply)}
}

func (b *SysfsBattery) ReadBattery() (BatteryState, error) {
	capacity, err := b.attr("capacity")
	if err != nil {
		return BatteryState{}, err
	}
	percent, err := strconv.Atoi(capacity)
	if err != nil {
		return BatteryState{}, fmt.Errorf("battery: capacity %q: %w", capacity, err)
	}

	status, err := b.attr("status")
	if err != nil {
		return BatteryState{}, err
	}
	return BatteryState{
		Percent:  clampPercent(percent),
		Charging: status == "Charging",
	}, nil
}

func (b *SysfsBattery) attr(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(b.Dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: battery %s", ErrNoDevice, b.Dir)
	}
	if err != nil {
		return "", fmt.Errorf("battery: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
