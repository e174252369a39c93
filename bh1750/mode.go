package bh1750

import (
	"fmt"
	"strings"
)

// Mode is a measurement mode, its value is the command byte sent to the sensor.
type Mode byte

// Resolution is the nominal lux granularity of a measurement mode.
type Resolution int

const (
	RESOLUTION_HIGH   Resolution = iota // 1 lx
	RESOLUTION_HIGH_2                   // 0.5 lx
	RESOLUTION_LOW                      // 4 lx
)

type PowerState int

const (
	POWERED_DOWN PowerState = iota
	POWERED_ON
)

var modeNames = map[Mode]string{
	BH1750_CONTINUOUS_HIGH_RES:   "continuous-high",
	BH1750_CONTINUOUS_HIGH_RES_2: "continuous-high2",
	BH1750_CONTINUOUS_LOW_RES:    "continuous-low",
	BH1750_ONE_SHOT_HIGH_RES:     "one-shot-high",
	BH1750_ONE_SHOT_HIGH_RES_2:   "one-shot-high2",
	BH1750_ONE_SHOT_LOW_RES:      "one-shot-low",
}

// Modes lists every measurement mode the sensor supports.
func Modes() []Mode {
	return []Mode{
		BH1750_CONTINUOUS_HIGH_RES,
		BH1750_CONTINUOUS_HIGH_RES_2,
		BH1750_CONTINUOUS_LOW_RES,
		BH1750_ONE_SHOT_HIGH_RES,
		BH1750_ONE_SHOT_HIGH_RES_2,
		BH1750_ONE_SHOT_LOW_RES,
	}
}

func (m Mode) Valid() bool {
	_, ok := modeNames[m]
	return ok
}

// Command returns the wire byte for the mode.
func (m Mode) Command() byte {
	return byte(m)
}

// OneShot reports whether the sensor powers down after a single measurement.
func (m Mode) OneShot() bool {
	return byte(m)&0xF0 == 0x20
}

func (m Mode) Continuous() bool {
	return byte(m)&0xF0 == 0x10
}

func (m Mode) Resolution() Resolution {
	switch byte(m) & 0x0F {
	case 0x01:
		return RESOLUTION_HIGH_2
	case 0x03:
		return RESOLUTION_LOW
	default:
		return RESOLUTION_HIGH
	}
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(0x%02X)", byte(m))
}

// ParseMode accepts a mode name (see String) or its command byte, e.g. "0x20".
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for m, name := range modeNames {
		if s == name || s == fmt.Sprintf("0x%02x", byte(m)) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown measurement mode %q", s)
}
