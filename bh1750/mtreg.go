package bh1750

import "fmt"

// EncodeMTreg splits a measurement time register value into the two
// commands the sensor expects. They must be sent high first, then low.
func EncodeMTreg(value int) (high byte, low byte, err error) {
	if value < BH1750_MTREG_MIN || value > BH1750_MTREG_MAX {
		return 0, 0, fmt.Errorf("%w: %d not in [%d, %d]", ErrOutOfRange, value, BH1750_MTREG_MIN, BH1750_MTREG_MAX)
	}
	high = BH1750_MTREG_HIGH_BIT | byte(value>>5)
	low = BH1750_MTREG_LOW_BIT | byte(value&0x1F)
	return high, low, nil
}

// DecodeMTreg rebuilds the register value from its two commands.
func DecodeMTreg(high, low byte) int {
	return int(high&0x07)<<5 | int(low&0x1F)
}
