package bh1750

import "time"

const (
	BH1750_ADDR_LOW  uint16 = 0x23 ///< ADDR pin low or floating (default)
	BH1750_ADDR_HIGH uint16 = 0x5C ///< ADDR pin high

	BH1750_POWER_DOWN byte = 0x00 ///< No active state
	BH1750_POWER_ON   byte = 0x01 ///< Waiting for a measurement command
	BH1750_RESET      byte = 0x07 ///< Reset the data register, not accepted in power down

	BH1750_MTREG_HIGH_BIT byte = 0x40 ///< 01000_MT[7:5]: measurement time, high bits
	BH1750_MTREG_LOW_BIT  byte = 0x60 ///< 011_MT[4:0]: measurement time, low bits

	BH1750_MTREG_MIN     int = 31  ///< Lowest sensitivity, shortest integration
	BH1750_MTREG_MAX     int = 254 ///< Highest sensitivity, longest integration
	BH1750_MTREG_DEFAULT int = 69  ///< Datasheet default, defines the 1.2 counts/lx scale

	BH1750_LUX_DF float64 = 1.2 ///< Counts per lux at the default MTreg
)

// Measurement modes. The high nibble selects the shot kind, the low bits the resolution.
const (
	BH1750_CONTINUOUS_HIGH_RES   Mode = 0x10 // 1 lx, ~120 ms
	BH1750_CONTINUOUS_HIGH_RES_2 Mode = 0x11 // 0.5 lx, ~120 ms
	BH1750_CONTINUOUS_LOW_RES    Mode = 0x13 // 4 lx, ~16 ms
	BH1750_ONE_SHOT_HIGH_RES     Mode = 0x20 // 1 lx, ~120 ms, then power down
	BH1750_ONE_SHOT_HIGH_RES_2   Mode = 0x21 // 0.5 lx, ~120 ms, then power down
	BH1750_ONE_SHOT_LOW_RES      Mode = 0x23 // 4 lx, ~16 ms, then power down
)

// Typical measurement windows at the default MTreg
const (
	BH1750_HIGH_RES_WINDOW = 120 * time.Millisecond
	BH1750_LOW_RES_WINDOW  = 16 * time.Millisecond

	// Settle time after power on and reset
	BH1750_COMMAND_DELAY = 5 * time.Millisecond
)

func ResolutionToString(value Resolution) string {
	switch value {
	case RESOLUTION_HIGH:
		return "1 lx"
	case RESOLUTION_HIGH_2:
		return "0.5 lx"
	case RESOLUTION_LOW:
		return "4 lx"
	default:
		return "Unknown"
	}
}

func PowerStateToString(value PowerState) string {
	switch value {
	case POWERED_DOWN:
		return "Powered down"
	case POWERED_ON:
		return "Powered on"
	default:
		return "Unknown"
	}
}
