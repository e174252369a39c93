package bh1750

// ConvertLux scales a raw reading to lux: (raw / 1.2) * (69 / mtreg),
// halved for the 0.5 lx resolution modes. A saturated reading (0xFFFF)
// goes through the same formula.
func ConvertLux(raw uint16, mtreg int, res Resolution) float64 {
	lux := (float64(raw) / BH1750_LUX_DF) * (float64(BH1750_MTREG_DEFAULT) / float64(mtreg))
	if res == RESOLUTION_HIGH_2 {
		lux /= 2.0
	}
	return lux
}

// Saturated reports whether the data register hit its upper bound.
func Saturated(raw uint16) bool {
	return raw == 0xFFFF
}
