package bh1750

// MTreg candidates, most sensitive first
var sensitivityOptions = []int{BH1750_MTREG_MAX, 138, BH1750_MTREG_DEFAULT, BH1750_MTREG_MIN}

// SetOptimalSensitivity takes one reading per candidate MTreg and keeps the
// most sensitive one that does not saturate the data register. When every option
// saturates it falls back to the minimum MTreg and returns ErrSaturated.
func (bh *BH1750) SetOptimalSensitivity() error {
	bh.Lock()
	defer bh.Unlock()

	for _, mtreg := range sensitivityOptions {
		if err := bh.setSensitivity(mtreg); err != nil {
			return err
		}
		// Trigger a measurement taken with the new integration time
		if bh.pending == nil || bh.pending.mtreg != mtreg {
			if err := bh.setMode(bh.mode); err != nil {
				return err
			}
		}
		l.Debugf("Attempting - MTreg: %d, Mode: %v", mtreg, bh.mode)
		raw, err := bh.readRaw()
		if err != nil {
			return err
		}
		if Saturated(raw) {
			continue
		}
		l.Debugf("Set - MTreg: %d, Mode: %v", mtreg, bh.mode)
		return nil
	}

	// Use the least sensitive option
	if err := bh.setSensitivity(BH1750_MTREG_MIN); err != nil {
		return err
	}
	return ErrSaturated
}
