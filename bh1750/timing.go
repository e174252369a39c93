package bh1750

import "time"

// Clock is the time source used to enforce measurement windows.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time        { return time.Now() }
func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }

type pendingMeasurement struct {
	mode   Mode
	mtreg  int
	issued time.Time
}

// RequiredDelay is the minimum time between a mode command and a valid read.
// The base window scales linearly with mtreg / 69.
func RequiredDelay(mode Mode, mtreg int) time.Duration {
	base := BH1750_HIGH_RES_WINDOW
	if mode.Resolution() == RESOLUTION_LOW {
		base = BH1750_LOW_RES_WINDOW
	}
	return base * time.Duration(mtreg) / time.Duration(BH1750_MTREG_DEFAULT)
}

// WaitIfNeeded blocks until the pending measurement window has elapsed.
// It is a no-op when nothing is pending or the window has already passed.
func (bh *BH1750) WaitIfNeeded() {
	bh.Lock()
	defer bh.Unlock()
	bh.waitIfNeeded()
}

func (bh *BH1750) waitIfNeeded() {
	if bh.pending == nil {
		return
	}
	ready := bh.pending.issued.Add(RequiredDelay(bh.pending.mode, bh.pending.mtreg))
	if wait := ready.Sub(bh.clock.Now()); wait > 0 {
		l.Debugf("Waiting %v for %v measurement", wait, bh.pending.mode)
		bh.clock.Sleep(wait)
	}
}
