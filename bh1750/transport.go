package bh1750

// Transport is the byte-level I2C capability the driver runs on.
// It is borrowed, not owned: several sensors may share one bus, and callers
// sharing it must serialize access themselves.
type Transport interface {
	// Write sends w to the device at the 7-bit address addr.
	Write(addr uint16, w []byte) error
	// Read fills r with len(r) bytes from the device at addr.
	Read(addr uint16, r []byte) error
	// Probe reports whether a device acknowledges at addr.
	Probe(addr uint16) bool
}

// ResolveAddress returns the first of 0x23 and 0x5C that acknowledges a probe.
func ResolveAddress(t Transport) (uint16, error) {
	for _, addr := range []uint16{BH1750_ADDR_LOW, BH1750_ADDR_HIGH} {
		if t.Probe(addr) {
			l.Debugf("BH1750 acknowledged at 0x%02X", addr)
			return addr, nil
		}
	}
	return 0, ErrNotFound
}
