package bus

import "tinygo.org/x/drivers"

// TinyGo adapts a tinygo.org/x/drivers I2C bus, as provided by machine.I2C0
// on microcontroller boards, to a Transport.
type TinyGo struct {
	bus drivers.I2C
}

func NewTinyGo(b drivers.I2C) *TinyGo {
	return &TinyGo{bus: b}
}

func (t *TinyGo) Write(addr uint16, w []byte) error {
	return t.bus.Tx(addr, w, nil)
}

func (t *TinyGo) Read(addr uint16, r []byte) error {
	return t.bus.Tx(addr, nil, r)
}

// Probe issues a zero-length write and reports whether it was acknowledged.
func (t *TinyGo) Probe(addr uint16) bool {
	return t.bus.Tx(addr, []byte{}, nil) == nil
}

func (t *TinyGo) Close() error {
	return nil
}
