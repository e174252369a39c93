package bus

import (
	"fmt"
	"io"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// Periph is a Transport on a periph.io I2C bus.
type Periph struct {
	bus i2c.Bus
}

// OpenPeriph initializes the periph host drivers and opens the named bus.
// An empty name selects the default bus, usually /dev/i2c-1.
func OpenPeriph(name string) (*Periph, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host.Init: %w", err)
	}
	b, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("i2creg.Open(%q): %w", name, err)
	}
	return &Periph{bus: b}, nil
}

func NewPeriph(b i2c.Bus) *Periph {
	return &Periph{bus: b}
}

func (p *Periph) Write(addr uint16, w []byte) error {
	return p.bus.Tx(addr, w, nil)
}

func (p *Periph) Read(addr uint16, r []byte) error {
	return p.bus.Tx(addr, nil, r)
}

// Probe reads a single byte; periph rejects empty transactions.
func (p *Periph) Probe(addr uint16) bool {
	return p.bus.Tx(addr, nil, make([]byte, 1)) == nil
}

func (p *Periph) String() string {
	return p.bus.String()
}

func (p *Periph) Close() error {
	if c, ok := p.bus.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
