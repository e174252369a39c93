package bus

import (
	"fmt"
	"sync"

	"golang.org/x/exp/io/i2c"
)

// Devfs is a Transport on a Linux i2c-dev character device.
// A device handle is opened lazily for each address used.
type Devfs struct {
	path    string
	mu      sync.Mutex
	devices map[uint16]*i2c.Device
}

func OpenDevfs(path string) *Devfs {
	if path == "" {
		// i2c-1 is the default I2C bus for the Raspberry Pi
		path = "/dev/i2c-1"
	}
	return &Devfs{
		path:    path,
		devices: make(map[uint16]*i2c.Device),
	}
}

func (d *Devfs) device(addr uint16) (*i2c.Device, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if dev, ok := d.devices[addr]; ok {
		return dev, nil
	}
	dev, err := i2c.Open(&i2c.Devfs{Dev: d.path}, int(addr))
	if err != nil {
		return nil, fmt.Errorf("Failed to open %s at 0x%02X: %w", d.path, addr, err)
	}
	d.devices[addr] = dev
	return dev, nil
}

func (d *Devfs) Write(addr uint16, w []byte) error {
	dev, err := d.device(addr)
	if err != nil {
		return err
	}
	return dev.Write(w)
}

func (d *Devfs) Read(addr uint16, r []byte) error {
	dev, err := d.device(addr)
	if err != nil {
		return err
	}
	return dev.Read(r)
}

// Probe issues a zero-length write and reports whether it was acknowledged.
func (d *Devfs) Probe(addr uint16) bool {
	dev, err := d.device(addr)
	if err != nil {
		return false
	}
	return dev.Write([]byte{}) == nil
}

func (d *Devfs) String() string {
	return d.path
}

func (d *Devfs) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var firstErr error
	for addr, dev := range d.devices {
		if err := dev.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(d.devices, addr)
	}
	return firstErr
}
