package bh1750

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates neither bus address acknowledged a probe
	ErrNotFound = errors.New("BH1750 not found on I2C bus")

	// ErrOutOfRange indicates an MTreg value outside [31, 254]
	ErrOutOfRange = errors.New("MTreg out of range")

	// ErrInvalidState indicates a command the sensor does not accept in its current power state
	ErrInvalidState = errors.New("invalid sensor state")

	// ErrTransport matches any *TransportError with errors.Is
	ErrTransport = errors.New("I2C transport failure")

	// ErrSaturated indicates every sensitivity tried saturated the sensor
	ErrSaturated = errors.New("all sensitivity options are saturated")
)

// TransportError wraps a failed byte-level write or read without interpreting it.
type TransportError struct {
	Op   string
	Addr uint16
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("BH1750 I2C %s at 0x%02X failed: %v", e.Op, e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}
