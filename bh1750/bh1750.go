package bh1750

/*
 * bh1750 - Package for interacting with BH1750 ambient light sensors.
 *
 * Ref:
 * https://www.mouser.com/datasheet/2/348/bh1750fvi-e-186247.pdf
 *
 * A BH1750 is not safe for concurrent use across sensors that share a
 * Transport; callers sharing one bus must serialize access.
 */

import (
	"encoding/binary"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var l *logrus.Logger

func init() {
	l = logrus.New()
	l.Formatter = &logrus.JSONFormatter{}
	l.SetOutput(os.Stdout)
	l.SetLevel(levelFromEnv())
}

// LOG_LEVEL accepts the same names as the service configuration
func levelFromEnv() logrus.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// SetLogger replaces the package logger.
func SetLogger(logger *logrus.Logger) {
	if logger != nil {
		l = logger
	}
}

// Config holds construction parameters. Zero values select the defaults:
// autodetected address, continuous high resolution, MTreg 69, wall clock.
type Config struct {
	Address uint16
	Mode    Mode
	MTreg   int
	Clock   Clock
}

// Reading is a single converted measurement and the settings it was taken with.
type Reading struct {
	Raw   uint16
	Lux   float64
	Mode  Mode
	MTreg int
}

type BH1750 struct {
	transport Transport
	clock     Clock
	addr      uint16
	mode      Mode
	mtreg     int
	powered   bool
	measuring bool // a mode command is in effect since the last power down
	pending   *pendingMeasurement
	*sync.Mutex
}

// Connect to a BH1750 on the transport, then power on, reset and apply the
// configured sensitivity and mode.
func NewBH1750(t Transport, cfg Config) (*BH1750, error) {
	if cfg.Mode == 0 {
		cfg.Mode = BH1750_CONTINUOUS_HIGH_RES
	}
	if !cfg.Mode.Valid() {
		return nil, fmt.Errorf("unsupported measurement mode %v", cfg.Mode)
	}
	if cfg.MTreg == 0 {
		cfg.MTreg = BH1750_MTREG_DEFAULT
	}
	if _, _, err := EncodeMTreg(cfg.MTreg); err != nil {
		return nil, err
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}

	addr := cfg.Address
	if addr == 0 {
		var err error
		addr, err = ResolveAddress(t)
		if err != nil {
			return nil, err
		}
	}

	bh := &BH1750{
		transport: t,
		clock:     cfg.Clock,
		addr:      addr,
		mode:      cfg.Mode,
		mtreg:     BH1750_MTREG_DEFAULT,
		Mutex:     &sync.Mutex{},
	}
	if err := bh.PowerOn(); err != nil {
		return nil, fmt.Errorf("Failed to power on: %w", err)
	}
	if err := bh.Reset(); err != nil {
		return nil, fmt.Errorf("Failed to reset: %w", err)
	}
	if err := bh.SetSensitivity(cfg.MTreg); err != nil {
		return nil, fmt.Errorf("Failed to set MTreg: %w", err)
	}
	if err := bh.SetMode(cfg.Mode); err != nil {
		return nil, fmt.Errorf("Failed to set mode: %w", err)
	}
	l.Debugf("BH1750 ready at 0x%02X, mode %v, MTreg %d", addr, cfg.Mode, cfg.MTreg)
	return bh, nil
}

func (bh *BH1750) Address() uint16 {
	return bh.addr
}

func (bh *BH1750) Mode() Mode {
	bh.Lock()
	defer bh.Unlock()
	return bh.mode
}

func (bh *BH1750) Sensitivity() int {
	bh.Lock()
	defer bh.Unlock()
	return bh.mtreg
}

func (bh *BH1750) PowerState() PowerState {
	bh.Lock()
	defer bh.Unlock()
	if bh.powered {
		return POWERED_ON
	}
	return POWERED_DOWN
}

// Pending reports whether a measurement has been triggered but not yet read.
func (bh *BH1750) Pending() bool {
	bh.Lock()
	defer bh.Unlock()
	return bh.pending != nil
}

// Power on the sensor
func (bh *BH1750) PowerOn() error {
	bh.Lock()
	defer bh.Unlock()
	return bh.powerOn()
}

// Power down the sensor, any measurement in flight is discarded
func (bh *BH1750) PowerDown() error {
	bh.Lock()
	defer bh.Unlock()

	if err := bh.writeCmd(BH1750_POWER_DOWN); err != nil {
		return err
	}
	bh.powered = false
	bh.measuring = false
	bh.pending = nil
	return nil
}

// Reset the data register. The sensor must be powered on.
func (bh *BH1750) Reset() error {
	bh.Lock()
	defer bh.Unlock()

	if !bh.powered {
		return fmt.Errorf("%w: reset requires the sensor to be powered on", ErrInvalidState)
	}
	if err := bh.writeCmd(BH1750_RESET); err != nil {
		return err
	}
	bh.clock.Sleep(BH1750_COMMAND_DELAY)
	return nil
}

// Set the measurement mode, powering on first if needed
func (bh *BH1750) SetMode(mode Mode) error {
	bh.Lock()
	defer bh.Unlock()
	return bh.setMode(mode)
}

// Set the measurement time register. In a continuous mode the mode command
// is sent again so the new integration time takes effect.
func (bh *BH1750) SetSensitivity(mtreg int) error {
	bh.Lock()
	defer bh.Unlock()
	return bh.setSensitivity(mtreg)
}

// Read the raw 16-bit data register, triggering a new one-shot measurement if needed
func (bh *BH1750) ReadRaw() (uint16, error) {
	bh.Lock()
	defer bh.Unlock()
	return bh.readRaw()
}

// Read a measurement and convert it to lux
func (bh *BH1750) ReadMeasurement() (Reading, error) {
	bh.Lock()
	defer bh.Unlock()

	raw, err := bh.readRaw()
	if err != nil {
		return Reading{}, err
	}
	return Reading{
		Raw:   raw,
		Lux:   ConvertLux(raw, bh.mtreg, bh.mode.Resolution()),
		Mode:  bh.mode,
		MTreg: bh.mtreg,
	}, nil
}

// Read the ambient light in lux
func (bh *BH1750) ReadLux() (float64, error) {
	reading, err := bh.ReadMeasurement()
	if err != nil {
		return 0, err
	}
	return reading.Lux, nil
}

func (bh *BH1750) powerOn() error {
	if err := bh.writeCmd(BH1750_POWER_ON); err != nil {
		return err
	}
	bh.powered = true
	bh.clock.Sleep(BH1750_COMMAND_DELAY)
	return nil
}

func (bh *BH1750) setMode(mode Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("unsupported measurement mode %v", mode)
	}
	if !bh.powered {
		if err := bh.powerOn(); err != nil {
			return err
		}
	}
	if err := bh.writeCmd(mode.Command()); err != nil {
		return err
	}
	bh.mode = mode
	bh.measuring = true
	bh.pending = &pendingMeasurement{
		mode:   mode,
		mtreg:  bh.mtreg,
		issued: bh.clock.Now(),
	}
	return nil
}

func (bh *BH1750) setSensitivity(mtreg int) error {
	high, low, err := EncodeMTreg(mtreg)
	if err != nil {
		return err
	}
	if err := bh.writeCmd(high); err != nil {
		return err
	}
	if err := bh.writeCmd(low); err != nil {
		return err
	}
	bh.mtreg = mtreg

	// A one-shot measurement in flight was integrated with the old MTreg and
	// powers the sensor down when it completes; the next read re-triggers.
	if bh.mode.OneShot() && bh.pending != nil && bh.pending.mtreg != mtreg {
		bh.pending = nil
		bh.powered = false
		bh.measuring = false
	}

	if bh.powered && bh.measuring && bh.mode.Continuous() {
		return bh.setMode(bh.mode)
	}
	return nil
}

func (bh *BH1750) readRaw() (uint16, error) {
	if bh.mode.OneShot() && bh.pending == nil {
		if err := bh.setMode(bh.mode); err != nil {
			return 0, err
		}
	}
	bh.waitIfNeeded()

	buf := make([]byte, 2)
	if err := bh.transport.Read(bh.addr, buf); err != nil {
		return 0, &TransportError{Op: "read", Addr: bh.addr, Err: err}
	}
	raw := binary.BigEndian.Uint16(buf)
	l.Debugf("Bytes read: %v, raw: %d", buf, raw)

	bh.pending = nil
	if bh.mode.OneShot() {
		// The sensor powers itself down once the single measurement completes
		bh.powered = false
		bh.measuring = false
	}
	return raw, nil
}

func (bh *BH1750) writeCmd(cmd byte) error {
	if err := bh.transport.Write(bh.addr, []byte{cmd}); err != nil {
		return &TransportError{Op: "write", Addr: bh.addr, Err: err}
	}
	l.Debugf("Wrote command 0x%02X to 0x%02X", cmd, bh.addr)
	return nil
}
