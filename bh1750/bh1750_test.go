package bh1750

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSensor(t *testing.T, cfg Config) (*BH1750, *recordingTransport, *fakeClock) {
	t.Helper()
	rt := newRecordingTransport(BH1750_ADDR_LOW)
	clock := newFakeClock()
	cfg.Clock = clock
	bh, err := NewBH1750(rt, cfg)
	require.NoError(t, err)
	return bh, rt, clock
}

func TestResolveAddress(t *testing.T) {
	addr, err := ResolveAddress(newRecordingTransport(BH1750_ADDR_LOW))
	require.NoError(t, err)
	assert.Equal(t, BH1750_ADDR_LOW, addr)

	addr, err = ResolveAddress(newRecordingTransport(BH1750_ADDR_HIGH))
	require.NoError(t, err)
	assert.Equal(t, BH1750_ADDR_HIGH, addr)

	both := newRecordingTransport(BH1750_ADDR_LOW, BH1750_ADDR_HIGH)
	addr, err = ResolveAddress(both)
	require.NoError(t, err)
	assert.Equal(t, BH1750_ADDR_LOW, addr)
	assert.Equal(t, []uint16{BH1750_ADDR_LOW}, both.probes)

	none := newRecordingTransport()
	_, err = ResolveAddress(none)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []uint16{BH1750_ADDR_LOW, BH1750_ADDR_HIGH}, none.probes)
}

func TestNewInitSequence(t *testing.T) {
	bh, rt, _ := newTestSensor(t, Config{})

	assert.Equal(t, BH1750_ADDR_LOW, bh.Address())
	assert.Equal(t, []byte{BH1750_POWER_ON, BH1750_RESET, 0x42, 0x65, byte(BH1750_CONTINUOUS_HIGH_RES)}, rt.commands())
	assert.Equal(t, POWERED_ON, bh.PowerState())
	assert.Equal(t, BH1750_CONTINUOUS_HIGH_RES, bh.Mode())
	assert.Equal(t, BH1750_MTREG_DEFAULT, bh.Sensitivity())
	assert.True(t, bh.Pending())
}

func TestNewExplicitAddressSkipsProbe(t *testing.T) {
	rt := newRecordingTransport(BH1750_ADDR_HIGH)
	bh, err := NewBH1750(rt, Config{Address: BH1750_ADDR_HIGH, Clock: newFakeClock()})
	require.NoError(t, err)
	assert.Equal(t, BH1750_ADDR_HIGH, bh.Address())
	assert.Empty(t, rt.probes)
}

func TestNewNotFound(t *testing.T) {
	rt := newRecordingTransport()
	_, err := NewBH1750(rt, Config{Clock: newFakeClock()})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, rt.writes)
}

func TestNewRejectsInvalidMTregBeforeWriting(t *testing.T) {
	rt := newRecordingTransport(BH1750_ADDR_LOW)
	_, err := NewBH1750(rt, Config{MTreg: 30, Clock: newFakeClock()})
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.Empty(t, rt.writes)
	assert.Empty(t, rt.probes)
}

func TestResetRequiresPowerOn(t *testing.T) {
	bh, rt, _ := newTestSensor(t, Config{})
	require.NoError(t, bh.PowerDown())
	rt.clear()

	err := bh.Reset()
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Empty(t, rt.writes)

	require.NoError(t, bh.PowerOn())
	rt.clear()
	require.NoError(t, bh.Reset())
	assert.Equal(t, [][]byte{{BH1750_RESET}}, rt.writes)
}

func TestPowerOnAndDownAreIdempotent(t *testing.T) {
	bh, rt, _ := newTestSensor(t, Config{})
	rt.clear()

	require.NoError(t, bh.PowerOn())
	require.NoError(t, bh.PowerOn())
	assert.Equal(t, POWERED_ON, bh.PowerState())

	require.NoError(t, bh.PowerDown())
	require.NoError(t, bh.PowerDown())
	assert.Equal(t, POWERED_DOWN, bh.PowerState())
	assert.False(t, bh.Pending())
	assert.Equal(t, []byte{BH1750_POWER_ON, BH1750_POWER_ON, BH1750_POWER_DOWN, BH1750_POWER_DOWN}, rt.commands())
}

func TestSetModePowersOnFirst(t *testing.T) {
	bh, rt, _ := newTestSensor(t, Config{})
	require.NoError(t, bh.PowerDown())
	rt.clear()

	require.NoError(t, bh.SetMode(BH1750_CONTINUOUS_LOW_RES))
	assert.Equal(t, []byte{BH1750_POWER_ON, byte(BH1750_CONTINUOUS_LOW_RES)}, rt.commands())
	assert.Equal(t, POWERED_ON, bh.PowerState())
	assert.True(t, bh.Pending())
}

func TestSetModeRejectsUnknownMode(t *testing.T) {
	bh, rt, _ := newTestSensor(t, Config{})
	rt.clear()
	assert.Error(t, bh.SetMode(Mode(0x42)))
	assert.Empty(t, rt.writes)
}

func TestSetSensitivityContinuousReassertsMode(t *testing.T) {
	bh, rt, _ := newTestSensor(t, Config{Mode: BH1750_CONTINUOUS_HIGH_RES_2})
	rt.queue(100)
	_, err := bh.ReadLux()
	require.NoError(t, err)
	require.False(t, bh.Pending())
	rt.clear()

	require.NoError(t, bh.SetSensitivity(138))
	assert.Equal(t, [][]byte{{0x44}, {0x6A}, {byte(BH1750_CONTINUOUS_HIGH_RES_2)}}, rt.writes)
	assert.Equal(t, 138, bh.Sensitivity())
	assert.True(t, bh.Pending())
}

func TestSetSensitivityOneShotSendsTwoCommands(t *testing.T) {
	bh, rt, _ := newTestSensor(t, Config{Mode: BH1750_ONE_SHOT_HIGH_RES})
	rt.queue(100)
	_, err := bh.ReadLux()
	require.NoError(t, err)
	rt.clear()

	require.NoError(t, bh.SetSensitivity(120))
	assert.Equal(t, [][]byte{{0x43}, {0x78}}, rt.writes)
}

func TestSetSensitivityRetriggersPendingOneShot(t *testing.T) {
	bh, rt, clock := newTestSensor(t, Config{Mode: BH1750_ONE_SHOT_HIGH_RES})
	require.True(t, bh.Pending())
	rt.clear()

	require.NoError(t, bh.SetSensitivity(138))
	assert.Equal(t, [][]byte{{0x44}, {0x6A}}, rt.writes)
	assert.False(t, bh.Pending())
	assert.Equal(t, POWERED_DOWN, bh.PowerState())

	rt.clear()
	clock.slept = nil
	rt.queue(1200)
	reading, err := bh.ReadMeasurement()
	require.NoError(t, err)
	assert.Equal(t, [][]byte{{BH1750_POWER_ON}, {byte(BH1750_ONE_SHOT_HIGH_RES)}}, rt.writes)
	assert.Equal(t, []time.Duration{BH1750_COMMAND_DELAY, 240 * time.Millisecond}, clock.slept)
	assert.Equal(t, 138, reading.MTreg)
	assert.InDelta(t, 500.0, reading.Lux, 0.001)
}

func TestSetSensitivitySameValueKeepsPendingOneShot(t *testing.T) {
	bh, rt, _ := newTestSensor(t, Config{Mode: BH1750_ONE_SHOT_HIGH_RES})
	rt.clear()

	require.NoError(t, bh.SetSensitivity(BH1750_MTREG_DEFAULT))
	assert.True(t, bh.Pending())
	assert.Equal(t, POWERED_ON, bh.PowerState())
}

func TestSetSensitivityOutOfRange(t *testing.T) {
	bh, rt, _ := newTestSensor(t, Config{})
	rt.clear()

	assert.ErrorIs(t, bh.SetSensitivity(30), ErrOutOfRange)
	assert.ErrorIs(t, bh.SetSensitivity(255), ErrOutOfRange)
	assert.Empty(t, rt.writes)
	assert.Equal(t, BH1750_MTREG_DEFAULT, bh.Sensitivity())
}

func TestOneShotReadPowersDown(t *testing.T) {
	bh, rt, clock := newTestSensor(t, Config{Mode: BH1750_ONE_SHOT_HIGH_RES})
	rt.queue(1200)
	clock.slept = nil

	lux, err := bh.ReadLux()
	require.NoError(t, err)
	assert.InDelta(t, 1000.0, lux, 1e-9)
	assert.Equal(t, []time.Duration{120 * time.Millisecond}, clock.slept)
	assert.Equal(t, POWERED_DOWN, bh.PowerState())
	assert.False(t, bh.Pending())
}

func TestOneShotRetriggersEachRead(t *testing.T) {
	bh, rt, clock := newTestSensor(t, Config{Mode: BH1750_ONE_SHOT_LOW_RES})
	rt.queue(0, 0)
	_, err := bh.ReadLux()
	require.NoError(t, err)
	rt.clear()
	clock.slept = nil

	_, err = bh.ReadLux()
	require.NoError(t, err)
	assert.Equal(t, []byte{BH1750_POWER_ON, byte(BH1750_ONE_SHOT_LOW_RES)}, rt.commands())
	assert.Equal(t, 16*time.Millisecond, clock.slept[len(clock.slept)-1])
	assert.Equal(t, POWERED_DOWN, bh.PowerState())
}

func TestContinuousReadWaitsOnlyOnce(t *testing.T) {
	bh, rt, clock := newTestSensor(t, Config{MTreg: 138})
	rt.queue(1200, 2400)
	clock.slept = nil

	lux, err := bh.ReadLux()
	require.NoError(t, err)
	assert.InDelta(t, 500.0, lux, 1e-9)
	assert.Equal(t, 240*time.Millisecond, clock.totalSlept())

	lux, err = bh.ReadLux()
	require.NoError(t, err)
	assert.InDelta(t, 1000.0, lux, 1e-9)
	assert.Equal(t, 240*time.Millisecond, clock.totalSlept())
	assert.Equal(t, POWERED_ON, bh.PowerState())
}

func TestWaitIfNeededSkipsElapsedWindow(t *testing.T) {
	bh, _, clock := newTestSensor(t, Config{})
	clock.advance(500 * time.Millisecond)
	clock.slept = nil

	bh.WaitIfNeeded()
	assert.Empty(t, clock.slept)

	clock.advance(-450 * time.Millisecond)
	bh.WaitIfNeeded()
	assert.Equal(t, []time.Duration{70 * time.Millisecond}, clock.slept)
}

func TestReadMeasurementHighRes2(t *testing.T) {
	bh, rt, _ := newTestSensor(t, Config{Mode: BH1750_CONTINUOUS_HIGH_RES_2})
	rt.queue(1200)

	reading, err := bh.ReadMeasurement()
	require.NoError(t, err)
	assert.Equal(t, uint16(1200), reading.Raw)
	assert.InDelta(t, 500.0, reading.Lux, 1e-9)
	assert.Equal(t, BH1750_CONTINUOUS_HIGH_RES_2, reading.Mode)
	assert.Equal(t, BH1750_MTREG_DEFAULT, reading.MTreg)
}

func TestTransportWriteFailureKeepsState(t *testing.T) {
	bh, rt, _ := newTestSensor(t, Config{})
	rt.writeErr = errBus

	err := bh.PowerDown()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, errBus)
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "write", terr.Op)
	assert.Equal(t, BH1750_ADDR_LOW, terr.Addr)

	assert.Equal(t, POWERED_ON, bh.PowerState())
	assert.True(t, bh.Pending())
}

func TestSetSensitivityLowCommandFailure(t *testing.T) {
	bh, rt, _ := newTestSensor(t, Config{})
	rt.failOn = 0x6A
	rt.failNext = true

	err := bh.SetSensitivity(138)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, BH1750_MTREG_DEFAULT, bh.Sensitivity())
}

func TestTransportReadFailureKeepsPending(t *testing.T) {
	bh, rt, _ := newTestSensor(t, Config{Mode: BH1750_ONE_SHOT_HIGH_RES})
	rt.readErr = errBus

	_, err := bh.ReadLux()
	assert.ErrorIs(t, err, ErrTransport)
	assert.True(t, bh.Pending())
	assert.Equal(t, POWERED_ON, bh.PowerState())

	rt.readErr = nil
	rt.queue(0)
	lux, err := bh.ReadLux()
	require.NoError(t, err)
	assert.Equal(t, 0.0, lux)
}

func TestSetOptimalSensitivity(t *testing.T) {
	bh, rt, _ := newTestSensor(t, Config{})
	rt.queue(0xFFFF, 0xFFFF, 5000)

	require.NoError(t, bh.SetOptimalSensitivity())
	assert.Equal(t, BH1750_MTREG_DEFAULT, bh.Sensitivity())
}

func TestSetOptimalSensitivityAllSaturated(t *testing.T) {
	bh, rt, _ := newTestSensor(t, Config{Mode: BH1750_ONE_SHOT_HIGH_RES})
	rt.queue(0xFFFF, 0xFFFF, 0xFFFF, 0xFFFF)

	assert.ErrorIs(t, bh.SetOptimalSensitivity(), ErrSaturated)
	assert.Equal(t, BH1750_MTREG_MIN, bh.Sensitivity())
}

func TestLevelFromEnv(t *testing.T) {
	tests := map[string]logrus.Level{
		"debug":   logrus.DebugLevel,
		"info":    logrus.InfoLevel,
		"WARN":    logrus.WarnLevel,
		"warning": logrus.WarnLevel,
		"error":   logrus.ErrorLevel,
		"":        logrus.InfoLevel,
	}
	for value, want := range tests {
		t.Setenv("LOG_LEVEL", value)
		assert.Equal(t, want, levelFromEnv(), "LOG_LEVEL=%q", value)
	}
}
