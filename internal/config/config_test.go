package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ztkent/bh1750-meter/bh1750"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LOG_LEVEL", "SENSOR_TYPE", "I2C_BUS", "BH1750_ADDRESS", "BH1750_MODE", "BH1750_MTREG",
		"RECORD_INTERVAL", "MAX_JOB_DURATION", "DB_PATH", "SSL", "APP_PORT", "CERT_PATH", "KEY_PATH",
		"MQTT_BROKER", "MQTT_PORT", "MQTT_CLIENT_ID", "MQTT_TOPIC",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, cfg.LogLevel)
	assert.Equal(t, SENSOR_DEVFS, cfg.SensorType)
	assert.Equal(t, "/dev/i2c-1", cfg.I2CBus)
	assert.Zero(t, cfg.Address)
	assert.Equal(t, bh1750.BH1750_CONTINUOUS_HIGH_RES, cfg.Mode)
	assert.Equal(t, 69, cfg.MTreg)
	assert.Equal(t, 30*time.Second, cfg.RecordInterval)
	assert.Equal(t, 8*time.Hour, cfg.MaxJobDuration)
	assert.Equal(t, "sunlightmeter.db", cfg.DBPath)
	assert.False(t, cfg.SSL)
	assert.Equal(t, "80", cfg.AppPort)
	assert.Empty(t, cfg.MQTTBroker)
	assert.Equal(t, 1883, cfg.MQTTPort)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SENSOR_TYPE", "mock")
	t.Setenv("BH1750_ADDRESS", "0x5C")
	t.Setenv("BH1750_MODE", "one-shot-high2")
	t.Setenv("BH1750_MTREG", "138")
	t.Setenv("RECORD_INTERVAL", "5s")
	t.Setenv("SSL", "true")
	t.Setenv("MQTT_BROKER", "broker.local")
	t.Setenv("MQTT_TOPIC", "garden/lux")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, cfg.LogLevel)
	assert.Equal(t, SENSOR_MOCK, cfg.SensorType)
	assert.Empty(t, cfg.I2CBus)
	assert.Equal(t, bh1750.BH1750_ADDR_HIGH, cfg.Address)
	assert.Equal(t, bh1750.BH1750_ONE_SHOT_HIGH_RES_2, cfg.Mode)
	assert.Equal(t, 138, cfg.MTreg)
	assert.Equal(t, 5*time.Second, cfg.RecordInterval)
	assert.True(t, cfg.SSL)
	assert.Equal(t, "443", cfg.AppPort)
	assert.Equal(t, "broker.local", cfg.MQTTBroker)
	assert.Equal(t, "garden/lux", cfg.MQTTTopic)
}

func TestLoadFromEnvInvalid(t *testing.T) {
	tests := map[string]string{
		"LOG_LEVEL":        "loud",
		"SENSOR_TYPE":      "serial",
		"BH1750_ADDRESS":   "0x29",
		"BH1750_MODE":      "bright",
		"BH1750_MTREG":     "255",
		"RECORD_INTERVAL":  "-1s",
		"MAX_JOB_DURATION": "forever",
		"MQTT_PORT":        "mqtt",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			_, err := LoadFromEnv()
			assert.Error(t, err)
		})
	}
}
