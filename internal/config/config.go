package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ztkent/bh1750-meter/bh1750"
)

const (
	SENSOR_DEVFS  = "devfs"
	SENSOR_PERIPH = "periph"
	SENSOR_MOCK   = "mock"
)

type Config struct {
	LogLevel logrus.Level

	SensorType string
	I2CBus     string
	Address    uint16 // 0 autodetects
	Mode       bh1750.Mode
	MTreg      int

	RecordInterval time.Duration
	MaxJobDuration time.Duration
	DBPath         string

	SSL      bool
	AppPort  string
	CertPath string
	KeyPath  string

	MQTTBroker   string
	MQTTPort     int
	MQTTClientID string
	MQTTTopic    string
}

// LoadFromEnv reads the service configuration from the environment.
func LoadFromEnv() (Config, error) {
	level, err := parseLogLevel(env("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	sensorType := strings.ToLower(env("SENSOR_TYPE", SENSOR_DEVFS))
	switch sensorType {
	case SENSOR_DEVFS, SENSOR_PERIPH, SENSOR_MOCK:
	default:
		return Config{}, fmt.Errorf("invalid SENSOR_TYPE %q (allowed: devfs, periph, mock)", sensorType)
	}

	i2cBus := env("I2C_BUS", "")
	if i2cBus == "" && sensorType == SENSOR_DEVFS {
		i2cBus = "/dev/i2c-1"
	}

	var address uint16
	if addrStr := env("BH1750_ADDRESS", ""); addrStr != "" {
		a, err := strconv.ParseUint(addrStr, 0, 16)
		if err != nil {
			return Config{}, fmt.Errorf("invalid BH1750_ADDRESS %q: %w", addrStr, err)
		}
		if uint16(a) != bh1750.BH1750_ADDR_LOW && uint16(a) != bh1750.BH1750_ADDR_HIGH {
			return Config{}, fmt.Errorf("invalid BH1750_ADDRESS %q (allowed: 0x23, 0x5C)", addrStr)
		}
		address = uint16(a)
	}

	mode, err := bh1750.ParseMode(env("BH1750_MODE", bh1750.BH1750_CONTINUOUS_HIGH_RES.String()))
	if err != nil {
		return Config{}, fmt.Errorf("invalid BH1750_MODE: %w", err)
	}

	mtregStr := env("BH1750_MTREG", strconv.Itoa(bh1750.BH1750_MTREG_DEFAULT))
	mtreg, err := strconv.Atoi(mtregStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid BH1750_MTREG %q: %w", mtregStr, err)
	}
	if _, _, err := bh1750.EncodeMTreg(mtreg); err != nil {
		return Config{}, fmt.Errorf("invalid BH1750_MTREG: %w", err)
	}

	recordInterval, err := parsePositiveDuration("RECORD_INTERVAL", "30s")
	if err != nil {
		return Config{}, err
	}
	maxJobDuration, err := parsePositiveDuration("MAX_JOB_DURATION", "8h")
	if err != nil {
		return Config{}, err
	}

	ssl := strings.EqualFold(env("SSL", "false"), "true")
	defaultPort := "80"
	if ssl {
		defaultPort = "443"
	}

	mqttPortStr := env("MQTT_PORT", "1883")
	mqttPort, err := strconv.Atoi(mqttPortStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %q: %w", mqttPortStr, err)
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "sunlightmeter"
	}

	return Config{
		LogLevel:       level,
		SensorType:     sensorType,
		I2CBus:         i2cBus,
		Address:        address,
		Mode:           mode,
		MTreg:          mtreg,
		RecordInterval: recordInterval,
		MaxJobDuration: maxJobDuration,
		DBPath:         env("DB_PATH", "sunlightmeter.db"),
		SSL:            ssl,
		AppPort:        env("APP_PORT", defaultPort),
		CertPath:       env("CERT_PATH", "cert.pem"),
		KeyPath:        env("KEY_PATH", "key.pem"),
		MQTTBroker:     env("MQTT_BROKER", ""),
		MQTTPort:       mqttPort,
		MQTTClientID:   env("MQTT_CLIENT_ID", "sunlightmeter-"+hostname),
		MQTTTopic:      env("MQTT_TOPIC", "sunlightmeter/"+hostname+"/lux"),
	}, nil
}

func env(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	s := env(key, fallback)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %v", key, d)
	}
	return d, nil
}

func parseLogLevel(s string) (logrus.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return logrus.DebugLevel, nil
	case "info":
		return logrus.InfoLevel, nil
	case "warn", "warning":
		return logrus.WarnLevel, nil
	case "error":
		return logrus.ErrorLevel, nil
	default:
		return logrus.InfoLevel, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
