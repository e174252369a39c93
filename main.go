package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/ztkent/bh1750-meter/bh1750"
	"github.com/ztkent/bh1750-meter/bus"
	"github.com/ztkent/bh1750-meter/internal/config"
	slm "github.com/ztkent/bh1750-meter/internal/sunlightmeter"
	"github.com/ztkent/bh1750-meter/internal/tools"
)

/*
	This is the primary entry point for the Sunlight Meter application.
	It should be running at startup, on a Raspberry Pi, with a BH1750 sensor connected.
*/

// The simulated sensor reads a steady overcast day
const MOCK_LUX = 500

type sensorBus interface {
	bh1750.Transport
	Close() error
}

func main() {
	pid := os.Getpid()
	cfg, err := config.LoadFromEnv()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	l, err := tools.NewLogger(cfg.LogLevel, "slm.log")
	if err != nil {
		logrus.Fatalf("Failed to create logger: %v", err)
	}
	bh1750.SetLogger(l)
	l.Info("SunlightMeter [" + fmt.Sprintf("%d", pid) + "]")

	// connect to the lux sensor
	i2cBus, err := openBus(cfg)
	if err != nil {
		l.Fatalf("Failed to open the I2C bus: %v", err)
	}
	defer i2cBus.Close()
	device, err := bh1750.NewBH1750(i2cBus, bh1750.Config{
		Address: cfg.Address,
		Mode:    cfg.Mode,
		MTreg:   cfg.MTreg,
	})
	if err != nil {
		l.Fatalf("Failed to connect to the BH1750 sensor: %v", err)
	}

	// connect to the sqlite database
	slmDB, err := tools.ConnectSqlite(cfg.DBPath, l)
	if err != nil {
		// Unlike connecting to the sensor, this should always work.
		l.Fatalf("Failed to connect to the sqlite database: %v", err)
	}
	defer slmDB.Close()

	meter := &slm.SLMeter{
		BH1750:         device,
		ResultsDB:      slmDB,
		LuxResultsChan: make(chan slm.LuxResults),
		Log:            l,
		RecordInterval: cfg.RecordInterval,
		MaxJobDuration: cfg.MaxJobDuration,
		DBPath:         cfg.DBPath,
		Location:       time.Local,
		Pid:            pid,
	}

	// publish readings over MQTT when a broker is configured
	if cfg.MQTTBroker != "" {
		publisher := slm.NewMQTTPublisher(slm.MQTTOptions{
			Broker:   cfg.MQTTBroker,
			Port:     cfg.MQTTPort,
			ClientID: cfg.MQTTClientID,
			Topic:    cfg.MQTTTopic,
		}, l)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := publisher.Connect(ctx); err != nil {
			l.WithError(err).Warn("MQTT broker unavailable, readings will not be published")
		} else {
			meter.Publisher = publisher
			defer publisher.Close()
		}
		cancel()
	}

	// Listen for any result messages from our jobs, record them in sqlite
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go meter.MonitorAndRecordResults(ctx)

	// Initialize router
	r := chi.NewRouter()
	// Log requests and recover from panics
	r.Use(middleware.Logger)
	r.Use(handleServerPanic)

	// Define routes
	defineRoutes(r, meter)

	if cfg.SSL {
		// Generate a self-signed certificate if one doesn't exist
		hostname, _ := os.Hostname()
		if err := tools.EnsureCertificate(cfg.CertPath, cfg.KeyPath, []string{"localhost", hostname}); err != nil {
			l.Fatalf("Failed to create a certificate: %v", err)
		}

		l.Infof("Starting HTTPS server on port %s", cfg.AppPort)
		err = http.ListenAndServeTLS(":"+cfg.AppPort, cfg.CertPath, cfg.KeyPath, r)
		if err != nil {
			l.Fatalf("Failed to start HTTPS server: %v", err)
		}
	} else {
		l.Infof("Starting HTTP server on port %s", cfg.AppPort)
		err = http.ListenAndServe(":"+cfg.AppPort, r)
		if err != nil {
			l.Fatalf("Failed to start HTTP server: %v", err)
		}
	}
}

func openBus(cfg config.Config) (sensorBus, error) {
	switch cfg.SensorType {
	case config.SENSOR_PERIPH:
		return bus.OpenPeriph(cfg.I2CBus)
	case config.SENSOR_MOCK:
		addr := cfg.Address
		if addr == 0 {
			addr = bh1750.BH1750_ADDR_LOW
		}
		return bus.NewSim(MOCK_LUX, addr), nil
	default:
		return bus.OpenDevfs(cfg.I2CBus), nil
	}
}

func defineRoutes(r *chi.Mux, meter *slm.SLMeter) {
	// Sunlight Meter Dashboard Controls
	r.Get("/", meter.ServeDashboard())
	r.Route("/sunlightmeter", func(r chi.Router) {
		r.Get("/start", meter.Start())
		r.Get("/stop", meter.Stop())
		r.Get("/current-conditions", meter.CurrentConditions())
		r.Get("/export", meter.ServeResultsDB())
		r.Post("/graph", meter.ServeResultsGraph())
		r.Get("/controls", meter.ServeSunlightControls())
		r.Get("/status", meter.ServeSensorStatus())
		r.Post("/results", meter.ServeResultsTab())
		r.Get("/clear", meter.Clear())
		r.Group(func(r chi.Router) {
			r.Use(tools.CheckInNetwork)
			r.Post("/mode", meter.SetModeHandler())
			r.Post("/sensitivity", meter.SetSensitivityHandler())
			r.Post("/reset", meter.ResetHandler())
		})
	})

	// Sunlight Meter API, these serve a JSON response
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/start", meter.Start())
		r.Get("/stop", meter.Stop())
		r.Get("/current-conditions", meter.CurrentConditions())
		r.Get("/export", meter.ServeResultsDB())
		r.Get("/status", meter.Status())
		r.Group(func(r chi.Router) {
			r.Use(tools.CheckInNetwork)
			r.Post("/mode", meter.SetModeHandler())
			r.Post("/sensitivity", meter.SetSensitivityHandler())
			r.Post("/reset", meter.ResetHandler())
		})
	})

	// Route for service identification
	r.Get("/id", func(w http.ResponseWriter, r *http.Request) {
		response := struct {
			ServiceName string `json:"service_name"`
		}{
			ServiceName: "Sunlight Meter",
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(response)
	})
}

func handleServerPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slm.ServeResponse(w, r, fmt.Sprintf("%v", err), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
