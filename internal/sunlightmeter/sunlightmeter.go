package sunlightmeter

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/ztkent/bh1750-meter/bh1750"
)

//go:embed html/*
var templateFiles embed.FS

type SLMeter struct {
	*bh1750.BH1750
	LuxResultsChan chan LuxResults
	ResultsDB      *sql.DB
	Publisher      Publisher // optional
	Log            *logrus.Logger
	RecordInterval time.Duration
	MaxJobDuration time.Duration
	DBPath         string
	Location       *time.Location // for dashboard date inputs
	Pid            int

	jobMu   sync.Mutex
	enabled bool
	jobID   string
	cancel  context.CancelFunc
}

type LuxResults struct {
	JobID     string    `json:"job_id"`
	Lux       float64   `json:"lux"`
	Raw       uint16    `json:"raw"`
	Mode      string    `json:"mode"`
	MTreg     int       `json:"mtreg"`
	Timestamp time.Time `json:"timestamp"`
}

type Conditions struct {
	JobID                 string  `json:"jobID"`
	Lux                   float64 `json:"lux"`
	Raw                   int     `json:"raw"`
	Mode                  string  `json:"mode"`
	MTreg                 int     `json:"mtreg"`
	DateRange             string  `json:"dateRange"`
	RecordedHoursInRange  float64 `json:"recordedHoursInRange"`
	FullSunlightInRange   float64 `json:"fullSunlightInRange"`
	LightConditionInRange string  `json:"lightConditionInRange"`
	AverageLuxInRange     float64 `json:"averageLuxInRange"`
}

type SensorStatus struct {
	Connected  bool   `json:"connected"`
	Enabled    bool   `json:"enabled"`
	JobID      string `json:"jobID,omitempty"`
	Address    string `json:"address,omitempty"`
	Mode       string `json:"mode,omitempty"`
	Resolution string `json:"resolution,omitempty"`
	MTreg      int    `json:"mtreg,omitempty"`
	Power      string `json:"power,omitempty"`
}

const (
	MAX_JOB_DURATION = 8 * time.Hour
	RECORD_INTERVAL  = 30 * time.Second
	DB_PATH          = "sunlightmeter.db"
	FULL_SUN_LUX     = 10000
)

var (
	ErrNotConnected   = errors.New("The sensor is not connected")
	ErrAlreadyStarted = errors.New("The sensor is already started")
	ErrNotStarted     = errors.New("The sensor is already stopped")
)

// Start the sensor, and collect data in a loop
func (m *SLMeter) Start() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.logger().Info("It's going to be a bright day!")
		if _, err := m.StartJob(); err != nil {
			ServeResponse(w, r, err.Error(), http.StatusBadRequest)
			return
		}
		ServeResponse(w, r, "Sunlight Reading Started", http.StatusOK)
	}
}

// Stop the sensor, and cancel the job context
func (m *SLMeter) Stop() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := m.StopJob(); err != nil {
			ServeResponse(w, r, err.Error(), http.StatusBadRequest)
			return
		}
		ServeResponse(w, r, "Sunlight Reading Stopped", http.StatusOK)
	}
}

// StartJob begins recording a reading every RecordInterval until stopped or
// MaxJobDuration elapses. It returns the new job id.
func (m *SLMeter) StartJob() (string, error) {
	if m.BH1750 == nil {
		return "", ErrNotConnected
	}
	m.jobMu.Lock()
	defer m.jobMu.Unlock()
	if m.enabled {
		return "", ErrAlreadyStarted
	}

	maxDuration := m.MaxJobDuration
	if maxDuration <= 0 {
		maxDuration = MAX_JOB_DURATION
	}
	ctx, cancel := context.WithTimeout(context.Background(), maxDuration)
	m.cancel = cancel
	m.enabled = true
	m.jobID = uuid.New().String()

	go m.runJob(ctx, m.jobID)
	return m.jobID, nil
}

// StopJob cancels the running job; the job powers the sensor down on exit.
func (m *SLMeter) StopJob() error {
	if m.BH1750 == nil {
		return ErrNotConnected
	}
	m.jobMu.Lock()
	defer m.jobMu.Unlock()
	if !m.enabled {
		return ErrNotStarted
	}
	m.enabled = false
	m.cancel()
	return nil
}

// Enabled reports whether a recording job is running.
func (m *SLMeter) Enabled() bool {
	m.jobMu.Lock()
	defer m.jobMu.Unlock()
	return m.enabled
}

func (m *SLMeter) runJob(ctx context.Context, jobID string) {
	log := m.logger().WithField("job_id", jobID)
	defer func() {
		m.jobMu.Lock()
		current := m.enabled && m.jobID == jobID
		if current {
			m.enabled = false
			m.cancel()
		}
		ours := current || !m.enabled
		m.jobMu.Unlock()
		if ours {
			if err := m.PowerDown(); err != nil {
				log.WithError(err).Error("Failed to power down the sensor")
			}
		}
	}()

	// Start measuring with the configured mode
	if err := m.SetMode(m.Mode()); err != nil {
		log.WithError(err).Error("The sensor failed to start measuring")
		return
	}

	interval := m.RecordInterval
	if interval <= 0 {
		interval = RECORD_INTERVAL
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		m.recordOnce(ctx, jobID)

		// Check if we've cancelled this job.
		select {
		case <-ctx.Done():
			log.Info("Job Cancelled, stopping sensor")
			return
		case <-ticker.C:
		}
	}
}

func (m *SLMeter) recordOnce(ctx context.Context, jobID string) {
	log := m.logger().WithField("job_id", jobID)

	reading, err := m.ReadMeasurement()
	if err != nil {
		log.WithError(err).Error("The sensor failed to get luminosity")
		return
	}

	if bh1750.Saturated(reading.Raw) {
		log.WithField("mtreg", reading.MTreg).Warn("The sensor is saturated, attempting to set a new optimal sensitivity")
		if err := m.SetOptimalSensitivity(); err != nil {
			log.WithError(err).Error("The sensor failed to determine a new optimal sensitivity")
		} else {
			log.WithField("mtreg", m.Sensitivity()).Info("The sensor has been reconfigured with a new optimal sensitivity")
		}
		return
	}

	result := LuxResults{
		JobID:     jobID,
		Lux:       reading.Lux,
		Raw:       reading.Raw,
		Mode:      reading.Mode.String(),
		MTreg:     reading.MTreg,
		Timestamp: time.Now().UTC(),
	}
	select {
	case m.LuxResultsChan <- result:
	case <-ctx.Done():
	}
}

// Serve data about the most recent entry saved to the db
func (m *SLMeter) CurrentConditions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.BH1750 == nil {
			ServeResponse(w, r, ErrNotConnected.Error(), http.StatusBadRequest)
			return
		} else if !m.Enabled() {
			ServeResponse(w, r, "The sensor is not enabled", http.StatusBadRequest)
			return
		}
		conditions, err := m.getCurrentConditions()
		if errors.Is(err, sql.ErrNoRows) {
			ServeResponse(w, r, "No readings recorded yet", http.StatusNotFound)
			return
		} else if err != nil {
			m.logger().WithError(err).Error("Failed to get current conditions")
			ServeResponse(w, r, err.Error(), http.StatusInternalServerError)
			return
		}

		conditionsData, err := json.Marshal(conditions)
		if err != nil {
			ServeResponse(w, r, err.Error(), http.StatusInternalServerError)
			return
		}
		ServeResponse(w, r, string(conditionsData), http.StatusOK)
	}
}

// Return the most recent entry saved to the db
func (m *SLMeter) getCurrentConditions() (Conditions, error) {
	conditions := Conditions{}
	if m.ResultsDB == nil {
		return conditions, nil
	}
	row := m.ResultsDB.QueryRow("SELECT job_id, lux, raw, mode, mtreg FROM sunlight ORDER BY id DESC LIMIT 1")
	err := row.Scan(&conditions.JobID, &conditions.Lux, &conditions.Raw, &conditions.Mode, &conditions.MTreg)
	if err != nil {
		return Conditions{}, err
	}
	return conditions, nil
}

// Status of the sensor, as JSON
func (m *SLMeter) Status() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(m.sensorStatus()); err != nil {
			m.logger().WithError(err).Error("Failed to write sensor status")
		}
	}
}

func (m *SLMeter) sensorStatus() SensorStatus {
	if m.BH1750 == nil {
		return SensorStatus{}
	}
	m.jobMu.Lock()
	status := SensorStatus{Connected: true, Enabled: m.enabled}
	if m.enabled {
		status.JobID = m.jobID
	}
	m.jobMu.Unlock()

	mode := m.Mode()
	status.Address = fmt.Sprintf("0x%02X", m.Address())
	status.Mode = mode.String()
	status.Resolution = bh1750.ResolutionToString(mode.Resolution())
	status.MTreg = m.Sensitivity()
	status.Power = bh1750.PowerStateToString(m.PowerState())
	return status
}

// Change the measurement mode, e.g. mode=one-shot-high
func (m *SLMeter) SetModeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.BH1750 == nil {
			ServeResponse(w, r, ErrNotConnected.Error(), http.StatusBadRequest)
			return
		}
		mode, err := bh1750.ParseMode(r.FormValue("mode"))
		if err != nil {
			ServeResponse(w, r, err.Error(), http.StatusBadRequest)
			return
		}
		if err := m.SetMode(mode); err != nil {
			ServeResponse(w, r, err.Error(), statusForError(err))
			return
		}
		ServeResponse(w, r, "Measurement mode set to "+mode.String(), http.StatusOK)
	}
}

// Change the sensitivity, mtreg=31..254 or mtreg=auto
func (m *SLMeter) SetSensitivityHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.BH1750 == nil {
			ServeResponse(w, r, ErrNotConnected.Error(), http.StatusBadRequest)
			return
		}
		value := strings.TrimSpace(r.FormValue("mtreg"))
		if strings.EqualFold(value, "auto") {
			err := m.SetOptimalSensitivity()
			if err != nil && !errors.Is(err, bh1750.ErrSaturated) {
				ServeResponse(w, r, err.Error(), statusForError(err))
				return
			}
			ServeResponse(w, r, fmt.Sprintf("Sensitivity set to MTreg %d", m.Sensitivity()), http.StatusOK)
			return
		}
		mtreg, err := strconv.Atoi(value)
		if err != nil {
			ServeResponse(w, r, fmt.Sprintf("Invalid MTreg %q", value), http.StatusBadRequest)
			return
		}
		if err := m.SetSensitivity(mtreg); err != nil {
			ServeResponse(w, r, err.Error(), statusForError(err))
			return
		}
		ServeResponse(w, r, fmt.Sprintf("Sensitivity set to MTreg %d", mtreg), http.StatusOK)
	}
}

// Reset the sensor's data register
func (m *SLMeter) ResetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.BH1750 == nil {
			ServeResponse(w, r, ErrNotConnected.Error(), http.StatusBadRequest)
			return
		}
		if err := m.Reset(); err != nil {
			ServeResponse(w, r, err.Error(), statusForError(err))
			return
		}
		ServeResponse(w, r, "Sensor data register reset", http.StatusOK)
	}
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, bh1750.ErrOutOfRange), errors.Is(err, bh1750.ErrInvalidState):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Populate the response div with a message, or reply with a JSON message
func ServeResponse(w http.ResponseWriter, r *http.Request, message string, status int) {
	if strings.Contains(r.URL.Path, "/api/v1/") {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]string{"message": message})
		return
	}

	tmpl, err := parseTemplateFile("html/response.gohtml")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(status)
	tmpl.Execute(w, message)
}

func parseTemplateFile(path string) (*template.Template, error) {
	content, err := templateFiles.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded template: %w", err)
	}
	tmpl, err := template.New(path).Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return tmpl, nil
}

// Read from LuxResultsChan, write the results to sqlite and publish them
func (m *SLMeter) MonitorAndRecordResults(ctx context.Context) {
	m.logger().WithField("pid", m.Pid).Info("Monitoring for new Sunlight Messages...")
	for {
		select {
		case result := <-m.LuxResultsChan:
			if err := m.recordResult(ctx, result); err != nil {
				m.logger().WithError(err).WithField("job_id", result.JobID).Error("Failed to record result")
			}
		case <-ctx.Done():
			return
		}
	}
}

func (m *SLMeter) recordResult(ctx context.Context, result LuxResults) error {
	m.logger().WithFields(logrus.Fields{
		"job_id": result.JobID,
		"lux":    fmt.Sprintf("%.5f", result.Lux),
		"raw":    result.Raw,
		"mtreg":  result.MTreg,
	}).Info("Received sunlight reading")
	if math.IsInf(result.Lux, 0) || math.IsNaN(result.Lux) {
		m.logger().Warn("Lux is invalid, skipping record")
		return nil
	}

	if m.ResultsDB != nil {
		_, err := m.ResultsDB.ExecContext(ctx,
			"INSERT INTO sunlight (job_id, lux, raw, mode, mtreg, created_at) VALUES (?, ?, ?, ?, ?, ?)",
			result.JobID,
			result.Lux,
			result.Raw,
			result.Mode,
			result.MTreg,
			result.Timestamp.UTC().Format("2006-01-02 15:04:05"),
		)
		if err != nil {
			return fmt.Errorf("failed to insert result: %w", err)
		}
	}
	if m.Publisher != nil {
		if err := m.Publisher.Publish(ctx, result); err != nil {
			return fmt.Errorf("failed to publish result: %w", err)
		}
	}
	return nil
}

func (m *SLMeter) logger() *logrus.Logger {
	if m.Log == nil {
		return logrus.StandardLogger()
	}
	return m.Log
}
