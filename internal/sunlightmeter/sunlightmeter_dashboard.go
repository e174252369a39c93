package sunlightmeter

import (
	"database/sql"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
	"github.com/ztkent/bh1750-meter/internal/tools"
)

// Reference levels drawn behind the lux series
var luxLevels = []struct {
	lux   int
	title string
	color string
}{
	{500, "Shade", "DarkGrey"},
	{1000, "Partial Shade", "WhiteSmoke"},
	{10000, "Partial Sun", "SkyBlue"},
	{25000, "Full Sun", "Yellow"},
}

// Serve the sqlite db for download
func (m *SLMeter) ServeResultsDB() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := m.DBPath
		if path == "" {
			path = DB_PATH
		}
		w.Header().Set("Content-Disposition", "attachment; filename=sunlightmeter.db")
		w.Header().Set("Content-Type", "application/octet-stream")
		http.ServeFile(w, r, path)
	}
}

// Serve the homepage
func (m *SLMeter) ServeDashboard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fileContent, err := templateFiles.ReadFile("html/dashboard.html")
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		w.Write(fileContent)
	}
}

// Serve the controls for the sensor, start/stop/export/current-conditions/mode/sensitivity
func (m *SLMeter) ServeSunlightControls() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tmpl, err := parseTemplateFile("html/controls.gohtml")
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if err := tmpl.Execute(w, nil); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// Status of the sensor, as an htmx fragment
func (m *SLMeter) ServeSensorStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tmpl, err := parseTemplateFile("html/status.gohtml")
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if err := tmpl.Execute(w, m.sensorStatus()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// Serve the results graph
func (m *SLMeter) ServeResultsGraph() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.ResultsDB == nil {
			http.Error(w, "No results database", http.StatusInternalServerError)
			return
		}
		// Get the date range for the graph from the request
		startDate, endDate := tools.ParseStartAndEndDate(r, m.Location)

		rows, err := m.ResultsDB.Query("SELECT lux, created_at FROM sunlight WHERE created_at BETWEEN ? AND ? ORDER BY created_at", startDate, endDate)
		if err != nil {
			m.logger().WithError(err).Error("Failed to query results")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer rows.Close()

		var luxValues []opts.LineData
		var timeValues []string
		var maxLux int
		for rows.Next() {
			var lux float64
			var createdAt time.Time
			if err := rows.Scan(&lux, &createdAt); err != nil {
				m.logger().WithError(err).Error("Failed to scan result")
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			if lux > float64(maxLux) {
				// Round up to the nearest 5000
				maxLux = int(math.Ceil(lux/5000) * 5000)
			}
			luxValues = append(luxValues, opts.LineData{Value: lux})
			timeValues = append(timeValues, createdAt.Format("2006-01-02 15:04:05"))
		}
		if err := rows.Err(); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		line := charts.NewLine()
		for _, level := range luxLevels {
			data := make([]opts.LineData, len(timeValues))
			for i := range data {
				data[i] = opts.LineData{Value: level.lux}
			}
			line.AddSeries(level.title, data, charts.WithLineChartOpts(opts.LineChart{
				Color: level.color,
			}))
		}

		line.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{
				Theme: types.ThemeChalk,
			}),
			charts.WithXAxisOpts(opts.XAxis{
				Name: "Time",
			}),
			charts.WithYAxisOpts(opts.YAxis{
				Name: "Lux",
				Min:  "0",
				Max:  fmt.Sprintf("%d", maxLux),
			}),
			charts.WithTooltipOpts(opts.Tooltip{
				Show:      true,
				Trigger:   "axis",
				TriggerOn: "mousemove",
				Formatter: fmt.Sprintf("{a%d}: {c%d}<br> Time: {b0}", len(luxLevels), len(luxLevels)),
			}),
			charts.WithToolboxOpts(opts.Toolbox{
				Show: true,
				Feature: &opts.ToolBoxFeature{
					SaveAsImage: &opts.ToolBoxFeatureSaveAsImage{
						Show:  true,
						Title: "Save as Image",
						Name:  "sunlight-meter",
					},
				},
			}),
		)
		line.SetXAxis(timeValues).AddSeries("Lux", luxValues)

		page := components.NewPage()
		page.AddCharts(line)

		w.Header().Set("Content-Type", "text/html")
		page.Render(w)
		// Trigger an update for the results tab
		w.Write([]byte(`<div id='resultUpdateTrigger' hx-post='/sunlightmeter/results' hx-target='#resultsContent' hx-trigger='load'></div>`))
		w.Write([]byte(`<script>document.title = "Sunlight Meter";</script>`))
	}
}

// Update the info in the results tab
func (m *SLMeter) ServeResultsTab() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conditions, err := m.getCurrentConditions()
		if err != nil && err != sql.ErrNoRows {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		startDate, endDate := tools.ParseStartAndEndDate(r, m.Location)
		conditions, err = m.getHistoricalConditions(conditions, startDate, endDate)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		tmpl, err := parseTemplateFile("html/results.gohtml")
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		type ConditionsForDisplay struct {
			JobID                 string
			Lux                   string
			Raw                   int
			Mode                  string
			MTreg                 int
			DateRange             string
			RecordedHoursInRange  string
			FullSunlightInRange   string
			LightConditionInRange string
			AverageLuxInRange     string
			StartDate             string
			EndDate               string
		}
		err = tmpl.Execute(w, ConditionsForDisplay{
			JobID:                 conditions.JobID,
			Lux:                   fmt.Sprintf("%.2f", conditions.Lux),
			Raw:                   conditions.Raw,
			Mode:                  conditions.Mode,
			MTreg:                 conditions.MTreg,
			DateRange:             conditions.DateRange,
			RecordedHoursInRange:  fmt.Sprintf("%.4f", conditions.RecordedHoursInRange),
			FullSunlightInRange:   fmt.Sprintf("%.4f", conditions.FullSunlightInRange),
			LightConditionInRange: conditions.LightConditionInRange,
			AverageLuxInRange:     fmt.Sprintf("%.2f", conditions.AverageLuxInRange),
			StartDate:             startDate,
			EndDate:               endDate,
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// Summarize the readings recorded between startDate and endDate
func (m *SLMeter) getHistoricalConditions(conditions Conditions, startDate string, endDate string) (Conditions, error) {
	if m.ResultsDB == nil {
		return conditions, nil
	}
	conditions.DateRange = fmt.Sprintf("%s - %s UTC", startDate, endDate)

	row := m.ResultsDB.QueryRow(`
    SELECT 
        COALESCE(AVG(lux), 0), 
        MIN(created_at), 
        MAX(created_at) 
    FROM sunlight 
    WHERE created_at BETWEEN ? AND ?`, startDate, endDate)
	var oldest, mostRecent sql.NullString
	if err := row.Scan(&conditions.AverageLuxInRange, &oldest, &mostRecent); err != nil {
		return conditions, err
	}
	if !oldest.Valid || !mostRecent.Valid {
		conditions.LightConditionInRange = "No Data in Range"
		return conditions, nil
	}

	// Count the minutes where the average lux was in full sun
	var fullSunMinutes int
	err := m.ResultsDB.QueryRow(`
    SELECT COUNT(*) 
    FROM (
        SELECT AVG(lux) as avg_lux 
        FROM sunlight 
        WHERE created_at BETWEEN ? AND ? 
        GROUP BY strftime('%Y-%m-%d %H:%M', created_at)
    ) 
    WHERE avg_lux > ?`, startDate, endDate, FULL_SUN_LUX).Scan(&fullSunMinutes)
	if err != nil {
		return conditions, err
	}
	conditions.FullSunlightInRange = float64(fullSunMinutes) / 60

	first, last, err := tools.StartAndEndDateToTime(normalizeDBTime(oldest.String), normalizeDBTime(mostRecent.String))
	if err != nil {
		return conditions, err
	}
	conditions.RecordedHoursInRange = last.Sub(first).Hours()
	conditions.LightConditionInRange = lightCondition(conditions.FullSunlightInRange, conditions.RecordedHoursInRange)
	return conditions, nil
}

func lightCondition(fullSunHours, recordedHours float64) string {
	if recordedHours <= 0 {
		if fullSunHours > 0 {
			return "Full Sun"
		}
		return "Shade"
	}
	ratio := fullSunHours / recordedHours
	switch {
	case ratio > 0.5:
		return "Full Sun"
	case ratio > 0.25:
		return "Partial Sun"
	case ratio > 0.1:
		return "Partial Shade"
	default:
		return "Shade"
	}
}

// sqlite may hand back DATETIME values in RFC 3339 form
func normalizeDBTime(s string) string {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC().Format("2006-01-02 15:04:05")
	}
	return s
}

// Used to clear a div with htmx
func (m *SLMeter) Clear() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
	}
}
