package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/nkaeser/pilzwetter/internal/models"
)

const (
	weatherFileName = "weather_data.csv"
	metricsFileName = "metrics.csv"
)

// Tables reads and writes the persisted pipeline artifacts: the wide hourly
// weather table and the long metrics table. The pipeline is the only writer;
// dashboards read the files directly, so every write goes through an atomic
// replace.
type Tables struct {
	dir string
}

func NewTables(dir string) *Tables {
	return &Tables{dir: dir}
}

func (t *Tables) WeatherPath() string {
	return filepath.Join(t.dir, weatherFileName)
}

func (t *Tables) MetricsPath() string {
	return filepath.Join(t.dir, metricsFileName)
}

// WriteWeather persists the hourly weather table with one column per
// parameter, in the given column order. Rows are written in input order, so
// the caller's sort determines the on-disk layout.
func (t *Tables) WriteWeather(rows []models.HourlyRow, parameters []string) error {
	return WriteFileAtomic(t.WeatherPath(), func(w io.Writer) error {
		cw := csv.NewWriter(w)
		cw.Comma = ';'

		header := append([]string{"station_abbr", "station_name", "reference_timestamp"}, parameters...)
		if err := cw.Write(header); err != nil {
			return err
		}
		record := make([]string, len(header))
		for _, row := range rows {
			record[0] = row.StationAbbr
			record[1] = row.StationName
			record[2] = row.Timestamp.Format(time.RFC3339)
			for i, p := range parameters {
				if v, ok := row.Values[p]; ok {
					record[3+i] = formatValue(v)
				} else {
					record[3+i] = ""
				}
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

// ReadWeather loads the persisted weather table. The second return value is
// the parameter column list in on-disk order. A missing table surfaces as an
// fs.ErrNotExist error so callers can distinguish "first run" from damage.
func (t *Tables) ReadWeather() ([]models.HourlyRow, []string, error) {
	f, err := os.Open(t.WeatherPath())
	if err != nil {
		return nil, nil, fmt.Errorf("read weather table: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.Comma = ';'

	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("weather table header: %w", err)
	}
	if len(header) < 3 || header[0] != "station_abbr" || header[1] != "station_name" || header[2] != "reference_timestamp" {
		return nil, nil, fmt.Errorf("weather table has unexpected header %v", header)
	}
	parameters := header[3:]

	var rows []models.HourlyRow
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("weather table line %d: %w", line, err)
		}
		ts, err := time.Parse(time.RFC3339, record[2])
		if err != nil {
			return nil, nil, fmt.Errorf("weather table line %d: %w", line, err)
		}
		row := models.HourlyRow{
			StationAbbr: record[0],
			StationName: record[1],
			Timestamp:   ts,
			Values:      make(map[string]float64, len(parameters)),
		}
		for i, p := range parameters {
			cell := record[3+i]
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("weather table line %d, column %q: %w", line, p, err)
			}
			row.Values[p] = v
		}
		rows = append(rows, row)
	}
	return rows, parameters, nil
}

// WriteMetrics persists the long-format metrics table.
func (t *Tables) WriteMetrics(rows []models.MetricRow) error {
	return WriteFileAtomic(t.MetricsPath(), func(w io.Writer) error {
		cw := csv.NewWriter(w)
		cw.Comma = ';'

		if err := cw.Write([]string{"station_abbr", "station_name", "time_period", "parameter", "value", "type"}); err != nil {
			return err
		}
		for _, row := range rows {
			record := []string{
				row.StationAbbr,
				row.StationName,
				strconv.Itoa(row.TimePeriod),
				row.Parameter,
				formatValue(row.Value),
				string(row.Type),
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
