package pipeline

import (
	"testing"
	"time"

	"github.com/nkaeser/pilzwetter/internal/models"
)

func namedRow(t *testing.T, abbr, name, ts string, values map[string]float64) models.HourlyRow {
	t.Helper()
	row := hourlyRow(t, abbr, ts, values)
	row.StationName = name
	return row
}

func metricsFor(rows []models.MetricRow, abbr string, period int, param string) (models.MetricRow, bool) {
	for _, m := range rows {
		if m.StationAbbr == abbr && m.TimePeriod == period && m.Parameter == param {
			return m, true
		}
	}
	return models.MetricRow{}, false
}

func TestComputeMetrics_WindowsAndKinds(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	rows := []models.HourlyRow{
		// Inside every window.
		namedRow(t, "AIG", "Aigle", "2026-08-30T06:00:00Z", map[string]float64{"rre150h0": 2.0}),
		namedRow(t, "AIG", "Aigle", "2026-08-30T07:00:00Z", map[string]float64{"rre150h0": 1.0}),
		// Inside 7d and wider, outside 3d.
		namedRow(t, "AIG", "Aigle", "2026-08-26T06:00:00Z", map[string]float64{"rre150h0": 5.0}),
		namedRow(t, "ABO", "Adelboden", "2026-08-30T06:00:00Z", map[string]float64{"tre200h0": 10.0}),
		namedRow(t, "ABO", "Adelboden", "2026-08-26T06:00:00Z", map[string]float64{"tre200h0": 20.0}),
	}

	out := ComputeMetrics(rows, WindowCutoffs(now))

	rain3, ok := metricsFor(out, "AIG", 3, "rre150h0")
	if !ok {
		t.Fatal("missing 3d rainfall metric for AIG")
	}
	if rain3.Value != 3.0 || rain3.Type != models.AggSum {
		t.Errorf("3d rainfall = %v (%s), want sum 3.0", rain3.Value, rain3.Type)
	}
	rain7, _ := metricsFor(out, "AIG", 7, "rre150h0")
	if rain7.Value != 8.0 {
		t.Errorf("7d rainfall = %v, want 8.0", rain7.Value)
	}
	if rain7.Value < rain3.Value {
		t.Error("sum metrics must grow (or hold) as the window widens")
	}
	if rain3.StationName != "Aigle" {
		t.Errorf("StationName = %q, want Aigle", rain3.StationName)
	}

	temp3, _ := metricsFor(out, "ABO", 3, "tre200h0")
	if temp3.Value != 10.0 || temp3.Type != models.AggMean {
		t.Errorf("3d temperature = %v (%s), want mean 10.0", temp3.Value, temp3.Type)
	}
	temp7, _ := metricsFor(out, "ABO", 7, "tre200h0")
	if temp7.Value != 15.0 {
		t.Errorf("7d temperature = %v, want mean 15.0", temp7.Value)
	}

	// A station never reports a parameter it has no sensor for.
	if _, ok := metricsFor(out, "ABO", 30, "rre150h0"); ok {
		t.Error("ABO should have no rainfall metrics")
	}
}

func TestComputeMetrics_DeterministicOrder(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	rows := []models.HourlyRow{
		namedRow(t, "GVE", "Genève", "2026-08-30T06:00:00Z", map[string]float64{"ure200h0": 60, "tre200h0": 22}),
		namedRow(t, "ABO", "Adelboden", "2026-08-30T06:00:00Z", map[string]float64{"tre200h0": 10}),
	}

	first := ComputeMetrics(rows, WindowCutoffs(now))
	second := ComputeMetrics(rows, WindowCutoffs(now))
	if len(first) != len(second) {
		t.Fatalf("recomputation changed row count: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("row %d differs between runs: %+v vs %+v", i, first[i], second[i])
		}
	}

	// Periods ascend, stations and parameters sort within a period.
	lastPeriod := 0
	for _, m := range first {
		if m.TimePeriod < lastPeriod {
			t.Fatalf("periods out of order: %+v", first)
		}
		lastPeriod = m.TimePeriod
	}
	if first[0].StationAbbr != "ABO" {
		t.Errorf("first station = %s, want ABO", first[0].StationAbbr)
	}
	if first[1].Parameter != "tre200h0" || first[2].Parameter != "ure200h0" {
		t.Errorf("parameters not sorted within station: %+v", first[1:3])
	}
}

func TestComputeMetrics_EmptyWindow(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	rows := []models.HourlyRow{
		namedRow(t, "ABO", "Adelboden", "2026-08-10T06:00:00Z", map[string]float64{"tre200h0": 10}),
	}

	out := ComputeMetrics(rows, WindowCutoffs(now))
	for _, m := range out {
		if m.TimePeriod < 30 {
			t.Errorf("row older than every short window produced a %dd metric", m.TimePeriod)
		}
	}
	if _, ok := metricsFor(out, "ABO", 30, "tre200h0"); !ok {
		t.Error("30d window should still cover the row")
	}
}
