package pipeline

import (
	"testing"
	"time"

	"github.com/nkaeser/pilzwetter/internal/models"
)

func hourlyRow(t *testing.T, abbr, ts string, values map[string]float64) models.HourlyRow {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		t.Fatalf("parse %q: %v", ts, err)
	}
	return models.HourlyRow{StationAbbr: abbr, Timestamp: parsed, Values: values}
}

func TestAttachNames_InnerJoinDropsUnknownStations(t *testing.T) {
	rows := []models.HourlyRow{
		hourlyRow(t, "ABO", "2026-08-30T00:00:00Z", nil),
		hourlyRow(t, "XXX", "2026-08-30T00:00:00Z", nil),
	}
	stations := []models.Station{{Abbr: "ABO", Name: "Adelboden"}}

	out := AttachNames(rows, stations)
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	if out[0].StationName != "Adelboden" {
		t.Errorf("StationName = %q, want Adelboden", out[0].StationName)
	}
}

func TestMerge_EnforcesRetention(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	rows := []models.HourlyRow{
		hourlyRow(t, "ABO", "2026-07-30T00:00:00Z", nil), // older than 31 days
		hourlyRow(t, "ABO", "2026-08-05T00:00:00Z", nil),
		hourlyRow(t, "ABO", "2026-08-31T00:00:00Z", nil),
	}

	out := Merge(rows, now)
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2", len(out))
	}
	cutoff := now.AddDate(0, 0, -RetentionDays)
	for _, row := range out {
		if row.Timestamp.Before(cutoff) {
			t.Errorf("row at %s survived past the retention cutoff", row.Timestamp)
		}
	}
}

func TestMerge_DedupAndDeterministicOrder(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	rows := []models.HourlyRow{
		hourlyRow(t, "GVE", "2026-08-30T01:00:00Z", map[string]float64{"tre200h0": 20.0}),
		hourlyRow(t, "ABO", "2026-08-30T01:00:00Z", map[string]float64{"tre200h0": 10.0}),
		hourlyRow(t, "ABO", "2026-08-30T00:00:00Z", map[string]float64{"tre200h0": 9.0}),
		hourlyRow(t, "ABO", "2026-08-30T01:00:00Z", map[string]float64{"tre200h0": 10.5}),
	}

	out := Merge(rows, now)
	if len(out) != 3 {
		t.Fatalf("len(out) = %d, want 3 after dedup", len(out))
	}
	wantOrder := []string{"ABO", "ABO", "GVE"}
	for i, row := range out {
		if row.StationAbbr != wantOrder[i] {
			t.Fatalf("row %d station = %s, want order timestamp then abbr: %+v", i, row.StationAbbr, out)
		}
	}
	if !out[0].Timestamp.Before(out[1].Timestamp) {
		t.Error("rows not sorted by timestamp")
	}
	if got := out[1].Values["tre200h0"]; got != 10.5 {
		t.Errorf("duplicate (station, hour) value = %v, want last occurrence 10.5", got)
	}
}

func TestMergeIncremental_OnlyAddsStrictlyNewerRows(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	existing := []models.HourlyRow{
		hourlyRow(t, "ABO", "2026-08-30T00:00:00Z", map[string]float64{"tre200h0": 9.0}),
		hourlyRow(t, "ABO", "2026-08-30T01:00:00Z", map[string]float64{"tre200h0": 10.0}),
	}
	fresh := []models.HourlyRow{
		// Same hour as the existing maximum, a recomputation with partial
		// data. Must not replace the existing row.
		hourlyRow(t, "ABO", "2026-08-30T01:00:00Z", map[string]float64{"tre200h0": 99.0}),
		hourlyRow(t, "ABO", "2026-08-30T02:00:00Z", map[string]float64{"tre200h0": 11.0}),
	}

	out := MergeIncremental(existing, fresh, now)
	if len(out) != 3 {
		t.Fatalf("len(out) = %d, want 3", len(out))
	}
	if got := out[1].Values["tre200h0"]; got != 10.0 {
		t.Errorf("existing max-hour row = %v, fresh row at the same hour must not replace it", got)
	}
	if got := out[2].Values["tre200h0"]; got != 11.0 {
		t.Errorf("newest row = %v, want appended 11.0", got)
	}
}

func TestMergeIncremental_AppliesRetentionToExistingRows(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	existing := []models.HourlyRow{
		hourlyRow(t, "ABO", "2026-07-20T00:00:00Z", nil),
		hourlyRow(t, "ABO", "2026-08-30T00:00:00Z", nil),
	}

	out := MergeIncremental(existing, nil, now)
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want stale existing rows aged out", len(out))
	}
}

func TestParameterColumns_SortedUnion(t *testing.T) {
	rows := []models.HourlyRow{
		hourlyRow(t, "ABO", "2026-08-30T00:00:00Z", map[string]float64{"ure200h0": 80, "tre200h0": 10}),
		hourlyRow(t, "AIG", "2026-08-30T00:00:00Z", map[string]float64{"rre150h0": 1}),
	}

	cols := ParameterColumns(rows)
	want := []string{"rre150h0", "tre200h0", "ure200h0"}
	if len(cols) != len(want) {
		t.Fatalf("cols = %v, want %v", cols, want)
	}
	for i := range want {
		if cols[i] != want[i] {
			t.Fatalf("cols = %v, want %v", cols, want)
		}
	}
}
