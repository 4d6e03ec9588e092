package pipeline

import (
	"sort"
	"time"

	"github.com/nkaeser/pilzwetter/internal/models"
)

// RetentionDays is the fixed trailing window kept in the weather table.
const RetentionDays = 31

// AttachNames joins station display names onto hourly rows. The join is
// inner: rows for stations absent from the metadata are dropped.
func AttachNames(rows []models.HourlyRow, stations []models.Station) []models.HourlyRow {
	names := make(map[string]string, len(stations))
	for _, s := range stations {
		names[s.Abbr] = s.Name
	}
	out := rows[:0]
	for _, row := range rows {
		name, ok := names[row.StationAbbr]
		if !ok {
			continue
		}
		row.StationName = name
		out = append(out, row)
	}
	return out
}

// Merge applies the retention window relative to now, deduplicates to at
// most one row per (station, hour) with the last occurrence winning, and
// sorts rows deterministically by (timestamp, station).
func Merge(rows []models.HourlyRow, now time.Time) []models.HourlyRow {
	cutoff := now.AddDate(0, 0, -RetentionDays)

	type key struct {
		abbr string
		ts   int64
	}
	seen := make(map[key]int)
	merged := make([]models.HourlyRow, 0, len(rows))
	for _, row := range rows {
		if row.Timestamp.Before(cutoff) {
			continue
		}
		k := key{abbr: row.StationAbbr, ts: row.Timestamp.Unix()}
		if i, ok := seen[k]; ok {
			merged[i] = row
			continue
		}
		seen[k] = len(merged)
		merged = append(merged, row)
	}

	sort.Slice(merged, func(i, j int) bool {
		if !merged[i].Timestamp.Equal(merged[j].Timestamp) {
			return merged[i].Timestamp.Before(merged[j].Timestamp)
		}
		return merged[i].StationAbbr < merged[j].StationAbbr
	})
	return merged
}

// MergeIncremental merges freshly bucketized rows into the existing weather
// table: only rows strictly newer than the existing maximum timestamp are
// added, then retention and dedup are re-applied to the union. Existing
// rows inside the window pass through unchanged.
func MergeIncremental(existing, fresh []models.HourlyRow, now time.Time) []models.HourlyRow {
	var maxTS time.Time
	for _, row := range existing {
		if row.Timestamp.After(maxTS) {
			maxTS = row.Timestamp
		}
	}

	combined := make([]models.HourlyRow, 0, len(existing)+len(fresh))
	combined = append(combined, existing...)
	for _, row := range fresh {
		if row.Timestamp.After(maxTS) {
			combined = append(combined, row)
		}
	}
	return Merge(combined, now)
}

// ParameterColumns returns the sorted union of parameter names present in
// the rows, giving the weather table a deterministic column layout.
func ParameterColumns(rows []models.HourlyRow) []string {
	set := make(map[string]bool)
	for _, row := range rows {
		for p := range row.Values {
			set[p] = true
		}
	}
	cols := make([]string, 0, len(set))
	for p := range set {
		cols = append(cols, p)
	}
	sort.Strings(cols)
	return cols
}
