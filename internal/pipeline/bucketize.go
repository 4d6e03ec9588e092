package pipeline

import (
	"time"

	"github.com/nkaeser/pilzwetter/internal/models"
)

// DedupReadings collapses readings sharing (station, timestamp) to a single
// reading. Overlapping "recent" and "now" feed windows produce such
// duplicates; the later occurrence wins, so callers order the fresher feed
// last. Readings with an invalid timestamp pass through untouched.
func DedupReadings(readings []models.Reading) []models.Reading {
	type key struct {
		abbr string
		ts   int64
	}
	seen := make(map[key]int)
	out := make([]models.Reading, 0, len(readings))
	for _, r := range readings {
		if !r.Timestamp.Valid {
			out = append(out, r)
			continue
		}
		k := key{abbr: r.StationAbbr, ts: r.Timestamp.Time.Unix()}
		if i, ok := seen[k]; ok {
			out[i] = r
			continue
		}
		seen[k] = len(out)
		out = append(out, r)
	}
	return out
}

// Bucketize resamples readings onto a fixed 1-hour grid aligned to epoch
// hour boundaries, so all stations' hours line up. Sum-kind parameters are
// summed, mean-kind averaged over the readings falling in [hour, hour+1h).
// Readings whose local timestamp did not exist are dropped here. The result
// has exactly one row per (station, hour) present in the input; station
// names are attached later.
func Bucketize(readings []models.Reading) []models.HourlyRow {
	type key struct {
		abbr string
		hour int64
	}
	type bucket struct {
		abbr  string
		hour  time.Time
		sum   map[string]float64
		count map[string]int
	}

	buckets := make(map[key]*bucket)
	for _, r := range readings {
		if !r.Timestamp.Valid {
			continue
		}
		hour := r.Timestamp.Time.Truncate(time.Hour)
		k := key{abbr: r.StationAbbr, hour: hour.Unix()}
		b, ok := buckets[k]
		if !ok {
			b = &bucket{
				abbr:  r.StationAbbr,
				hour:  hour,
				sum:   make(map[string]float64),
				count: make(map[string]int),
			}
			buckets[k] = b
		}
		for p, v := range r.Values {
			b.sum[p] += v
			b.count[p]++
		}
	}

	rows := make([]models.HourlyRow, 0, len(buckets))
	for _, b := range buckets {
		row := models.HourlyRow{
			StationAbbr: b.abbr,
			Timestamp:   b.hour,
			Values:      make(map[string]float64, len(b.sum)),
		}
		for p, sum := range b.sum {
			switch models.AggregationFor(p) {
			case models.AggSum:
				row.Values[p] = sum
			case models.AggMean:
				row.Values[p] = sum / float64(b.count[p])
			}
		}
		rows = append(rows, row)
	}
	return rows
}
