package pipeline

import (
	"sort"
	"time"

	"github.com/nkaeser/pilzwetter/internal/models"
)

// TimePeriods are the trailing metric windows, in days.
var TimePeriods = []int{3, 7, 14, 30}

// WindowCutoffs maps each window length to its cutoff instant.
func WindowCutoffs(now time.Time) map[int]time.Time {
	cutoffs := make(map[int]time.Time, len(TimePeriods))
	for _, days := range TimePeriods {
		cutoffs[days] = now.AddDate(0, 0, -days)
	}
	return cutoffs
}

// ComputeMetrics derives the long-format metrics table from the weather
// table. Each window is an independent full recomputation over the rows at
// or after its cutoff: per station, sum-kind parameters are summed and
// mean-kind averaged over the whole window, then the wide result is
// unpivoted to one (parameter, value) pair per row. Parameters absent for a
// station produce no row. Overlapping windows rescanning the same rows is
// fine at 31 days of hourly data.
func ComputeMetrics(rows []models.HourlyRow, cutoffs map[int]time.Time) []models.MetricRow {
	periods := make([]int, 0, len(cutoffs))
	for p := range cutoffs {
		periods = append(periods, p)
	}
	sort.Ints(periods)

	var out []models.MetricRow
	for _, period := range periods {
		out = append(out, windowMetrics(rows, period, cutoffs[period])...)
	}
	return out
}

func windowMetrics(rows []models.HourlyRow, period int, cutoff time.Time) []models.MetricRow {
	type group struct {
		name  string
		sum   map[string]float64
		count map[string]int
	}

	groups := make(map[string]*group)
	for _, row := range rows {
		if row.Timestamp.Before(cutoff) {
			continue
		}
		g, ok := groups[row.StationAbbr]
		if !ok {
			g = &group{
				name:  row.StationName,
				sum:   make(map[string]float64),
				count: make(map[string]int),
			}
			groups[row.StationAbbr] = g
		}
		for p, v := range row.Values {
			g.sum[p] += v
			g.count[p]++
		}
	}

	abbrs := make([]string, 0, len(groups))
	for abbr := range groups {
		abbrs = append(abbrs, abbr)
	}
	sort.Strings(abbrs)

	var out []models.MetricRow
	for _, abbr := range abbrs {
		g := groups[abbr]
		params := make([]string, 0, len(g.sum))
		for p := range g.sum {
			params = append(params, p)
		}
		sort.Strings(params)

		for _, p := range params {
			kind := models.AggregationFor(p)
			value := g.sum[p]
			if kind == models.AggMean {
				value /= float64(g.count[p])
			}
			out = append(out, models.MetricRow{
				StationAbbr: abbr,
				StationName: g.name,
				TimePeriod:  period,
				Parameter:   p,
				Value:       value,
				Type:        kind,
			})
		}
	}
	return out
}
