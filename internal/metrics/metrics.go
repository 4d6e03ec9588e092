package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FeedDownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pilzwetter_feed_downloads_total",
			Help: "Total station feed download attempts by final outcome",
		},
		[]string{"outcome"},
	)

	FeedRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pilzwetter_feed_retries_total",
			Help: "Total retried feed requests after a 5xx response",
		},
	)

	ReadingsIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pilzwetter_readings_ingested_total",
			Help: "Total raw readings parsed from station feeds",
		},
	)

	StationsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pilzwetter_stations_dropped_total",
			Help: "Stations dropped from a run after exhausting fetch retries",
		},
	)

	TableRowsWritten = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pilzwetter_table_rows_written",
			Help: "Rows written to a persisted table in the last run",
		},
		[]string{"table"},
	)
)
