package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nkaeser/pilzwetter/internal/fetch"
	"github.com/nkaeser/pilzwetter/internal/ingest"
	"github.com/nkaeser/pilzwetter/internal/metrics"
	"github.com/nkaeser/pilzwetter/internal/models"
	"github.com/nkaeser/pilzwetter/internal/store"
)

// Mode selects how a run acquires data.
type Mode int

const (
	// FullReload downloads the recent and now feeds for every station and
	// rebuilds the weather table from scratch.
	FullReload Mode = iota
	// Incremental downloads only the now feeds and merges rows newer than
	// the existing table's maximum timestamp.
	Incremental
)

func (m Mode) String() string {
	if m == Incremental {
		return "incremental"
	}
	return "full-reload"
}

// Pipeline runs one batch: fetch feeds into a staging directory, ingest,
// bucketize, merge and persist the weather table, optionally followed by the
// metrics table. Metadata is loaded once by the caller and passed in; the
// pipeline holds it read-only for the run.
type Pipeline struct {
	fetcher  *fetch.Fetcher
	ingester *ingest.Ingester
	tables   *store.Tables
	stations []models.Station
	loc      *time.Location
	clock    clockwork.Clock
	debug    bool
}

func New(fetcher *fetch.Fetcher, ingester *ingest.Ingester, tables *store.Tables,
	stations []models.Station, loc *time.Location, clock clockwork.Clock, debug bool) *Pipeline {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		fetcher:  fetcher,
		ingester: ingester,
		tables:   tables,
		stations: stations,
		loc:      loc,
		clock:    clock,
		debug:    debug,
	}
}

// Run executes one pipeline run. Individual station fetch failures degrade
// the result; an error is returned only when no weather table could be
// produced, leaving previously persisted artifacts untouched.
func (p *Pipeline) Run(ctx context.Context, mode Mode, computeMetrics bool) error {
	now := p.clock.Now().In(p.loc)
	log.Printf("pipeline: starting %s run", mode)

	staging, err := os.MkdirTemp("", "pilzwetter-feeds-*")
	if err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	rainfallStations, weatherStations := splitStations(p.stations)
	if p.debug {
		log.Printf("pipeline: %d rainfall stations, %d weather stations",
			len(rainfallStations), len(weatherStations))
	}

	// "recent" before "now" so fresher rows win deduplication.
	timeframes := []string{fetch.TimeframeRecent, fetch.TimeframeNow}
	if mode == Incremental {
		timeframes = []string{fetch.TimeframeNow}
	}

	rainfallFiles, rainfallFailed, err := p.fetchCategory(ctx, rainfallStations, fetch.CategoryRainfall, timeframes, staging)
	if err != nil {
		return err
	}
	weatherFiles, weatherFailed, err := p.fetchCategory(ctx, weatherStations, fetch.CategoryWeather, timeframes, staging)
	if err != nil {
		return err
	}
	failed := rainfallFailed + weatherFailed
	if failed > 0 {
		log.Printf("pipeline: %d feeds dropped after exhausting retries", failed)
	}

	rainfallReadings, err := p.ingester.ReadFiles(rainfallFiles)
	if err != nil {
		return fmt.Errorf("ingest rainfall feeds: %w", err)
	}
	weatherReadings, err := p.ingester.ReadFiles(weatherFiles)
	if err != nil {
		return fmt.Errorf("ingest weather feeds: %w", err)
	}

	readings := make([]models.Reading, 0, len(rainfallReadings)+len(weatherReadings))
	readings = append(readings, rainfallReadings...)
	readings = append(readings, weatherReadings...)
	readings = DedupReadings(readings)

	rows := AttachNames(Bucketize(readings), p.stations)

	switch mode {
	case Incremental:
		existing, _, err := p.tables.ReadWeather()
		if err != nil {
			return fmt.Errorf("incremental mode needs an existing weather table: %w", err)
		}
		rows = MergeIncremental(existing, rows, now)
	default:
		rows = Merge(rows, now)
	}

	if len(rows) == 0 {
		return fmt.Errorf("no weather rows produced (%d feeds failed)", failed)
	}

	columns := ParameterColumns(rows)
	if err := p.tables.WriteWeather(rows, columns); err != nil {
		return fmt.Errorf("persist weather table: %w", err)
	}
	metrics.TableRowsWritten.WithLabelValues("weather").Set(float64(len(rows)))
	log.Printf("pipeline: weather table written: %d rows, %d parameter columns", len(rows), len(columns))

	if computeMetrics {
		metricRows := ComputeMetrics(rows, WindowCutoffs(now))
		if err := p.tables.WriteMetrics(metricRows); err != nil {
			return fmt.Errorf("persist metrics table: %w", err)
		}
		metrics.TableRowsWritten.WithLabelValues("metrics").Set(float64(len(metricRows)))
		log.Printf("pipeline: metrics table written: %d rows", len(metricRows))
	}
	return nil
}

func (p *Pipeline) fetchCategory(ctx context.Context, stations []string, category string,
	timeframes []string, staging string) ([]string, int, error) {
	var urls []string
	for _, tf := range timeframes {
		batch, err := fetch.DownloadURLs(stations, category, tf)
		if err != nil {
			return nil, 0, err
		}
		urls = append(urls, batch...)
	}
	files, failed, err := p.fetcher.FetchAll(ctx, urls, staging)
	if err != nil {
		return nil, failed, fmt.Errorf("fetch %s feeds: %w", category, err)
	}
	return files, failed, nil
}

// splitStations partitions station abbreviations by their English station
// type, lowercased for URL construction.
func splitStations(stations []models.Station) (rainfall, weather []string) {
	for _, s := range stations {
		switch s.TypeEN {
		case models.StationTypePrecipitation:
			rainfall = append(rainfall, strings.ToLower(s.Abbr))
		case models.StationTypeWeather:
			weather = append(weather, strings.ToLower(s.Abbr))
		}
	}
	return rainfall, weather
}
