package meta

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"

	"github.com/nkaeser/pilzwetter/internal/models"
	"github.com/nkaeser/pilzwetter/internal/store"
)

// Loader fetches the station, parameter and data-inventory reference tables,
// validates them against their declared schemas and persists one snapshot
// file per category. Metadata is foundational: any schema violation is a hard
// error and leaves the previous snapshot untouched.
type Loader struct {
	client  *http.Client
	dataDir string
	sources map[string][]string
	debug   bool
}

func NewLoader(client *http.Client, dataDir string, debug bool) *Loader {
	return &Loader{
		client:  client,
		dataDir: dataDir,
		sources: make(map[string][]string),
		debug:   debug,
	}
}

// SetSources overrides the source URLs or file paths for a category.
// Used by tests and local mirrors; the default is the upstream open data.
func (l *Loader) SetSources(category string, sources []string) {
	l.sources[category] = sources
}

func (l *Loader) categorySources(category string) []string {
	if s, ok := l.sources[category]; ok {
		return s
	}
	return sourceURLs(category)
}

// Stations loads and persists the station reference table.
func (l *Loader) Stations(ctx context.Context) ([]models.Station, error) {
	rows, err := l.loadCategory(ctx, CategoryStations, schemaStations, colsToKeepStations)
	if err != nil {
		return nil, err
	}
	stations := make([]models.Station, 0, len(rows))
	for _, r := range rows {
		stations = append(stations, models.Station{
			Abbr:                 r[0],
			Name:                 r[1],
			Canton:               r[2],
			TypeDE:               r[3],
			TypeEN:               r[4],
			DataOwner:            r[5],
			DataSince:            r[6],
			HeightMASL:           nullFloat(r[7]),
			HeightBarometerMASL:  nullFloat(r[8]),
			CoordinatesLV95East:  nullFloat(r[9]),
			CoordinatesLV95North: nullFloat(r[10]),
			CoordinatesWGS84Lat:  nullFloat(r[11]),
			CoordinatesWGS84Lon:  nullFloat(r[12]),
		})
	}
	return stations, nil
}

// Parameters loads and persists the parameter reference table. Each
// parameter gets its aggregation kind attached here, so downstream code
// never infers it from values.
func (l *Loader) Parameters(ctx context.Context) ([]models.Parameter, error) {
	rows, err := l.loadCategory(ctx, CategoryParameters, schemaParameters, colsToKeepParameters)
	if err != nil {
		return nil, err
	}
	params := make([]models.Parameter, 0, len(rows))
	for _, r := range rows {
		params = append(params, models.Parameter{
			Datatype:      r[0],
			Decimals:      nullInt(r[1]),
			DescriptionDE: r[2],
			DescriptionEN: r[3],
			Granularity:   r[4],
			GroupDE:       r[5],
			GroupEN:       r[6],
			Shortname:     r[7],
			Unit:          r[8],
			Aggregation:   models.AggregationFor(r[7]),
		})
	}
	return params, nil
}

// DataInventory loads and persists the per-station parameter inventory.
func (l *Loader) DataInventory(ctx context.Context) ([]models.InventoryEntry, error) {
	rows, err := l.loadCategory(ctx, CategoryDataInventory, schemaDataInventory, colsToKeepDataInventory)
	if err != nil {
		return nil, err
	}
	entries := make([]models.InventoryEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, models.InventoryEntry{
			DataSince:          nullTime(r[0]),
			DataTill:           nullTime(r[1]),
			Owner:              r[2],
			ParameterShortname: r[3],
			StationAbbr:        r[4],
		})
	}
	return entries, nil
}

// loadCategory fetches every source of a category, validates rows against
// the declared schema, concatenates them and writes the category snapshot.
// The snapshot is only written once all sources parsed cleanly.
func (l *Loader) loadCategory(ctx context.Context, category string, schema []column, keep []string) ([][]string, error) {
	var rows [][]string
	for _, src := range l.categorySources(category) {
		body, err := l.open(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("metadata %s: %w", category, err)
		}
		srcRows, err := parseSource(body, schema, keep)
		body.Close()
		if err != nil {
			return nil, fmt.Errorf("metadata %s: %s: %w", category, src, err)
		}
		rows = append(rows, srcRows...)
	}

	path := filepath.Join(l.dataDir, "meta_"+category+".csv")
	err := store.WriteFileAtomic(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		cw.Comma = ';'
		if err := cw.Write(keep); err != nil {
			return err
		}
		if err := cw.WriteAll(rows); err != nil {
			return err
		}
		cw.Flush()
		return cw.Error()
	})
	if err != nil {
		return nil, fmt.Errorf("persist metadata %s: %w", category, err)
	}
	if l.debug {
		log.Printf("meta: %s snapshot written to %s (%d rows)", category, path, len(rows))
	}
	return rows, nil
}

// open returns the body of a metadata source, which is either an HTTP(S) URL
// or a local file path.
func (l *Loader) open(ctx context.Context, src string) (io.ReadCloser, error) {
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		f, err := os.Open(src)
		if err != nil {
			return nil, err
		}
		return f, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", src, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: status %d", src, resp.StatusCode)
	}
	return resp.Body, nil
}

// parseSource reads one semicolon-delimited ISO-8859-1 source and returns
// the kept columns of every row, in keep-list order. Unknown columns are
// dropped; a kept column missing from the header or a cell that does not
// parse as its declared type fails the whole load.
func parseSource(r io.Reader, schema []column, keep []string) ([][]string, error) {
	types := make(map[string]columnType, len(schema))
	for _, c := range schema {
		types[c.name] = c.typ
	}

	cr := csv.NewReader(charmap.ISO8859_1.NewDecoder().Reader(r))
	cr.Comma = ';'

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	indexes := make([]int, len(keep))
	for i, name := range keep {
		indexes[i] = -1
		for j, h := range header {
			if h == name {
				indexes[i] = j
				break
			}
		}
		if indexes[i] == -1 {
			return nil, fmt.Errorf("column %q missing from header", name)
		}
	}

	var rows [][]string
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		row := make([]string, len(keep))
		for i, idx := range indexes {
			cell := record[idx]
			if err := validateCell(cell, types[keep[i]]); err != nil {
				return nil, fmt.Errorf("line %d, column %q: %w", line, keep[i], err)
			}
			row[i] = cell
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func validateCell(cell string, typ columnType) error {
	if cell == "" {
		return nil
	}
	switch typ {
	case colInt:
		if _, err := strconv.ParseInt(cell, 10, 64); err != nil {
			return fmt.Errorf("%q is not a valid Integer", cell)
		}
	case colFloat:
		if _, err := strconv.ParseFloat(cell, 64); err != nil {
			return fmt.Errorf("%q is not a valid Float", cell)
		}
	case colDatetime:
		if _, err := parseMetaTime(cell); err != nil {
			return fmt.Errorf("%q is not a valid Datetime", cell)
		}
	}
	return nil
}

var metaTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02.01.2006 15:04",
	"02.01.2006",
}

func parseMetaTime(cell string) (time.Time, error) {
	for _, layout := range metaTimeLayouts {
		if t, err := time.Parse(layout, cell); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", cell)
}

func nullFloat(cell string) sql.NullFloat64 {
	if cell == "" {
		return sql.NullFloat64{}
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func nullInt(cell string) sql.NullInt64 {
	if cell == "" {
		return sql.NullInt64{}
	}
	v, err := strconv.ParseInt(cell, 10, 64)
	if err != nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}

func nullTime(cell string) sql.NullTime {
	if cell == "" {
		return sql.NullTime{}
	}
	t, err := parseMetaTime(cell)
	if err != nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
