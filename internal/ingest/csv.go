package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"golang.org/x/text/encoding/charmap"

	"github.com/nkaeser/pilzwetter/internal/metrics"
	"github.com/nkaeser/pilzwetter/internal/models"
)

const (
	colStationAbbr        = "station_abbr"
	colReferenceTimestamp = "reference_timestamp"
)

// errSchemaMismatch signals that the downloaded files do not share one
// header, which breaks the single-pass strict parse.
var errSchemaMismatch = errors.New("feed files have incompatible headers")

// Ingester parses downloaded feed CSVs into typed readings. Column types
// come from the parameters metadata, not from value inspection. Parsing is
// strict across files first; on header drift it falls back to a per-file
// parse whose rows form a diagonal (outer) column union, so one inconsistent
// file cannot fail the run.
type Ingester struct {
	schema map[string]string // parameter shortname -> declared datatype
	loc    *time.Location
	debug  bool
}

func NewIngester(params []models.Parameter, loc *time.Location, debug bool) *Ingester {
	schema := make(map[string]string, len(params))
	for _, p := range params {
		schema[p.Shortname] = p.Datatype
	}
	return &Ingester{schema: schema, loc: loc, debug: debug}
}

// ReadFiles parses all files and concatenates their readings. A missing file
// is a hard error: a gap left by a failed download must surface here, not
// read as zero rows.
func (ing *Ingester) ReadFiles(paths []string) ([]models.Reading, error) {
	readings, err := ing.readStrict(paths)
	if errors.Is(err, errSchemaMismatch) {
		if ing.debug {
			log.Printf("ingest: %v, falling back to per-file parse", err)
		}
		return ing.readDiagonal(paths)
	}
	return readings, err
}

// readStrict requires every file to share the first file's header.
func (ing *Ingester) readStrict(paths []string) ([]models.Reading, error) {
	var all []models.Reading
	var canonical []string
	for _, p := range paths {
		readings, header, err := ing.readFile(p, canonical)
		if err != nil {
			return nil, err
		}
		if canonical == nil {
			canonical = header
		}
		all = append(all, readings...)
	}
	return all, nil
}

// readDiagonal parses each file against its own header; readings from files
// with different parameter sets still merge, absent parameters stay null.
func (ing *Ingester) readDiagonal(paths []string) ([]models.Reading, error) {
	var all []models.Reading
	for _, p := range paths {
		readings, _, err := ing.readFile(p, nil)
		if err != nil {
			return nil, err
		}
		all = append(all, readings...)
	}
	return all, nil
}

func (ing *Ingester) readFile(path string, wantHeader []string) ([]models.Reading, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read feed: %w", err)
	}
	defer f.Close()

	readings, header, err := ing.parse(f, wantHeader)
	if err != nil && !errors.Is(err, errSchemaMismatch) {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return readings, header, err
}

func (ing *Ingester) parse(r io.Reader, wantHeader []string) ([]models.Reading, []string, error) {
	cr := csv.NewReader(charmap.ISO8859_1.NewDecoder().Reader(stripBOM(r)))
	cr.Comma = ';'

	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	if wantHeader != nil && !equalHeader(header, wantHeader) {
		return nil, header, errSchemaMismatch
	}

	stationIdx, timestampIdx := -1, -1
	for i, h := range header {
		switch h {
		case colStationAbbr:
			stationIdx = i
		case colReferenceTimestamp:
			timestampIdx = i
		}
	}
	if stationIdx == -1 || timestampIdx == -1 {
		return nil, header, fmt.Errorf("header missing %s or %s", colStationAbbr, colReferenceTimestamp)
	}

	var readings []models.Reading
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, header, fmt.Errorf("line %d: %w", line, err)
		}

		reading := models.Reading{
			StationAbbr: record[stationIdx],
			Values:      make(map[string]float64),
		}

		ts, ok, err := parseFeedTime(record[timestampIdx], ing.loc)
		if err != nil {
			return nil, header, fmt.Errorf("line %d: %w", line, err)
		}
		if ok {
			reading.Timestamp.Time = ts
			reading.Timestamp.Valid = true
		}

		for i, cell := range record {
			if i == stationIdx || i == timestampIdx {
				continue
			}
			if cell == "" || cell == "-" {
				continue
			}
			if ing.schema[header[i]] == models.DatatypeString {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, header, fmt.Errorf("line %d, column %q: %q is not numeric", line, header[i], cell)
			}
			reading.Values[header[i]] = v
		}

		metrics.ReadingsIngested.Inc()
		readings = append(readings, reading)
	}
	return readings, header, nil
}

// stripBOM drops a UTF-8 byte order mark before the ISO-8859-1 decode.
// Some now feeds lead with one; decoding it first would mangle it into
// three Latin-1 characters that no header comparison could recover.
func stripBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if lead, err := br.Peek(3); err == nil && bytes.Equal(lead, []byte{0xEF, 0xBB, 0xBF}) {
		br.Discard(3)
	}
	return br
}

func equalHeader(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
