package models

import (
	"database/sql"
	"time"
)

// Station type strings as published in the English station metadata.
const (
	StationTypePrecipitation = "Automatic precipitation stations"
	StationTypeWeather       = "Automatic weather stations"
)

// AggKind says how a parameter is combined when readings are grouped.
type AggKind string

const (
	AggSum  AggKind = "sum"
	AggMean AggKind = "mean"
)

// Parameter datatypes as declared in the parameters metadata.
const (
	DatatypeInteger = "Integer"
	DatatypeFloat   = "Float"
	DatatypeString  = "String"
)

// sumParameters lists the parameters aggregated by summing. Everything else
// (temperature, humidity, wind speed, dew point) is averaged.
var sumParameters = map[string]bool{
	"rre150h0": true, // precipitation, mm per hour
}

// AggregationFor returns the aggregation kind for a parameter shortname.
// The kind is a property of the parameter's identity, never of its values.
func AggregationFor(shortname string) AggKind {
	if sumParameters[shortname] {
		return AggSum
	}
	return AggMean
}

type Station struct {
	Abbr                 string
	Name                 string
	Canton               string
	TypeDE               string
	TypeEN               string
	DataOwner            string
	DataSince            string
	HeightMASL           sql.NullFloat64
	HeightBarometerMASL  sql.NullFloat64
	CoordinatesLV95East  sql.NullFloat64
	CoordinatesLV95North sql.NullFloat64
	CoordinatesWGS84Lat  sql.NullFloat64
	CoordinatesWGS84Lon  sql.NullFloat64
}

type Parameter struct {
	Shortname     string
	DescriptionDE string
	DescriptionEN string
	GroupDE       string
	GroupEN       string
	Granularity   string
	Decimals      sql.NullInt64
	Datatype      string
	Unit          string
	Aggregation   AggKind
}

// InventoryEntry says which parameter a station reports and for which period.
type InventoryEntry struct {
	StationAbbr        string
	ParameterShortname string
	DataSince          sql.NullTime
	DataTill           sql.NullTime
	Owner              string
}

// Reading is one raw feed row at native (sub-hourly or hourly) granularity.
// Values holds only the parameters present in the source file; a missing key
// is a null. Timestamp is invalid when the local wall time does not exist
// (spring-forward DST gap).
type Reading struct {
	StationAbbr string
	Timestamp   sql.NullTime
	Values      map[string]float64
}

// HourlyRow is one row of the weather table: a station's aggregated values
// for one hour on the epoch-aligned hourly grid.
type HourlyRow struct {
	StationAbbr string
	StationName string
	Timestamp   time.Time
	Values      map[string]float64
}

// MetricRow is one row of the long-format metrics table.
type MetricRow struct {
	StationAbbr string
	StationName string
	TimePeriod  int // trailing window length in days
	Parameter   string
	Value       float64
	Type        AggKind
}
