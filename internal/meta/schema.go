package meta

import "fmt"

// Metadata categories published per station network.
const (
	CategoryStations      = "stations"
	CategoryParameters    = "parameters"
	CategoryDataInventory = "datainventory"
)

const urlBase = "https://data.geo.admin.ch"

// The same metadata files exist once per station network: the plain automatic
// weather network, the precipitation-only network and the tower network.
var networkSuffixes = []string{"", "-precip", "-tower"}

func sourceURLs(category string) []string {
	urls := make([]string, 0, len(networkSuffixes))
	for _, suffix := range networkSuffixes {
		urls = append(urls, fmt.Sprintf("%s/ch.meteoschweiz.ogd-smn%s/ogd-smn%s_meta_%s.csv",
			urlBase, suffix, suffix, category))
	}
	return urls
}

// columnType is the declared type of a metadata column. Cells that do not
// parse as the declared type are hard errors, never coerced.
type columnType int

const (
	colString columnType = iota
	colInt
	colFloat
	colDatetime
)

func (t columnType) String() string {
	switch t {
	case colInt:
		return "Integer"
	case colFloat:
		return "Float"
	case colDatetime:
		return "Datetime"
	default:
		return "String"
	}
}

type column struct {
	name string
	typ  columnType
}

var schemaStations = []column{
	{"station_abbr", colString},
	{"station_name", colString},
	{"station_canton", colString},
	{"station_wigos_id", colString},
	{"station_type_de", colString},
	{"station_type_fr", colString},
	{"station_type_it", colString},
	{"station_type_en", colString},
	{"station_dataowner", colString},
	{"station_data_since", colString},
	{"station_height_masl", colFloat},
	{"station_height_barometer_masl", colFloat},
	{"station_coordinates_lv95_east", colFloat},
	{"station_coordinates_lv95_north", colFloat},
	{"station_coordinates_wgs84_lat", colFloat},
	{"station_coordinates_wgs84_lon", colFloat},
	{"station_exposition_de", colString},
	{"station_exposition_fr", colString},
	{"station_exposition_it", colString},
	{"station_exposition_en", colString},
	{"station_url_de", colString},
	{"station_url_fr", colString},
	{"station_url_it", colString},
	{"station_url_en", colString},
}

var schemaParameters = []column{
	{"parameter_shortname", colString},
	{"parameter_description_de", colString},
	{"parameter_description_fr", colString},
	{"parameter_description_it", colString},
	{"parameter_description_en", colString},
	{"parameter_group_de", colString},
	{"parameter_group_fr", colString},
	{"parameter_group_it", colString},
	{"parameter_group_en", colString},
	{"parameter_granularity", colString},
	{"parameter_decimals", colInt},
	{"parameter_datatype", colString},
	{"parameter_unit", colString},
}

var schemaDataInventory = []column{
	{"station_abbr", colString},
	{"parameter_shortname", colString},
	{"meas_cat_nr", colInt},
	{"data_since", colDatetime},
	{"data_till", colDatetime},
	{"owner", colString},
}

var colsToKeepStations = []string{
	"station_abbr",
	"station_name",
	"station_canton",
	"station_type_de",
	"station_type_en",
	"station_dataowner",
	"station_data_since",
	"station_height_masl",
	"station_height_barometer_masl",
	"station_coordinates_lv95_east",
	"station_coordinates_lv95_north",
	"station_coordinates_wgs84_lat",
	"station_coordinates_wgs84_lon",
}

var colsToKeepParameters = []string{
	"parameter_datatype",
	"parameter_decimals",
	"parameter_description_de",
	"parameter_description_en",
	"parameter_granularity",
	"parameter_group_de",
	"parameter_group_en",
	"parameter_shortname",
	"parameter_unit",
}

var colsToKeepDataInventory = []string{
	"data_since",
	"data_till",
	"owner",
	"parameter_shortname",
	"station_abbr",
}
