package fetch

import (
	"errors"
	"fmt"
	"strings"
)

// Timeframe tags of the per-station feeds: "recent" covers the long trailing
// window, "now" the short most-recent window.
const (
	TimeframeRecent = "recent"
	TimeframeNow    = "now"
)

// Station categories. Rainfall stations publish on the precipitation-only
// network, weather stations on the full network.
const (
	CategoryRainfall = "rainfall"
	CategoryWeather  = "weather"
)

var (
	ErrInvalidTimeframe = errors.New("timeframe must be \"recent\" or \"now\"")
	ErrInvalidCategory  = errors.New("station category must be \"rainfall\" or \"weather\"")
)

// BaseURL is the open data host serving the feeds. A variable so tests and
// local mirrors can point the whole pipeline elsewhere.
var BaseURL = "https://data.geo.admin.ch"

const urlStationTypeBase = "ch.meteoschweiz.ogd-smn"

// DownloadURL builds the feed URL for one station. Pure function; the two
// categories differ only in a network-specific path fragment.
func DownloadURL(station, category, timeframe string) (string, error) {
	if timeframe != TimeframeRecent && timeframe != TimeframeNow {
		return "", ErrInvalidTimeframe
	}
	var suffix string
	switch category {
	case CategoryRainfall:
		suffix = "-precip"
	case CategoryWeather:
		suffix = ""
	default:
		return "", ErrInvalidCategory
	}
	station = strings.ToLower(station)
	return fmt.Sprintf("%s/%s%s/%s/ogd-smn%s_%s_h_%s.csv",
		BaseURL, urlStationTypeBase, suffix, station, suffix, station, timeframe), nil
}

// DownloadURLs builds one feed URL per station.
func DownloadURLs(stations []string, category, timeframe string) ([]string, error) {
	urls := make([]string, 0, len(stations))
	for _, s := range stations {
		u, err := DownloadURL(s, category, timeframe)
		if err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, nil
}
