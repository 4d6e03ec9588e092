package ingest

import (
	"fmt"
	"time"
)

// TimeZone is the single zone all reference timestamps are normalized to.
const TimeZone = "Europe/Zurich"

// feed timestamps carry no zone. The "recent" feeds use the dotted legacy
// layout, the "now" feeds an ISO-like one.
var feedTimeLayouts = []string{
	"02.01.2006 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// parseFeedTime parses a naive feed timestamp and localizes it.
// The second return is false for local times that do not exist
// (spring-forward gap); ambiguous times resolve to the earlier instant.
func parseFeedTime(cell string, loc *time.Location) (time.Time, bool, error) {
	var naive time.Time
	var err error
	for _, layout := range feedTimeLayouts {
		if naive, err = time.Parse(layout, cell); err == nil {
			return localize(naive, loc)
		}
	}
	return time.Time{}, false, fmt.Errorf("unrecognized timestamp %q", cell)
}

// localize maps naive wall-clock components onto loc. time.Date normalizes
// nonexistent times forward, so a changed wall clock means the input fell in
// a DST gap. For ambiguous times both instants share the wall clock an hour
// of absolute time apart; the earlier one wins.
func localize(naive time.Time, loc *time.Location) (time.Time, bool, error) {
	t := time.Date(naive.Year(), naive.Month(), naive.Day(),
		naive.Hour(), naive.Minute(), naive.Second(), 0, loc)
	if !sameWall(t, naive) {
		return time.Time{}, false, nil
	}
	if earlier := t.Add(-time.Hour); sameWall(earlier, naive) {
		return earlier, true, nil
	}
	return t, true, nil
}

func sameWall(t, naive time.Time) bool {
	return t.Year() == naive.Year() && t.Month() == naive.Month() && t.Day() == naive.Day() &&
		t.Hour() == naive.Hour() && t.Minute() == naive.Minute() && t.Second() == naive.Second()
}
