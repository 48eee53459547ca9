package schema

import (
	"fmt"
	"time"
)

// Interval is the spacing between timeseries points.
type Interval string

const (
	Interval1m Interval = "1m"
	Interval5m Interval = "5m"
	Interval1h Interval = "1h"
	Interval1d Interval = "1d"

	DefaultInterval = Interval1h
)

var intervalDurations = map[Interval]time.Duration{
	Interval1m: time.Minute,
	Interval5m: 5 * time.Minute,
	Interval1h: time.Hour,
	Interval1d: 24 * time.Hour,
}

// ParseInterval returns DefaultInterval for an empty string.
func ParseInterval(s string) (Interval, error) {
	if s == "" {
		return DefaultInterval, nil
	}
	iv := Interval(s)
	if _, ok := intervalDurations[iv]; !ok {
		return "", fmt.Errorf("unsupported interval %q (want 1m, 5m, 1h or 1d)", s)
	}
	return iv, nil
}

func (iv Interval) Duration() time.Duration {
	if d, ok := intervalDurations[iv]; ok {
		return d
	}
	return time.Hour
}

// TimeSeriesQuery bounds a timeseries request. Zero times are open bounds.
type TimeSeriesQuery struct {
	Start    time.Time
	End      time.Time
	Interval Interval
}

// Contains reports whether t falls within [Start, End].
func (q TimeSeriesQuery) Contains(t time.Time) bool {
	if !q.Start.IsZero() && t.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && t.After(q.End) {
		return false
	}
	return true
}

const (
	DefaultDepth       = 10
	DefaultEventsLimit = 100
)

// EventQuery filters market events. A zero Since means no lower bound;
// a non-positive Limit means DefaultEventsLimit.
type EventQuery struct {
	Since time.Time
	Limit int
}

// Apply filters events by Since (inclusive) and truncates them to Limit.
func (q EventQuery) Apply(events []Event) []Event {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultEventsLimit
	}
	out := make([]Event, 0, min(len(events), limit))
	for _, e := range events {
		if !q.Since.IsZero() && e.Timestamp.Before(q.Since) {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out
}

// ParseTime accepts RFC 3339 timestamps, with or without a zone suffix.
func ParseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04:05.999999", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("couldn't parse timestamp %q", s)
}
