package activity

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidRequest = errors.New("invalid activity request")
	ErrTooManyBuckets = errors.New("too many buckets for range")
)

type DurationType string

const (
	DurationDays   DurationType = "days"
	DurationWeeks  DurationType = "weeks"
	DurationMonths DurationType = "months"
	DurationYears  DurationType = "years"
)

const maxDuration = 3650

type Granularity string

const (
	GranularityDay   Granularity = "DAY"
	GranularityWeek  Granularity = "WEEK"
	GranularityMonth Granularity = "MONTH"
	GranularityYear  Granularity = "YEAR"
)

// ParseGranularity accepts any letter case.
func ParseGranularity(raw string) (Granularity, error) {
	g := Granularity(strings.ToUpper(strings.TrimSpace(raw)))
	switch g {
	case GranularityDay, GranularityWeek, GranularityMonth, GranularityYear:
		return g, nil
	}
	return "", fmt.Errorf("%w: unsupported granularity %q", ErrInvalidRequest, raw)
}

// DateRange resolves "the last N units" to [start, end), where end is the
// start of the day after now in loc.
func DateRange(durationType DurationType, duration int, now time.Time, loc *time.Location) (time.Time, time.Time, error) {
	if duration < 1 || duration > maxDuration {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: duration must be between 1 and %d", ErrInvalidRequest, maxDuration)
	}

	end := startOfDay(now.In(loc)).AddDate(0, 0, 1)
	var start time.Time
	switch DurationType(strings.ToLower(string(durationType))) {
	case DurationDays:
		start = end.AddDate(0, 0, -duration)
	case DurationWeeks:
		start = end.AddDate(0, 0, -7*duration)
	case DurationMonths:
		start = end.AddDate(0, -duration, 0)
	case DurationYears:
		start = end.AddDate(-duration, 0, 0)
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("%w: unsupported duration type %q", ErrInvalidRequest, durationType)
	}
	return start, end, nil
}

// Bucket is a half-open interval [Start, End).
type Bucket struct {
	Start time.Time
	End   time.Time
}

func (b Bucket) Contains(t time.Time) bool {
	return !t.Before(b.Start) && t.Before(b.End)
}

// Buckets splits [start, end) into calendar-aligned buckets. The first bucket
// begins at the boundary at or before start, in start's location.
func Buckets(start, end time.Time, granularity Granularity, weekStart time.Weekday, maxBuckets int) ([]Bucket, error) {
	if !start.Before(end) {
		return []Bucket{}, nil
	}

	cursor := alignDown(start, granularity, weekStart)
	var buckets []Bucket
	for cursor.Before(end) {
		if maxBuckets > 0 && len(buckets) >= maxBuckets {
			return nil, fmt.Errorf("%w: more than %d %s buckets", ErrTooManyBuckets, maxBuckets, granularity)
		}
		next := advance(cursor, granularity)
		buckets = append(buckets, Bucket{Start: cursor, End: next})
		cursor = next
	}
	return buckets, nil
}

// bucketIndex finds the bucket containing t, or -1. Buckets are sorted and
// contiguous, so a binary search is enough.
func bucketIndex(buckets []Bucket, t time.Time) int {
	lo, hi := 0, len(buckets)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		switch {
		case t.Before(buckets[mid].Start):
			hi = mid - 1
		case !t.Before(buckets[mid].End):
			lo = mid + 1
		default:
			return mid
		}
	}
	return -1
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func alignDown(t time.Time, granularity Granularity, weekStart time.Weekday) time.Time {
	day := startOfDay(t)
	switch granularity {
	case GranularityWeek:
		offset := (int(day.Weekday()) - int(weekStart) + 7) % 7
		return day.AddDate(0, 0, -offset)
	case GranularityMonth:
		return time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
	case GranularityYear:
		return time.Date(day.Year(), time.January, 1, 0, 0, 0, 0, day.Location())
	default:
		return day
	}
}

func advance(t time.Time, granularity Granularity) time.Time {
	switch granularity {
	case GranularityWeek:
		return t.AddDate(0, 0, 7)
	case GranularityMonth:
		return t.AddDate(0, 1, 0)
	case GranularityYear:
		return t.AddDate(1, 0, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}
