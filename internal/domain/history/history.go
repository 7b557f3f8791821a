// Package history partitions timestamped XP events into labeled time buckets
// for progress charts.
//
// Buckets are built from a range selector and the current instant; calendar
// arithmetic uses the location of that instant, so callers choose the user's
// time zone by converting now before calling BuildBuckets.
package history

import (
	"fmt"
	"sort"
	"time"
)

// Range selects the bucket granularity.
type Range string

// Recognized ranges.
const (
	Daily   Range = "daily"
	Weekly  Range = "weekly"
	Monthly Range = "monthly"
	Yearly  Range = "yearly"
)

// DefaultRange is used by callers when no range is supplied.
const DefaultRange = Weekly

// Bucket geometry.
const (
	dailyBuckets   = 12
	dailyStep      = 2 * time.Hour
	weeklyBuckets  = 7
	yearlyBuckets  = 12
	hourLabel      = "15:04"
	weekdayLabelSz = 3
)

// monthlyStarts are the day-of-month boundaries of the monthly range.
var monthlyStarts = [...]int{1, 8, 15, 22}

// Ranges lists every accepted selector in display order.
func Ranges() []Range { return []Range{Daily, Weekly, Monthly, Yearly} }

// ParseRange validates a selector.
func ParseRange(s string) (Range, error) {
	for _, r := range Ranges() {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q (want one of daily, weekly, monthly, yearly)", ErrInvalidRange, s)
}

// Bucket is a half-open interval [Start, End) with a label and an XP sum.
type Bucket struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Label string    `json:"label"`
	XP    int64     `json:"xp"`
}

// Contains reports whether t falls inside the bucket.
func (b Bucket) Contains(t time.Time) bool {
	return !t.Before(b.Start) && t.Before(b.End)
}

// Event is a single XP award at an instant.
type Event struct {
	At time.Time
	XP int64
}

// BuildBuckets returns the ordered, contiguous, zeroed buckets for r.
func BuildBuckets(r Range, now time.Time) ([]Bucket, error) {
	switch r {
	case Daily:
		return daily(now), nil
	case Weekly:
		return weekly(now), nil
	case Monthly:
		return monthly(now), nil
	case Yearly:
		return yearly(now), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidRange, string(r))
	}
}

// Window returns the overall interval covered by buckets.
func Window(buckets []Bucket) (from, to time.Time) {
	if len(buckets) == 0 {
		return time.Time{}, time.Time{}
	}
	return buckets[0].Start, buckets[len(buckets)-1].End
}

// AggregateEvents adds every event inside the window to its bucket and returns
// the same slice. Buckets accumulate: aggregating twice counts twice, so build
// fresh buckets for every call. Events may arrive in any order.
func AggregateEvents(buckets []Bucket, events []Event) ([]Bucket, error) {
	for _, e := range events {
		if e.XP < 0 {
			return buckets, fmt.Errorf("%w: event at %s has %d xp", ErrInvalidAmount, e.At.Format(time.RFC3339), e.XP)
		}
	}
	for _, e := range events {
		if i := locate(buckets, e.At); i >= 0 {
			buckets[i].XP += e.XP
		}
	}
	return buckets, nil
}

// locate finds the bucket containing t, or -1.
func locate(buckets []Bucket, t time.Time) int {
	i := sort.Search(len(buckets), func(i int) bool { return t.Before(buckets[i].End) })
	if i < len(buckets) && buckets[i].Contains(t) {
		return i
	}
	return -1
}

func daily(now time.Time) []Bucket {
	y, m, d := now.Date()
	slot := now.Hour() - now.Hour()%2
	end := time.Date(y, m, d, slot, 0, 0, 0, now.Location()).Add(dailyStep)
	start := end.Add(-dailyBuckets * dailyStep)
	out := make([]Bucket, dailyBuckets)
	for i := range out {
		s := start.Add(time.Duration(i) * dailyStep)
		out[i] = Bucket{Start: s, End: s.Add(dailyStep), Label: s.Format(hourLabel)}
	}
	return out
}

func weekly(now time.Time) []Bucket {
	y, m, d := now.Date()
	first := time.Date(y, m, d-(weeklyBuckets-1), 0, 0, 0, 0, now.Location())
	out := make([]Bucket, weeklyBuckets)
	for i := range out {
		s := first.AddDate(0, 0, i)
		out[i] = Bucket{Start: s, End: first.AddDate(0, 0, i+1), Label: s.Weekday().String()[:weekdayLabelSz]}
	}
	return out
}

func monthly(now time.Time) []Bucket {
	y, m, _ := now.Date()
	loc := now.Location()
	out := make([]Bucket, len(monthlyStarts))
	for i, day := range monthlyStarts {
		end := time.Date(y, m+1, 1, 0, 0, 0, 0, loc)
		if i+1 < len(monthlyStarts) {
			end = time.Date(y, m, monthlyStarts[i+1], 0, 0, 0, 0, loc)
		}
		out[i] = Bucket{
			Start: time.Date(y, m, day, 0, 0, 0, 0, loc),
			End:   end,
			Label: fmt.Sprintf("W%d", i+1),
		}
	}
	return out
}

func yearly(now time.Time) []Bucket {
	y := now.Year()
	loc := now.Location()
	out := make([]Bucket, yearlyBuckets)
	for i := range out {
		s := time.Date(y, time.Month(i+1), 1, 0, 0, 0, 0, loc)
		out[i] = Bucket{Start: s, End: s.AddDate(0, 1, 0), Label: s.Month().String()[:3]}
	}
	return out
}
