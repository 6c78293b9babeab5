// Package schedule holds the interval arithmetic the appointment ledger is
// built on. Intervals are half-open [start, end): the end instant is
// excluded, so back-to-back bookings never count as overlapping.
package schedule

import "time"

// Interval is a half-open time window [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval validates that end is strictly after start.
func NewInterval(start, end time.Time) (Interval, bool) {
	if !end.After(start) {
		return Interval{}, false
	}
	return Interval{Start: start, End: end}, true
}

// Overlaps reports whether the two half-open intervals intersect.
// [a, b) and [c, d) intersect iff a < d && c < b.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// Overlaps reports whether i intersects other.
func (i Interval) Overlaps(other Interval) bool {
	return Overlaps(i.Start, i.End, other.Start, other.End)
}

// Contains reports whether t falls inside the interval.
func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}

// Duration returns the interval length.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}
