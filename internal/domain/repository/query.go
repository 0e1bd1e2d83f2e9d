package repository

import "time"

// Field names a price column that can be ranked.
type Field string

const (
	FieldOpen  Field = "open"
	FieldClose Field = "close"
)

func (f Field) Valid() bool { return f == FieldOpen || f == FieldClose }

type Order int

const (
	OrderMin Order = iota
	OrderMax
)

// TimeRange is inclusive on both ends.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// Lookback returns the window [now-d, now].
func Lookback(now time.Time, d time.Duration) TimeRange {
	return TimeRange{From: now.Add(-d), To: now}
}

func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.From) && !t.After(r.To)
}
