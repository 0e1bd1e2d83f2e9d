package models

import "time"

// Trade is a single print from the live market feed.
type Trade struct {
	Symbol    string
	Price     float64
	Volume    float64
	Timestamp time.Time
}
