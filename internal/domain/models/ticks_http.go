package models

import "time"

// Requests for forecast HTTP endpoints.

type AddTickRequest struct {
	Symbol    string    `json:"symbol" validate:"required,max=32"`
	TimeFrame int       `json:"timeframe" validate:"gte=0"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open" validate:"gte=0"`
	High      float64   `json:"high" validate:"gte=0"`
	Low       float64   `json:"low" validate:"gte=0"`
	Close     float64   `json:"close" validate:"gte=0"`
	Volume    float64   `json:"volume" validate:"gte=0"`
}

// Tick converts the request, stamping now when no timestamp was sent.
func (r AddTickRequest) Tick(now time.Time) Tick {
	ts := r.Timestamp
	if ts.IsZero() {
		ts = now
	}
	return Tick{
		Symbol:    NewSeriesKey(r.Symbol, r.TimeFrame).Symbol,
		TimeFrame: r.TimeFrame,
		Timestamp: ts.UTC(),
		Open:      r.Open,
		High:      r.High,
		Low:       r.Low,
		Close:     r.Close,
		Volume:    r.Volume,
	}
}

type PredictionRequest struct {
	Symbol    string `query:"symbol" json:"symbol" validate:"required,max=32"`
	TimeFrame int    `query:"timeframe" json:"timeframe" validate:"gte=0"`
}

type TicksRequest struct {
	Symbol    string `query:"symbol" json:"symbol" validate:"required,max=32"`
	TimeFrame int    `query:"timeframe" json:"timeframe" validate:"gte=0"`
	From      string `query:"from" json:"from"`
	To        string `query:"to" json:"to"`
	Limit     int    `query:"limit" json:"limit" default:"500" validate:"gte=1,lte=10000"`
}
