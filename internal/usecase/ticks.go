package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
)

const (
	defaultTicksLimit = 500
	maxTicksLimit     = 10000
)

// ErrInvalidQuery marks parameter errors, as opposed to store failures.
var ErrInvalidQuery = errors.New("invalid ticks query")

// TicksUseCase serves stored history for a series.
type TicksUseCase struct {
	store domrepo.TickStore
	now   func() time.Time
}

func NewTicksUseCase(store domrepo.TickStore) *TicksUseCase {
	return &TicksUseCase{store: store, now: time.Now}
}

type GetTicksParams struct {
	Key   models.SeriesKey
	From  time.Time
	To    time.Time
	Limit int
}

type GetTicksResult struct {
	Symbol    string        `json:"symbol"`
	TimeFrame int           `json:"timeframe,omitempty"`
	From      time.Time     `json:"from"`
	To        time.Time     `json:"to"`
	Count     int           `json:"count"`
	Ticks     []models.Tick `json:"ticks"`
}

// GetTicks returns up to Limit of the most recent ticks in [From, To],
// oldest first. A zero To means now; a zero From means one day before To.
func (uc *TicksUseCase) GetTicks(ctx context.Context, p GetTicksParams) (*GetTicksResult, error) {
	if p.Key.Symbol == "" {
		return nil, fmt.Errorf("%w: symbol required", ErrInvalidQuery)
	}
	if p.To.IsZero() {
		p.To = uc.now()
	}
	if p.From.IsZero() {
		p.From = p.To.Add(-24 * time.Hour)
	}
	if p.From.After(p.To) {
		return nil, fmt.Errorf("%w: from must be <= to", ErrInvalidQuery)
	}
	if p.Limit <= 0 {
		p.Limit = defaultTicksLimit
	}
	if p.Limit > maxTicksLimit {
		p.Limit = maxTicksLimit
	}

	ticks, err := uc.store.QueryOrdered(ctx, p.Key, domrepo.TimeRange{From: p.From, To: p.To}, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("get ticks: %w", err)
	}
	if ticks == nil {
		ticks = []models.Tick{}
	}

	return &GetTicksResult{
		Symbol:    p.Key.Symbol,
		TimeFrame: p.Key.TimeFrame,
		From:      p.From,
		To:        p.To,
		Count:     len(ticks),
		Ticks:     ticks,
	}, nil
}
