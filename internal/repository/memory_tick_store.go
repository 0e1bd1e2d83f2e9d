package repository

import (
	"context"
	"sort"
	"sync"

	"FinCast/internal/domain/models"
	drepo "FinCast/internal/domain/repository"
)

type tickID struct {
	symbol    string
	timeFrame int
	ts        int64
}

// MemoryTickStore keeps ticks in process. Saving a tick with the same
// symbol, timeframe and timestamp replaces the previous one.
type MemoryTickStore struct {
	mu    sync.RWMutex
	ticks map[tickID]models.Tick
}

func NewMemoryTickStore() *MemoryTickStore {
	return &MemoryTickStore{ticks: make(map[tickID]models.Tick)}
}

func (s *MemoryTickStore) Init(context.Context) error { return nil }

func (s *MemoryTickStore) Save(_ context.Context, t models.Tick) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks[tickID{t.Symbol, t.TimeFrame, t.Timestamp.UnixMilli()}] = t
	return nil
}

// matching returns ticks for key within tr in ascending time order.
func (s *MemoryTickStore) matching(key models.SeriesKey, tr drepo.TimeRange) []models.Tick {
	s.mu.RLock()
	out := make([]models.Tick, 0)
	for id, t := range s.ticks {
		if id.symbol != key.Symbol || (key.TimeFrame != 0 && id.timeFrame != key.TimeFrame) {
			continue
		}
		if tr.Contains(t.Timestamp) {
			out = append(out, t)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

func (s *MemoryTickStore) QueryExtreme(_ context.Context, key models.SeriesKey, field drepo.Field, order drepo.Order, tr drepo.TimeRange) (*models.Tick, error) {
	if !field.Valid() {
		return nil, errInvalidField(field)
	}
	var best *models.Tick
	for _, t := range s.matching(key, tr) {
		v := fieldValue(t, field)
		if best == nil ||
			(order == drepo.OrderMin && v < fieldValue(*best, field)) ||
			(order == drepo.OrderMax && v > fieldValue(*best, field)) {
			t := t
			best = &t
		}
	}
	return best, nil
}

func (s *MemoryTickStore) QueryOrdered(_ context.Context, key models.SeriesKey, tr drepo.TimeRange, limit int) ([]models.Tick, error) {
	out := s.matching(key, tr)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *MemoryTickStore) Health(context.Context) error { return nil }

func (s *MemoryTickStore) Close() error { return nil }

// Len reports the number of stored ticks.
func (s *MemoryTickStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ticks)
}

func fieldValue(t models.Tick, f drepo.Field) float64 {
	if f == drepo.FieldOpen {
		return t.Open
	}
	return t.Close
}

var _ drepo.TickStore = (*MemoryTickStore)(nil)
