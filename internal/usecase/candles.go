package usecase

import (
	"sync"
	"time"

	"FinCast/internal/domain/models"
	"FinCast/pkg/util"
)

// CandleBuilder folds trades into OHLC ticks of a fixed frame, one open
// bucket per symbol. A bucket is emitted once a later trade or a flush
// shows it is complete.
type CandleBuilder struct {
	frame   int
	mu      sync.Mutex
	open    map[string]*models.Tick
	dropped int
}

func NewCandleBuilder(frameMinutes int) *CandleBuilder {
	if frameMinutes <= 0 {
		frameMinutes = 1
	}
	return &CandleBuilder{frame: frameMinutes, open: make(map[string]*models.Tick)}
}

func (b *CandleBuilder) Frame() time.Duration { return time.Duration(b.frame) * time.Minute }

// Add folds t into its bucket and returns the bucket it closed, if any.
// Trades older than the open bucket are dropped.
func (b *CandleBuilder) Add(t *models.Trade) (models.Tick, bool) {
	start := util.AlignToFrame(t.Timestamp.UTC(), b.frame)

	b.mu.Lock()
	defer b.mu.Unlock()

	cur, ok := b.open[t.Symbol]
	switch {
	case !ok:
		b.open[t.Symbol] = b.newCandle(t, start)
		return models.Tick{}, false
	case start.Before(cur.Timestamp):
		b.dropped++
		return models.Tick{}, false
	case start.Equal(cur.Timestamp):
		cur.High = max(cur.High, t.Price)
		cur.Low = min(cur.Low, t.Price)
		cur.Close = t.Price
		cur.Volume += t.Volume
		return models.Tick{}, false
	}

	done := *cur
	b.open[t.Symbol] = b.newCandle(t, start)
	return done, true
}

func (b *CandleBuilder) newCandle(t *models.Trade, start time.Time) *models.Tick {
	return &models.Tick{
		Symbol:    t.Symbol,
		TimeFrame: b.frame,
		Timestamp: start,
		Open:      t.Price,
		High:      t.Price,
		Low:       t.Price,
		Close:     t.Price,
		Volume:    t.Volume,
	}
}

// Flush emits every bucket whose frame ended at or before now.
func (b *CandleBuilder) Flush(now time.Time) []models.Tick {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []models.Tick
	for sym, c := range b.open {
		if !c.Timestamp.Add(b.Frame()).After(now) {
			out = append(out, *c)
			delete(b.open, sym)
		}
	}
	return out
}

// Dropped counts late trades discarded so far.
func (b *CandleBuilder) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
