package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	applogger "FinCast/pkg/logger"
)

// Ingester is the downstream the pipeline feeds.
type Ingester interface {
	Ingest(ctx context.Context, t models.Tick) error
}

var ErrInvalidTick = errors.New("invalid tick")

// RealtimePipeline sits between streaming sources and the forecast ingest.
// It validates, throttles per series key, and buffers ticks the downstream
// failed on so they are retried in the background.
type RealtimePipeline struct {
	next     Ingester
	metrics  domrepo.Metrics
	logger   *applogger.Logger
	maxRPS   int
	bufSize  int
	bufCh    chan models.Tick
	stopCh   chan struct{}
	done     chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[models.SeriesKey]time.Time
	now      func() time.Time
}

type PipelineOption func(*RealtimePipeline)

// WithMaxRPS caps accepted ticks per second per series key. 0 disables it.
func WithMaxRPS(n int) PipelineOption {
	return func(p *RealtimePipeline) {
		if n >= 0 {
			p.maxRPS = n
		}
	}
}

func WithBufferSize(n int) PipelineOption {
	return func(p *RealtimePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

func WithPipelineLogger(l *applogger.Logger) PipelineOption {
	return func(p *RealtimePipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

func NewRealtimePipeline(next Ingester, metrics domrepo.Metrics, opts ...PipelineOption) *RealtimePipeline {
	p := &RealtimePipeline{
		next:     next,
		metrics:  metrics,
		logger:   applogger.NewNop(),
		maxRPS:   20,
		bufSize:  1000,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
		lastSeen: make(map[models.SeriesKey]time.Time),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan models.Tick, p.bufSize)
	return p
}

// Start launches the retry loop for buffered ticks.
func (p *RealtimePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go p.flush(ctx)
}

func (p *RealtimePipeline) flush(ctx context.Context) {
	defer close(p.done)

	backoff := 50 * time.Millisecond
	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case t := <-p.bufCh:
			if err := p.next.Ingest(ctx, t); err == nil {
				backoff = 50 * time.Millisecond
				continue
			}
			p.metrics.RecordError("pipeline_flush")
			if backoff < 2*time.Second {
				backoff *= 2
			}
			select {
			case <-time.After(backoff):
			case <-p.stopCh:
				return
			}
			select {
			case p.bufCh <- t:
			default:
				p.metrics.RecordError("pipeline_buffer_drop")
			}
		}
	}
}

// Stop ends the retry loop. Ticks still buffered are dropped.
func (p *RealtimePipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()

	close(p.stopCh)
	<-p.done
	if n := len(p.bufCh); n > 0 {
		p.logger.Warn("pipeline stopped with buffered ticks", applogger.Int("dropped", n))
	}
}

// Ingest validates, throttles and forwards t. A downstream failure buffers
// the tick for retry and is still returned to the caller.
func (p *RealtimePipeline) Ingest(ctx context.Context, t models.Tick) error {
	start := p.now()
	if err := ValidateTick(t); err != nil {
		p.metrics.RecordTickRejected("invalid")
		return err
	}
	if !p.allow(t.Key(), start) {
		p.metrics.RecordTickRejected("throttled")
		return nil
	}

	if err := p.next.Ingest(ctx, t); err != nil {
		p.metrics.RecordError("pipeline_ingest")
		select {
		case p.bufCh <- t:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_ingest", time.Since(start).Seconds())
	return nil
}

// Buffered reports ticks waiting for retry.
func (p *RealtimePipeline) Buffered() int { return len(p.bufCh) }

func ValidateTick(t models.Tick) error {
	switch {
	case t.Symbol == "":
		return fmt.Errorf("%w: symbol empty", ErrInvalidTick)
	case t.Timestamp.IsZero():
		return fmt.Errorf("%w: timestamp missing", ErrInvalidTick)
	case t.TimeFrame < 0:
		return fmt.Errorf("%w: negative timeframe", ErrInvalidTick)
	case t.Open < 0 || t.High < 0 || t.Low < 0 || t.Close < 0 || t.Volume < 0:
		return fmt.Errorf("%w: negative price/volume", ErrInvalidTick)
	case t.High < t.Low:
		return fmt.Errorf("%w: high below low", ErrInvalidTick)
	}
	return nil
}

func (p *RealtimePipeline) allow(key models.SeriesKey, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	last, ok := p.lastSeen[key]
	if ok && now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[key] = now
	return true
}
