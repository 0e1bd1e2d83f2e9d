package usecase

import (
	"context"
	"sync"
	"time"

	"FinCast/internal/domain/models"
	drepo "FinCast/internal/domain/repository"
	mid "FinCast/internal/middleware"
	applogger "FinCast/pkg/logger"
)

// FeedCollector turns the live trade stream into candles and feeds each
// completed candle to the ingest pipeline.
type FeedCollector struct {
	stream  drepo.MarketStream
	candles *CandleBuilder
	pipe    *mid.RealtimePipeline
	metrics drepo.Metrics
	logger  *applogger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewFeedCollector(stream drepo.MarketStream, candles *CandleBuilder, pipe *mid.RealtimePipeline, metrics drepo.Metrics, l *applogger.Logger) *FeedCollector {
	if l == nil {
		l = applogger.NewNop()
	}
	return &FeedCollector{stream: stream, candles: candles, pipe: pipe, metrics: metrics, logger: l.Named("feed")}
}

func (c *FeedCollector) IsConnected() bool { return c.stream.IsConnected() }

func (c *FeedCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		_ = c.stream.Close()
		return err
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.pipe.Start(ctx)

	c.wg.Add(1)
	go c.run(ctx)
	return nil
}

func (c *FeedCollector) run(ctx context.Context) {
	defer c.wg.Done()

	for {
		trCh, errCh := c.stream.Read(ctx)
		c.consume(ctx, trCh, errCh)
		if ctx.Err() != nil {
			return
		}

		for {
			err := c.stream.Reconnect(ctx)
			if err == nil {
				c.logger.Info("reconnected")
				break
			}
			if ctx.Err() != nil {
				return
			}
			c.metrics.RecordError("stream_reconnect")
			c.logger.Warn("reconnect failed", applogger.Error(err))
		}
	}
}

// consume returns when the stream closes or ctx ends.
func (c *FeedCollector) consume(ctx context.Context, trCh <-chan *models.Trade, errCh <-chan error) {
	ticker := time.NewTicker(c.candles.Frame() / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			c.metrics.RecordError("stream")
			c.logger.Warn("stream error", applogger.Error(err))
		case t, ok := <-trCh:
			if !ok {
				return
			}
			if t == nil {
				continue
			}
			c.metrics.RecordLastPrice(t.Symbol, t.Price)
			if candle, done := c.candles.Add(t); done {
				c.ingest(ctx, candle)
			}
		case now := <-ticker.C:
			for _, candle := range c.candles.Flush(now) {
				c.ingest(ctx, candle)
			}
		}
	}
}

func (c *FeedCollector) ingest(ctx context.Context, t models.Tick) {
	if err := c.pipe.Ingest(ctx, t); err != nil {
		c.logger.Warn("candle ingest failed",
			applogger.String("key", t.Key().String()),
			applogger.Time("bucket", t.Timestamp),
			applogger.Error(err))
	}
}

// Shutdown stops the read loop and the pipeline, then closes the stream.
func (c *FeedCollector) Shutdown(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	err := c.stream.Close()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.pipe.Stop()
	return err
}
