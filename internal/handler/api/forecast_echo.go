package api

import (
	"context"
	"errors"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	"FinCast/internal/service/metrics"
	"FinCast/internal/service/ratelimit"
	"FinCast/internal/usecase"
	xhttp "FinCast/pkg/http"
	xlogger "FinCast/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Forecaster is the part of the forecast pipeline the HTTP API drives.
type Forecaster interface {
	Ingest(ctx context.Context, t models.Tick) error
	Predict(ctx context.Context, key models.SeriesKey) float64
}

type RateLimit struct {
	Capacity     float64
	RefillPerSec float64
}

// ForecastEchoHandler serves tick ingestion, predictions and history.
type ForecastEchoHandler struct {
	logger   *xlogger.Logger
	forecast Forecaster
	ticks    *usecase.TicksUseCase
	store    domrepo.TickStore
	rl       *ratelimit.Limiter
	limit    RateLimit
	now      func() time.Time
}

func NewForecastEchoHandler(logger *xlogger.Logger, f Forecaster, ticks *usecase.TicksUseCase, store domrepo.TickStore, limit RateLimit) *ForecastEchoHandler {
	metrics.Register()
	if logger == nil {
		logger = xlogger.NewNop()
	}
	return &ForecastEchoHandler{
		logger:   logger.Named("api"),
		forecast: f,
		ticks:    ticks,
		store:    store,
		rl:       ratelimit.New(),
		limit:    limit,
		now:      time.Now,
	}
}

func (h *ForecastEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api", h.rateLimit)
	g.POST("/add-tick", h.AddTick)
	g.GET("/prediction", h.Prediction)
	g.GET("/ticks", h.Ticks)
}

func (h *ForecastEchoHandler) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if h.limit.Capacity <= 0 {
			return next(c)
		}
		if !h.rl.Allow(c.RealIP()+":"+c.Path(), h.limit.Capacity, h.limit.RefillPerSec) {
			metrics.APIErrors.WithLabelValues(c.Path(), "rate_limited").Inc()
			h.logger.Warn("rate limited", xlogger.String("remote", c.RealIP()), xlogger.String("path", c.Path()))
			return xhttp.TooManyRequestsResponse(c)
		}
		return next(c)
	}
}

func observe(endpoint string, start time.Time) {
	metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// AddTick accepts one tick. A tick the pipeline rejects still gets 204.
func (h *ForecastEchoHandler) AddTick(c echo.Context) error {
	defer observe("add_tick", time.Now())

	req := &models.AddTickRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.APIErrors.WithLabelValues("add_tick", "validation").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}

	t := req.Tick(h.now())
	if err := h.forecast.Ingest(c.Request().Context(), t); err != nil {
		metrics.APIErrors.WithLabelValues("add_tick", "store").Inc()
		h.logger.Error("add tick failed", xlogger.String("key", t.Key().String()), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("tick could not be stored").WithError(err))
	}
	return xhttp.NoContentResponse(c)
}

// Prediction never fails for lack of data; an unseen series yields 0.
func (h *ForecastEchoHandler) Prediction(c echo.Context) error {
	defer observe("prediction", time.Now())

	req := &models.PredictionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.APIErrors.WithLabelValues("prediction", "validation").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}

	key := models.NewSeriesKey(req.Symbol, req.TimeFrame)
	v := h.forecast.Predict(c.Request().Context(), key)
	return xhttp.SuccessResponse(c, models.Prediction{Symbol: key.Symbol, TimeFrame: key.TimeFrame, Value: v})
}

func (h *ForecastEchoHandler) Ticks(c echo.Context) error {
	defer observe("ticks", time.Now())

	req := &models.TicksRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.APIErrors.WithLabelValues("ticks", "validation").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.ticks.GetTicks(c.Request().Context(), usecase.GetTicksParams{
		Key:   models.NewSeriesKey(req.Symbol, req.TimeFrame),
		From:  xhttp.ParseTimeDefault(req.From, time.Time{}),
		To:    xhttp.ParseTimeDefault(req.To, time.Time{}),
		Limit: req.Limit,
	})
	if errors.Is(err, usecase.ErrInvalidQuery) {
		metrics.APIErrors.WithLabelValues("ticks", "validation").Inc()
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	if err != nil {
		metrics.APIErrors.WithLabelValues("ticks", "store").Inc()
		h.logger.Error("ticks query failed", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("ticks could not be loaded").WithError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=5")
	return xhttp.SuccessResponse(c, res)
}

func (h *ForecastEchoHandler) Health(c echo.Context) error {
	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Health(ctx); err != nil {
			h.logger.Warn("health check failed", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, xhttp.UnavailableError("tick store unreachable").WithError(err))
		}
	}
	return xhttp.SuccessResponse(c, map[string]string{"store": "ok"})
}

var _ xhttp.Handler = (*ForecastEchoHandler)(nil)

// RunJanitor drops idle rate limit buckets until ctx ends.
func (h *ForecastEchoHandler) RunJanitor(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := h.rl.Sweep(every); n > 0 {
				h.logger.Debug("rate limit buckets swept", xlogger.Int("count", n))
			}
		}
	}
}
