package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"FinCast/internal/domain/models"
	"FinCast/internal/repository"
	"FinCast/internal/usecase"

	"github.com/labstack/echo/v4"
)

type stubForecaster struct {
	mu       sync.Mutex
	ingested []models.Tick
	err      error
	values   map[models.SeriesKey]float64
}

func (s *stubForecaster) Ingest(_ context.Context, t models.Tick) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.ingested = append(s.ingested, t)
	return nil
}

func (s *stubForecaster) Predict(_ context.Context, key models.SeriesKey) float64 {
	return s.values[key]
}

func newTestServer(f Forecaster, limit RateLimit) *echo.Echo {
	store := repository.NewMemoryTickStore()
	h := NewForecastEchoHandler(nil, f, usecase.NewTicksUseCase(store), store, limit)
	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAddTick(t *testing.T) {
	f := &stubForecaster{}
	e := newTestServer(f, RateLimit{})

	rec := do(e, http.MethodPost, "/api/add-tick", `{"symbol":"aapl","timeframe":5,"open":1,"high":2,"low":1,"close":1.5}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(f.ingested) != 1 || f.ingested[0].Symbol != "AAPL" || f.ingested[0].TimeFrame != 5 {
		t.Fatalf("unexpected ingested %+v", f.ingested)
	}
	if f.ingested[0].Timestamp.IsZero() {
		t.Fatal("missing timestamp should default to now")
	}
}

func TestAddTickValidation(t *testing.T) {
	e := newTestServer(&stubForecaster{}, RateLimit{})

	rec := do(e, http.MethodPost, "/api/add-tick", `{"close":1}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ERR_REQUIRED") {
		t.Fatalf("expected ERR_REQUIRED in %s", rec.Body.String())
	}
}

func TestAddTickStoreFailure(t *testing.T) {
	e := newTestServer(&stubForecaster{err: errors.New("disk full")}, RateLimit{})

	rec := do(e, http.MethodPost, "/api/add-tick", `{"symbol":"AAPL","close":1}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestPrediction(t *testing.T) {
	f := &stubForecaster{values: map[models.SeriesKey]float64{models.NewSeriesKey("AAPL", 0): 187.25}}
	e := newTestServer(f, RateLimit{})

	rec := do(e, http.MethodGet, "/api/prediction?symbol=aapl", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Status int               `json:"status"`
		Data   models.Prediction `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Data.Symbol != "AAPL" || body.Data.Value != 187.25 {
		t.Fatalf("unexpected body %+v", body)
	}

	rec = do(e, http.MethodGet, "/api/prediction?symbol=UNSEEN&timeframe=15", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"value":0`) {
		t.Fatalf("unseen series: %d %s", rec.Code, rec.Body.String())
	}
}

func TestPredictionRequiresSymbol(t *testing.T) {
	e := newTestServer(&stubForecaster{}, RateLimit{})
	if rec := do(e, http.MethodGet, "/api/prediction", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestTicksAndHealth(t *testing.T) {
	e := newTestServer(&stubForecaster{}, RateLimit{})

	if rec := do(e, http.MethodGet, "/api/ticks?symbol=AAPL&limit=10", ""); rec.Code != http.StatusOK {
		t.Fatalf("ticks status = %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(e, http.MethodGet, "/api/ticks?symbol=AAPL&limit=0", ""); rec.Code != http.StatusOK {
		t.Fatalf("zero limit falls back to default, got %d", rec.Code)
	}
	inverted := "/api/ticks?symbol=AAPL&from=2024-05-02T00:00:00Z&to=2024-05-01T00:00:00Z"
	if rec := do(e, http.MethodGet, inverted, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("inverted range status = %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	e := newTestServer(&stubForecaster{}, RateLimit{Capacity: 2, RefillPerSec: 0.001})

	for i := 0; i < 2; i++ {
		if rec := do(e, http.MethodGet, "/api/prediction?symbol=AAPL", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d: %d", i, rec.Code)
		}
	}
	if rec := do(e, http.MethodGet, "/api/prediction?symbol=AAPL", ""); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
}
