package planning

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/flexcompute/flexd/core/forecast"
	"github.com/flexcompute/flexd/core/jobstore"
	"github.com/flexcompute/flexd/core/model"
	"github.com/flexcompute/flexd/core/offer"
	"github.com/flexcompute/flexd/core/planner"
	"github.com/flexcompute/flexd/core/scheduler"
	"github.com/flexcompute/flexd/infra/logger"
)

var t0 = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

type flatSource struct{}

func (flatSource) Carbon(_ context.Context, w forecast.Window, _ string) ([]forecast.RawPoint, error) {
	return []forecast.RawPoint{{Time: w.Start, Value: 120}}, nil
}

func (flatSource) Prices(_ context.Context, w forecast.Window, _ string) ([]forecast.RawPrice, error) {
	return []forecast.RawPrice{{Time: w.Start, Buy: 95, Sell: 65}}, nil
}

type lateSource struct{ flatSource }

func (lateSource) Carbon(_ context.Context, w forecast.Window, _ string) ([]forecast.RawPoint, error) {
	return []forecast.RawPoint{{Time: w.End.Add(time.Hour), Value: 120}}, nil
}

func newService(src forecast.Source) *forecast.Service {
	return forecast.NewService(src, forecast.Config{}, logger.NopLogger{})
}

func TestForecastHandler(t *testing.T) {
	h := NewForecastHandler(newService(flatSource{}))
	rr := httptest.NewRecorder()
	url := "/api/forecast?from=" + t0.Format(time.RFC3339) + "&to=" + t0.Add(2*time.Hour).Format(time.RFC3339)
	h.ServeHTTP(rr, httptest.NewRequest("GET", url, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var points []model.ForecastPoint
	if err := json.Unmarshal(rr.Body.Bytes(), &points); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(points) != 4 {
		t.Fatalf("2h at 30m slots: expected 4 points, got %d", len(points))
	}
}

func TestForecastHandlerGap(t *testing.T) {
	h := NewForecastHandler(newService(lateSource{}))
	rr := httptest.NewRecorder()
	url := "/api/forecast?from=" + t0.Format(time.RFC3339) + "&to=" + t0.Add(2*time.Hour).Format(time.RFC3339)
	h.ServeHTTP(rr, httptest.NewRequest("GET", url, nil))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("forecast gap should yield 422, got %d", rr.Code)
	}
}

func TestForecastHandlerBadParams(t *testing.T) {
	h := NewForecastHandler(newService(flatSource{}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/forecast?from=junk&to=junk", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestPlanHandler(t *testing.T) {
	nop := logger.NopLogger{}
	store := jobstore.New(nop)
	store.Ingest([]model.Job{{
		ID:          "j1",
		ArrivalTime: t0,
		PowerKW:     400,
		Duration:    1,
		Deadline:    t0.Add(6 * time.Hour),
		MaxDeferral: 2,
	}})
	pl := planner.New(store, newService(flatSource{}), scheduler.New(scheduler.Config{}, nop), offer.NewBuilder(nop), nil, nop)
	h := NewPlanHandler(pl)

	body, _ := json.Marshal(planner.Request{Window: forecast.Window{Start: t0, End: t0.Add(6 * time.Hour)}})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("POST", "/api/plan", strings.NewReader(string(body))))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var res planner.Result
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Scheduled) != 1 || res.Scheduled[0].JobID != "j1" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestPlanHandlerBadWindow(t *testing.T) {
	nop := logger.NopLogger{}
	pl := planner.New(jobstore.New(nop), newService(flatSource{}), scheduler.New(scheduler.Config{}, nop), offer.NewBuilder(nop), nil, nop)
	h := NewPlanHandler(pl)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("POST", "/api/plan", strings.NewReader(`{"window":{}}`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("zero window should yield 400, got %d", rr.Code)
	}
}
