package jobs

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/flexcompute/flexd/core/jobstore"
	"github.com/flexcompute/flexd/infra/logger"
)

var arrival = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

func TestIngestHandler(t *testing.T) {
	store := jobstore.New(logger.NopLogger{})
	h := NewIngestHandler(store)

	body := `[
		{"job_id":"j1","arrival_time":"2025-06-01T08:00:00Z","power_kw":500,"duration_hours":2,"deadline":"2025-06-01T20:00:00Z","max_deferral_hours":4},
		{"job_id":"j2","arrival_time":"2025-06-01T08:00:00Z","power_kw":-1,"duration_hours":1,"deadline":"2025-06-01T20:00:00Z"}
	]`
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("POST", "/api/jobs", strings.NewReader(body)))
	if rr.Code != http.StatusMultiStatus {
		t.Fatalf("partial rejection should yield 207, got %d", rr.Code)
	}
	var res jobstore.IngestResult
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Accepted) != 1 || res.Accepted[0] != "j1" {
		t.Fatalf("unexpected accepted %v", res.Accepted)
	}
	if len(res.Rejected) != 1 || res.Rejected[0].JobID != "j2" {
		t.Fatalf("unexpected rejected %v", res.Rejected)
	}
	if store.Len() != 1 {
		t.Fatalf("store should hold only valid jobs")
	}
}

func TestIngestHandlerAllAccepted(t *testing.T) {
	store := jobstore.New(logger.NopLogger{})
	h := NewIngestHandler(store)
	body := `[{"job_id":"j1","arrival_time":"2025-06-01T08:00:00Z","power_kw":500,"duration_hours":2,"deadline":"2025-06-01T20:00:00Z"}]`
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("POST", "/api/jobs", strings.NewReader(body)))
	if rr.Code != http.StatusOK {
		t.Fatalf("clean batch should yield 200, got %d", rr.Code)
	}
}

func TestIngestHandlerRejectsMalformed(t *testing.T) {
	h := NewIngestHandler(jobstore.New(logger.NopLogger{}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("POST", "/api/jobs", strings.NewReader("{not json")))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestIngestHandlerMethod(t *testing.T) {
	h := NewIngestHandler(jobstore.New(logger.NopLogger{}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/jobs", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestFlexibilityHandler(t *testing.T) {
	store := jobstore.New(logger.NopLogger{})
	body := `[{"job_id":"j1","arrival_time":"2025-06-01T08:00:00Z","power_kw":500,"duration_hours":2,"deadline":"2025-06-01T20:00:00Z","max_deferral_hours":4}]`
	rr := httptest.NewRecorder()
	NewIngestHandler(store).ServeHTTP(rr, httptest.NewRequest("POST", "/api/jobs", strings.NewReader(body)))

	h := NewFlexibilityHandler(store)
	rr = httptest.NewRecorder()
	url := "/api/jobs/flexibility?from=" + arrival.Format(time.RFC3339) + "&to=" + arrival.Add(12*time.Hour).Format(time.RFC3339)
	h.ServeHTTP(rr, httptest.NewRequest("GET", url, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var views []jobstore.FlexibilityView
	if err := json.Unmarshal(rr.Body.Bytes(), &views); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(views) != 1 || views[0].Job.ID != "j1" {
		t.Fatalf("unexpected views %+v", views)
	}
}

func TestFlexibilityHandlerBadRange(t *testing.T) {
	h := NewFlexibilityHandler(jobstore.New(logger.NopLogger{}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/jobs/flexibility?from=not-a-time&to=2025-06-01T08:00:00Z", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad from, got %d", rr.Code)
	}
}
