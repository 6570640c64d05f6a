package jobstore

import (
	"testing"
	"time"

	"github.com/flexcompute/flexd/core/model"
	"github.com/flexcompute/flexd/infra/logger"
)

var arrival = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

func job(id string, deferral model.Hours) model.Job {
	return model.Job{
		ID:          id,
		ArrivalTime: arrival,
		PowerKW:     500,
		Duration:    2,
		Deadline:    arrival.Add(12 * time.Hour),
		MaxDeferral: deferral,
	}
}

func TestIngestRejectsIndividually(t *testing.T) {
	s := New(logger.NopLogger{})
	bad := job("j2", 0)
	bad.PowerKW = -5
	res := s.Ingest([]model.Job{job("j1", 4), bad, job("j3", 0)})
	if len(res.Accepted) != 2 {
		t.Fatalf("expected 2 accepted got %v", res.Accepted)
	}
	if len(res.Rejected) != 1 || res.Rejected[0].JobID != "j2" {
		t.Fatalf("expected j2 rejected got %v", res.Rejected)
	}
	if s.Len() != 2 {
		t.Fatalf("store should hold 2 jobs, has %d", s.Len())
	}
}

func TestIngestRejectsDuplicates(t *testing.T) {
	s := New(logger.NopLogger{})
	s.Ingest([]model.Job{job("j1", 4)})
	res := s.Ingest([]model.Job{job("j1", 4)})
	if len(res.Accepted) != 0 || len(res.Rejected) != 1 {
		t.Fatalf("duplicate should be rejected: %+v", res)
	}
	if s.Len() != 1 {
		t.Fatalf("store should still hold 1 job")
	}
}

func TestSnapshotPreservesIngestionOrder(t *testing.T) {
	s := New(logger.NopLogger{})
	s.Ingest([]model.Job{job("b", 0), job("a", 0), job("c", 0)})
	snap := s.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 jobs got %d", len(snap))
	}
	want := []string{"b", "a", "c"}
	for i, id := range want {
		if snap[i].ID != id {
			t.Fatalf("position %d: expected %s got %s", i, id, snap[i].ID)
		}
	}
}

func TestWindowComputesSlack(t *testing.T) {
	s := New(logger.NopLogger{})
	s.Ingest([]model.Job{job("j1", 4)})

	views := s.Window(arrival, arrival.Add(12*time.Hour), "")
	if len(views) != 1 {
		t.Fatalf("expected 1 view got %d", len(views))
	}
	v := views[0]
	if v.SlackHours != 10 {
		t.Fatalf("12h window minus 2h duration: expected slack 10 got %v", v.SlackHours)
	}
	if !v.Flexible {
		t.Fatalf("deferrable job should report flexible")
	}

	if got := s.Window(arrival.Add(13*time.Hour), arrival.Add(20*time.Hour), ""); len(got) != 0 {
		t.Fatalf("window past deadline should be empty, got %d", len(got))
	}
}

func TestWindowFiltersCluster(t *testing.T) {
	s := New(logger.NopLogger{})
	a := job("j1", 4)
	a.ClusterID = "alpha"
	b := job("j2", 4)
	b.ClusterID = "beta"
	s.Ingest([]model.Job{a, b})

	views := s.Window(arrival, arrival.Add(12*time.Hour), "beta")
	if len(views) != 1 || views[0].Job.ID != "j2" {
		t.Fatalf("cluster filter wrong: %+v", views)
	}
}

func TestPruneDropsElapsedJobs(t *testing.T) {
	s := New(logger.NopLogger{})
	old := job("old", 0)
	old.Deadline = arrival.Add(time.Hour)
	s.Ingest([]model.Job{old, job("live", 0)})

	if removed := s.Prune(arrival.Add(2 * time.Hour)); removed != 1 {
		t.Fatalf("expected 1 pruned got %d", removed)
	}
	if _, ok := s.Get("old"); ok {
		t.Fatalf("pruned job still retrievable")
	}
	if _, ok := s.Get("live"); !ok {
		t.Fatalf("live job lost")
	}
}
