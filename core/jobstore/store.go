// Package jobstore holds admitted job specifications. Ingestion is append-only
// and safe under concurrent reads; planning cycles work from a snapshot so an
// in-flight cycle never observes a partial batch.
package jobstore

import (
	"fmt"
	"sync"
	"time"

	"github.com/flexcompute/flexd/core/logger"
	"github.com/flexcompute/flexd/core/model"
)

// Store is an in-memory append-only job store.
type Store struct {
	mu    sync.RWMutex
	jobs  map[string]model.Job
	order []string
	log   logger.Logger
}

// New creates an empty Store.
func New(log logger.Logger) *Store {
	return &Store{jobs: make(map[string]model.Job), log: log}
}

// IngestResult reports the per-entry outcome of a batch ingestion.
type IngestResult struct {
	Accepted []string        `json:"accepted"`
	Rejected []IngestFailure `json:"rejected"`
}

// IngestFailure describes one rejected entry.
type IngestFailure struct {
	JobID string `json:"job_id"`
	Error string `json:"error"`
}

// Ingest admits a batch of jobs. Malformed or duplicate entries are rejected
// individually without aborting the batch.
func (s *Store) Ingest(jobs []model.Job) IngestResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res IngestResult
	for _, j := range jobs {
		if err := j.Validate(); err != nil {
			res.Rejected = append(res.Rejected, IngestFailure{JobID: j.ID, Error: err.Error()})
			continue
		}
		if _, ok := s.jobs[j.ID]; ok {
			err := fmt.Errorf("%w: duplicate job_id %s", model.ErrValidation, j.ID)
			res.Rejected = append(res.Rejected, IngestFailure{JobID: j.ID, Error: err.Error()})
			continue
		}
		s.jobs[j.ID] = j
		s.order = append(s.order, j.ID)
		res.Accepted = append(res.Accepted, j.ID)
	}
	if len(res.Rejected) > 0 {
		s.log.Warnf("ingest: accepted %d, rejected %d", len(res.Accepted), len(res.Rejected))
	} else {
		s.log.Infof("ingest: accepted %d jobs", len(res.Accepted))
	}
	return res
}

// Snapshot returns a consistent copy of all admitted jobs in ingestion order.
func (s *Store) Snapshot() []model.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Job, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.jobs[id])
	}
	return out
}

// Get returns a job by ID.
func (s *Store) Get(id string) (model.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	return j, ok
}

// Len returns the number of admitted jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// FlexibilityView summarizes a job's feasibility inside a query window.
type FlexibilityView struct {
	Job           model.Job `json:"job"`
	EarliestStart time.Time `json:"earliest_start"`
	LatestEnd     time.Time `json:"latest_end"`
	SlackHours    float64   `json:"slack_hours"`
	Flexible      bool      `json:"flexible"`
}

// Window returns the jobs whose feasibility window intersects [from, to],
// optionally filtered by cluster, with their slack inside the window.
func (s *Store) Window(from, to time.Time, clusterID string) []FlexibilityView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var views []FlexibilityView
	for _, id := range s.order {
		j := s.jobs[id]
		if clusterID != "" && j.ClusterID != clusterID {
			continue
		}
		if j.Deadline.Before(from) || j.ArrivalTime.After(to) {
			continue
		}
		earliest := j.ArrivalTime
		if earliest.Before(from) {
			earliest = from
		}
		latest := j.Deadline
		if latest.After(to) {
			latest = to
		}
		slack := latest.Sub(earliest).Hours() - float64(j.Duration)
		if slack < 0 {
			slack = 0
		}
		views = append(views, FlexibilityView{
			Job:           j,
			EarliestStart: earliest,
			LatestEnd:     latest,
			SlackHours:    slack,
			Flexible:      j.IsFlexible(),
		})
	}
	return views
}

// Prune drops jobs whose deadline elapsed before the cutoff and returns how
// many were removed.
func (s *Store) Prune(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.order[:0]
	removed := 0
	for _, id := range s.order {
		if s.jobs[id].Deadline.Before(cutoff) {
			delete(s.jobs, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	if removed > 0 {
		s.log.Infof("pruned %d elapsed jobs", removed)
	}
	return removed
}
