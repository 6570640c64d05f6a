package model

import (
	"fmt"
	"time"
)

// Job is a deferrable compute workload admitted for scheduling. Fields are
// immutable once admitted; the schedule assignment lives in ScheduledJob.
type Job struct {
	ID                string    `json:"job_id"`
	ArrivalTime       time.Time `json:"arrival_time"`
	PowerKW           float64   `json:"power_kw"`
	Duration          Hours     `json:"duration_hours"`
	Deadline          time.Time `json:"deadline"`
	MaxDeferral       Hours     `json:"max_deferral_hours"`
	Priority          int       `json:"priority"`
	SLAPenaltyPerHour float64   `json:"sla_penalty_per_hour"`
	WorkloadType      string    `json:"workload_type"`
	ClusterID         string    `json:"cluster_id"`
}

// Hours is a duration expressed in fractional hours, the unit used by job
// submitters and grid settlement accounting.
type Hours float64

// Duration converts to a time.Duration.
func (h Hours) Duration() time.Duration {
	return time.Duration(float64(h) * float64(time.Hour))
}

// IsFlexible reports whether the job advertises any deferral slack.
func (j Job) IsFlexible() bool { return j.MaxDeferral > 0 }

// Slots returns the number of slots of the given width the job occupies,
// rounding up so the full duration is always covered.
func (j Job) Slots(slot time.Duration) int {
	d := j.Duration.Duration()
	n := int(d / slot)
	if d%slot != 0 {
		n++
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Validate checks the admission invariants for a job record.
func (j Job) Validate() error {
	switch {
	case j.ID == "":
		return fmt.Errorf("%w: missing job_id", ErrValidation)
	case j.PowerKW <= 0:
		return fmt.Errorf("%w: job %s: power_kw must be positive", ErrValidation, j.ID)
	case j.Duration <= 0:
		return fmt.Errorf("%w: job %s: duration_hours must be positive", ErrValidation, j.ID)
	case !j.Deadline.After(j.ArrivalTime):
		return fmt.Errorf("%w: job %s: deadline must be after arrival_time", ErrValidation, j.ID)
	case j.MaxDeferral < 0:
		return fmt.Errorf("%w: job %s: max_deferral_hours must not be negative", ErrValidation, j.ID)
	}
	return nil
}
