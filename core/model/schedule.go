package model

import "time"

// ScheduledJob binds a Job to a concrete execution window. It is recomputed on
// every planning cycle, never mutated.
type ScheduledJob struct {
	JobID     string    `json:"job_id"`
	ClusterID string    `json:"cluster_id"`
	Start     time.Time `json:"start_time"`
	End       time.Time `json:"end_time"`
	PowerKW   float64   `json:"power_kw"`
	// ExpectedCost integrates the buy price over the occupied slots.
	ExpectedCost float64 `json:"expected_cost"`
	// ExpectedCarbonKg integrates carbon intensity over the occupied slots.
	ExpectedCarbonKg float64 `json:"expected_carbon_kg"`
	Flexible         bool    `json:"flexible"`
	// LatenessHours is the deferral beyond the arrival-implied earliest start.
	LatenessHours float64 `json:"lateness_hours"`
	Priority      int     `json:"priority"`
}

// RejectReason classifies why the engine excluded a job from the schedule.
type RejectReason string

const (
	// RejectNoFeasibleSlot means the deadline is unreachable within the horizon.
	RejectNoFeasibleSlot RejectReason = "NoFeasibleSlot"
	// RejectPowerCapExceeded means every reachable slot violates the cluster cap.
	RejectPowerCapExceeded RejectReason = "PowerCapExceeded"
)

// RejectedJob surfaces an infeasible job together with the reason.
type RejectedJob struct {
	JobID  string       `json:"job_id"`
	Reason RejectReason `json:"reason"`
}
