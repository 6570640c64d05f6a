// Package scheduler assigns deferrable jobs to settlement slots minimizing a
// weighted cost, carbon and SLA objective under per-cluster power caps.
//
// The pass is greedy and order dependent: jobs are placed irrevocably in
// priority order and later jobs never bump earlier placements. Identical
// inputs always yield identical output.
package scheduler

import (
	"sort"
	"time"

	"github.com/flexcompute/flexd/core/logger"
	"github.com/flexcompute/flexd/core/model"
)

// Result is the outcome of one scheduling pass.
type Result struct {
	Scheduled []model.ScheduledJob `json:"scheduled"`
	Rejected  []model.RejectedJob  `json:"rejected"`
}

// Engine is the scheduling engine. It is a pure function over its inputs: all
// mutable state lives in per-call accumulators.
type Engine struct {
	cfg Config
	log logger.Logger
}

// New creates an Engine. cfg defaults are applied.
func New(cfg Config, log logger.Logger) *Engine {
	cfg.SetDefaults()
	return &Engine{cfg: cfg, log: log}
}

// usage tracks scheduled power per slot and cluster.
type usage []map[string]float64

func (u usage) add(slot int, cluster string, kw float64) {
	if u[slot] == nil {
		u[slot] = make(map[string]float64)
	}
	u[slot][cluster] += kw
}

func (u usage) at(slot int, cluster string) float64 {
	if u[slot] == nil {
		return 0
	}
	return u[slot][cluster]
}

// candidate is one feasible start index with its objective score.
type candidate struct {
	index    int
	score    float64
	cost     float64
	carbonKg float64
	lateness float64
}

// Schedule produces one ScheduledJob per feasible job plus the rejected jobs
// with reasons. The forecast must be a contiguous slot sequence; jobs are
// restricted to starts within [arrival, deadline-duration] and within
// max-deferral of arrival. Zero-valued weights fall back to the configured
// weights.
func (e *Engine) Schedule(jobs []model.Job, forecast []model.ForecastPoint, w Weights) Result {
	if w == (Weights{}) {
		w = e.cfg.Weights
	}
	w = w.OrDefault()
	var res Result
	if len(jobs) == 0 {
		return res
	}
	if len(forecast) == 0 {
		for _, j := range sortJobs(jobs) {
			res.Rejected = append(res.Rejected, model.RejectedJob{JobID: j.ID, Reason: model.RejectNoFeasibleSlot})
		}
		return res
	}

	slot := forecast[0].End.Sub(forecast[0].Start)
	used := make(usage, len(forecast))

	for _, job := range sortJobs(jobs) {
		slots := job.Slots(slot)
		cap := e.cfg.Cap(job.ClusterID)

		var (
			best        *candidate
			feasible    int
			reachable   bool
			alternative bool
		)
		for idx := range forecast {
			start := forecast[idx].Start
			if start.Before(job.ArrivalTime) {
				continue
			}
			if start.Sub(job.ArrivalTime) > job.MaxDeferral.Duration() {
				break
			}
			if idx+slots > len(forecast) {
				break
			}
			if forecast[idx+slots-1].End.After(job.Deadline) {
				break
			}
			reachable = true
			if !fits(used, idx, slots, job.ClusterID, job.PowerKW, cap) {
				continue
			}
			feasible++
			c := e.score(job, forecast, idx, slots, slot, w)
			if best == nil || c.score < best.score {
				best = &c
			}
		}

		if best == nil {
			reason := model.RejectNoFeasibleSlot
			if reachable {
				reason = model.RejectPowerCapExceeded
			}
			res.Rejected = append(res.Rejected, model.RejectedJob{JobID: job.ID, Reason: reason})
			e.log.Debugw("job rejected", map[string]any{"job_id": job.ID, "reason": string(reason)})
			continue
		}

		for off := 0; off < slots; off++ {
			used.add(best.index+off, job.ClusterID, job.PowerKW)
		}
		alternative = feasible > 1
		res.Scheduled = append(res.Scheduled, model.ScheduledJob{
			JobID:            job.ID,
			ClusterID:        job.ClusterID,
			Start:            forecast[best.index].Start,
			End:              forecast[best.index+slots-1].End,
			PowerKW:          job.PowerKW,
			ExpectedCost:     best.cost,
			ExpectedCarbonKg: best.carbonKg,
			Flexible:         alternative && job.IsFlexible(),
			LatenessHours:    best.lateness,
			Priority:         job.Priority,
		})
	}

	e.log.Infof("scheduled %d jobs, rejected %d", len(res.Scheduled), len(res.Rejected))
	return res
}

// fits reports whether adding kw to every occupied slot stays under the cap.
// Earlier-placed jobs hold priority: only already-applied usage counts.
func fits(used usage, idx, slots int, cluster string, kw, cap float64) bool {
	for off := 0; off < slots; off++ {
		if used.at(idx+off, cluster)+kw > cap {
			return false
		}
	}
	return true
}

// score evaluates the objective for a start index. Cost and carbon integrate
// price and intensity over the occupied slots times power; the SLA term is the
// deferral past arrival in hours times the job's penalty rate.
func (e *Engine) score(job model.Job, forecast []model.ForecastPoint, idx, slots int, slot time.Duration, w Weights) candidate {
	slotHours := slot.Hours()
	var cost, carbonKg float64
	for off := 0; off < slots; off++ {
		p := forecast[idx+off]
		energyKWh := job.PowerKW * slotHours
		cost += p.BuyPrice / 1000 * energyKWh
		carbonKg += p.CarbonIntensity * energyKWh / 1000
	}
	lateness := forecast[idx].Start.Sub(job.ArrivalTime).Hours()
	if lateness < 0 {
		lateness = 0
	}
	return candidate{
		index:    idx,
		score:    w.Cost*cost + w.Carbon*carbonKg + w.SLA*lateness*job.SLAPenaltyPerHour,
		cost:     cost,
		carbonKg: carbonKg,
		lateness: lateness,
	}
}

// sortJobs orders jobs by priority descending, deadline ascending, then job ID
// ascending. The tie-break order is exact so scheduling is reproducible.
func sortJobs(jobs []model.Job) []model.Job {
	sorted := make([]model.Job, len(jobs))
	copy(sorted, jobs)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.Deadline.Equal(b.Deadline) {
			return a.Deadline.Before(b.Deadline)
		}
		return a.ID < b.ID
	})
	return sorted
}
