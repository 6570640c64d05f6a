// Package planner sequences one planning cycle: job snapshot and normalized
// forecast in, schedule, rejections and flexibility offers out.
package planner

import (
	"context"
	"time"

	"github.com/flexcompute/flexd/core/forecast"
	"github.com/flexcompute/flexd/core/jobstore"
	"github.com/flexcompute/flexd/core/logger"
	"github.com/flexcompute/flexd/core/metrics"
	"github.com/flexcompute/flexd/core/model"
	"github.com/flexcompute/flexd/core/offer"
	"github.com/flexcompute/flexd/core/scheduler"
)

// Request parameterizes one planning cycle.
type Request struct {
	Window    forecast.Window   `json:"window"`
	Region    string            `json:"region"`
	ClusterID string            `json:"cluster_id"`
	Weights   scheduler.Weights `json:"weights"`
}

// Result is the combined outcome of one planning cycle.
type Result struct {
	Window    forecast.Window      `json:"window"`
	Region    string               `json:"region"`
	Scheduled []model.ScheduledJob `json:"scheduled_jobs"`
	Rejected  []model.RejectedJob  `json:"rejected_jobs"`
	Offers    []model.FlexOffer    `json:"flex_offers"`
}

// Planner is stateless between invocations beyond what the store and forecast
// service retain.
type Planner struct {
	store     *jobstore.Store
	forecasts *forecast.Service
	engine    *scheduler.Engine
	offers    *offer.Builder
	sink      metrics.Sink
	log       logger.Logger
}

// New creates a Planner. A nil sink disables metrics.
func New(store *jobstore.Store, forecasts *forecast.Service, engine *scheduler.Engine, offers *offer.Builder, sink metrics.Sink, log logger.Logger) *Planner {
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Planner{store: store, forecasts: forecasts, engine: engine, offers: offers, sink: sink, log: log}
}

// Plan runs one cycle. It aborts on a forecast gap rather than scheduling
// against fabricated data; with synthetic fallback enabled the forecast
// service flags substituted slots instead of failing.
func (p *Planner) Plan(ctx context.Context, req Request) (Result, error) {
	began := time.Now()
	if req.Region == "" {
		req.Region = p.forecasts.Region()
	}

	points, err := p.forecasts.Forecast(ctx, req.Window, req.Region)
	if err != nil {
		return Result{}, err
	}

	jobs := p.store.Snapshot()
	if req.ClusterID != "" {
		filtered := jobs[:0]
		for _, j := range jobs {
			if j.ClusterID == req.ClusterID {
				filtered = append(filtered, j)
			}
		}
		jobs = filtered
	}

	sched := p.engine.Schedule(jobs, points, req.Weights)
	offers := p.offers.Build(jobs, sched.Scheduled, points)

	res := Result{
		Window:    req.Window,
		Region:    req.Region,
		Scheduled: sched.Scheduled,
		Rejected:  sched.Rejected,
		Offers:    offers,
	}
	p.record(res, points, time.Since(began))
	return res, nil
}

func (p *Planner) record(res Result, points []model.ForecastPoint, elapsed time.Duration) {
	rec := metrics.PlanningRecord{
		Region:      res.Region,
		WindowStart: res.Window.Start,
		WindowEnd:   res.Window.End,
		Scheduled:   len(res.Scheduled),
		Rejected:    len(res.Rejected),
		Offers:      len(res.Offers),
		Elapsed:     elapsed,
	}
	for _, sj := range res.Scheduled {
		rec.TotalCost += sj.ExpectedCost
		rec.TotalCarbonKg += sj.ExpectedCarbonKg
	}
	for _, pt := range points {
		if pt.Synthetic {
			rec.SyntheticSlots++
		}
	}
	if err := p.sink.RecordPlanning(rec); err != nil {
		p.log.Errorf("metrics error: %v", err)
	}
}
