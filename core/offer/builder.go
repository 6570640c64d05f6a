// Package offer converts schedule slack into tradeable flexibility offers.
package offer

import (
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/flexcompute/flexd/core/logger"
	"github.com/flexcompute/flexd/core/model"
)

// Builder derives FlexOffers from flexible scheduled jobs.
type Builder struct {
	log logger.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(log logger.Logger) *Builder {
	return &Builder{log: log}
}

// Build emits one offer per flexible scheduled job whose slack window has
// strictly positive width. Offer keys derive from the job ID so re-derivation
// is idempotent.
func (b *Builder) Build(jobs []model.Job, scheduled []model.ScheduledJob, forecast []model.ForecastPoint) []model.FlexOffer {
	byID := make(map[string]model.Job, len(jobs))
	for _, j := range jobs {
		byID[j.ID] = j
	}

	var offers []model.FlexOffer
	for _, sj := range scheduled {
		if !sj.Flexible {
			continue
		}
		job, ok := byID[sj.JobID]
		if !ok {
			b.log.Warnf("scheduled job %s missing from job set, skipping offer", sj.JobID)
			continue
		}

		dur := sj.End.Sub(sj.Start)
		shift := job.MaxDeferral.Duration()
		earliest := laterOf(job.ArrivalTime, sj.Start.Add(-shift))
		latestStart := earlierOf(job.Deadline, sj.Start.Add(shift)).Add(-dur)
		if !latestStart.After(earliest) {
			continue
		}
		latestEnd := latestStart.Add(dur)

		prices := valuesIn(forecast, earliest, latestEnd, func(p model.ForecastPoint) float64 { return p.BuyPrice })
		carbons := valuesIn(forecast, sj.Start, sj.End, func(p model.ForecastPoint) float64 { return p.CarbonIntensity })
		var refPrice, carbonCap float64
		if len(prices) > 0 {
			refPrice = stat.Mean(prices, nil)
		}
		if len(carbons) > 0 {
			carbonCap = floats.Max(carbons)
		}

		offers = append(offers, model.FlexOffer{
			OfferID:        model.OfferID(job.ID),
			JobID:          job.ID,
			ClusterID:      job.ClusterID,
			PowerKW:        job.PowerKW,
			DurationHours:  dur.Hours(),
			EarliestStart:  earliest,
			LatestEnd:      latestEnd,
			ReferencePrice: refPrice,
			CarbonCap:      carbonCap,
		})
	}
	return offers
}

// valuesIn collects the projection of forecast points overlapping [from, to).
func valuesIn(forecast []model.ForecastPoint, from, to time.Time, pick func(model.ForecastPoint) float64) []float64 {
	var vals []float64
	for _, p := range forecast {
		if p.Start.Before(to) && p.End.After(from) {
			vals = append(vals, pick(p))
		}
	}
	return vals
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earlierOf(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
