// Package forecast aligns heterogeneous carbon and price series to the fixed
// settlement slots used by the scheduling engine. Carbon and price grids are
// normalized independently and merged, so both always share identical slot
// boundaries.
package forecast

import (
	"fmt"
	"sort"
	"time"

	"github.com/flexcompute/flexd/core/model"
)

// RawPoint is a single observation of an irregular upstream series.
type RawPoint struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// RawPrice carries both legs of a system price observation.
type RawPrice struct {
	Time time.Time `json:"time"`
	Buy  float64   `json:"buy"`
	Sell float64   `json:"sell"`
}

// Window is a half-open [Start, End) planning window.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validate checks the window is well formed.
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return fmt.Errorf("%w: window bounds must be set", model.ErrValidation)
	}
	if !w.End.After(w.Start) {
		return fmt.Errorf("%w: window end must be after start", model.ErrValidation)
	}
	return nil
}

// Slots returns the number of slots of the given width needed to cover the
// window, rounding up.
func (w Window) Slots(slot time.Duration) int {
	d := w.End.Sub(w.Start)
	n := int(d / slot)
	if d%slot != 0 {
		n++
	}
	return n
}

// Sample is one normalized slot of a scalar series.
type Sample struct {
	Start     time.Time
	Value     float64
	Synthetic bool
}

// SyntheticFn produces a deterministic fallback value for the i-th slot of a
// window when no measured data covers it.
type SyntheticFn func(slot int) float64

// Normalize resamples an irregular series onto the slot grid covering the
// window. The grid is anchored by truncating the window start to the slot
// width, so an unaligned window widens at the front to the slot containing
// it. Slots inside the known range are linearly interpolated, slots past
// the last observation hold its value. Slots before the first observation have
// no interpolation basis: they are filled by synth and flagged when synth is
// non-nil, otherwise Normalize fails with model.ErrForecastGap.
func Normalize(raw []RawPoint, w Window, slot time.Duration, synth SyntheticFn) ([]Sample, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if slot <= 0 {
		slot = model.DefaultSlot
	}

	points := make([]RawPoint, len(raw))
	copy(points, raw)
	sort.Slice(points, func(i, j int) bool { return points[i].Time.Before(points[j].Time) })

	grid := w.Start.Truncate(slot)
	samples := make([]Sample, 0, w.Slots(slot))
	for i := 0; ; i++ {
		t := grid.Add(time.Duration(i) * slot)
		if !t.Before(w.End) {
			break
		}
		if len(points) == 0 || t.Before(points[0].Time) {
			if synth == nil {
				return nil, fmt.Errorf("%w: no reference data at or before %s", model.ErrForecastGap, t.Format(time.RFC3339))
			}
			samples = append(samples, Sample{Start: t, Value: synth(i), Synthetic: true})
			continue
		}
		samples = append(samples, Sample{Start: t, Value: interpolate(points, t)})
	}
	return samples, nil
}

// interpolate returns the series value at t. Callers guarantee t is not before
// the first point.
func interpolate(points []RawPoint, t time.Time) float64 {
	idx := sort.Search(len(points), func(i int) bool { return points[i].Time.After(t) })
	// idx is the first point strictly after t; idx-1 is the reference.
	prev := points[idx-1]
	if idx == len(points) {
		return prev.Value
	}
	next := points[idx]
	span := next.Time.Sub(prev.Time).Seconds()
	if span <= 0 {
		return prev.Value
	}
	frac := t.Sub(prev.Time).Seconds() / span
	return prev.Value + (next.Value-prev.Value)*frac
}

// Merge zips normalized carbon, buy and sell sample grids into ForecastPoints,
// enforcing that all series share the same slot boundaries.
func Merge(carbon, buy, sell []Sample, slot time.Duration) ([]model.ForecastPoint, error) {
	if len(carbon) != len(buy) || len(buy) != len(sell) {
		return nil, fmt.Errorf("series length mismatch: carbon=%d buy=%d sell=%d", len(carbon), len(buy), len(sell))
	}
	points := make([]model.ForecastPoint, len(carbon))
	for i := range carbon {
		if !carbon[i].Start.Equal(buy[i].Start) || !buy[i].Start.Equal(sell[i].Start) {
			return nil, fmt.Errorf("slot boundary mismatch at index %d", i)
		}
		points[i] = model.ForecastPoint{
			Start:           carbon[i].Start,
			End:             carbon[i].Start.Add(slot),
			CarbonIntensity: carbon[i].Value,
			BuyPrice:        buy[i].Value,
			SellPrice:       sell[i].Value,
			Synthetic:       carbon[i].Synthetic || buy[i].Synthetic || sell[i].Synthetic,
		}
	}
	return points, nil
}
