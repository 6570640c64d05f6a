package forecast

import (
	"context"
	"hash/fnv"
	"math"
	"time"

	"github.com/flexcompute/flexd/core/model"
)

// Generator is a deterministic Source emitting daily-cycle carbon and price
// patterns. It backs simulations and tests; identical inputs always produce
// identical series.
type Generator struct {
	Slot time.Duration
}

// NewGenerator returns a Generator at the default slot width.
func NewGenerator() *Generator {
	return &Generator{Slot: model.DefaultSlot}
}

func (g *Generator) slot() time.Duration {
	if g.Slot <= 0 {
		return model.DefaultSlot
	}
	return g.Slot
}

// regionPhase derives a stable per-region offset so distinct regions do not
// share identical curves.
func regionPhase(region string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(region))
	return float64(h.Sum32()%48) / 48 * 2 * math.Pi
}

// Carbon emits a forecast carbon-intensity series over the window.
func (g *Generator) Carbon(_ context.Context, w Window, region string) ([]RawPoint, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	phase := regionPhase(region)
	slot := g.slot()
	points := make([]RawPoint, 0, w.Slots(slot))
	for i := 0; ; i++ {
		t := w.Start.Truncate(slot).Add(time.Duration(i) * slot)
		if !t.Before(w.End) {
			break
		}
		day := float64(t.Unix()%86400) / 86400
		points = append(points, RawPoint{
			Time:  t,
			Value: 180 + 120*math.Sin(2*math.Pi*day+phase),
		})
	}
	return points, nil
}

// Prices emits a system price series over the window. Sell tracks buy with a
// fixed spread, mirroring imbalance settlement behaviour.
func (g *Generator) Prices(_ context.Context, w Window, region string) ([]RawPrice, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	phase := regionPhase(region)
	slot := g.slot()
	points := make([]RawPrice, 0, w.Slots(slot))
	for i := 0; ; i++ {
		t := w.Start.Truncate(slot).Add(time.Duration(i) * slot)
		if !t.Before(w.End) {
			break
		}
		day := float64(t.Unix()%86400) / 86400
		buy := 95 + 40*math.Sin(2*math.Pi*day+phase+math.Pi/6)
		points = append(points, RawPrice{Time: t, Buy: buy, Sell: buy - 30})
	}
	return points, nil
}
