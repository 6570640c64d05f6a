package forecast

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/flexcompute/flexd/core/model"
	"github.com/flexcompute/flexd/infra/logger"
)

type stubSource struct {
	carbon []RawPoint
	prices []RawPrice
}

func (s stubSource) Carbon(context.Context, Window, string) ([]RawPoint, error) {
	return s.carbon, nil
}

func (s stubSource) Prices(context.Context, Window, string) ([]RawPrice, error) {
	return s.prices, nil
}

func TestServiceForecastMergesSeries(t *testing.T) {
	src := stubSource{
		carbon: []RawPoint{{Time: base, Value: 90}},
		prices: []RawPrice{{Time: base, Buy: 120, Sell: 80}},
	}
	svc := NewService(src, Config{SlotMinutes: 30}, logger.NopLogger{})
	points, err := svc.Forecast(context.Background(), Window{Start: base, End: base.Add(time.Hour)}, "fr")
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 slots got %d", len(points))
	}
	for _, p := range points {
		if p.CarbonIntensity != 90 || p.BuyPrice != 120 || p.SellPrice != 80 {
			t.Fatalf("unexpected point %+v", p)
		}
		if p.Synthetic {
			t.Fatalf("measured slot flagged synthetic")
		}
	}
}

func TestServiceForecastGapWithoutFallback(t *testing.T) {
	src := stubSource{
		carbon: []RawPoint{{Time: base.Add(time.Hour), Value: 90}},
		prices: []RawPrice{{Time: base, Buy: 120, Sell: 80}},
	}
	svc := NewService(src, Config{SlotMinutes: 30}, logger.NopLogger{})
	_, err := svc.Forecast(context.Background(), Window{Start: base, End: base.Add(2 * time.Hour)}, "fr")
	if !errors.Is(err, model.ErrForecastGap) {
		t.Fatalf("expected forecast gap, got %v", err)
	}
}

func TestServiceForecastSyntheticFallback(t *testing.T) {
	svc := NewService(stubSource{}, Config{SlotMinutes: 30, SyntheticFallback: true}, logger.NopLogger{})
	points, err := svc.Forecast(context.Background(), Window{Start: base, End: base.Add(time.Hour)}, "fr")
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	for i, p := range points {
		if !p.Synthetic {
			t.Fatalf("slot %d should be synthetic", i)
		}
		if p.CarbonIntensity != SyntheticCarbon(i) || p.BuyPrice != SyntheticBuyPrice(i) {
			t.Fatalf("slot %d synthetic values not deterministic", i)
		}
	}
}

func TestSyntheticPatternsAreCyclic(t *testing.T) {
	if SyntheticCarbon(0) != 80 || SyntheticCarbon(16) != 80 {
		t.Fatalf("carbon pattern should repeat every 16 slots")
	}
	if SyntheticBuyPrice(0) != 100 || SyntheticBuyPrice(12) != 100 {
		t.Fatalf("buy price pattern should repeat every 12 slots")
	}
	if got := SyntheticSellPrice(3); got != SyntheticBuyPrice(3)-30 {
		t.Fatalf("sell price should track buy minus spread, got %v", got)
	}
}

func TestGeneratorIsDeterministic(t *testing.T) {
	gen := NewGenerator()
	w := Window{Start: base, End: base.Add(4 * time.Hour)}
	a, err := gen.Carbon(context.Background(), w, "fr")
	if err != nil {
		t.Fatalf("carbon: %v", err)
	}
	b, err := gen.Carbon(context.Background(), w, "fr")
	if err != nil {
		t.Fatalf("carbon: %v", err)
	}
	if len(a) == 0 || len(a) != len(b) {
		t.Fatalf("series lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("generator not deterministic at %d", i)
		}
	}
	other, err := gen.Carbon(context.Background(), w, "de")
	if err != nil {
		t.Fatalf("carbon: %v", err)
	}
	same := true
	for i := range a {
		if a[i].Value != other[i].Value {
			same = false
			break
		}
	}
	if same {
		t.Fatalf("regions should produce distinct series")
	}
}
