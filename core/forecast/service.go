package forecast

import (
	"context"
	"fmt"

	"github.com/flexcompute/flexd/core/logger"
	"github.com/flexcompute/flexd/core/model"
)

// Service queries a Source and returns the normalized forecast for a window.
type Service struct {
	src Source
	cfg Config
	log logger.Logger
}

// NewService creates a Service. cfg defaults are applied.
func NewService(src Source, cfg Config, log logger.Logger) *Service {
	cfg.SetDefaults()
	return &Service{src: src, cfg: cfg, log: log}
}

// Region returns the configured default region code.
func (s *Service) Region() string { return s.cfg.DefaultRegion }

// Forecast returns the ForecastPoint sequence covering the window at slot
// granularity. It fails with model.ErrForecastGap when the window starts
// before any usable reference point, unless synthetic fallback is enabled.
func (s *Service) Forecast(ctx context.Context, w Window, region string) ([]model.ForecastPoint, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if region == "" {
		region = s.cfg.DefaultRegion
	}

	carbonRaw, err := s.src.Carbon(ctx, w, region)
	if err != nil {
		return nil, fmt.Errorf("carbon series: %w", err)
	}
	priceRaw, err := s.src.Prices(ctx, w, region)
	if err != nil {
		return nil, fmt.Errorf("price series: %w", err)
	}

	var synthCarbon, synthBuy, synthSell SyntheticFn
	if s.cfg.SyntheticFallback {
		synthCarbon = SyntheticCarbon
		synthBuy = SyntheticBuyPrice
		synthSell = SyntheticSellPrice
	}

	slot := s.cfg.Slot()
	carbon, err := Normalize(carbonRaw, w, slot, synthCarbon)
	if err != nil {
		return nil, err
	}
	buyRaw := make([]RawPoint, len(priceRaw))
	sellRaw := make([]RawPoint, len(priceRaw))
	for i, p := range priceRaw {
		buyRaw[i] = RawPoint{Time: p.Time, Value: p.Buy}
		sellRaw[i] = RawPoint{Time: p.Time, Value: p.Sell}
	}
	buy, err := Normalize(buyRaw, w, slot, synthBuy)
	if err != nil {
		return nil, err
	}
	sell, err := Normalize(sellRaw, w, slot, synthSell)
	if err != nil {
		return nil, err
	}

	points, err := Merge(carbon, buy, sell, slot)
	if err != nil {
		return nil, err
	}
	synthetic := 0
	for _, p := range points {
		if p.Synthetic {
			synthetic++
		}
	}
	if synthetic > 0 {
		s.log.Warnf("forecast %s..%s: %d/%d synthetic slots", w.Start.Format("15:04"), w.End.Format("15:04"), synthetic, len(points))
	}
	return points, nil
}

// Deterministic fallback patterns, matched slot-for-slot across restarts so
// synthetic cycles remain reproducible.

// SyntheticCarbon returns a fallback carbon intensity in gCO2/kWh.
func SyntheticCarbon(slot int) float64 {
	return 80 + 20*float64(slot%16)/16
}

// SyntheticBuyPrice returns a fallback system buy price per MWh.
func SyntheticBuyPrice(slot int) float64 {
	return 100 + 20*float64(slot%12)/12
}

// SyntheticSellPrice returns a fallback system sell price per MWh.
func SyntheticSellPrice(slot int) float64 {
	return SyntheticBuyPrice(slot) - 30
}
