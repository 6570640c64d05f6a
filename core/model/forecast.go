package model

import "time"

// DefaultSlot is the settlement period used for forecast alignment and
// scheduling granularity.
const DefaultSlot = 30 * time.Minute

// ForecastPoint is one settlement slot of the normalized grid forecast.
// Carbon and price series share identical slot boundaries by construction.
type ForecastPoint struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	// CarbonIntensity is the forecast intensity in gCO2/kWh.
	CarbonIntensity float64 `json:"carbon_g_per_kwh"`
	// BuyPrice and SellPrice are system prices in currency per MWh.
	BuyPrice  float64 `json:"buy_price_per_mwh"`
	SellPrice float64 `json:"sell_price_per_mwh"`
	// Synthetic marks slots backed by fallback values rather than data.
	Synthetic bool `json:"synthetic,omitempty"`
}
