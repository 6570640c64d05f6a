package model

import "time"

// FlexOffer is the tradeable slack of a flexible scheduled job. Offers exist
// only per catalog publication and are re-derived on each planning cycle.
type FlexOffer struct {
	OfferID       string    `json:"offer_id"`
	JobID         string    `json:"job_id"`
	ClusterID     string    `json:"cluster_id"`
	PowerKW       float64   `json:"power_kw"`
	DurationHours float64   `json:"duration_hours"`
	EarliestStart time.Time `json:"earliest_start"`
	LatestEnd     time.Time `json:"latest_end"`
	// ReferencePrice is the average buy price over the offer bounds, per MWh.
	ReferencePrice float64 `json:"price_per_mwh"`
	// CarbonCap is the intensity ceiling the buyer must not exceed, gCO2/kWh.
	CarbonCap float64 `json:"carbon_cap_g_per_kwh"`
}

// OfferID derives the deterministic catalog key for a job so that offers are
// idempotent across re-derivations.
func OfferID(jobID string) string { return "flex-" + jobID }
