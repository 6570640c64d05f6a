// Package planning exposes forecast queries and on-demand planning cycles over HTTP.
package planning

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/flexcompute/flexd/core/forecast"
	"github.com/flexcompute/flexd/core/model"
	"github.com/flexcompute/flexd/core/planner"
)

// NewForecastHandler returns an HTTP handler exposing the normalized forecast
// via GET /api/forecast. A window preceding all known reference points yields
// 422 unless synthetic fallback is configured.
func NewForecastHandler(svc *forecast.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
		if err != nil {
			http.Error(w, "invalid from: "+err.Error(), http.StatusBadRequest)
			return
		}
		to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
		if err != nil {
			http.Error(w, "invalid to: "+err.Error(), http.StatusBadRequest)
			return
		}
		points, err := svc.Forecast(r.Context(), forecast.Window{Start: from, End: to}, r.URL.Query().Get("region"))
		if err != nil {
			http.Error(w, err.Error(), statusFor(err))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(points); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// NewPlanHandler returns an HTTP handler running one planning cycle via
// POST /api/plan.
func NewPlanHandler(pl *planner.Planner) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req planner.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "malformed plan request: "+err.Error(), http.StatusBadRequest)
			return
		}
		res, err := pl.Plan(r.Context(), req)
		if err != nil {
			http.Error(w, err.Error(), statusFor(err))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(res); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrForecastGap):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
