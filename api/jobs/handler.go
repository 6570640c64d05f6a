// Package jobs exposes job ingestion and flexibility queries over HTTP.
package jobs

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/flexcompute/flexd/core/jobstore"
	"github.com/flexcompute/flexd/core/model"
)

// NewIngestHandler returns an HTTP handler admitting job batches via POST /api/jobs.
// Invalid entries are rejected individually; the response reports both lists.
func NewIngestHandler(store *jobstore.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var batch []model.Job
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			http.Error(w, "malformed job batch: "+err.Error(), http.StatusBadRequest)
			return
		}
		res := store.Ingest(batch)
		w.Header().Set("Content-Type", "application/json")
		if len(res.Rejected) > 0 {
			w.WriteHeader(http.StatusMultiStatus)
		}
		if err := json.NewEncoder(w).Encode(res); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// NewFlexibilityHandler returns an HTTP handler exposing per-job slack inside a
// query window via GET /api/jobs/flexibility.
func NewFlexibilityHandler(store *jobstore.Store) http.Handler {
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
		if !to.After(from) {
			http.Error(w, "to must be after from", http.StatusBadRequest)
			return
		}
		views := store.Window(from, to, r.URL.Query().Get("cluster_id"))
		if views == nil {
			views = []jobstore.FlexibilityView{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(views); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
