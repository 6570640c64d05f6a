// Package trade exposes the asynchronous trade endpoints. Each POST returns
// the synchronous ACK or NACK; accepted requests resolve through an outbound
// callback delivered later by the protocol machine.
package trade

import (
	"encoding/json"
	"net/http"

	"github.com/flexcompute/flexd/core/protocol"
)

// NewSearchHandler returns the POST /search handler.
func NewSearchHandler(m *protocol.Machine) http.Handler {
	return ackHandler(m.HandleSearch)
}

// NewInitHandler returns the POST /init handler.
func NewInitHandler(m *protocol.Machine) http.Handler {
	return ackHandler(m.HandleInit)
}

// NewConfirmHandler returns the POST /confirm handler.
func NewConfirmHandler(m *protocol.Machine) http.Handler {
	return ackHandler(m.HandleConfirm)
}

func ackHandler(handle func(protocol.Envelope) protocol.Ack) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var env protocol.Envelope
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			http.Error(w, "malformed envelope: "+err.Error(), http.StatusBadRequest)
			return
		}
		ack := handle(env)
		w.Header().Set("Content-Type", "application/json")
		if !ack.Accepted() {
			w.WriteHeader(statusForNack(ack))
		}
		if err := json.NewEncoder(w).Encode(ack); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

func statusForNack(ack protocol.Ack) int {
	if ack.Error == nil {
		return http.StatusBadRequest
	}
	switch ack.Error.Kind {
	case "VALIDATION_ERROR":
		return http.StatusBadRequest
	case "DOWNSTREAM_ERROR":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
