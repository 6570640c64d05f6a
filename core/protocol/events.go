package protocol

import (
	"time"

	"github.com/flexcompute/flexd/core/model"
)

// EventKind classifies transaction lifecycle events.
type EventKind string

const (
	EventCatalogPublished     EventKind = "catalog_published"
	EventReservationConfirmed EventKind = "reservation_confirmed"
	EventTransactionFailed    EventKind = "transaction_failed"
)

// Event is published on the bus whenever a transaction reaches a notable
// state, so failures are observable instead of silently dropped.
type Event struct {
	Kind          EventKind
	TransactionID string
	Reason        string
	Time          time.Time
}

// Reservation is the committed outcome of a confirmed transaction: the bounds
// and price as actually reserved, not merely advertised.
type Reservation struct {
	TransactionID string          `json:"transaction_id"`
	Offer         model.FlexOffer `json:"offer"`
	ConfirmedAt   time.Time       `json:"confirmed_at"`
}

// ReservationPublisher pushes confirmed reservations to downstream consumers.
type ReservationPublisher interface {
	PublishReservation(Reservation) error
}
