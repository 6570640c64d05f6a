package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/flexcompute/flexd/core/forecast"
	"github.com/flexcompute/flexd/core/model"
	"github.com/flexcompute/flexd/core/scheduler"
)

// Version is the protocol version declared in every envelope.
const Version = "1.0.0"

// Inbound actions and their outbound callback counterparts.
const (
	ActionSearch    = "search"
	ActionInit      = "init"
	ActionConfirm   = "confirm"
	ActionOnSearch  = "on_search"
	ActionOnInit    = "on_init"
	ActionOnConfirm = "on_confirm"
)

// Context correlates every request and callback of one flow. The transaction
// identifier is immutable for the life of a transaction; message identifiers
// are unique per individual message.
type Context struct {
	Action        string    `json:"action"`
	Version       string    `json:"version"`
	TransactionID string    `json:"transaction_id"`
	MessageID     string    `json:"message_id"`
	CallbackURI   string    `json:"callback_uri"`
	Timestamp     time.Time `json:"timestamp"`
	TTL           string    `json:"ttl,omitempty"`
}

// Validate checks the required correlation fields for an inbound request.
func (c Context) Validate(expectedAction string) error {
	switch {
	case c.TransactionID == "":
		return fmt.Errorf("%w: missing transaction_id", model.ErrValidation)
	case c.MessageID == "":
		return fmt.Errorf("%w: missing message_id", model.ErrValidation)
	case c.CallbackURI == "":
		return fmt.Errorf("%w: missing callback_uri", model.ErrValidation)
	case c.Version != Version:
		return fmt.Errorf("%w: unsupported version %q", model.ErrValidation, c.Version)
	case c.Action != expectedAction:
		return fmt.Errorf("%w: expected action %q, got %q", model.ErrValidation, expectedAction, c.Action)
	case c.Timestamp.IsZero():
		return fmt.Errorf("%w: missing timestamp", model.ErrValidation)
	}
	return nil
}

// Reply derives the callback context: same transaction identifier, fresh
// message identifier, current timestamp.
func (c Context) Reply(action string) Context {
	return Context{
		Action:        action,
		Version:       c.Version,
		TransactionID: c.TransactionID,
		MessageID:     uuid.NewString(),
		CallbackURI:   c.CallbackURI,
		Timestamp:     time.Now().UTC(),
		TTL:           c.TTL,
	}
}

// Envelope is the wire form of every protocol message.
type Envelope struct {
	Context Context         `json:"context"`
	Message json.RawMessage `json:"message"`
	Error   *ErrorDetail    `json:"error,omitempty"`
}

// ErrorDetail is the machine-readable error carried by NACKs and failure
// callbacks.
type ErrorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Ack is the synchronous leg of every inbound request.
type Ack struct {
	Status string       `json:"status"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

// Accepted reports whether the request was positively acknowledged.
func (a Ack) Accepted() bool { return a.Status == "ACK" }

// AckOK returns a positive acknowledgment.
func AckOK() Ack { return Ack{Status: "ACK"} }

// Nack returns a negative acknowledgment carrying the error kind.
func Nack(err error) Ack {
	return Ack{Status: "NACK", Error: &ErrorDetail{Kind: model.ErrorKind(err), Message: err.Error()}}
}

// SearchMessage is the discovery intent: a window and region to plan against.
type SearchMessage struct {
	Window    forecast.Window    `json:"window"`
	Region    string             `json:"region,omitempty"`
	ClusterID string             `json:"cluster_id,omitempty"`
	Weights   *scheduler.Weights `json:"weights,omitempty"`
}

// OrderMessage references a catalog item in selection and confirmation.
type OrderMessage struct {
	Order Order `json:"order"`
}

// Order identifies the catalog item being transacted.
type Order struct {
	ItemID string `json:"item_id"`
}

// CatalogMessage is the on_search callback payload.
type CatalogMessage struct {
	Catalog Catalog `json:"catalog"`
}

// Catalog is the atomically published set of offers for one transaction.
type Catalog struct {
	Provider string            `json:"provider"`
	Expires  time.Time         `json:"expires"`
	Items    []model.FlexOffer `json:"items"`
}

// OrderCallback is the on_init and on_confirm callback payload. For
// confirmations the offer carries the bounds and price as actually reserved.
type OrderCallback struct {
	Order  Order           `json:"order"`
	Offer  model.FlexOffer `json:"offer"`
	Status string          `json:"status"`
}

func marshalMessage(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}
