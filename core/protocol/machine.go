// Package protocol implements the asynchronous search/init/confirm handshake
// with an external counterparty. Every inbound request is answered with an
// immediate ACK or NACK; accepted requests enqueue a unit of work that a
// worker pool resolves out-of-band, delivering exactly one outbound callback
// per accepted request.
package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/flexcompute/flexd/core/logger"
	"github.com/flexcompute/flexd/core/metrics"
	"github.com/flexcompute/flexd/core/model"
	"github.com/flexcompute/flexd/core/planner"
	"github.com/flexcompute/flexd/internal/eventbus"
)

// Planner runs one planning cycle on demand.
type Planner interface {
	Plan(ctx context.Context, req planner.Request) (planner.Result, error)
}

// CallbackSender delivers an outbound callback, retrying transient failures
// with bounded backoff. It returns model.ErrCallbackDelivery (wrapped) once
// retries are exhausted.
type CallbackSender interface {
	Deliver(ctx context.Context, uri string, env Envelope) error
}

type taskKind int

const (
	taskSearch taskKind = iota
	taskInit
	taskConfirm
)

type task struct {
	kind taskKind
	tx   *Transaction
	ctx  Context
	// search parameters
	search SearchMessage
	// init/confirm item
	itemID string
}

// Machine drives per-transaction protocol state. Distinct transactions are
// processed concurrently; transitions for one transaction are serialized.
type Machine struct {
	cfg       Config
	reg       *registry
	planner   Planner
	sender    CallbackSender
	bus       *eventbus.Bus[Event]
	sink      metrics.Sink
	log       logger.Logger
	publisher ReservationPublisher
	queue     chan task
}

// NewMachine creates a Machine. A nil sink disables metrics and a nil
// publisher disables reservation publication.
func NewMachine(cfg Config, pl Planner, sender CallbackSender, bus *eventbus.Bus[Event], sink metrics.Sink, publisher ReservationPublisher, log logger.Logger) (*Machine, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if pl == nil || sender == nil || bus == nil {
		return nil, fmt.Errorf("protocol: nil parameter provided to NewMachine")
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Machine{
		cfg:       cfg,
		reg:       newRegistry(),
		planner:   pl,
		sender:    sender,
		bus:       bus,
		sink:      sink,
		log:       log,
		publisher: publisher,
		queue:     make(chan task, cfg.QueueSize),
	}, nil
}

// Start launches the worker pool and the timeout janitor. It returns
// immediately; workers stop when the context is canceled.
func (m *Machine) Start(ctx context.Context) {
	for i := 0; i < m.cfg.Workers; i++ {
		go m.worker(ctx)
	}
	go m.janitor(ctx)
}

// TransactionState exposes the current state for a correlation identifier.
func (m *Machine) TransactionState(id string) (State, bool) {
	tx, ok := m.reg.get(id)
	if !ok {
		return StateIdle, false
	}
	return tx.State(), true
}

// HandleSearch processes a discovery request. The acknowledgment is computed
// synchronously; planning and catalog delivery happen out-of-band.
func (m *Machine) HandleSearch(env Envelope) Ack {
	if err := env.Context.Validate(ActionSearch); err != nil {
		return m.nack(ActionSearch, err)
	}
	var msg SearchMessage
	if err := json.Unmarshal(env.Message, &msg); err != nil {
		return m.nack(ActionSearch, fmt.Errorf("%w: malformed search message: %v", model.ErrValidation, err))
	}
	if msg.Window.Start.IsZero() {
		return m.nack(ActionSearch, fmt.Errorf("%w: missing window start", model.ErrValidation))
	}
	if msg.Window.End.IsZero() {
		msg.Window.End = msg.Window.Start.Add(time.Duration(m.cfg.DefaultHorizonHours * float64(time.Hour)))
	}
	if err := msg.Window.Validate(); err != nil {
		return m.nack(ActionSearch, err)
	}

	tx, ok := m.reg.create(env.Context.TransactionID, env.Context.CallbackURI)
	if !ok {
		return m.nack(ActionSearch, fmt.Errorf("%w: transaction %s already exists", model.ErrValidation, env.Context.TransactionID))
	}
	if !tx.transition(StateIdle, StateAwaitingCatalogPublish) {
		return m.nack(ActionSearch, fmt.Errorf("transaction %s not idle", tx.ID))
	}
	if !m.enqueue(task{kind: taskSearch, tx: tx, ctx: env.Context, search: msg}) {
		m.reg.remove(tx.ID)
		return m.nack(ActionSearch, fmt.Errorf("work queue full"))
	}
	return m.ack(ActionSearch)
}

// HandleInit processes a selection request referencing a prior catalog item.
func (m *Machine) HandleInit(env Envelope) Ack {
	tx, itemID, err := m.admitOrder(env, ActionInit, StateCatalogPublished)
	if err != nil {
		return m.nack(ActionInit, err)
	}
	if !tx.selectItem(StateCatalogPublished, StateAwaitingInitAck, itemID) {
		return m.nack(ActionInit, fmt.Errorf("%w: transaction %s not awaiting selection", model.ErrValidation, tx.ID))
	}
	if !m.enqueue(task{kind: taskInit, tx: tx, ctx: env.Context, itemID: itemID}) {
		// roll the transition back so the counterparty may retry
		tx.transition(StateAwaitingInitAck, StateCatalogPublished)
		return m.nack(ActionInit, fmt.Errorf("work queue full"))
	}
	return m.ack(ActionInit)
}

// HandleConfirm processes a confirmation request for the selected item.
func (m *Machine) HandleConfirm(env Envelope) Ack {
	tx, itemID, err := m.admitOrder(env, ActionConfirm, StateInitConfirmed)
	if err != nil {
		return m.nack(ActionConfirm, err)
	}
	if sel := tx.selectedItem(); sel != "" && sel != itemID {
		return m.nack(ActionConfirm, fmt.Errorf("%w: item %s does not match selected %s", model.ErrValidation, itemID, sel))
	}
	if !tx.selectItem(StateInitConfirmed, StateAwaitingConfirmAck, itemID) {
		return m.nack(ActionConfirm, fmt.Errorf("%w: transaction %s not awaiting confirmation", model.ErrValidation, tx.ID))
	}
	if !m.enqueue(task{kind: taskConfirm, tx: tx, ctx: env.Context, itemID: itemID}) {
		tx.transition(StateAwaitingConfirmAck, StateInitConfirmed)
		return m.nack(ActionConfirm, fmt.Errorf("work queue full"))
	}
	return m.ack(ActionConfirm)
}

// admitOrder validates the shared envelope and catalog checks of selection and
// confirmation requests. Unknown or terminal correlation identifiers and items
// absent from the published catalog are rejected.
func (m *Machine) admitOrder(env Envelope, action string, expect State) (*Transaction, string, error) {
	if err := env.Context.Validate(action); err != nil {
		return nil, "", err
	}
	var msg OrderMessage
	if err := json.Unmarshal(env.Message, &msg); err != nil {
		return nil, "", fmt.Errorf("%w: malformed order message: %v", model.ErrValidation, err)
	}
	if msg.Order.ItemID == "" {
		return nil, "", fmt.Errorf("%w: missing order item_id", model.ErrValidation)
	}
	tx, ok := m.reg.get(env.Context.TransactionID)
	if !ok {
		return nil, "", fmt.Errorf("%w: unknown transaction %s", model.ErrValidation, env.Context.TransactionID)
	}
	if st := tx.State(); st.Terminal() {
		return nil, "", fmt.Errorf("%w: transaction %s already %s", model.ErrValidation, tx.ID, st)
	} else if st != expect {
		return nil, "", fmt.Errorf("%w: transaction %s in state %s", model.ErrValidation, tx.ID, st)
	}
	if _, ok := tx.offerByID(msg.Order.ItemID); !ok {
		return nil, "", fmt.Errorf("%w: item %s not in published catalog", model.ErrValidation, msg.Order.ItemID)
	}
	return tx, msg.Order.ItemID, nil
}

func (m *Machine) enqueue(t task) bool {
	select {
	case m.queue <- t:
		return true
	default:
		return false
	}
}

func (m *Machine) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-m.queue:
			switch t.kind {
			case taskSearch:
				m.runSearch(ctx, t)
			case taskInit:
				m.runInit(ctx, t)
			case taskConfirm:
				m.runConfirm(ctx, t)
			}
		}
	}
}

// runSearch computes a planning cycle and publishes the catalog. The catalog
// becomes visible atomically: either the callback is delivered and all offers
// are stored, or the transaction fails and none are.
func (m *Machine) runSearch(ctx context.Context, t task) {
	req := planner.Request{Window: t.search.Window, Region: t.search.Region, ClusterID: t.search.ClusterID}
	if t.search.Weights != nil {
		req.Weights = *t.search.Weights
	}
	res, err := m.planner.Plan(ctx, req)
	if err != nil {
		m.log.Errorf("planning for transaction %s failed: %v", t.tx.ID, err)
		m.deliverFailure(ctx, t, ActionOnSearch, err)
		return
	}

	payload := CatalogMessage{Catalog: Catalog{
		Provider: m.cfg.ProviderID,
		Expires:  time.Now().UTC().Add(time.Duration(m.cfg.CatalogTTLHours * float64(time.Hour))),
		Items:    res.Offers,
	}}
	env := Envelope{Context: t.ctx.Reply(ActionOnSearch), Message: marshalMessage(payload)}
	if err := m.sender.Deliver(ctx, t.tx.CallbackURI, env); err != nil {
		m.failTransaction(t.tx, fmt.Sprintf("on_search delivery: %v", err))
		return
	}
	if t.tx.publishCatalog(res.Offers) {
		m.bus.Publish(Event{Kind: EventCatalogPublished, TransactionID: t.tx.ID, Time: time.Now()})
		m.log.Infof("transaction %s: catalog published with %d offers", t.tx.ID, len(res.Offers))
	}
}

// runInit delivers the on_init callback for the selected item.
func (m *Machine) runInit(ctx context.Context, t task) {
	offer, ok := t.tx.offerByID(t.itemID)
	if !ok {
		m.failTransaction(t.tx, fmt.Sprintf("item %s vanished from catalog", t.itemID))
		return
	}
	payload := OrderCallback{Order: Order{ItemID: t.itemID}, Offer: offer, Status: "INITIALIZED"}
	env := Envelope{Context: t.ctx.Reply(ActionOnInit), Message: marshalMessage(payload)}
	if err := m.sender.Deliver(ctx, t.tx.CallbackURI, env); err != nil {
		m.failTransaction(t.tx, fmt.Sprintf("on_init delivery: %v", err))
		return
	}
	t.tx.transition(StateAwaitingInitAck, StateInitConfirmed)
}

// runConfirm commits the reservation and delivers the on_confirm callback
// carrying the reserved bounds and price.
func (m *Machine) runConfirm(ctx context.Context, t task) {
	offer, ok := t.tx.offerByID(t.itemID)
	if !ok {
		m.failTransaction(t.tx, fmt.Sprintf("item %s vanished from catalog", t.itemID))
		return
	}
	payload := OrderCallback{Order: Order{ItemID: t.itemID}, Offer: offer, Status: "CONFIRMED"}
	env := Envelope{Context: t.ctx.Reply(ActionOnConfirm), Message: marshalMessage(payload)}
	if err := m.sender.Deliver(ctx, t.tx.CallbackURI, env); err != nil {
		m.failTransaction(t.tx, fmt.Sprintf("on_confirm delivery: %v", err))
		return
	}
	if t.tx.transition(StateAwaitingConfirmAck, StateConfirmed) {
		res := Reservation{TransactionID: t.tx.ID, Offer: offer, ConfirmedAt: time.Now().UTC()}
		m.bus.Publish(Event{Kind: EventReservationConfirmed, TransactionID: t.tx.ID, Time: res.ConfirmedAt})
		m.log.Infof("transaction %s: reservation confirmed for %s", t.tx.ID, t.itemID)
		if m.publisher != nil {
			if err := m.publisher.PublishReservation(res); err != nil {
				m.log.Errorf("reservation publish: %v", err)
			}
		}
	}
}

// deliverFailure sends the single error callback owed for an accepted request
// and moves the transaction to Failed.
func (m *Machine) deliverFailure(ctx context.Context, t task, action string, cause error) {
	env := Envelope{
		Context: t.ctx.Reply(action),
		Message: marshalMessage(struct{}{}),
		Error:   &ErrorDetail{Kind: model.ErrorKind(cause), Message: cause.Error()},
	}
	if err := m.sender.Deliver(ctx, t.tx.CallbackURI, env); err != nil {
		m.log.Errorf("failure callback for transaction %s not delivered: %v", t.tx.ID, err)
	}
	m.failTransaction(t.tx, cause.Error())
}

func (m *Machine) failTransaction(tx *Transaction, reason string) {
	if tx.fail() {
		m.bus.Publish(Event{Kind: EventTransactionFailed, TransactionID: tx.ID, Reason: reason, Time: time.Now()})
		m.log.Warnf("transaction %s failed: %s", tx.ID, reason)
	}
}

// janitor ages out transactions stuck in an Awaiting state past the
// configured bound and evicts terminal transactions once their retention
// expires, keeping the registry bounded.
func (m *Machine) janitor(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.JanitorInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.reg.each(func(tx *Transaction) {
				if tx.stale(m.cfg.TransactionTimeout(), now) {
					m.failTransaction(tx, "transaction timed out")
				}
				if tx.expired(m.cfg.TerminalRetention(), now) {
					m.reg.remove(tx.ID)
					m.log.Debugw("terminal transaction evicted", map[string]any{"transaction_id": tx.ID})
				}
			})
		}
	}
}

func (m *Machine) ack(action string) Ack {
	m.recordProtocol(action, true, "")
	return AckOK()
}

func (m *Machine) nack(action string, err error) Ack {
	n := Nack(err)
	m.recordProtocol(action, false, n.Error.Kind)
	return n
}

func (m *Machine) recordProtocol(action string, accepted bool, kind string) {
	if err := m.sink.RecordProtocol(metrics.ProtocolRecord{Action: action, Accepted: accepted, ErrorKind: kind}); err != nil {
		m.log.Errorf("metrics error: %v", err)
	}
}
