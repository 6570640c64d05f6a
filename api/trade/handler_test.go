package trade

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/flexcompute/flexd/core/forecast"
	"github.com/flexcompute/flexd/core/model"
	"github.com/flexcompute/flexd/core/planner"
	"github.com/flexcompute/flexd/core/protocol"
	"github.com/flexcompute/flexd/infra/logger"
	"github.com/flexcompute/flexd/internal/eventbus"
)

type stubPlanner struct{}

func (stubPlanner) Plan(context.Context, planner.Request) (planner.Result, error) {
	return planner.Result{Offers: []model.FlexOffer{{OfferID: "flex-j1", JobID: "j1"}}}, nil
}

type stubSender struct{}

func (stubSender) Deliver(context.Context, string, protocol.Envelope) error { return nil }

func newMachine(t *testing.T) *protocol.Machine {
	t.Helper()
	bus := eventbus.New[protocol.Event]()
	t.Cleanup(bus.Close)
	m, err := protocol.NewMachine(protocol.Config{}, stubPlanner{}, stubSender{}, bus, nil, nil, logger.NopLogger{})
	if err != nil {
		t.Fatalf("new machine: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	m.Start(ctx)
	return m
}

func searchBody(txID string) string {
	env := protocol.Envelope{
		Context: protocol.Context{
			Action:        protocol.ActionSearch,
			Version:       protocol.Version,
			TransactionID: txID,
			MessageID:     "m1",
			CallbackURI:   "http://counterparty.example/cb",
			Timestamp:     time.Now().UTC(),
		},
		Message: mustJSON(protocol.SearchMessage{Window: forecast.Window{
			Start: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
			End:   time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC),
		}}),
	}
	b, _ := json.Marshal(env)
	return string(b)
}

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func TestSearchHandlerAck(t *testing.T) {
	h := NewSearchHandler(newMachine(t))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("POST", "/search", strings.NewReader(searchBody("tx1"))))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var ack protocol.Ack
	if err := json.Unmarshal(rr.Body.Bytes(), &ack); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !ack.Accepted() {
		t.Fatalf("expected ACK, got %+v", ack)
	}
}

func TestSearchHandlerValidationNack(t *testing.T) {
	h := NewSearchHandler(newMachine(t))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("POST", "/search", strings.NewReader(searchBody(""))))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing transaction_id should yield 400, got %d", rr.Code)
	}
	var ack protocol.Ack
	if err := json.Unmarshal(rr.Body.Bytes(), &ack); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ack.Accepted() || ack.Error.Kind != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR NACK, got %+v", ack)
	}
}

func TestInitHandlerUnknownTransaction(t *testing.T) {
	h := NewInitHandler(newMachine(t))
	env := protocol.Envelope{
		Context: protocol.Context{
			Action:        protocol.ActionInit,
			Version:       protocol.Version,
			TransactionID: "ghost",
			MessageID:     "m2",
			CallbackURI:   "http://counterparty.example/cb",
			Timestamp:     time.Now().UTC(),
		},
		Message: mustJSON(protocol.OrderMessage{Order: protocol.Order{ItemID: "flex-j1"}}),
	}
	b, _ := json.Marshal(env)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("POST", "/init", strings.NewReader(string(b))))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown transaction should yield 400, got %d", rr.Code)
	}
}

func TestHandlerRejectsMalformedEnvelope(t *testing.T) {
	h := NewSearchHandler(newMachine(t))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("POST", "/search", strings.NewReader("{broken")))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestHandlerRejectsGet(t *testing.T) {
	h := NewConfirmHandler(newMachine(t))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/confirm", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}
