package protocol

import (
	"sync"
	"time"

	"github.com/flexcompute/flexd/core/model"
)

// Transaction correlates one counterparty interaction across its lifecycle.
// All state mutations go through its mutex, so concurrent requests for the
// same transaction are serialized while distinct transactions stay
// independent.
type Transaction struct {
	ID          string
	CallbackURI string

	mu        sync.Mutex
	state     State
	catalog   []model.FlexOffer
	selected  string
	updatedAt time.Time
}

func newTransaction(id, callbackURI string) *Transaction {
	return &Transaction{ID: id, CallbackURI: callbackURI, state: StateIdle, updatedAt: time.Now()}
}

// State returns the current protocol state.
func (t *Transaction) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// transition advances from -> to and reports whether it applied. It is the
// only way state moves forward, which keeps concurrent workers and the
// janitor from racing each other.
func (t *Transaction) transition(from, to State) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != from {
		return false
	}
	t.state = to
	t.updatedAt = time.Now()
	return true
}

// fail moves any non-terminal state to Failed and reports whether it applied.
func (t *Transaction) fail() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Terminal() {
		return false
	}
	t.state = StateFailed
	t.updatedAt = time.Now()
	return true
}

// publishCatalog atomically stores the full offer set and advances to
// CatalogPublished. Offers become visible all at once or not at all.
func (t *Transaction) publishCatalog(offers []model.FlexOffer) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateAwaitingCatalogPublish {
		return false
	}
	t.catalog = offers
	t.state = StateCatalogPublished
	t.updatedAt = time.Now()
	return true
}

// offerByID looks up an item in the published catalog.
func (t *Transaction) offerByID(itemID string) (model.FlexOffer, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, o := range t.catalog {
		if o.OfferID == itemID {
			return o, true
		}
	}
	return model.FlexOffer{}, false
}

// selectItem records the item under negotiation and advances the state.
func (t *Transaction) selectItem(from, to State, itemID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != from {
		return false
	}
	t.selected = itemID
	t.state = to
	t.updatedAt = time.Now()
	return true
}

// selectedItem returns the item recorded at selection time.
func (t *Transaction) selectedItem() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.selected
}

// stale reports whether a pending transaction exceeded the timeout.
func (t *Transaction) stale(timeout time.Duration, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Pending() && now.Sub(t.updatedAt) > timeout
}

// expired reports whether a terminal transaction exceeded its retention bound.
func (t *Transaction) expired(retention time.Duration, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Terminal() && now.Sub(t.updatedAt) > retention
}

// registry holds live transactions keyed by correlation identifier.
type registry struct {
	mu  sync.RWMutex
	txs map[string]*Transaction
}

func newRegistry() *registry {
	return &registry{txs: make(map[string]*Transaction)}
}

// create registers a new transaction. It fails when the identifier is already
// known, terminal or not.
func (r *registry) create(id, callbackURI string) (*Transaction, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.txs[id]; ok {
		return nil, false
	}
	tx := newTransaction(id, callbackURI)
	r.txs[id] = tx
	return tx, true
}

func (r *registry) get(id string) (*Transaction, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tx, ok := r.txs[id]
	return tx, ok
}

func (r *registry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.txs, id)
}

// each calls fn for every live transaction.
func (r *registry) each(fn func(*Transaction)) {
	r.mu.RLock()
	txs := make([]*Transaction, 0, len(r.txs))
	for _, tx := range r.txs {
		txs = append(txs, tx)
	}
	r.mu.RUnlock()
	for _, tx := range txs {
		fn(tx)
	}
}
