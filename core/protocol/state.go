package protocol

// State is the per-transaction protocol state. Transitions are only ever
// advanced by the state machine itself, never inferred from inbound requests.
type State int

const (
	StateIdle State = iota
	StateAwaitingCatalogPublish
	StateCatalogPublished
	StateAwaitingInitAck
	StateInitConfirmed
	StateAwaitingConfirmAck
	StateConfirmed
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:                   "Idle",
	StateAwaitingCatalogPublish: "AwaitingCatalogPublish",
	StateCatalogPublished:       "CatalogPublished",
	StateAwaitingInitAck:        "AwaitingInitAck",
	StateInitConfirmed:          "InitConfirmed",
	StateAwaitingConfirmAck:     "AwaitingConfirmAck",
	StateConfirmed:              "Confirmed",
	StateFailed:                 "Failed",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "Unknown"
}

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == StateConfirmed || s == StateFailed
}

// Pending reports whether the transaction is waiting on an outbound callback.
// Pending states are subject to the timeout janitor: no transaction may linger
// in an Awaiting state with no further action scheduled.
func (s State) Pending() bool {
	switch s {
	case StateAwaitingCatalogPublish, StateAwaitingInitAck, StateAwaitingConfirmAck:
		return true
	}
	return false
}
