package metrics

import "time"

// PlanningRecord summarizes one completed planning cycle.
type PlanningRecord struct {
	Region         string
	WindowStart    time.Time
	WindowEnd      time.Time
	Scheduled      int
	Rejected       int
	Offers         int
	TotalCost      float64
	TotalCarbonKg  float64
	SyntheticSlots int
	Elapsed        time.Duration
}

// ProtocolRecord represents one inbound protocol request outcome.
type ProtocolRecord struct {
	Action    string
	Accepted  bool
	ErrorKind string
}

// CallbackRecord represents one outbound callback delivery outcome.
type CallbackRecord struct {
	Action    string
	Attempts  int
	Delivered bool
	Elapsed   time.Duration
}

// Sink records planning and protocol events for observability purposes.
type Sink interface {
	RecordPlanning(PlanningRecord) error
	RecordProtocol(ProtocolRecord) error
	RecordCallback(CallbackRecord) error
}

// NopSink implements Sink with no-op methods.
type NopSink struct{}

func (NopSink) RecordPlanning(PlanningRecord) error { return nil }
func (NopSink) RecordProtocol(ProtocolRecord) error { return nil }
func (NopSink) RecordCallback(CallbackRecord) error { return nil }
