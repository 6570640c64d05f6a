package metrics

import coremetrics "github.com/flexcompute/flexd/core/metrics"

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordPlanning forwards the record to all sinks, returning the first error.
func (m *MultiSink) RecordPlanning(rec coremetrics.PlanningRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordPlanning(rec); err != nil {
			return err
		}
	}
	return nil
}

// RecordProtocol forwards the record to all sinks, returning the first error.
func (m *MultiSink) RecordProtocol(rec coremetrics.ProtocolRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordProtocol(rec); err != nil {
			return err
		}
	}
	return nil
}

// RecordCallback forwards the record to all sinks, returning the first error.
func (m *MultiSink) RecordCallback(rec coremetrics.CallbackRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordCallback(rec); err != nil {
			return err
		}
	}
	return nil
}
