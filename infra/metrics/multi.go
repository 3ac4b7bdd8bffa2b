package metrics

import (
	coremetrics "github.com/evtracker/evtrack/core/metrics"
)

// MultiSink fans events out to several sinks. The first error encountered
// is returned after all sinks were attempted.
type MultiSink struct {
	sinks []coremetrics.Sink
}

// NewMultiSink combines the given sinks.
func NewMultiSink(sinks ...coremetrics.Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) RecordRefresh(ev coremetrics.RefreshEvent) error {
	var first error
	for _, s := range m.sinks {
		if err := s.RecordRefresh(ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m *MultiSink) RecordSubmission(ev coremetrics.SubmissionEvent) error {
	var first error
	for _, s := range m.sinks {
		if err := s.RecordSubmission(ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
