package metrics

import "time"

// RefreshEvent captures one refresh cycle against the accounting service.
type RefreshEvent struct {
	CarID    int
	Success  bool
	Streak   int
	Duration time.Duration
	Time     time.Time
}

// RefreshRecorder records refresh cycles for observability purposes.
type RefreshRecorder interface {
	RecordRefresh(ev RefreshEvent) error
}

// Submission outcomes.
const (
	OutcomeCreated      = "created"
	OutcomeDuplicate    = "duplicate"
	OutcomeDeduplicated = "deduplicated"
	OutcomeFailed       = "failed"
)

// SubmissionEvent captures one session submission attempt chain.
type SubmissionEvent struct {
	CarID    int
	Outcome  string
	Attempts int
	Duration time.Duration
	Time     time.Time
}

// SubmissionRecorder records session submissions.
type SubmissionRecorder interface {
	RecordSubmission(ev SubmissionEvent) error
}

// Sink combines all recorders consumed by the coordinator.
type Sink interface {
	RefreshRecorder
	SubmissionRecorder
}

// NopSink implements Sink with no-op methods.
type NopSink struct{}

func (NopSink) RecordRefresh(RefreshEvent) error       { return nil }
func (NopSink) RecordSubmission(SubmissionEvent) error { return nil }
