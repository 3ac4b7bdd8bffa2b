package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	coremetrics "github.com/evtracker/evtrack/core/metrics"
)

func TestPromSinkRecordRefresh(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSink(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}

	if err := sink.RecordRefresh(coremetrics.RefreshEvent{
		CarID:    1,
		Success:  false,
		Streak:   3,
		Duration: 120 * time.Millisecond,
		Time:     time.Now(),
	}); err != nil {
		t.Fatalf("record error: %v", err)
	}

	expected := `
# HELP evtrack_refresh_total Total number of statistics refresh cycles
# TYPE evtrack_refresh_total counter
evtrack_refresh_total{car_id="1",success="false"} 1
`
	if err := testutil.CollectAndCompare(sink.refreshes, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}
	if got := testutil.ToFloat64(sink.failureStreak.WithLabelValues("1")); got != 3 {
		t.Errorf("streak gauge = %v, want 3", got)
	}
}

func TestPromSinkRecordSubmission(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSink(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}

	if err := sink.RecordSubmission(coremetrics.SubmissionEvent{
		CarID:    2,
		Outcome:  coremetrics.OutcomeDuplicate,
		Attempts: 1,
		Duration: 80 * time.Millisecond,
		Time:     time.Now(),
	}); err != nil {
		t.Fatalf("record error: %v", err)
	}

	expected := `
# HELP evtrack_submissions_total Total number of session submissions by outcome
# TYPE evtrack_submissions_total counter
evtrack_submissions_total{car_id="2",outcome="duplicate"} 1
`
	if err := testutil.CollectAndCompare(sink.submissions, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}
}

func TestPromSinkRegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPromSink(reg); err != nil {
		t.Fatalf("first: %v", err)
	}
	// Re-registration reuses the existing collectors instead of failing.
	sink, err := NewPromSink(reg)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if err := sink.RecordRefresh(coremetrics.RefreshEvent{CarID: 1, Success: true}); err != nil {
		t.Fatalf("record: %v", err)
	}
}

func TestMultiSinkFansOut(t *testing.T) {
	reg := prometheus.NewRegistry()
	prom, err := NewPromSink(reg)
	if err != nil {
		t.Fatalf("prom: %v", err)
	}
	multi := NewMultiSink(coremetrics.NopSink{}, prom)
	if err := multi.RecordRefresh(coremetrics.RefreshEvent{CarID: 1, Success: true}); err != nil {
		t.Fatalf("multi record: %v", err)
	}
	if got := testutil.ToFloat64(prom.refreshes.WithLabelValues("1", "true")); got != 1 {
		t.Errorf("fan-out missed prom sink: %v", got)
	}
}
