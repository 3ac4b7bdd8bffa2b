package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/evtracker/evtrack/core/metrics"
)

// PromSink records refresh and submission events in Prometheus metrics.
type PromSink struct {
	refreshes     *prometheus.CounterVec
	submissions   *prometheus.CounterVec
	failureStreak *prometheus.GaugeVec
	duration      *prometheus.HistogramVec
}

// NewPromSink registers the collectors on the provided registerer. If reg is
// nil the default registerer is used. Already-registered collectors are
// reused so repeated construction is safe.
func NewPromSink(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	refreshes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "evtrack_refresh_total",
		Help: "Total number of statistics refresh cycles",
	}, []string{"car_id", "success"})
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "evtrack_submissions_total",
		Help: "Total number of session submissions by outcome",
	}, []string{"car_id", "outcome"})
	streak := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "evtrack_refresh_failure_streak",
		Help: "Consecutive refresh failures per car",
	}, []string{"car_id"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "evtrack_remote_call_seconds",
		Help:    "Duration of remote service operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	s := &PromSink{refreshes: refreshes, submissions: submissions, failureStreak: streak, duration: duration}
	collectors := []prometheus.Collector{refreshes, submissions, streak, duration}
	for i, col := range collectors {
		if err := reg.Register(col); err != nil {
			are, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				return nil, err
			}
			switch i {
			case 0:
				s.refreshes = are.ExistingCollector.(*prometheus.CounterVec)
			case 1:
				s.submissions = are.ExistingCollector.(*prometheus.CounterVec)
			case 2:
				s.failureStreak = are.ExistingCollector.(*prometheus.GaugeVec)
			case 3:
				s.duration = are.ExistingCollector.(*prometheus.HistogramVec)
			}
		}
	}
	return s, nil
}

// RecordRefresh updates refresh counters and the failure streak gauge.
func (s *PromSink) RecordRefresh(ev coremetrics.RefreshEvent) error {
	car := strconv.Itoa(ev.CarID)
	s.refreshes.WithLabelValues(car, strconv.FormatBool(ev.Success)).Inc()
	s.failureStreak.WithLabelValues(car).Set(float64(ev.Streak))
	s.duration.WithLabelValues("refresh").Observe(ev.Duration.Seconds())
	return nil
}

// RecordSubmission counts the submission by outcome.
func (s *PromSink) RecordSubmission(ev coremetrics.SubmissionEvent) error {
	s.submissions.WithLabelValues(strconv.Itoa(ev.CarID), ev.Outcome).Inc()
	s.duration.WithLabelValues("submit").Observe(ev.Duration.Seconds())
	return nil
}
