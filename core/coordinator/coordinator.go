package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/evtracker/evtrack/core/logger"
	"github.com/evtracker/evtrack/core/metrics"
	"github.com/evtracker/evtrack/core/model"
	"github.com/evtracker/evtrack/core/monitoring"
	"github.com/evtracker/evtrack/core/remote"
)

// State describes the coordinator's refresh lifecycle.
type State int

const (
	StateStarting State = iota
	StateIdle
	StateRefreshing
	StateDegraded
)

var stateNames = map[State]string{
	StateStarting:   "starting",
	StateIdle:       "idle",
	StateRefreshing: "refreshing",
	StateDegraded:   "degraded",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// Config defines per-car coordinator parameters.
type Config struct {
	CarID   int
	CarName string

	// PollInterval is the fixed refresh cadence. Failures are retried at
	// this same cadence; there is no additional backoff.
	PollInterval time.Duration
	// RequestTimeout bounds every remote call.
	RequestTimeout time.Duration
	// MaxRetries is the number of additional submission attempts after the
	// first on transient failures.
	MaxRetries int
	// RetryDelay is the fixed pause between submission attempts.
	RetryDelay time.Duration
	// DedupHorizon is how long an acknowledged external id is remembered
	// locally. Repeats inside the horizon are resolved without a remote call.
	DedupHorizon time.Duration
}

func (c *Config) setDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Minute
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 2 * time.Second
	}
	if c.DedupHorizon <= 0 {
		c.DedupHorizon = 24 * time.Hour
	}
}

type acknowledged struct {
	session model.Session
	at      time.Time
}

// Coordinator owns the refresh cycle for one car. It maintains the cached
// statistics snapshot, replaced wholesale on success and retained through
// failures, and drives idempotent session submission. All snapshot writes
// are funnelled through the single-flighted refresh path.
type Coordinator struct {
	cfg     Config
	client  remote.Client
	log     logger.Logger
	metrics metrics.Sink

	// TariffState, when set, classifies an instant so refreshed snapshots
	// can carry the low-tariff flag. Optional.
	TariffState func(time.Time) model.RateType

	group singleflight.Group

	// baseCtx bounds background work the coordinator spawns on its own
	// behalf; Close (or Run returning) cancels it.
	baseCtx context.Context
	stop    context.CancelFunc

	mu     sync.RWMutex
	snap   model.StatsSnapshot
	state  State
	streak int
	known  map[string]acknowledged
}

// New creates a coordinator for one car. The client must not be nil.
func New(cfg Config, client remote.Client, log logger.Logger, sink metrics.Sink) (*Coordinator, error) {
	if client == nil {
		return nil, fmt.Errorf("coordinator: nil client")
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	cfg.setDefaults()
	baseCtx, stop := context.WithCancel(context.Background())
	return &Coordinator{
		cfg:     cfg,
		client:  client,
		log:     log,
		metrics: sink,
		baseCtx: baseCtx,
		stop:    stop,
		snap:    model.StatsSnapshot{CarID: cfg.CarID},
		state:   StateStarting,
		known:   make(map[string]acknowledged),
	}, nil
}

// Close tears the coordinator down, abandoning any background refresh it
// spawned. Run calls it on return; callers that never Run may call it
// directly.
func (c *Coordinator) Close() { c.stop() }

// Run drives the periodic refresh until the context is cancelled. The first
// successful refresh moves the coordinator from starting to idle.
func (c *Coordinator) Run(ctx context.Context) {
	defer c.stop()
	if err := c.Refresh(ctx); err != nil {
		c.log.Warnf("initial refresh for car %d failed: %v", c.cfg.CarID, err)
	}
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				c.log.Warnf("refresh for car %d failed: %v", c.cfg.CarID, err)
			}
		}
	}
}

// Refresh fetches fresh statistics and replaces the snapshot atomically.
// Concurrent calls are coalesced: a request arriving while a refresh is in
// flight joins that refresh's result instead of issuing a second remote call.
func (c *Coordinator) Refresh(ctx context.Context) error {
	_, err, _ := c.group.Do("refresh", func() (any, error) {
		return nil, c.doRefresh(ctx)
	})
	return err
}

func (c *Coordinator) doRefresh(ctx context.Context) error {
	c.mu.Lock()
	prev := c.state
	c.state = StateRefreshing
	c.mu.Unlock()

	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	snap, err := c.client.FetchStats(callCtx, c.cfg.CarID)
	cancel()

	if ctx.Err() != nil {
		// Owner torn down mid-flight: abandon, restoring the state the
		// refresh found so teardown leaves no trace.
		c.setState(prev)
		return ctx.Err()
	}

	if err != nil {
		c.mu.Lock()
		c.state = StateDegraded
		c.streak++
		streak := c.streak
		c.snap.Connected = false
		c.mu.Unlock()

		c.log.Errorf("stats refresh for car %d failed (streak %d): %v", c.cfg.CarID, streak, err)
		monitoring.CaptureException(err, map[string]string{"car_id": fmt.Sprint(c.cfg.CarID), "op": "refresh"})
		c.recordRefresh(metrics.RefreshEvent{CarID: c.cfg.CarID, Success: false, Streak: streak, Duration: time.Since(start), Time: time.Now()})
		return err
	}

	snap.CarID = c.cfg.CarID
	snap.Connected = true
	snap.FetchedAt = time.Now()
	if c.TariffState != nil {
		if rate := c.TariffState(snap.FetchedAt); rate != model.RateUnknown {
			low := rate == model.RateLow
			snap.LowTariff = &low
		}
	}

	c.mu.Lock()
	c.snap = snap
	c.state = StateIdle
	c.streak = 0
	c.pruneKnownLocked(snap.FetchedAt)
	c.mu.Unlock()

	c.recordRefresh(metrics.RefreshEvent{CarID: c.cfg.CarID, Success: true, Duration: time.Since(start), Time: time.Now()})
	return nil
}

// Submit sends a session to the accounting service. Transient failures are
// retried a bounded number of times with a fixed delay. A duplicate response
// is a success: the pre-existing remote record is returned and no further
// calls are made for that external id within the dedup horizon.
func (c *Coordinator) Submit(ctx context.Context, s model.Session) (model.Session, error) {
	submitID := uuid.NewString()
	start := time.Now()

	if s.ExternalID != "" {
		if prev, ok := c.knownSession(s.ExternalID); ok {
			c.log.Infof("submission %s: external id %q already acknowledged, skipping remote call", submitID, s.ExternalID)
			c.recordSubmission(metrics.SubmissionEvent{CarID: c.cfg.CarID, Outcome: metrics.OutcomeDeduplicated, Duration: time.Since(start), Time: time.Now()})
			return prev, nil
		}
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return model.Session{}, ctx.Err()
			case <-time.After(c.cfg.RetryDelay):
			}
		}
		attempts++

		callCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
		res, err := c.client.SubmitSession(callCtx, s)
		cancel()

		if err == nil {
			c.rememberSession(res.Session)
			outcome := metrics.OutcomeCreated
			if res.Duplicate {
				outcome = metrics.OutcomeDuplicate
				c.log.Infof("submission %s: duplicate external id %q, returning existing session %d", submitID, s.ExternalID, res.Session.ID)
			} else {
				c.log.Infof("submission %s: logged session %d (%.2f kWh) for car %d", submitID, res.Session.ID, s.EnergyKWh, c.cfg.CarID)
				// Refresh out of band so cached statistics pick up the new
				// session before the next timer tick. Bounded by the
				// coordinator's own lifetime, not the submitter's context.
				go func() {
					if err := c.Refresh(c.baseCtx); err != nil {
						c.log.Warnf("post-submit refresh failed: %v", err)
					}
				}()
			}
			c.recordSubmission(metrics.SubmissionEvent{CarID: c.cfg.CarID, Outcome: outcome, Attempts: attempts, Duration: time.Since(start), Time: time.Now()})
			return res.Session, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			// The submitter backed out; don't burn retries on its behalf.
			return model.Session{}, ctx.Err()
		}
		// A per-call deadline expiring is a connectivity problem, not a
		// verdict on the session.
		if !remote.IsTransient(err) && !errors.Is(err, context.DeadlineExceeded) {
			break
		}
		c.log.Warnf("submission %s attempt %d failed: %v", submitID, attempts, err)
	}

	monitoring.CaptureException(lastErr, map[string]string{"car_id": fmt.Sprint(c.cfg.CarID), "op": "submit"})
	c.recordSubmission(metrics.SubmissionEvent{CarID: c.cfg.CarID, Outcome: metrics.OutcomeFailed, Attempts: attempts, Duration: time.Since(start), Time: time.Now()})
	return model.Session{}, fmt.Errorf("submit session: %w", lastErr)
}

// Snapshot returns a copy of the current cached statistics. It never blocks
// on the network.
func (c *Coordinator) Snapshot() model.StatsSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// FailureStreak returns the number of consecutive refresh failures.
func (c *Coordinator) FailureStreak() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.streak
}

// CarID returns the car this coordinator owns.
func (c *Coordinator) CarID() int { return c.cfg.CarID }

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Coordinator) knownSession(externalID string) (model.Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ack, ok := c.known[externalID]
	if !ok || time.Since(ack.at) > c.cfg.DedupHorizon {
		return model.Session{}, false
	}
	return ack.session, true
}

func (c *Coordinator) rememberSession(s model.Session) {
	if s.ExternalID == "" {
		return
	}
	c.mu.Lock()
	c.known[s.ExternalID] = acknowledged{session: s, at: time.Now()}
	c.mu.Unlock()
}

func (c *Coordinator) pruneKnownLocked(now time.Time) {
	for id, ack := range c.known {
		if now.Sub(ack.at) > c.cfg.DedupHorizon {
			delete(c.known, id)
		}
	}
}

func (c *Coordinator) recordRefresh(ev metrics.RefreshEvent) {
	if err := c.metrics.RecordRefresh(ev); err != nil {
		c.log.Errorf("metrics error: %v", err)
	}
}

func (c *Coordinator) recordSubmission(ev metrics.SubmissionEvent) {
	if err := c.metrics.RecordSubmission(ev); err != nil {
		c.log.Errorf("metrics error: %v", err)
	}
}
