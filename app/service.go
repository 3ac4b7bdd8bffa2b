package app

import (
	"context"
	"fmt"
	"time"

	"github.com/evtracker/evtrack/config"
	"github.com/evtracker/evtrack/core/coordinator"
	coremetrics "github.com/evtracker/evtrack/core/metrics"
	"github.com/evtracker/evtrack/core/model"
	coremon "github.com/evtracker/evtrack/core/monitoring"
	"github.com/evtracker/evtrack/core/remote"
	"github.com/evtracker/evtrack/core/session"
	"github.com/evtracker/evtrack/core/tariff"
	"github.com/evtracker/evtrack/infra/evtracker"
	"github.com/evtracker/evtrack/infra/logger"
	"github.com/evtracker/evtrack/infra/metrics"
	"github.com/evtracker/evtrack/infra/monitoring"
	"github.com/evtracker/evtrack/infra/mqtt"
)

// ErrUnknownCar is returned when an operation names a car that is not
// configured.
type ErrUnknownCar struct{ CarID int }

func (e *ErrUnknownCar) Error() string { return fmt.Sprintf("unknown car %d", e.CarID) }

type car struct {
	cfg     config.CarConfig
	tariff  tariff.Config
	builder session.Builder
	coord   *coordinator.Coordinator
}

// Service wires the remote client, per-car coordinators, metrics sinks and
// the MQTT publisher into one process.
type Service struct {
	client *evtracker.Client
	cars   map[int]*car
	order  []int
	pub    *mqtt.Publisher
	log    logger.Logger

	promEnabled bool
	promAddr    string
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	monitor, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(monitor)

	var sinks []coremetrics.Sink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(nil)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(cfg.Metrics))
	}
	var sink coremetrics.Sink
	switch len(sinks) {
	case 0:
		sink = coremetrics.NopSink{}
	case 1:
		sink = sinks[0]
	default:
		sink = metrics.NewMultiSink(sinks...)
	}

	client := evtracker.NewClient(cfg.API)

	svc := &Service{
		client:      client,
		cars:        make(map[int]*car, len(cfg.Cars)),
		log:         logg,
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promAddr:    cfg.Metrics.PrometheusAddr,
	}

	for _, cc := range cfg.Cars {
		tc, err := cc.Tariff.Build()
		if err != nil {
			return nil, fmt.Errorf("car %d tariff: %w", cc.ID, err)
		}
		coord, err := coordinator.New(coordinator.Config{
			CarID:          cc.ID,
			CarName:        cc.Name,
			PollInterval:   time.Duration(cc.PollIntervalSeconds) * time.Second,
			RequestTimeout: time.Duration(cfg.API.TimeoutSeconds) * time.Second,
			MaxRetries:     2,
		}, client, logger.New(fmt.Sprintf("coordinator-%d", cc.ID)), sink)
		if err != nil {
			return nil, err
		}
		if tc.Mode == tariff.ModeSchedule {
			sched := tc
			coord.TariffState = func(at time.Time) model.RateType {
				return tariff.Resolve(sched, at, nil)
			}
		}
		svc.cars[cc.ID] = &car{
			cfg:    cc,
			tariff: tc,
			builder: session.Builder{
				Tariff: tc,
				Prices: cc.Prices.Build(),
			},
			coord: coord,
		}
		svc.order = append(svc.order, cc.ID)
	}

	if cfg.MQTT.Enabled {
		pub, err := mqtt.NewPublisher(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		svc.pub = pub
	}
	return svc, nil
}

// Run starts the per-car refresh loops and blocks until the context is
// cancelled.
func (s *Service) Run(ctx context.Context) error {
	for _, id := range s.order {
		go s.cars[id].coord.Run(ctx)
	}
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promAddr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if s.pub != nil {
		for _, id := range s.order {
			c := s.cars[id]
			if err := s.pub.PublishDiscovery(c.cfg.ID, c.cfg.Name); err != nil {
				s.log.Errorf("mqtt discovery for car %d: %v", c.cfg.ID, err)
			}
		}
		go s.publishLoop(ctx)
	}
	<-ctx.Done()
	return nil
}

// publishLoop republishes every car's state each minute so the low-tariff
// sensor flips on window boundaries even between refreshes.
func (s *Service) publishLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, id := range s.order {
				c := s.cars[id]
				snap := c.coord.Snapshot()
				if rate := tariff.Resolve(c.tariff, now, nil); rate != model.RateUnknown {
					low := rate == model.RateLow
					snap.LowTariff = &low
				}
				if err := s.pub.PublishSnapshot(c.cfg.Name, snap); err != nil {
					s.log.Errorf("mqtt state for car %d: %v", c.cfg.ID, err)
				}
			}
		}
	}
}

func (s *Service) car(carID int) (*car, error) {
	if carID == 0 && len(s.order) > 0 {
		carID = s.order[0]
	}
	c, ok := s.cars[carID]
	if !ok {
		return nil, &ErrUnknownCar{CarID: carID}
	}
	return c, nil
}

// LogSession validates, completes and submits a session for the given car.
// A zero carID selects the first configured car.
func (s *Service) LogSession(ctx context.Context, carID int, in model.Session) (model.Session, error) {
	c, err := s.car(carID)
	if err != nil {
		return model.Session{}, err
	}
	in.CarID = c.cfg.ID
	built, err := c.builder.Build(in)
	if err != nil {
		return model.Session{}, err
	}
	return c.coord.Submit(ctx, built)
}

// LogSessionSimple submits a session from the minimal field set: energy plus
// an optional external id. Everything else is defaulted.
func (s *Service) LogSessionSimple(ctx context.Context, carID int, energyKWh float64, externalID string) (model.Session, error) {
	return s.LogSession(ctx, carID, model.Session{EnergyKWh: energyKWh, ExternalID: externalID})
}

// Snapshot returns the cached statistics for the car without touching the
// network.
func (s *Service) Snapshot(carID int) (model.StatsSnapshot, error) {
	c, err := s.car(carID)
	if err != nil {
		return model.StatsSnapshot{}, err
	}
	return c.coord.Snapshot(), nil
}

// ForceRefresh refreshes the car's statistics immediately, coalescing with
// any refresh already in flight.
func (s *Service) ForceRefresh(ctx context.Context, carID int) error {
	c, err := s.car(carID)
	if err != nil {
		return err
	}
	return c.coord.Refresh(ctx)
}

// Cars lists the vehicles registered with the accounting service.
func (s *Service) Cars(ctx context.Context) ([]remote.Car, error) {
	return s.client.ListCars(ctx)
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	for _, id := range s.order {
		s.cars[id].coord.Close()
	}
	if s.pub != nil {
		s.pub.Disconnect()
	}
	coremon.Flush(2 * time.Second)
	return nil
}
