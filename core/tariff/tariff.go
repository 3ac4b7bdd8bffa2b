package tariff

import (
	"fmt"
	"time"

	"github.com/evtracker/evtrack/core/model"
)

// Mode selects how the current tariff rate is determined.
type Mode string

const (
	// ModeDisabled performs no rate resolution; callers supply the rate
	// themselves or leave it unknown.
	ModeDisabled Mode = "disabled"
	// ModeSchedule derives the rate from configured daily time windows.
	ModeSchedule Mode = "schedule"
	// ModeEntity delegates to a boolean signal owned by the host platform
	// (ON means low tariff).
	ModeEntity Mode = "entity"
)

// WindowSemantics states what the configured windows describe.
type WindowSemantics string

const (
	// LowDefining windows mark the low-tariff periods (default).
	LowDefining WindowSemantics = "low"
	// HighDefining windows mark the high-tariff periods.
	HighDefining WindowSemantics = "high"
)

// MaxWindows bounds the number of schedule windows.
const MaxWindows = 4

// Config describes one of the mutually exclusive tariff sources. Only the
// fields relevant to the selected Mode are consulted.
type Config struct {
	Mode Mode

	// Schedule fields.
	Windows          []TimeWindow
	Semantics        WindowSemantics
	WeekendAlwaysLow bool

	// Entity fields. EntityID is a weak reference: the signal's value is
	// passed in fresh on every resolution, never cached here.
	EntityID string
}

// ConfigError reports an invalid or incomplete tariff configuration.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "tariff config: " + e.Reason
}

// Validate checks the configuration for the selected mode. A schedule with
// zero windows is rejected rather than silently defaulting to a rate, since
// guessing risks misattributing cost.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeDisabled:
		return nil
	case ModeSchedule:
		if len(c.Windows) == 0 {
			return &ConfigError{Reason: "schedule mode requires at least one window"}
		}
		if len(c.Windows) > MaxWindows {
			return &ConfigError{Reason: fmt.Sprintf("at most %d windows supported, got %d", MaxWindows, len(c.Windows))}
		}
		if c.Semantics != LowDefining && c.Semantics != HighDefining {
			return &ConfigError{Reason: fmt.Sprintf("unknown window semantics %q", c.Semantics)}
		}
		return nil
	case ModeEntity:
		if c.EntityID == "" {
			return &ConfigError{Reason: "entity mode requires an entity id"}
		}
		return nil
	default:
		return &ConfigError{Reason: fmt.Sprintf("unknown mode %q", c.Mode)}
	}
}

// Resolve classifies the instant as HIGH or LOW under the given
// configuration. entitySignal carries the external entity's current boolean
// state (ON = low tariff) and may be nil when unavailable. The result
// depends only on the arguments, never on the wall clock.
//
// An unavailable entity signal yields RateUnknown rather than a guessed
// default: misattributing cost is worse than missing data.
func Resolve(cfg Config, at time.Time, entitySignal *bool) model.RateType {
	switch cfg.Mode {
	case ModeEntity:
		if entitySignal == nil {
			return model.RateUnknown
		}
		if *entitySignal {
			return model.RateLow
		}
		return model.RateHigh
	case ModeSchedule:
		// Weekend override takes priority over window membership.
		if cfg.WeekendAlwaysLow {
			if wd := at.Weekday(); wd == time.Saturday || wd == time.Sunday {
				return model.RateLow
			}
		}
		inWindow := false
		for _, w := range cfg.Windows {
			if w.Matches(at) {
				inWindow = true
				break
			}
		}
		if cfg.Semantics == HighDefining {
			if inWindow {
				return model.RateHigh
			}
			return model.RateLow
		}
		if inWindow {
			return model.RateLow
		}
		return model.RateHigh
	default:
		return model.RateUnknown
	}
}
