package session

import (
	"fmt"
	"time"

	"github.com/evtracker/evtrack/core/model"
	"github.com/evtracker/evtrack/core/pricing"
	"github.com/evtracker/evtrack/core/tariff"
)

// ValidationError reports caller input that cannot form a valid session.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid session: %s %s", e.Field, e.Reason)
}

// Builder assembles fully-resolved session records. Unset fields are filled
// from the tariff and price configuration; explicitly supplied values always
// win over auto-detection.
type Builder struct {
	Tariff tariff.Config
	Prices pricing.Config

	// Now supplies the current time for timestamp defaulting. Defaults to
	// time.Now.
	Now func() time.Time

	// EntitySignal reads the external tariff entity's current boolean state.
	// Only consulted when the tariff mode is entity-based; may be nil.
	EntitySignal func() *bool
}

// Build validates and completes the partial session. The returned session
// is ready for submission; the input is not modified.
func (b Builder) Build(in model.Session) (model.Session, error) {
	if in.EnergyKWh <= 0 {
		return model.Session{}, &ValidationError{Field: "energy_kwh", Reason: "must be positive"}
	}

	out := in

	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	if out.EndTime == nil {
		t := now()
		out.EndTime = &t
	}
	if out.StartTime == nil {
		// Zero-duration estimate: the session is attributed entirely to
		// its end instant.
		t := *out.EndTime
		out.StartTime = &t
	}
	if out.EndTime.Before(*out.StartTime) {
		return model.Session{}, &ValidationError{Field: "end_time", Reason: "must not precede start_time"}
	}

	if out.Location == "" {
		out.Location = "Home"
	}
	if out.Provider == "" {
		out.Provider = model.ProviderHome
	}
	if out.EnergySource == "" {
		out.EnergySource = model.SourceGrid
	}

	if out.RateType == model.RateUnknown {
		var signal *bool
		if b.EntitySignal != nil {
			signal = b.EntitySignal()
		}
		// The session is attributed to the tariff in force when charging
		// concluded.
		out.RateType = tariff.Resolve(b.Tariff, *out.EndTime, signal)
	}

	if out.PricePerKWh == nil {
		if q := pricing.Resolve(b.Prices, out.RateType); q != nil {
			out.PricePerKWh = &q.PerKWhExclVAT
			if out.VATPercentage == nil {
				out.VATPercentage = q.VATPercentage
			}
		}
	}

	return out, nil
}
