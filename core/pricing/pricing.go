package pricing

import "github.com/evtracker/evtrack/core/model"

// Config holds the locally configured electricity prices. Prices are per
// kWh excluding VAT; the tax-inclusive total is always computed by the
// accounting service so local and remote rounding cannot diverge.
type Config struct {
	Enabled       bool
	HighPrice     *float64
	LowPrice      *float64
	VATPercentage *float64
}

// ConfigError reports an invalid price configuration.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "price config: " + e.Reason
}

// Validate checks that an enabled configuration carries a high price.
// The low price defaults to the high price when absent.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.HighPrice == nil {
		return &ConfigError{Reason: "high price is required when prices are enabled"}
	}
	return nil
}

// Quote is the price input supplied to the accounting service for a session.
type Quote struct {
	PerKWhExclVAT float64
	VATPercentage *float64
}

// Resolve returns the quote for the given rate, or nil when pricing is
// disabled (the caller supplies an explicit price or accepts the remote
// service's stored defaults). LOW uses the low price when configured;
// HIGH and UNKNOWN use the high price.
func Resolve(c Config, rate model.RateType) *Quote {
	if !c.Enabled || c.HighPrice == nil {
		return nil
	}
	price := *c.HighPrice
	if rate == model.RateLow && c.LowPrice != nil {
		price = *c.LowPrice
	}
	return &Quote{PerKWhExclVAT: price, VATPercentage: c.VATPercentage}
}
