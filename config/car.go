package config

import (
	"fmt"

	"github.com/evtracker/evtrack/core/pricing"
	"github.com/evtracker/evtrack/core/tariff"
)

// CarConfig describes one tracked vehicle.
type CarConfig struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	// PollIntervalSeconds sets how often statistics are refreshed.
	PollIntervalSeconds int          `json:"poll_interval_seconds"`
	Tariff              TariffConfig `json:"tariff"`
	Prices              PriceConfig  `json:"prices"`
}

// SetDefaults applies sane defaults.
func (c *CarConfig) SetDefaults() {
	if c.PollIntervalSeconds <= 0 {
		c.PollIntervalSeconds = 300
	}
	if c.Name == "" {
		c.Name = fmt.Sprintf("car-%d", c.ID)
	}
	c.Tariff.SetDefaults()
	c.Prices.SetDefaults()
}

// Validate builds the core tariff and price configurations to surface
// malformed settings at startup instead of first use.
func (c CarConfig) Validate() error {
	if c.ID <= 0 {
		return fmt.Errorf("car id is required")
	}
	if _, err := c.Tariff.Build(); err != nil {
		return err
	}
	p := c.Prices.Build()
	return p.Validate()
}

// WindowConfig is one daily interval in "HH:MM" notation.
type WindowConfig struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// TariffConfig selects how the tariff rate of a session is determined.
type TariffConfig struct {
	// Mode is "disabled", "schedule" or "entity".
	Mode    string         `json:"mode"`
	Windows []WindowConfig `json:"windows"`
	// Semantics states whether the windows mark "low" or "high" periods.
	Semantics        string `json:"semantics"`
	WeekendAlwaysLow bool   `json:"weekend_always_low"`
	EntityID         string `json:"entity_id"`
}

// SetDefaults applies sane defaults. A schedule without windows gets the
// common night tariff of 22:00 to 06:00.
func (c *TariffConfig) SetDefaults() {
	if c.Mode == "" {
		c.Mode = string(tariff.ModeDisabled)
	}
	if c.Semantics == "" {
		c.Semantics = string(tariff.LowDefining)
	}
	if c.Mode == string(tariff.ModeSchedule) && len(c.Windows) == 0 {
		c.Windows = []WindowConfig{{Start: "22:00", End: "06:00"}}
	}
}

// Build parses the windows and returns the validated core configuration.
func (c TariffConfig) Build() (tariff.Config, error) {
	cfg := tariff.Config{
		Mode:             tariff.Mode(c.Mode),
		Semantics:        tariff.WindowSemantics(c.Semantics),
		WeekendAlwaysLow: c.WeekendAlwaysLow,
		EntityID:         c.EntityID,
	}
	for _, w := range c.Windows {
		win, err := tariff.ParseWindow(w.Start, w.End)
		if err != nil {
			return tariff.Config{}, err
		}
		cfg.Windows = append(cfg.Windows, win)
	}
	if err := cfg.Validate(); err != nil {
		return tariff.Config{}, err
	}
	return cfg, nil
}

// PriceConfig holds the locally configured electricity prices per kWh
// excluding VAT.
type PriceConfig struct {
	Enabled       bool     `json:"enabled"`
	HighPrice     *float64 `json:"high_price"`
	LowPrice      *float64 `json:"low_price"`
	VATPercentage *float64 `json:"vat_percentage"`
}

// SetDefaults applies the default VAT rate when pricing is enabled.
func (c *PriceConfig) SetDefaults() {
	if c.Enabled && c.VATPercentage == nil {
		vat := 21.0
		c.VATPercentage = &vat
	}
}

// Build returns the core price configuration.
func (c PriceConfig) Build() pricing.Config {
	return pricing.Config{
		Enabled:       c.Enabled,
		HighPrice:     c.HighPrice,
		LowPrice:      c.LowPrice,
		VATPercentage: c.VATPercentage,
	}
}
