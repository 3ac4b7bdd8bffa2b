package model

import "time"

// RateType classifies an instant under a dual-rate electricity plan.
// The zero value means the rate could not be determined; it is omitted
// from payloads so the remote service applies its own defaults.
type RateType string

const (
	RateUnknown RateType = ""
	RateHigh    RateType = "HIGH"
	RateLow     RateType = "LOW"
)

func (r RateType) String() string {
	if r == RateUnknown {
		return "UNKNOWN"
	}
	return string(r)
}

// EnergySource indicates where the charged energy came from.
type EnergySource string

const (
	SourceGrid  EnergySource = "GRID"
	SourceSolar EnergySource = "SOLAR"
)

// Providers recognised by the accounting service.
const ProviderHome = "HOME"

// Session is a single charging session as exchanged with the accounting
// service. Field names follow the remote API wire format. Optional fields
// are pointers so that "absent" and "zero" stay distinguishable.
type Session struct {
	ID            int          `json:"id,omitempty"`
	CarID         int          `json:"carId,omitempty"`
	EnergyKWh     float64      `json:"energyConsumedKwh"`
	StartTime     *time.Time   `json:"startTime,omitempty"`
	EndTime       *time.Time   `json:"endTime,omitempty"`
	Location      string       `json:"location,omitempty"`
	ExternalID    string       `json:"externalId,omitempty"`
	Provider      string       `json:"provider,omitempty"`
	EnergySource  EnergySource `json:"energySource,omitempty"`
	RateType      RateType     `json:"rateType,omitempty"`
	PricePerKWh   *float64     `json:"pricePerKwhWithoutVat,omitempty"`
	VATPercentage *float64     `json:"vatPercentage,omitempty"`
	Notes         string       `json:"notes,omitempty"`
}
