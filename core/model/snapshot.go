package model

import "time"

// StatsSnapshot is an immutable view of the aggregated statistics for one
// car. The coordinator replaces it wholesale on every successful refresh;
// readers always receive a copy.
type StatsSnapshot struct {
	CarID int `json:"carId"`

	MonthlyEnergyKWh float64 `json:"monthlyEnergyKwh"`
	MonthlyCost      float64 `json:"monthlyCost"`
	MonthlySessions  int     `json:"monthlySessions"`
	YearlyEnergyKWh  float64 `json:"yearlyEnergyKwh"`
	YearlyCost       float64 `json:"yearlyCost"`

	LastSessionEnergyKWh float64 `json:"lastSessionEnergyKwh"`
	LastSessionCost      float64 `json:"lastSessionCost"`
	AvgCostPerKWh        float64 `json:"avgCostPerKwh"`
	Currency             string  `json:"currency,omitempty"`

	Connected bool      `json:"connected"`
	LowTariff *bool     `json:"lowTariff,omitempty"`
	FetchedAt time.Time `json:"fetchedAt"`
}
