package pricing

import (
	"testing"

	"github.com/evtracker/evtrack/core/model"
)

func f(v float64) *float64 { return &v }

func TestResolveDisabled(t *testing.T) {
	if q := Resolve(Config{}, model.RateLow); q != nil {
		t.Fatalf("disabled pricing should yield no quote, got %+v", q)
	}
}

func TestResolveRates(t *testing.T) {
	cfg := Config{Enabled: true, HighPrice: f(5.50), LowPrice: f(3.50), VATPercentage: f(21)}
	cases := []struct {
		rate model.RateType
		want float64
	}{
		{model.RateHigh, 5.50},
		{model.RateLow, 3.50},
		{model.RateUnknown, 5.50},
	}
	for _, c := range cases {
		q := Resolve(cfg, c.rate)
		if q == nil {
			t.Fatalf("rate %s: expected quote", c.rate)
		}
		if q.PerKWhExclVAT != c.want {
			t.Errorf("rate %s: got %.2f, want %.2f", c.rate, q.PerKWhExclVAT, c.want)
		}
		if q.VATPercentage == nil || *q.VATPercentage != 21 {
			t.Errorf("rate %s: VAT not carried", c.rate)
		}
	}
}

func TestResolveLowFallsBackToHigh(t *testing.T) {
	cfg := Config{Enabled: true, HighPrice: f(5.50)}
	q := Resolve(cfg, model.RateLow)
	if q == nil || q.PerKWhExclVAT != 5.50 {
		t.Fatalf("low without low price should use high price, got %+v", q)
	}
}

func TestValidate(t *testing.T) {
	if err := (Config{}).Validate(); err != nil {
		t.Fatalf("disabled config: %v", err)
	}
	if err := (Config{Enabled: true}).Validate(); err == nil {
		t.Fatalf("enabled without high price should fail")
	}
	if err := (Config{Enabled: true, HighPrice: f(5.50)}).Validate(); err != nil {
		t.Fatalf("valid config: %v", err)
	}
}
