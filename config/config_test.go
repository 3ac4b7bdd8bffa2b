package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

//nolint:gocyclo
func TestLoad(t *testing.T) {
	path := writeConfig(t, `api:
  base_url: "https://evtrack.example.com/api"
  api_key: "secret"
cars:
  - id: 1
    name: "Leaf"
    poll_interval_seconds: 120
    tariff:
      mode: "schedule"
      windows:
        - start: "23:00"
          end: "07:00"
      weekend_always_low: true
    prices:
      enabled: true
      high_price: 5.50
      low_price: 3.50
mqtt:
  enabled: true
  broker: "tcp://localhost:1883"
  client_id: "cli"
metrics:
  prometheus_enabled: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"base_url", cfg.API.BaseURL, "https://evtrack.example.com/api"},
		{"api_key", cfg.API.APIKey, "secret"},
		{"api_timeout_default", cfg.API.TimeoutSeconds, 10},
		{"car_id", cfg.Cars[0].ID, 1},
		{"car_name", cfg.Cars[0].Name, "Leaf"},
		{"poll_interval", cfg.Cars[0].PollIntervalSeconds, 120},
		{"tariff_mode", cfg.Cars[0].Tariff.Mode, "schedule"},
		{"window_start", cfg.Cars[0].Tariff.Windows[0].Start, "23:00"},
		{"weekend", cfg.Cars[0].Tariff.WeekendAlwaysLow, true},
		{"semantics_default", cfg.Cars[0].Tariff.Semantics, "low"},
		{"prices_enabled", cfg.Cars[0].Prices.Enabled, true},
		{"high_price", *cfg.Cars[0].Prices.HighPrice, 5.50},
		{"vat_default", *cfg.Cars[0].Prices.VATPercentage, 21.0},
		{"mqtt_broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"mqtt_topic_default", cfg.MQTT.TopicPrefix, "evtrack"},
		{"prometheus", cfg.Metrics.PrometheusEnabled, true},
		{"prometheus_addr_default", cfg.Metrics.PrometheusAddr, ":9105"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: %v", c.name, c.got)
		}
	}
}

func TestLoadRejectsMissingAPIKey(t *testing.T) {
	path := writeConfig(t, `api:
  base_url: "https://evtrack.example.com/api"
cars:
  - id: 1
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for missing api key")
	}
}

func TestLoadRejectsBadWindow(t *testing.T) {
	path := writeConfig(t, `api:
  base_url: "https://evtrack.example.com/api"
  api_key: "secret"
cars:
  - id: 1
    tariff:
      mode: "schedule"
      windows:
        - start: "25:00"
          end: "06:00"
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for invalid window")
	}
}

func TestLoadRejectsDuplicateCars(t *testing.T) {
	path := writeConfig(t, `api:
  base_url: "https://evtrack.example.com/api"
  api_key: "secret"
cars:
  - id: 1
  - id: 1
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for duplicate car ids")
	}
}

func TestScheduleWindowDefault(t *testing.T) {
	path := writeConfig(t, `api:
  base_url: "https://evtrack.example.com/api"
  api_key: "secret"
cars:
  - id: 2
    tariff:
      mode: "schedule"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	win := cfg.Cars[0].Tariff.Windows
	if len(win) != 1 || win[0].Start != "22:00" || win[0].End != "06:00" {
		t.Fatalf("expected default night window, got %+v", win)
	}
	if cfg.Cars[0].PollIntervalSeconds != 300 {
		t.Fatalf("expected default poll interval, got %d", cfg.Cars[0].PollIntervalSeconds)
	}
}
