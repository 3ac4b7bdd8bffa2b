package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/evtracker/evtrack/infra/evtracker"
	"github.com/evtracker/evtrack/infra/metrics"
	"github.com/evtracker/evtrack/infra/mqtt"
)

type Config struct {
	API     evtracker.Config `json:"api"`
	Cars    []CarConfig      `json:"cars"`
	MQTT    mqtt.Config      `json:"mqtt"`
	Metrics metrics.Config   `json:"metrics"`
	Sentry  SentryConfig     `json:"sentry"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("EVT_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "evt_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.API.SetDefaults()
	cfg.MQTT.SetDefaults()
	cfg.Metrics.SetDefaults()
	for i := range cfg.Cars {
		cfg.Cars[i].SetDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section. Car tariff and price settings are validated
// by building the corresponding core configurations.
func (c *Config) Validate() error {
	if err := c.API.Validate(); err != nil {
		return err
	}
	if len(c.Cars) == 0 {
		return fmt.Errorf("at least one car must be configured")
	}
	seen := make(map[int]bool, len(c.Cars))
	for i := range c.Cars {
		if err := c.Cars[i].Validate(); err != nil {
			return fmt.Errorf("car %d: %w", i, err)
		}
		if seen[c.Cars[i].ID] {
			return fmt.Errorf("car %d: duplicate car id %d", i, c.Cars[i].ID)
		}
		seen[c.Cars[i].ID] = true
	}
	return c.MQTT.Validate()
}
