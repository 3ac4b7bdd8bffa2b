package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/evtracker/evtrack/core/model"
	"github.com/evtracker/evtrack/infra/logger"
)

// Publisher exposes car statistics to smart-home consumers over MQTT. It
// announces its sensors through Home Assistant discovery and then publishes
// one retained state document per car.
type Publisher struct {
	cli pahoClient
	cfg Config
	log logger.Logger
}

// NewPublisher connects to the broker and marks the service available.
func NewPublisher(cfg Config) (*Publisher, error) {
	cfg.SetDefaults()
	log := logger.New("mqtt_publisher")
	cli, err := connect(cfg, log)
	if err != nil {
		return nil, err
	}
	p := &Publisher{cli: cli, cfg: cfg, log: log}
	if err := publishWait(cli, cfg.TopicPrefix+"/availability", cfg.QoS, true, []byte("online")); err != nil {
		p.log.Errorf("availability publish failed: %v", err)
	}
	return p, nil
}

type sensorDef struct {
	key         string
	name        string
	unit        string
	deviceClass string
	template    string
}

var sensors = []sensorDef{
	{key: "monthly_energy", name: "Monthly energy", unit: "kWh", deviceClass: "energy", template: "{{ value_json.monthlyEnergyKwh }}"},
	{key: "monthly_cost", name: "Monthly cost", unit: "EUR", deviceClass: "monetary", template: "{{ value_json.monthlyCost }}"},
	{key: "monthly_sessions", name: "Monthly sessions", template: "{{ value_json.monthlySessions }}"},
	{key: "yearly_energy", name: "Yearly energy", unit: "kWh", deviceClass: "energy", template: "{{ value_json.yearlyEnergyKwh }}"},
	{key: "yearly_cost", name: "Yearly cost", unit: "EUR", deviceClass: "monetary", template: "{{ value_json.yearlyCost }}"},
	{key: "last_session_energy", name: "Last session energy", unit: "kWh", deviceClass: "energy", template: "{{ value_json.lastSessionEnergyKwh }}"},
	{key: "last_session_cost", name: "Last session cost", unit: "EUR", deviceClass: "monetary", template: "{{ value_json.lastSessionCost }}"},
	{key: "avg_cost_per_kwh", name: "Average cost per kWh", unit: "EUR/kWh", template: "{{ value_json.avgCostPerKwh }}"},
}

// PublishDiscovery announces one Home Assistant sensor per statistic so the
// car shows up as a device without manual configuration.
func (p *Publisher) PublishDiscovery(carID int, carName string) error {
	slug := Slug(carName)
	stateTopic := fmt.Sprintf("%s/%s/state", p.cfg.TopicPrefix, slug)
	device := map[string]any{
		"identifiers":  []string{fmt.Sprintf("evtrack_%d", carID)},
		"name":         fmt.Sprintf("EV charging %s", carName),
		"manufacturer": "evtrack",
	}
	for _, s := range sensors {
		cfg := map[string]any{
			"name":               s.name,
			"unique_id":          fmt.Sprintf("evtrack_%d_%s", carID, s.key),
			"state_topic":        stateTopic,
			"value_template":     s.template,
			"availability_topic": p.cfg.TopicPrefix + "/availability",
			"device":             device,
		}
		if s.unit != "" {
			cfg["unit_of_measurement"] = s.unit
		}
		if s.deviceClass != "" {
			cfg["device_class"] = s.deviceClass
		}
		payload, err := json.Marshal(cfg)
		if err != nil {
			return err
		}
		topic := fmt.Sprintf("%s/sensor/evtrack_%d/%s/config", p.cfg.DiscoveryPrefix, carID, s.key)
		if err := publishWait(p.cli, topic, p.cfg.QoS, true, payload); err != nil {
			return fmt.Errorf("discovery publish %s: %w", s.key, err)
		}
	}

	tariffCfg := map[string]any{
		"name":               "Low tariff",
		"unique_id":          fmt.Sprintf("evtrack_%d_low_tariff", carID),
		"state_topic":        stateTopic,
		"value_template":     "{{ 'ON' if value_json.lowTariff else 'OFF' }}",
		"availability_topic": p.cfg.TopicPrefix + "/availability",
		"device":             device,
	}
	payload, err := json.Marshal(tariffCfg)
	if err != nil {
		return err
	}
	topic := fmt.Sprintf("%s/binary_sensor/evtrack_%d/low_tariff/config", p.cfg.DiscoveryPrefix, carID)
	if err := publishWait(p.cli, topic, p.cfg.QoS, true, payload); err != nil {
		return fmt.Errorf("discovery publish low_tariff: %w", err)
	}
	return nil
}

// PublishSnapshot publishes the snapshot as a retained state document.
func (p *Publisher) PublishSnapshot(carName string, snap model.StatsSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	topic := fmt.Sprintf("%s/%s/state", p.cfg.TopicPrefix, Slug(carName))
	return publishWait(p.cli, topic, p.cfg.QoS, p.cfg.Retain, payload)
}

// Disconnect marks the service offline and closes the connection.
func (p *Publisher) Disconnect() {
	if p.cli == nil || !p.cli.IsConnected() {
		return
	}
	if err := publishWait(p.cli, p.cfg.TopicPrefix+"/availability", p.cfg.QoS, true, []byte("offline")); err != nil {
		p.log.Errorf("availability publish failed: %v", err)
	}
	p.cli.Disconnect(250)
}

// Slug turns a car name into a topic-safe identifier.
func Slug(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, s)
	if s == "" {
		return "car"
	}
	return s
}
