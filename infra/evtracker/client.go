package evtracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/evtracker/evtrack/core/model"
	"github.com/evtracker/evtrack/core/remote"
	"github.com/evtracker/evtrack/infra/logger"
)

const userAgent = "evtrack/1.0"

// Config holds the accounting service connection settings.
type Config struct {
	BaseURL        string `json:"base_url"`
	APIKey         string `json:"api_key"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 10
	}
}

// Validate checks that the service can be reached at all.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("api: base_url is required")
	}
	if c.APIKey == "" {
		return fmt.Errorf("api: api_key is required")
	}
	return nil
}

// Client talks to the charging session accounting service over HTTP. It
// implements remote.Client.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     logger.Logger
}

// NewClient builds a client from the given configuration.
func NewClient(cfg Config) *Client {
	cfg.SetDefaults()
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		log:     logger.New("evtracker-client"),
	}
}

// envelope is the response wrapper used by every endpoint. Duplicate is set
// by the session endpoint when the external id was already known.
type envelope struct {
	Data      json.RawMessage `json:"data"`
	Duplicate bool            `json:"duplicate"`
}

// haState mirrors the aggregated state endpoint payload.
type haState struct {
	LastSession struct {
		EnergyKWh float64 `json:"energyConsumedKwh"`
		Cost      float64 `json:"totalCostWithVat"`
	} `json:"lastSession"`
	CurrentMonth struct {
		EnergyKWh     float64 `json:"energyConsumedKwh"`
		Cost          float64 `json:"totalCostWithVat"`
		SessionCount  int     `json:"sessionCount"`
		AvgCostPerKWh float64 `json:"averageCostPerKwh"`
		Currency      string  `json:"currency"`
	} `json:"currentMonth"`
	CurrentYear struct {
		EnergyKWh float64 `json:"energyConsumedKwh"`
		Cost      float64 `json:"totalCostWithVat"`
	} `json:"currentYear"`
}

// FetchStats retrieves the aggregated statistics for one car.
func (c *Client) FetchStats(ctx context.Context, carID int) (model.StatsSnapshot, error) {
	q := ""
	if carID > 0 {
		q = "?carId=" + strconv.Itoa(carID)
	}
	env, err := c.do(ctx, http.MethodGet, "/homeassistant/state"+q, nil)
	if err != nil {
		return model.StatsSnapshot{}, err
	}
	var st haState
	if err := json.Unmarshal(env.Data, &st); err != nil {
		return model.StatsSnapshot{}, &remote.Failure{Kind: remote.ServerError, Message: fmt.Sprintf("decode state: %v", err)}
	}
	return model.StatsSnapshot{
		CarID:                carID,
		MonthlyEnergyKWh:     st.CurrentMonth.EnergyKWh,
		MonthlyCost:          st.CurrentMonth.Cost,
		MonthlySessions:      st.CurrentMonth.SessionCount,
		YearlyEnergyKWh:      st.CurrentYear.EnergyKWh,
		YearlyCost:           st.CurrentYear.Cost,
		LastSessionEnergyKWh: st.LastSession.EnergyKWh,
		LastSessionCost:      st.LastSession.Cost,
		AvgCostPerKWh:        st.CurrentMonth.AvgCostPerKWh,
		Currency:             st.CurrentMonth.Currency,
	}, nil
}

// SubmitSession creates a charging session. A conflict on the external id is
// reported as a duplicate together with the pre-existing remote record.
func (c *Client) SubmitSession(ctx context.Context, s model.Session) (remote.SubmitResult, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return remote.SubmitResult{}, fmt.Errorf("encode session: %w", err)
	}
	env, err := c.do(ctx, http.MethodPost, "/sessions", payload)
	if err != nil {
		var f *remote.Failure
		if errors.As(err, &f) && f.Status == http.StatusConflict {
			existing, derr := c.findByExternalID(ctx, s.ExternalID)
			if derr != nil {
				c.log.Warnf("duplicate session %s but lookup failed: %v", s.ExternalID, derr)
				existing = s
			}
			return remote.SubmitResult{Session: existing, Duplicate: true}, nil
		}
		return remote.SubmitResult{}, err
	}
	var created model.Session
	if err := json.Unmarshal(env.Data, &created); err != nil {
		return remote.SubmitResult{}, &remote.Failure{Kind: remote.ServerError, Message: fmt.Sprintf("decode session: %v", err)}
	}
	return remote.SubmitResult{Session: created, Duplicate: env.Duplicate}, nil
}

// ListCars returns the vehicles registered with the service.
func (c *Client) ListCars(ctx context.Context) ([]remote.Car, error) {
	env, err := c.do(ctx, http.MethodGet, "/cars", nil)
	if err != nil {
		return nil, err
	}
	var cars []remote.Car
	if err := json.Unmarshal(env.Data, &cars); err != nil {
		return nil, &remote.Failure{Kind: remote.ServerError, Message: fmt.Sprintf("decode cars: %v", err)}
	}
	return cars, nil
}

// DefaultCar returns the vehicle the service considers the default.
func (c *Client) DefaultCar(ctx context.Context) (remote.Car, error) {
	env, err := c.do(ctx, http.MethodGet, "/cars/default", nil)
	if err != nil {
		return remote.Car{}, err
	}
	var car remote.Car
	if err := json.Unmarshal(env.Data, &car); err != nil {
		return remote.Car{}, &remote.Failure{Kind: remote.ServerError, Message: fmt.Sprintf("decode car: %v", err)}
	}
	return car, nil
}

// ValidateKey performs a cheap authenticated call to verify the API key.
func (c *Client) ValidateKey(ctx context.Context) error {
	_, err := c.ListCars(ctx)
	return err
}

func (c *Client) findByExternalID(ctx context.Context, externalID string) (model.Session, error) {
	q := url.Values{"externalId": {externalID}}
	env, err := c.do(ctx, http.MethodGet, "/sessions?"+q.Encode(), nil)
	if err != nil {
		return model.Session{}, err
	}
	var sessions []model.Session
	if err := json.Unmarshal(env.Data, &sessions); err != nil {
		return model.Session{}, &remote.Failure{Kind: remote.ServerError, Message: fmt.Sprintf("decode sessions: %v", err)}
	}
	if len(sessions) == 0 {
		return model.Session{}, &remote.Failure{Kind: remote.ServerError, Message: "duplicate reported but no session found"}
	}
	return sessions[0], nil
}

// do runs one HTTP request and returns the response envelope. Failures are
// classified into remote.Failure kinds.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) (envelope, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return envelope{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("User-Agent", userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// The caller backing out is not a service failure; a per-call
		// deadline expiring is, and is worth retrying.
		if errors.Is(err, context.Canceled) {
			return envelope{}, ctx.Err()
		}
		return envelope{}, &remote.Failure{Kind: remote.Unreachable, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return envelope{}, &remote.Failure{Kind: remote.Unreachable, Message: fmt.Sprintf("read response: %v", err)}
	}
	if resp.StatusCode >= 400 {
		return envelope{}, classify(resp, body)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil || env.Data == nil {
		// Some endpoints answer without the envelope.
		return envelope{Data: body}, nil
	}
	return env, nil
}

func classify(resp *http.Response, body []byte) *remote.Failure {
	f := &remote.Failure{Status: resp.StatusCode, Message: extractMessage(body)}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		f.Kind = remote.Unauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		f.Kind = remote.RateLimited
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil {
				f.RetryAfter = time.Duration(secs) * time.Second
			}
		}
	case resp.StatusCode >= 500:
		f.Kind = remote.ServerError
	default:
		f.Kind = remote.InvalidInput
	}
	return f
}

func extractMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil {
		if e.Message != "" {
			return e.Message
		}
		if e.Error != "" {
			return e.Error
		}
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}
