package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/evtracker/evtrack/core/model"
)

// FailureKind classifies a remote call failure.
type FailureKind int

const (
	Unauthorized FailureKind = iota
	RateLimited
	Unreachable
	ServerError
	InvalidInput
)

var kindNames = map[FailureKind]string{
	Unauthorized: "unauthorized",
	RateLimited:  "rate_limited",
	Unreachable:  "unreachable",
	ServerError:  "server_error",
	InvalidInput: "invalid_input",
}

func (k FailureKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Failure is an error returned by the accounting service client.
type Failure struct {
	Kind       FailureKind
	Status     int
	Message    string
	RetryAfter time.Duration
}

func (f *Failure) Error() string {
	if f.Status != 0 {
		return fmt.Sprintf("remote %s (status %d): %s", f.Kind, f.Status, f.Message)
	}
	return fmt.Sprintf("remote %s: %s", f.Kind, f.Message)
}

// IsTransient reports whether the error is worth retrying. Authorization
// and input errors are definitive; connectivity, rate-limit and server
// errors are expected to pass.
func IsTransient(err error) bool {
	var f *Failure
	if !errors.As(err, &f) {
		return false
	}
	switch f.Kind {
	case Unreachable, ServerError, RateLimited:
		return true
	default:
		return false
	}
}

// Car identifies a vehicle registered with the accounting service.
type Car struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"isDefault,omitempty"`
}

// SubmitResult is the outcome of a session submission. Duplicate means the
// service already held a session with the same external id; Session then
// carries the pre-existing remote record.
type SubmitResult struct {
	Session   model.Session
	Duplicate bool
}

// Client is the accounting service interface consumed by the coordinator.
// Implementations live in infra.
type Client interface {
	FetchStats(ctx context.Context, carID int) (model.StatsSnapshot, error)
	SubmitSession(ctx context.Context, s model.Session) (SubmitResult, error)
	ListCars(ctx context.Context) ([]Car, error)
}
