// Package clients holds outbound HTTP plumbing shared by the platform and time-data clients.
package clients

import (
	"context"
	"errors"
	"net/http"
	"time"

	"shabbat-mode/domain/model"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// RetryConfig bounds retries of transient failures.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  200 * time.Millisecond,
		MaxDelay:   5 * time.Second,
	}
}

func normalize(cfg RetryConfig) RetryConfig {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 200 * time.Millisecond
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	return cfg
}

// IsTransientStatus reports HTTP statuses worth retrying: 429 and the 5xx gateway family.
func IsTransientStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// NewTransientRetryPolicy retries only errors wrapping model.ErrTransientPlatform,
// with exponential backoff and 10% jitter. The last error is returned when retries run out.
func NewTransientRetryPolicy(cfg RetryConfig) retrypolicy.RetryPolicy[any] {
	cfg = normalize(cfg)
	return retrypolicy.NewBuilder[any]().
		HandleIf(func(_ any, err error) bool {
			return errors.Is(err, model.ErrTransientPlatform)
		}).
		WithBackoff(cfg.BaseDelay, cfg.MaxDelay).
		WithMaxRetries(cfg.MaxRetries).
		WithJitterFactor(0.1).
		ReturnLastFailure().
		Build()
}

// Retrier runs calls through a shared retry policy.
type Retrier struct {
	policy retrypolicy.RetryPolicy[any]
}

func NewRetrier(cfg RetryConfig) *Retrier {
	return &Retrier{policy: NewTransientRetryPolicy(cfg)}
}

// Do runs fn until it succeeds, fails with a non-transient error, or retries run out.
func (r *Retrier) Do(ctx context.Context, fn func() error) error {
	return failsafe.With[any](r.policy).WithContext(ctx).Run(fn)
}
