package ai

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/spigell/interview-coach/internal/utils"
)

// RetryPolicy decides how many times and how long to wait between provider calls.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Retryable classifies errors. Nil means IsTransient.
	Retryable func(error) bool
	// Wait sleeps between attempts. Nil means utils.WaitFor.
	Wait func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy allows 3 attempts with exponential backoff from 2s capped at 8s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    8 * time.Second,
		Retryable:   IsTransient,
		Wait:        utils.WaitFor,
	}
}

// Backoff returns the delay after the given failed attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 || p.BaseDelay <= 0 {
		return 0
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p RetryPolicy) retryable(err error) bool {
	if p.Retryable == nil {
		return IsTransient(err)
	}
	return p.Retryable(err)
}

func (p RetryPolicy) wait(ctx context.Context, d time.Duration) error {
	if p.Wait == nil {
		return utils.WaitFor(ctx, d)
	}
	return p.Wait(ctx, d)
}

// IsTransient reports whether err is worth retrying: timeouts, rate limits and
// provider-side failures. Malformed requests and refusals are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var status interface{ HTTPStatusCode() int }
	if errors.As(err, &status) {
		code := status.HTTPStatusCode()
		return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= http.StatusInternalServerError
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}
