package resilience

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// HTTPClient wraps an http.Client with retry and circuit-breaker logic.
// Per-attempt timeouts come from the underlying client's Timeout, which also
// bounds body reads. Only idempotent (bodyless) requests are expected; the
// catalog lookup is a GET.
type HTTPClient struct {
	Client      *http.Client
	Breaker     *Breaker
	MaxAttempts int
	BaseBackoff time.Duration
	Jitter      float64
}

// Do executes the request, retrying on transport errors and 5xx responses.
// When the breaker is open ErrOpenCircuit is returned immediately.
func (cl HTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if cl.Client == nil {
		return nil, errors.New("resilience: http client not configured")
	}
	breaker := cl.Breaker
	if breaker == nil {
		breaker = NewBreaker(1<<30, time.Second) // effectively never trips
	}
	maxAttempts := cl.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if !breaker.Allow() {
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, ErrOpenCircuit
		}
		resp, err := cl.doOnce(ctx, req)
		if err == nil && resp.StatusCode < 500 {
			breaker.Report(true)
			return resp, nil
		}
		if err == nil {
			_ = resp.Body.Close()
			lastErr = errors.New(resp.Status)
		} else {
			lastErr = err
		}
		breaker.Report(false)
		if attempt == maxAttempts {
			break
		}
		timer := time.NewTimer(Backoff(cl.BaseBackoff, attempt, cl.Jitter))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}

func (cl HTTPClient) doOnce(ctx context.Context, req *http.Request) (*http.Response, error) {
	return cl.Client.Do(req.Clone(ctx))
}
