// Package retry runs operations again after transient failures.
package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Backoff names how the delay grows between attempts.
type Backoff string

const (
	BackoffFixed       Backoff = "fixed"
	BackoffLinear      Backoff = "linear"
	BackoffExponential Backoff = "exponential"
)

// Policy bounds retries of one operation.
type Policy struct {
	MaxRetries   int           `yaml:"max_retries" json:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	Backoff      Backoff       `yaml:"backoff" json:"backoff"`
	// JitterFactor spreads each delay by up to ±factor of itself (0.0-1.0).
	JitterFactor float64 `yaml:"jitter_factor" json:"jitter_factor"`
}

// DefaultPolicy retries three times with exponential backoff.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Backoff:      BackoffExponential,
		JitterFactor: 0.25,
	}
}

// NoRetryPolicy runs the operation once.
func NoRetryPolicy() Policy {
	return Policy{}
}

// Delay returns the wait before retry number n (1-based).
func (p Policy) Delay(n int) time.Duration {
	if n <= 0 || p.InitialDelay <= 0 {
		return 0
	}
	d := p.InitialDelay
	switch p.Backoff {
	case BackoffLinear:
		d = p.InitialDelay * time.Duration(n)
	case BackoffExponential:
		d = time.Duration(float64(p.InitialDelay) * math.Pow(2, float64(n-1)))
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.JitterFactor > 0 {
		j := float64(d) * p.JitterFactor * (rand.Float64()*2 - 1)
		d = max(time.Duration(float64(d)+j), 0)
	}
	return d
}

// Do calls fn until it succeeds, returns an error retryable rejects, or the
// policy is exhausted. The result and error of the last attempt are returned.
// A nil retryable retries every error.
func Do[T any](ctx context.Context, p Policy, retryable func(error) bool, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var (
		out T
		err error
	)
	for attempt := 0; ; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return out, cerr
		}
		out, err = fn(ctx, attempt)
		if err == nil {
			return out, nil
		}
		if attempt >= p.MaxRetries || (retryable != nil && !retryable(err)) {
			return out, err
		}
		if d := p.Delay(attempt + 1); d > 0 {
			t := time.NewTimer(d)
			select {
			case <-ctx.Done():
				t.Stop()
				return out, ctx.Err()
			case <-t.C:
			}
		}
	}
}
