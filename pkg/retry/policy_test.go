package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errTransient = errors.New("transient")

func TestDelayBackoff(t *testing.T) {
	p := Policy{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second}

	p.Backoff = BackoffFixed
	assert.Equal(t, 100*time.Millisecond, p.Delay(3))

	p.Backoff = BackoffLinear
	assert.Equal(t, 300*time.Millisecond, p.Delay(3))

	p.Backoff = BackoffExponential
	assert.Equal(t, 100*time.Millisecond, p.Delay(1))
	assert.Equal(t, 400*time.Millisecond, p.Delay(3))
	assert.Equal(t, time.Second, p.Delay(10), "capped at MaxDelay")

	assert.Zero(t, p.Delay(0))
	assert.Zero(t, NoRetryPolicy().Delay(2))
}

func TestDelayJitterBounds(t *testing.T) {
	p := Policy{InitialDelay: 100 * time.Millisecond, Backoff: BackoffFixed, JitterFactor: 0.5}
	for i := 0; i < 100; i++ {
		d := p.Delay(1)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	p := Policy{MaxRetries: 3, InitialDelay: time.Millisecond, Backoff: BackoffFixed}
	calls := 0
	out, err := Do(context.Background(), p, nil, func(_ context.Context, attempt int) (int, error) {
		calls++
		if attempt < 2 {
			return 0, errTransient
		}
		return 42, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 42, out)
	assert.Equal(t, 3, calls)
}

func TestDoExhausts(t *testing.T) {
	p := Policy{MaxRetries: 2}
	calls := 0
	out, err := Do(context.Background(), p, nil, func(_ context.Context, attempt int) (int, error) {
		calls++
		return attempt, errTransient
	})
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 2, out, "last attempt's result is returned")
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	_, err := Do(context.Background(), DefaultPolicy(), func(err error) bool { return err == errTransient },
		func(context.Context, int) (string, error) {
			calls++
			return "", permanent
		})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDoNoRetryPolicy(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), NoRetryPolicy(), nil, func(context.Context, int) (int, error) {
		calls++
		return 0, errTransient
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxRetries: 5, InitialDelay: time.Hour, Backoff: BackoffFixed}
	calls := 0
	_, err := Do(ctx, p, nil, func(context.Context, int) (int, error) {
		calls++
		cancel()
		return 0, errTransient
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
