package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fda-watch/internal/config"
)

func fastPolicy(attempts int) Policy {
	return Policy{Attempts: attempts, Initial: time.Millisecond, Max: 5 * time.Millisecond, Multiplier: 2}
}

func TestRetry_SucceedsAfterTransient(t *testing.T) {
	calls := 0
	v, err := Retry(context.Background(), fastPolicy(3), "feed", func(_ context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", NewTransientError(errors.New("busy"), http.StatusServiceUnavailable)
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, calls)
}

func TestRetry_StopsOnPermanentError(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastPolicy(5), "feed", func(_ context.Context) (int, error) {
		calls++
		return 0, errors.New("404 not found")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastPolicy(3), "feed", func(_ context.Context) (int, error) {
		calls++
		return 0, NewTransientError(errors.New("boom"), 500)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	var te *TransientError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 500, te.StatusCode)
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{Attempts: 5, Initial: time.Hour, Max: time.Hour}
	calls := 0
	_, err := Retry(ctx, p, "feed", func(_ context.Context) (int, error) {
		calls++
		cancel()
		return 0, NewTransientError(errors.New("slow"), 503)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_CustomRetryable(t *testing.T) {
	p := fastPolicy(4)
	p.Retryable = func(error) bool { return true }
	calls := 0
	_, _ = Retry(context.Background(), p, "x", func(_ context.Context) (int, error) {
		calls++
		return 0, errors.New("anything")
	})
	assert.Equal(t, 4, calls)
}

func TestPolicy_Backoff(t *testing.T) {
	p := Policy{Initial: 100 * time.Millisecond, Max: time.Second, Multiplier: 2}
	assert.Equal(t, 100*time.Millisecond, p.Backoff(0))
	assert.Equal(t, 400*time.Millisecond, p.Backoff(2))
	assert.Equal(t, time.Second, p.Backoff(10))

	p.Jitter = 0.5
	for i := 0; i < 50; i++ {
		d := p.Backoff(1)
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.LessOrEqual(t, d, 300*time.Millisecond)
	}
}

func TestPolicyFromFetch(t *testing.T) {
	assert.Equal(t, 3, PolicyFromFetch(config.FetchConfig{MaxRetries: 2}).Attempts)
	assert.Equal(t, 1, PolicyFromFetch(config.FetchConfig{MaxRetries: 0}).Attempts)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("bad request"), false},
		{"typed", NewTransientError(errors.New("x"), 429), true},
		{"wrapped typed", fmt.Errorf("fetch: %w", NewTransientError(errors.New("x"), 502)), true},
		{"conn reset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"conn refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"message", errors.New("net/http: TLS handshake timeout"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestStatusError(t *testing.T) {
	assert.True(t, IsTransient(StatusError(http.StatusTooManyRequests, "https://fda.gov")))
	assert.True(t, IsTransient(StatusError(http.StatusBadGateway, "https://fda.gov")))

	err := StatusError(http.StatusNotFound, "https://fda.gov/missing")
	assert.False(t, IsTransient(err))
	assert.Contains(t, err.Error(), "404")
}

func failing(ctx context.Context) (int, error) { return 0, errors.New("down") }
func passing(ctx context.Context) (int, error) { return 1, nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewBreaker("hunter", BreakerConfig{Threshold: 3, Cooldown: time.Minute})
	for i := 0; i < 3; i++ {
		_, _ = Call(context.Background(), b, failing)
	}
	assert.Equal(t, Open, b.State())
	assert.Equal(t, 3, b.Failures())

	called := false
	_, err := Call(context.Background(), b, func(ctx context.Context) (int, error) {
		called = true
		return 0, nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	b := NewBreaker("hunter", BreakerConfig{Threshold: 3, Cooldown: time.Minute})
	_, _ = Call(context.Background(), b, failing)
	_, _ = Call(context.Background(), b, failing)
	_, err := Call(context.Background(), b, passing)
	require.NoError(t, err)
	assert.Equal(t, 0, b.Failures())
	assert.Equal(t, Closed, b.State())
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker("hunter", BreakerConfig{Threshold: 1, Cooldown: time.Minute})
	b.now = func() time.Time { return now }

	_, _ = Call(context.Background(), b, failing)
	require.Equal(t, Open, b.State())

	now = now.Add(2 * time.Minute)
	assert.Equal(t, HalfOpen, b.State())

	// Failed probe reopens.
	_, _ = Call(context.Background(), b, failing)
	assert.Equal(t, Open, b.State())

	now = now.Add(2 * time.Minute)
	_, err := Call(context.Background(), b, passing)
	require.NoError(t, err)
	assert.Equal(t, Closed, b.State())
}

func TestBreaker_TripsFilter(t *testing.T) {
	b := NewBreaker("hunter", BreakerConfig{Threshold: 1, Trips: IsTransient})
	_, _ = Call(context.Background(), b, failing)
	assert.Equal(t, Closed, b.State())

	b.Reset()
	_, _ = Call(context.Background(), b, func(ctx context.Context) (int, error) {
		return 0, NewTransientError(errors.New("x"), 503)
	})
	assert.Equal(t, Open, b.State())
}

func TestBreakers_PerName(t *testing.T) {
	bs := NewBreakers(BreakerConfig{Threshold: 1, Cooldown: time.Minute})
	a := bs.Get("hunter")
	assert.Same(t, a, bs.Get("hunter"))
	_, _ = Call(context.Background(), a, failing)

	bs.Get("other")
	assert.Equal(t, map[string]string{"hunter": "open", "other": "closed"}, bs.States())
}
