package middleware

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisClientForTest(t *testing.T) *redis.Client {
	t.Helper()
	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		m.Close()
	})
	return client
}

func TestRedisLimiterDeniesAfterBudget(t *testing.T) {
	client := newRedisClientForTest(t)
	limiter := NewRedisLimiter(client, "api")
	ctx := context.Background()
	policy := RateLimitPolicy{SustainedLimit: 2, SustainedWindow: time.Minute, BurstCapacity: 2, BurstRefillPerSec: 0.01}

	d1, err := limiter.Allow(ctx, "sub:42", policy)
	if err != nil {
		t.Fatalf("first allow: %v", err)
	}
	if !d1.Allowed || d1.Remaining != 1 {
		t.Fatalf("expected first request allowed with 1 remaining, got %+v", d1)
	}

	d2, err := limiter.Allow(ctx, "sub:42", policy)
	if err != nil {
		t.Fatalf("second allow: %v", err)
	}
	if !d2.Allowed || d2.Remaining != 0 {
		t.Fatalf("expected second request allowed with 0 remaining, got %+v", d2)
	}

	d3, err := limiter.Allow(ctx, "sub:42", policy)
	if err != nil {
		t.Fatalf("third allow: %v", err)
	}
	if d3.Allowed {
		t.Fatalf("expected third request denied, got %+v", d3)
	}
	if d3.RetryAfter <= 0 {
		t.Fatalf("expected positive retry-after, got %v", d3.RetryAfter)
	}
	if !d3.ResetAt.After(time.Now().Add(-time.Second)) {
		t.Fatalf("reset must not be in the past: %v", d3.ResetAt)
	}
}

func TestRedisLimiterScopesAreIsolated(t *testing.T) {
	client := newRedisClientForTest(t)
	authLimiter := NewRedisLimiter(client, "auth")
	apiLimiter := NewRedisLimiter(client, "api")
	ctx := context.Background()
	policy := RateLimitPolicy{SustainedLimit: 1, SustainedWindow: time.Minute, BurstCapacity: 1, BurstRefillPerSec: 0.01}

	if d, err := authLimiter.Allow(ctx, "203.0.113.7", policy); err != nil || !d.Allowed {
		t.Fatalf("auth budget should be fresh: d=%+v err=%v", d, err)
	}
	if d, err := authLimiter.Allow(ctx, "203.0.113.7", policy); err != nil || d.Allowed {
		t.Fatalf("auth budget should be exhausted: d=%+v err=%v", d, err)
	}

	// Exhausting the login budget must not consume the admin surface budget.
	if d, err := apiLimiter.Allow(ctx, "203.0.113.7", policy); err != nil || !d.Allowed {
		t.Fatalf("api budget must be independent of auth: d=%+v err=%v", d, err)
	}
}

func TestRedisLimiterAnonymousKeyFallback(t *testing.T) {
	client := newRedisClientForTest(t)
	limiter := NewRedisLimiter(client, "")
	ctx := context.Background()
	policy := RateLimitPolicy{SustainedLimit: 1, SustainedWindow: time.Minute, BurstCapacity: 1, BurstRefillPerSec: 0.01}

	if d, err := limiter.Allow(ctx, "", policy); err != nil || !d.Allowed {
		t.Fatalf("empty key first request: d=%+v err=%v", d, err)
	}
	// Empty keys collapse into one shared budget.
	if d, err := limiter.Allow(ctx, "anonymous", policy); err != nil || d.Allowed {
		t.Fatalf("expected empty key and anonymous to share a budget: d=%+v err=%v", d, err)
	}
}

func TestRedisLimiterBackendErrors(t *testing.T) {
	limiter := NewRedisLimiter(nil, "api")
	if _, err := limiter.Allow(context.Background(), "sub:1", RateLimitPolicy{}); err == nil {
		t.Fatal("expected error for missing client")
	}

	badClient := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 20 * time.Millisecond, ReadTimeout: 20 * time.Millisecond, WriteTimeout: 20 * time.Millisecond})
	t.Cleanup(func() { _ = badClient.Close() })
	limiter = NewRedisLimiter(badClient, "api")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := limiter.Allow(ctx, "sub:1", RateLimitPolicy{}); err == nil {
		t.Fatal("expected backend error for unreachable redis")
	}
}

func FuzzRedisLimiterDecisionBounds(f *testing.F) {
	f.Add("sub:42", uint16(1), uint16(1), uint16(1), uint16(1000))
	f.Add("", uint16(2), uint16(2), uint16(3), uint16(500))
	f.Add("203.0.113.7", uint16(5), uint16(3), uint16(10), uint16(1200))

	f.Fuzz(func(t *testing.T, key string, sustainedLimit, burstCapacity, refillPerSec, windowMS uint16) {
		if len(key) > 128 {
			key = key[:128]
		}

		m := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: m.Addr()})
		t.Cleanup(func() {
			_ = client.Close()
			m.Close()
		})

		limiter := NewRedisLimiter(client, "api")
		policy := RateLimitPolicy{
			SustainedLimit:    int(sustainedLimit%20) + 1,
			SustainedWindow:   time.Duration(int64(windowMS)+1) * time.Millisecond,
			BurstCapacity:     int(burstCapacity%20) + 1,
			BurstRefillPerSec: float64(refillPerSec) + 1,
		}

		ctx := context.Background()
		for i := 0; i < 3; i++ {
			d, err := limiter.Allow(ctx, key, policy)
			if err != nil {
				t.Fatalf("allow %d failed: %v", i, err)
			}
			if d.RetryAfter <= 0 {
				t.Fatalf("retry-after must be positive: %+v", d)
			}
			if d.Remaining < 0 {
				t.Fatalf("remaining must be non-negative: %+v", d)
			}
			if d.ResetAt.IsZero() {
				t.Fatalf("reset must be set: %+v", d)
			}
		}
	})
}
