package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go-tenant-rbac-service/internal/http/response"
	"go-tenant-rbac-service/internal/security"
)

// RateLimitPolicy combines a token bucket for burst control with a sliding
// window for the sustained rate.
type RateLimitPolicy struct {
	SustainedLimit    int
	SustainedWindow   time.Duration
	BurstCapacity     int
	BurstRefillPerSec float64
}

type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
	Remaining  int
	ResetAt    time.Time
}

type Limiter interface {
	Allow(ctx context.Context, key string, policy RateLimitPolicy) (Decision, error)
}

type FailureMode string

const (
	FailOpen   FailureMode = "fail_open"
	FailClosed FailureMode = "fail_closed"
)

func normalizePolicy(p RateLimitPolicy) RateLimitPolicy {
	if p.SustainedLimit <= 0 {
		p.SustainedLimit = 1
	}
	if p.SustainedWindow <= 0 {
		p.SustainedWindow = time.Second
	}
	if p.BurstCapacity <= 0 {
		p.BurstCapacity = p.SustainedLimit
	}
	if p.BurstRefillPerSec <= 0 {
		p.BurstRefillPerSec = float64(p.SustainedLimit) / p.SustainedWindow.Seconds()
	}
	return p
}

type slidingEntry struct {
	tokens   float64
	lastSeen time.Time
	hits     []time.Time
}

type localSlidingWindowLimiter struct {
	mu      sync.Mutex
	store   map[string]*slidingEntry
	cleanup time.Time
}

func NewLocalLimiter() Limiter {
	return &localSlidingWindowLimiter{
		store:   make(map[string]*slidingEntry),
		cleanup: time.Now().Add(time.Minute),
	}
}

func (l *localSlidingWindowLimiter) Allow(_ context.Context, key string, policy RateLimitPolicy) (Decision, error) {
	policy = normalizePolicy(policy)
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.After(l.cleanup) {
		for k, e := range l.store {
			if now.Sub(e.lastSeen) > 2*policy.SustainedWindow {
				delete(l.store, k)
			}
		}
		l.cleanup = now.Add(policy.SustainedWindow)
	}

	entry, ok := l.store[key]
	if !ok {
		entry = &slidingEntry{tokens: float64(policy.BurstCapacity), lastSeen: now}
		l.store[key] = entry
	}

	elapsed := now.Sub(entry.lastSeen).Seconds()
	entry.tokens += elapsed * policy.BurstRefillPerSec
	if entry.tokens > float64(policy.BurstCapacity) {
		entry.tokens = float64(policy.BurstCapacity)
	}
	entry.lastSeen = now

	cutoff := now.Add(-policy.SustainedWindow)
	kept := entry.hits[:0]
	for _, h := range entry.hits {
		if h.After(cutoff) {
			kept = append(kept, h)
		}
	}
	entry.hits = kept

	bucketOK := entry.tokens >= 1
	sustainedOK := len(entry.hits) < policy.SustainedLimit
	if bucketOK && sustainedOK {
		entry.tokens--
		entry.hits = append(entry.hits, now)
		remaining := policy.SustainedLimit - len(entry.hits)
		if int(entry.tokens) < remaining {
			remaining = int(entry.tokens)
		}
		if remaining < 0 {
			remaining = 0
		}
		return Decision{Allowed: true, RetryAfter: time.Second, Remaining: remaining, ResetAt: now.Add(policy.SustainedWindow)}, nil
	}

	retry := time.Second
	if !sustainedOK && len(entry.hits) > 0 {
		if until := entry.hits[0].Add(policy.SustainedWindow).Sub(now); until > retry {
			retry = until
		}
	}
	if !bucketOK && policy.BurstRefillPerSec > 0 {
		if until := time.Duration((1 - entry.tokens) / policy.BurstRefillPerSec * float64(time.Second)); until > retry {
			retry = until
		}
	}
	return Decision{Allowed: false, RetryAfter: retry, Remaining: 0, ResetAt: now.Add(retry)}, nil
}

type RateLimiter struct {
	limiter Limiter
	policy  RateLimitPolicy
	mode    FailureMode
	scope   string
	keyFunc func(r *http.Request) string
	bypass  BypassEvaluator
}

func NewRateLimiter(policy RateLimitPolicy) *RateLimiter {
	return NewDistributedRateLimiterWithKey(NewLocalLimiter(), policy, FailClosed, "local", nil)
}

func NewDistributedRateLimiter(limiter Limiter, policy RateLimitPolicy, mode FailureMode, scope string) *RateLimiter {
	return NewDistributedRateLimiterWithKey(limiter, policy, mode, scope, nil)
}

func NewDistributedRateLimiterWithKey(
	limiter Limiter,
	policy RateLimitPolicy,
	mode FailureMode,
	scope string,
	keyFunc func(r *http.Request) string,
) *RateLimiter {
	if scope == "" {
		scope = "api"
	}
	if keyFunc == nil {
		keyFunc = clientIPKey
	}
	return &RateLimiter{
		limiter: limiter,
		policy:  normalizePolicy(policy),
		mode:    mode,
		scope:   scope,
		keyFunc: keyFunc,
	}
}

// WithBypass lets probe paths and trusted actors skip the limiter.
func (rl *RateLimiter) WithBypass(evaluator BypassEvaluator) *RateLimiter {
	rl.bypass = evaluator
	return rl
}

func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rl.bypass != nil {
				if ok, reason := rl.bypass(r); ok {
					slog.Debug("rate limit bypassed", "scope", rl.scope, "reason", reason)
					next.ServeHTTP(w, r)
					return
				}
			}
			key := rl.keyFunc(r)
			if key == "" {
				key = clientIPKey(r)
			}
			decision, err := rl.limiter.Allow(r.Context(), key, rl.policy)
			if err != nil {
				if rl.mode == FailOpen {
					slog.Warn("rate limiter backend unavailable, allowing request",
						"scope", rl.scope,
						"mode", string(rl.mode),
						"error", err.Error(),
					)
					next.ServeHTTP(w, r)
					return
				}
				w.Header().Set("Retry-After", retryAfterHeader(rl.policy.SustainedWindow))
				response.Error(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil)
				return
			}
			if !decision.Allowed {
				w.Header().Set("Retry-After", retryAfterHeader(decision.RetryAfter))
				response.Error(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func SubjectOrIPKeyFunc(jwtMgr *security.JWTManager) func(r *http.Request) string {
	return func(r *http.Request) string {
		if jwtMgr == nil {
			return clientIPKey(r)
		}

		raw := security.GetCookie(r, "access_token")
		if raw == "" {
			auth := strings.TrimSpace(r.Header.Get("Authorization"))
			if len(auth) >= len("bearer ")+1 && strings.EqualFold(auth[:len("bearer ")], "bearer ") {
				raw = strings.TrimSpace(auth[len("bearer "):])
			}
		}
		if raw == "" {
			return clientIPKey(r)
		}

		claims, err := jwtMgr.ParseAccessToken(raw)
		if err != nil || claims == nil {
			return clientIPKey(r)
		}
		subject := strings.TrimSpace(claims.Subject)
		if subject == "" {
			return clientIPKey(r)
		}
		return "sub:" + subject
	}
}

func clientIPKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func retryAfterHeader(d time.Duration) string {
	if d <= 0 {
		return "1"
	}
	seconds := int(d.Round(time.Second).Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	return fmt.Sprintf("%d", seconds)
}
