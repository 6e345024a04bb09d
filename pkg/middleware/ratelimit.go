package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/spkrepo/pkg/auth"
	"github.com/platinummonkey/spkrepo/pkg/httputil"
)

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerWindow is the max requests allowed in the time window
	RequestsPerWindow int
	// WindowDuration is the time window for rate limiting
	WindowDuration time.Duration
}

// DefaultRateLimitConfig returns the limits applied to the login and
// password endpoints
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerWindow: 10,
		WindowDuration:    time.Minute,
	}
}

func (c RateLimitConfig) withDefaults() RateLimitConfig {
	def := DefaultRateLimitConfig()
	if c.RequestsPerWindow <= 0 {
		c.RequestsPerWindow = def.RequestsPerWindow
	}
	if c.WindowDuration <= 0 {
		c.WindowDuration = def.WindowDuration
	}
	return c
}

// Limiter decides whether one more request for key fits in the window
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Config() RateLimitConfig
}

// LocalRateLimiter is a fixed window limiter kept in process memory. It is
// used when Redis is not configured.
type LocalRateLimiter struct {
	config  RateLimitConfig
	windows map[string]*window
	mu      sync.Mutex
	now     func() time.Time
}

type window struct {
	count int
	reset time.Time
}

// NewLocalRateLimiter creates an in-memory limiter
func NewLocalRateLimiter(config RateLimitConfig) *LocalRateLimiter {
	return &LocalRateLimiter{
		config:  config.withDefaults(),
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Config returns the limiter settings
func (rl *LocalRateLimiter) Config() RateLimitConfig {
	return rl.config
}

// Allow counts one request for key
func (rl *LocalRateLimiter) Allow(_ context.Context, key string) (bool, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.windows[key]
	if !ok || !now.Before(w.reset) {
		w = &window{reset: now.Add(rl.config.WindowDuration)}
		rl.windows[key] = w
	}
	w.count++
	return w.count <= rl.config.RequestsPerWindow, nil
}

// TTL returns the time left in the window of key, zero when none is open
func (rl *LocalRateLimiter) TTL(_ context.Context, key string) (time.Duration, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[key]
	if !ok {
		return 0, nil
	}
	if left := w.reset.Sub(rl.now()); left > 0 {
		return left, nil
	}
	return 0, nil
}

// Cleanup removes expired windows
func (rl *LocalRateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, w := range rl.windows {
		if !now.Before(w.reset) {
			delete(rl.windows, key)
		}
	}
}

// StartCleanup starts a background goroutine to cleanup old windows
func (rl *LocalRateLimiter) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.config.WindowDuration)
	go func() {
		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-ctx.Done():
				ticker.Stop()
				return
			}
		}
	}()
}

// windowTTL is implemented by limiters that know when a key's window ends
type windowTTL interface {
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// RateLimitMiddleware limits requests per client IP
type RateLimitMiddleware struct {
	limiter Limiter
	proxies *auth.TrustedProxies
	logger  logrus.FieldLogger
}

// NewRateLimitMiddleware wraps limiter. Limiter errors are logged and the
// request is let through. Clients are keyed by their connection address
// unless it belongs to one of proxies.
func NewRateLimitMiddleware(limiter Limiter, proxies *auth.TrustedProxies, logger logrus.FieldLogger) *RateLimitMiddleware {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RateLimitMiddleware{limiter: limiter, proxies: proxies, logger: logger}
}

// Handler wraps an HTTP handler with rate limiting
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "ip:" + m.proxies.ClientIP(r)

		allowed, err := m.limiter.Allow(r.Context(), key)
		if err != nil {
			m.logger.WithFields(logrus.Fields{
				"key":   key,
				"error": err,
			}).Warn("rate limiter unavailable, allowing request")
			next.ServeHTTP(w, r)
			return
		}

		cfg := m.limiter.Config()
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", cfg.RequestsPerWindow))
		if !allowed {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", m.retryAfter(r.Context(), key, cfg)))
			httputil.WriteTooManyRequests(w, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// retryAfter is the number of whole seconds until the window of key ends,
// falling back to the full window when the limiter cannot tell.
func (m *RateLimitMiddleware) retryAfter(ctx context.Context, key string, cfg RateLimitConfig) int {
	wait := cfg.WindowDuration
	if t, ok := m.limiter.(windowTTL); ok {
		if left, err := t.TTL(ctx, key); err == nil && left > 0 {
			wait = left
		}
	}
	return int(math.Ceil(wait.Seconds()))
}
