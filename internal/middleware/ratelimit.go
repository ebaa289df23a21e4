package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig holds configuration for the rate limiter middleware.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate limit (tokens added per second).
	RequestsPerSecond float64
	// Burst is the maximum number of requests allowed in a burst.
	Burst int
}

type rateLimitedKey struct{}

// RateLimitedFromContext reports whether the rate limiter flagged the
// request. Flagged requests still reach the handler so the refusal can
// be audited alongside every other outcome.
func RateLimitedFromContext(ctx context.Context) bool {
	v, _ := ctx.Value(rateLimitedKey{}).(bool)
	return v
}

// clientLimiter tracks a per-client rate limiter and when it was last seen.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter returns an HTTP middleware enforcing a per-client token
// bucket. Clients are keyed by tenant and user when identified, by IP
// otherwise. Over-limit requests are not rejected here; they are marked
// in the context and the query pipeline turns them into an audited
// refusal.
func RateLimiter(cfg RateLimitConfig) func(http.Handler) http.Handler {
	var clients sync.Map // map[string]*clientLimiter

	// Background cleanup: remove stale entries every 5 minutes.
	go func() {
		for {
			time.Sleep(5 * time.Minute)
			clients.Range(func(key, value any) bool {
				cl := value.(*clientLimiter)
				if time.Since(cl.lastSeen) > 10*time.Minute {
					clients.Delete(key)
				}
				return true
			})
		}
	}()

	getLimiter := func(key string) *rate.Limiter {
		if v, ok := clients.Load(key); ok {
			cl := v.(*clientLimiter)
			cl.lastSeen = time.Now()
			return cl.limiter
		}
		limiter := rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
		clients.Store(key, &clientLimiter{limiter: limiter, lastSeen: time.Now()})
		return limiter
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := getLimiter(clientKey(r))

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Burst))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))

			if !limiter.Allow() {
				r = r.WithContext(context.WithValue(r.Context(), rateLimitedKey{}, true))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientKey identifies one caller. Identified callers are keyed by
// tenant and user so one noisy user cannot starve a whole office IP.
// Only RemoteAddr is used as the fallback; X-Forwarded-For is untrusted
// and ignored to prevent rate-limit bypass via header spoofing.
func clientKey(r *http.Request) string {
	if id, ok := IdentityFromContext(r.Context()); ok {
		return id.TenantID + "/" + id.UserID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
