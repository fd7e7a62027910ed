package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL       = 10 * time.Minute
	limiterSweepInterval = 5 * time.Minute
)

type callerLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// callerLimiters holds one token bucket per caller. Buckets idle for longer
// than idleTTL are dropped on the next sweep, so the map only holds callers
// seen recently.
type callerLimiters struct {
	mu        sync.Mutex
	perSecond rate.Limit
	burst     int
	idleTTL   time.Duration
	interval  time.Duration
	lastSweep time.Time
	entries   map[string]*callerLimiter
	now       func() time.Time
}

func newCallerLimiters(perSecond float64, burst int) *callerLimiters {
	return &callerLimiters{
		perSecond: rate.Limit(perSecond),
		burst:     burst,
		idleTTL:   limiterIdleTTL,
		interval:  limiterSweepInterval,
		entries:   make(map[string]*callerLimiter),
		now:       time.Now,
	}
}

func (l *callerLimiters) allow(id string) bool {
	l.mu.Lock()
	now := l.now()
	if now.Sub(l.lastSweep) >= l.interval {
		for key, entry := range l.entries {
			if now.Sub(entry.lastSeen) > l.idleTTL {
				delete(l.entries, key)
			}
		}
		l.lastSweep = now
	}
	entry, ok := l.entries[id]
	if !ok {
		entry = &callerLimiter{limiter: rate.NewLimiter(l.perSecond, l.burst)}
		l.entries[id] = entry
	}
	entry.lastSeen = now
	l.mu.Unlock()

	return entry.limiter.AllowN(now, 1)
}

func (l *callerLimiters) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// CallerRateLimit throttles ledger mutations per authenticated caller with a
// token bucket. It must run after JWTAuth; requests without a caller pass through.
func CallerRateLimit(perSecond float64, burst int) fiber.Handler {
	return callerRateLimit(newCallerLimiters(perSecond, burst))
}

func callerRateLimit(limiters *callerLimiters) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, ok := CallerFrom(c)
		if !ok {
			return c.Next()
		}
		if !limiters.allow(caller.ID().String()) {
			c.Set(fiber.HeaderRetryAfter, "1")
			return fiber.NewError(http.StatusTooManyRequests, "rate limit exceeded")
		}
		return c.Next()
	}
}
