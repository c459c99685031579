package middleware

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vidfriends/friends/internal/config"
)

// idleWindows is how many refill windows an account's budget survives
// without use before it is forgotten.
const idleWindows = 10

type budget struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// AccountLimiter budgets one action per authenticated account. Callers build
// one limiter per action so budgets for different actions never share tokens.
type AccountLimiter struct {
	mu        sync.Mutex
	budgets   map[string]*budget
	limit     rate.Limit
	burst     int
	idle      time.Duration
	window    time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewAccountLimiter allows each account cfg.Requests actions per cfg.Window
// on top of a burst of cfg.Burst.
func NewAccountLimiter(cfg config.RateLimitConfig) *AccountLimiter {
	requests, window, burst := cfg.Requests, cfg.Window, cfg.Burst
	if requests <= 0 {
		requests = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	if burst <= 0 {
		burst = 1
	}

	return &AccountLimiter{
		budgets: make(map[string]*budget),
		limit:   rate.Every(window / time.Duration(requests)),
		burst:   burst,
		idle:    idleWindows * window,
		window:  window,
		now:     time.Now,
	}
}

// Allow spends one token from the account's budget. An empty account id is
// never allowed.
func (l *AccountLimiter) Allow(accountID string) bool {
	if accountID == "" {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.window {
		l.sweepLocked(now)
	}

	b, ok := l.budgets[accountID]
	if !ok {
		b = &budget{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.budgets[accountID] = b
	}
	b.lastUsed = now

	return b.limiter.AllowN(now, 1)
}

// sweepLocked forgets budgets idle long enough to have refilled completely.
func (l *AccountLimiter) sweepLocked(now time.Time) {
	for accountID, b := range l.budgets {
		if now.Sub(b.lastUsed) > l.idle {
			delete(l.budgets, accountID)
		}
	}
	l.lastSweep = now
}
