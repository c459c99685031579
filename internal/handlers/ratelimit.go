package handlers

// RateLimiter budgets an action per authenticated account.
type RateLimiter interface {
	Allow(accountID string) bool
}

// allowRequest reports whether acting may proceed. Handlers call it after
// authentication, so anonymous callers never reach a limiter.
func allowRequest(limiter RateLimiter, acting string) bool {
	if limiter == nil {
		return true
	}
	return limiter.Allow(acting)
}
