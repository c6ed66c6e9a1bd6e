package retry

import "time"

// Policy is a bounded retry budget. Attempt counts are persisted on the
// entity being retried, so the policy itself is stateless and safe to share.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Exhausted reports whether attempts has reached the ceiling.
func (p Policy) Exhausted(attempts int) bool {
	return attempts >= p.MaxAttempts
}

// Remaining returns the attempts left in the budget.
func (p Policy) Remaining(attempts int) int {
	if r := p.MaxAttempts - attempts; r > 0 {
		return r
	}
	return 0
}

// Backoff returns the delay before the given attempt (1-based), doubling
// from BaseDelay and capped at MaxDelay.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt <= 1 {
		return p.BaseDelay
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return d
}
