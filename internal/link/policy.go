package link

import (
	"errors"
	"math"
	"time"
)

// Policy bounds automatic reconnection. It is immutable once built.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy retries five times, doubling from 1s up to 10s.
var DefaultPolicy = Policy{
	MaxAttempts: 5,
	BaseDelay:   1 * time.Second,
	MaxDelay:    10 * time.Second,
}

const backoffMultiplier = 2.0

func (p Policy) Validate() error {
	if p.MaxAttempts < 0 {
		return errors.New("link: MaxAttempts cannot be negative")
	}
	if p.BaseDelay <= 0 {
		return errors.New("link: BaseDelay must be positive")
	}
	if p.MaxDelay < p.BaseDelay {
		return errors.New("link: MaxDelay must be >= BaseDelay")
	}
	return nil
}

// Delay returns min(BaseDelay * 2^attempt, MaxDelay) for a zero-based attempt.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	next := float64(p.BaseDelay) * math.Pow(backoffMultiplier, float64(attempt))
	// Pow overflows to +Inf long before attempt reaches int limits.
	if math.IsInf(next, 0) || next > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(next)
}
