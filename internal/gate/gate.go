// Package gate enforces a minimum interval between accepted outbound sends.
// Denied frames are dropped, never queued: a recent result beats a complete one.
package gate

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultInterval caps the outbound rate at five snapshots per second.
const DefaultInterval = 200 * time.Millisecond

// Gate admits at most one send per interval. The limiter holds a single
// token, so there is never a burst.
type Gate struct {
	interval     time.Duration
	limiter      *rate.Limiter
	mu           sync.Mutex
	lastAccepted time.Time
}

func New(interval time.Duration) *Gate {
	return &Gate{
		interval: interval,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
	}
}

// TryAdmit reports whether a send at now is allowed. Only an admit moves the window.
func (g *Gate) TryAdmit(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.limiter.AllowN(now, 1) {
		return false
	}
	g.lastAccepted = now
	return true
}

// LastAccepted returns the time of the most recent admit, zero if none.
func (g *Gate) LastAccepted() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastAccepted
}

func (g *Gate) Interval() time.Duration {
	return g.interval
}
