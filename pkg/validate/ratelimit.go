package validate

import (
	"golang.org/x/time/rate"
)

// DefaultRequestsPerSecond is the per-connection soft rate limit.
const DefaultRequestsPerSecond = 200

// ConnLimiter is a per-connection token bucket. The daemon server
// creates one per accepted connection and checks it before dispatching
// each decoded request.
type ConnLimiter struct {
	limiter *rate.Limiter
}

// NewConnLimiter builds a limiter allowing ratePerSecond requests/s
// with a burst of the same size.
func NewConnLimiter(ratePerSecond int) *ConnLimiter {
	if ratePerSecond <= 0 {
		ratePerSecond = DefaultRequestsPerSecond
	}
	return &ConnLimiter{limiter: rate.NewLimiter(rate.Limit(ratePerSecond), ratePerSecond)}
}

// Allow reports whether the next request may proceed, consuming one
// token if so.
func (c *ConnLimiter) Allow() bool {
	return c.limiter.Allow()
}
