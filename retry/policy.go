package retry

import (
	"time"

	"github.com/dogmatiq/linger"
	"github.com/dogmatiq/linger/backoff"
)

// DefaultBackoff is the backoff strategy used by a Policy that does not
// specify its own.
var DefaultBackoff backoff.Strategy = backoff.WithTransforms(
	backoff.Exponential(250*time.Millisecond),
	linger.FullJitter,
	linger.Limiter(0, 30*time.Second),
)

// Policy describes how many times an operation is attempted, and how long to
// wait between attempts.
type Policy struct {
	// MaxAttempts is the maximum number of attempts, including the first. If
	// it is zero the operation is attempted exactly once.
	MaxAttempts uint

	// Backoff is the strategy used to compute the delay before each retry.
	// If it is nil, DefaultBackoff is used.
	Backoff backoff.Strategy
}

// Attempts returns the maximum number of attempts permitted by the policy.
func (p Policy) Attempts() uint {
	if p.MaxAttempts == 0 {
		return 1
	}

	return p.MaxAttempts
}

// Delay returns the time to wait before the next attempt, given the error that
// caused the most recent failure and the number of failures so far.
func (p Policy) Delay(err error, failures uint) time.Duration {
	s := p.Backoff
	if s == nil {
		s = DefaultBackoff
	}

	// linger's strategies treat n as the number of prior failures, starting
	// from zero for the first retry.
	return s(err, failures-1)
}
