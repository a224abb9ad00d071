package realtime

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// NewBackOff returns a deterministic exponential schedule: base, 2*base,
// 4*base ... capped at max, stopping after retries attempts (0 means never).
func NewBackOff(base, max time.Duration, retries int) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = base
	exp.MaxInterval = max
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0
	exp.Reset()

	if retries <= 0 {
		return exp
	}
	return backoff.WithMaxRetries(exp, uint64(retries))
}
