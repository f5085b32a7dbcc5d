package mqtt

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// reconnectBackoff doubles from initial up to max without jitter and never gives up.
type reconnectBackoff struct {
	b *backoff.ExponentialBackOff
}

func newBackoff(initial, maxDelay time.Duration) *reconnectBackoff {
	if initial <= 0 {
		initial = time.Second
	}
	if maxDelay < initial {
		maxDelay = initial
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = maxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return &reconnectBackoff{b: b}
}

// Next returns the delay before the next attempt.
func (r *reconnectBackoff) Next() time.Duration {
	return r.b.NextBackOff()
}

func (r *reconnectBackoff) Reset() {
	r.b.Reset()
}
