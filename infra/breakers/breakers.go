// Package breakers wraps outbound market-source calls in a circuit breaker
// so a misbehaving upstream trips fast instead of burning the whole tick on
// timeouts.
package breakers

import (
	"time"

	cb "github.com/sony/gobreaker"
)

type Breaker struct{ cb *cb.CircuitBreaker }

// New builds a breaker that trips after 3 consecutive failures, or a >5%
// failure rate once 20 requests have been seen in the rolling interval.
func New(name string) *Breaker {
	st := cb.Settings{Name: name}
	st.Interval = 60 * time.Second
	st.Timeout = 60 * time.Second
	st.ReadyToTrip = func(counts cb.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		total := counts.Requests
		if total < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(total) > 0.05
	}
	return &Breaker{cb: cb.NewCircuitBreaker(st)}
}

func (b *Breaker) Execute(fn func() (any, error)) (any, error) { return b.cb.Execute(fn) }

// State returns the breaker state name for health reporting.
func (b *Breaker) State() string { return b.cb.State().String() }
