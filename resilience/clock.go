package resilience

import "time"

// Clock abstracts time for the circuit breaker so cooldown transitions can
// be tested deterministically.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
