package infra

import (
	"math"
	"math/rand"
	"time"
)

const (
	backoffBase = 1 * time.Second
	backoffMax  = 60 * time.Second
)

// Backoff returns the reconnect delay for the given retry attempt:
// exponential from 1s, capped at 60s, with ±25% jitter so a fleet of clients
// does not reconnect in lockstep after a server restart.
func Backoff(retry int) time.Duration {
	delay := backoffBase * time.Duration(math.Pow(2, float64(retry)))
	if delay > backoffMax || delay <= 0 {
		delay = backoffMax
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/2+1)) - delay/4
	return delay + jitter
}
