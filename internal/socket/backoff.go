package socket

import (
	"math"
	"math/rand"
	"time"
)

// BackoffConfig paces reconnect attempts after a dial failure or a dropped
// socket.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Delay is the wait before reconnect attempt n (1-based). With Jitter the
// result is drawn from [d/2, d], so MaxDelay stays a hard ceiling.
func (b BackoffConfig) Delay(n int, rng *rand.Rand) time.Duration {
	if b.InitialDelay <= 0 {
		return 0
	}
	growth := math.Max(b.Multiplier, 1)
	d := float64(b.InitialDelay) * math.Pow(growth, float64(max(n, 1)-1))
	if b.MaxDelay > 0 {
		d = math.Min(d, float64(b.MaxDelay))
	}
	if b.Jitter && rng != nil {
		d = d/2 + rng.Float64()*d/2
	}
	return time.Duration(d)
}
