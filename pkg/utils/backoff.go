package utils

import (
	"math"
	"time"
)

// BackoffStrategy computes the wait before a retry attempt
type BackoffStrategy interface {
	// NextDelay returns the delay for the given attempt number (0-indexed)
	NextDelay(attempt int) time.Duration
}

// ConstantBackoff waits the same delay before every attempt
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns the constant delay
func (cb ConstantBackoff) NextDelay(int) time.Duration {
	return cb.Delay
}

// ExponentialBackoff doubles (by Multiplier) the delay on each attempt up to MaxDelay
type ExponentialBackoff struct {
	BaseDelay  time.Duration
	Multiplier float64
	MaxDelay   time.Duration
	// Jitter scales each delay by a random factor in [0.5, 1.5)
	Jitter *RandSource
}

// NewExponentialBackoff creates an exponential strategy; a nil jitter source disables jitter
func NewExponentialBackoff(baseDelay, maxDelay time.Duration, multiplier float64, jitter *RandSource) *ExponentialBackoff {
	if multiplier <= 0 {
		multiplier = 2.0
	}
	return &ExponentialBackoff{
		BaseDelay:  baseDelay,
		Multiplier: multiplier,
		MaxDelay:   maxDelay,
		Jitter:     jitter,
	}
}

// NextDelay returns the exponentially increasing delay
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	delay := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt))
	if eb.MaxDelay > 0 && delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}
	if eb.Jitter != nil {
		delay *= eb.Jitter.UniformFloat64(0.5, 1.5)
	}
	return time.Duration(delay)
}

// BackoffFromConfig creates a backoff strategy from config parameters.
// Unknown types fall back to exponential without jitter.
func BackoffFromConfig(backoffType string, base, max time.Duration) BackoffStrategy {
	if max == 0 {
		max = 30 * time.Second
	}
	switch backoffType {
	case "constant":
		return ConstantBackoff{Delay: base}
	case "exponential_jitter":
		return NewExponentialBackoff(base, max, 2.0, NewRandSource(0))
	default:
		return NewExponentialBackoff(base, max, 2.0, nil)
	}
}
