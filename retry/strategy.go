// Package retry provides the exponential backoff strategy applied to failed
// outbox deliveries, including the dead-letter ceiling for poison messages.
package retry

import (
	"fmt"
	"math"
	"time"
)

// Strategy defines the retry behavior for failed message deliveries.
// It implements exponential backoff with a hard attempt ceiling.
//
// The retry schedule follows: delay = min(BaseDelay * ExponentialBase^(attempt-1), MaxDelay)
//
// Example with defaults (1s base, 2.0 exponential, 30s max, ceiling 5):
//
//	Attempt 1: 1s
//	Attempt 2: 2s
//	Attempt 3: 4s
//	Attempt 4: 8s
//	Attempt 5: 16s (→ dead letter)
type Strategy struct {
	BaseDelay       time.Duration // Delay after the first failed attempt
	MaxDelay        time.Duration // Backoff cap
	ExponentialBase float64       // Backoff multiplier (e.g., 2.0 for doubling)
	MaxAttempts     int           // Dead-letter after this many failed attempts
}

// DefaultStrategy returns the default retry strategy: 1s base doubling to a
// 30s cap, dead-letter after 5 attempts. The tight schedule suits broker
// outages that typically resolve in seconds, while the ceiling quarantines
// poison messages quickly instead of retrying them forever.
func DefaultStrategy() Strategy {
	return Strategy{
		BaseDelay:       1 * time.Second,
		MaxDelay:        30 * time.Second,
		ExponentialBase: 2.0,
		MaxAttempts:     5,
	}
}

// Delay calculates the retry delay after the given failed attempt using
// exponential backoff. Attempt numbers are 1-based: Delay(1) returns
// BaseDelay, each subsequent attempt multiplies by ExponentialBase, capped
// at MaxDelay.
func (s Strategy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return s.BaseDelay
	}

	delay := float64(s.BaseDelay) * math.Pow(s.ExponentialBase, float64(attempt-1))
	if delay > float64(s.MaxDelay) {
		return s.MaxDelay
	}
	return time.Duration(delay)
}

// ShouldDeadLetter determines if a message should be quarantined.
// Returns true when the attempt count reaches or exceeds the ceiling.
func (s Strategy) ShouldDeadLetter(attemptCount int) bool {
	return attemptCount >= s.MaxAttempts
}

// IsRetryable checks if another delivery attempt is allowed.
func (s Strategy) IsRetryable(attemptCount int) bool {
	return attemptCount < s.MaxAttempts
}

// Schedule returns a human-readable description of the retry schedule.
// Useful for debugging and displaying retry behavior in logs.
//
// Example output:
//
//	Retry Schedule:
//	  Attempt 1: after 1s
//	  ...
//	  Attempt 5: after 16s
//	  → Dead letter
func (s Strategy) Schedule() string {
	schedule := "Retry Schedule:\n"
	for i := 1; i <= s.MaxAttempts; i++ {
		schedule += fmt.Sprintf("  Attempt %d: after %v\n", i, s.Delay(i))
	}
	schedule += "  → Dead letter\n"
	return schedule
}
