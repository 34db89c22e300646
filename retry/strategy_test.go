package retry

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultStrategy(t *testing.T) {
	strategy := DefaultStrategy()

	assert.Equal(t, 1*time.Second, strategy.BaseDelay)
	assert.Equal(t, 30*time.Second, strategy.MaxDelay)
	assert.Equal(t, 2.0, strategy.ExponentialBase)
	assert.Equal(t, 5, strategy.MaxAttempts)
}

func TestStrategy_Delay(t *testing.T) {
	strategy := DefaultStrategy()

	tests := []struct {
		name          string
		attempt       int
		expectedDelay time.Duration
	}{
		{
			name:          "Zero attempt - base delay",
			attempt:       0,
			expectedDelay: 1 * time.Second,
		},
		{
			name:          "First attempt - base delay",
			attempt:       1,
			expectedDelay: 1 * time.Second,
		},
		{
			name:          "Second attempt - doubled",
			attempt:       2,
			expectedDelay: 2 * time.Second,
		},
		{
			name:          "Third attempt",
			attempt:       3,
			expectedDelay: 4 * time.Second,
		},
		{
			name:          "Fourth attempt",
			attempt:       4,
			expectedDelay: 8 * time.Second,
		},
		{
			name:          "Fifth attempt",
			attempt:       5,
			expectedDelay: 16 * time.Second,
		},
		{
			name:          "Sixth attempt - capped",
			attempt:       6,
			expectedDelay: 30 * time.Second, // would be 32s, capped
		},
		{
			name:          "Large attempt number - still capped",
			attempt:       100,
			expectedDelay: 30 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedDelay, strategy.Delay(tt.attempt))
		})
	}
}

func TestStrategy_Delay_CustomStrategy(t *testing.T) {
	strategy := Strategy{
		BaseDelay:       1 * time.Second,
		MaxDelay:        10 * time.Second,
		ExponentialBase: 3.0, // Triple each time
		MaxAttempts:     5,
	}

	tests := []struct {
		attempt       int
		expectedDelay time.Duration
	}{
		{1, 1 * time.Second},
		{2, 3 * time.Second},
		{3, 9 * time.Second},
		{4, 10 * time.Second}, // would be 27s, capped
	}

	for _, tt := range tests {
		delay := strategy.Delay(tt.attempt)
		assert.Equal(t, tt.expectedDelay, delay, "attempt %d", tt.attempt)
	}
}

func TestStrategy_ShouldDeadLetter(t *testing.T) {
	strategy := DefaultStrategy()

	assert.False(t, strategy.ShouldDeadLetter(0))
	assert.False(t, strategy.ShouldDeadLetter(4))
	assert.True(t, strategy.ShouldDeadLetter(5))
	assert.True(t, strategy.ShouldDeadLetter(6))
}

func TestStrategy_IsRetryable(t *testing.T) {
	strategy := DefaultStrategy()

	assert.True(t, strategy.IsRetryable(0))
	assert.True(t, strategy.IsRetryable(4))
	assert.False(t, strategy.IsRetryable(5))
	assert.False(t, strategy.IsRetryable(10))
}

func TestStrategy_Schedule(t *testing.T) {
	strategy := DefaultStrategy()

	schedule := strategy.Schedule()

	assert.Contains(t, schedule, "Attempt 1: after 1s")
	assert.Contains(t, schedule, "Attempt 2: after 2s")
	assert.Contains(t, schedule, "Attempt 5: after 16s")
	assert.Contains(t, schedule, "→ Dead letter")
	assert.Equal(t, strategy.MaxAttempts, strings.Count(schedule, "Attempt"))
}
