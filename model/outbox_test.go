package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewOutboxRow(t *testing.T) {
	msg := NewMessage("edge-1", "sensors/temp", []byte("21.5"), 1, true)

	beforeCreate := time.Now()
	row := NewOutboxRow(msg)
	afterCreate := time.Now()

	assert.Equal(t, int64(0), row.ID)
	assert.Equal(t, "edge-1", row.Broker)
	assert.Equal(t, "sensors/temp", row.Topic)
	assert.Equal(t, []byte("21.5"), row.Payload)
	assert.Equal(t, msg.Flags(), row.Flags)

	// Fresh rows are due immediately
	assert.Equal(t, 0, row.AttemptCount)
	assert.False(t, row.LastError.Valid)
	assert.False(t, row.ClaimedUntil.Valid)
	assert.True(t, row.IsDue(afterCreate))

	assert.WithinDuration(t, beforeCreate, row.CreatedAt, 1*time.Second)
	assert.WithinDuration(t, beforeCreate, row.NextRetryAt, 1*time.Second)
}

func TestOutboxRow_Message(t *testing.T) {
	original := NewMessage("edge-1", "sensors/temp", []byte("21.5"), 2, true)
	row := NewOutboxRow(original)

	restored := row.Message()
	assert.Equal(t, original.Broker, restored.Broker)
	assert.Equal(t, original.Topic, restored.Topic)
	assert.Equal(t, original.Payload, restored.Payload)
	assert.Equal(t, original.QoS, restored.QoS)
	assert.Equal(t, original.Retain, restored.Retain)
}

func TestOutboxRow_MarkFailed(t *testing.T) {
	tests := []struct {
		name             string
		initialAttempts  int
		err              error
		retryAfter       time.Duration
		expectedAttempts int
		expectError      bool
	}{
		{
			name:             "First failure with error",
			initialAttempts:  0,
			err:              errors.New("broker timeout"),
			retryAfter:       1 * time.Second,
			expectedAttempts: 1,
			expectError:      true,
		},
		{
			name:             "Second failure without error",
			initialAttempts:  1,
			err:              nil,
			retryAfter:       2 * time.Second,
			expectedAttempts: 2,
			expectError:      false,
		},
		{
			name:             "Fifth failure (dead letter threshold)",
			initialAttempts:  4,
			err:              errors.New("connection refused"),
			retryAfter:       8 * time.Second,
			expectedAttempts: 5,
			expectError:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := NewOutboxRow(NewMessage("edge-1", "sensors/temp", nil, 0, false))
			row.AttemptCount = tt.initialAttempts
			row.ClaimedUntil.Time = time.Now().Add(30 * time.Second)
			row.ClaimedUntil.Valid = true

			beforeMark := time.Now()
			row.MarkFailed(tt.err, tt.retryAfter)

			assert.Equal(t, tt.expectedAttempts, row.AttemptCount)
			assert.WithinDuration(t, beforeMark.Add(tt.retryAfter), row.NextRetryAt, 1*time.Second)

			// Claim lease is released so the row becomes claimable once due
			assert.False(t, row.ClaimedUntil.Valid)

			if tt.expectError {
				assert.True(t, row.LastError.Valid)
				assert.Equal(t, tt.err.Error(), row.LastError.String)
			} else {
				assert.False(t, row.LastError.Valid)
			}
		})
	}
}

func TestOutboxRow_IsDue(t *testing.T) {
	row := NewOutboxRow(NewMessage("edge-1", "sensors/temp", nil, 0, false))
	now := time.Now()

	row.NextRetryAt = now.Add(-1 * time.Second)
	assert.True(t, row.IsDue(now))

	row.NextRetryAt = now
	assert.True(t, row.IsDue(now))

	row.NextRetryAt = now.Add(1 * time.Second)
	assert.False(t, row.IsDue(now))
}

func TestOutboxRow_ShouldDeadLetter(t *testing.T) {
	row := NewOutboxRow(NewMessage("edge-1", "sensors/temp", nil, 0, false))

	row.AttemptCount = 4
	assert.False(t, row.ShouldDeadLetter(5))

	row.AttemptCount = 5
	assert.True(t, row.ShouldDeadLetter(5))

	row.AttemptCount = 6
	assert.True(t, row.ShouldDeadLetter(5))
}

func TestOutboxRow_GetTimeUntilDue(t *testing.T) {
	row := NewOutboxRow(NewMessage("edge-1", "sensors/temp", nil, 0, false))

	row.NextRetryAt = time.Now().Add(-1 * time.Minute)
	assert.Equal(t, time.Duration(0), row.GetTimeUntilDue())

	row.NextRetryAt = time.Now().Add(10 * time.Second)
	until := row.GetTimeUntilDue()
	assert.Greater(t, until, 9*time.Second)
	assert.LessOrEqual(t, until, 10*time.Second)
}

func TestOutboxRow_TableName(t *testing.T) {
	row := &OutboxRow{}
	assert.Equal(t, "mqpub_outbox", row.TableName())
}
