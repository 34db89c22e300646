package model

import (
	"time"
)

// DeadLetter represents a message that exhausted all delivery attempts and
// was quarantined. It is a snapshot of the outbox row at the moment the
// attempt ceiling was exceeded; the original row is deleted.
//
// The dead letter table serves as:
//   - Failure audit log with the last recorded delivery error
//   - Manual intervention queue for operators (inspect, replay, discard)
//
// Entries are pruned after the configured retention horizon or removed by
// replay, which reinserts them as fresh outbox rows.
type DeadLetter struct {
	ID      int64  `json:"id" db:"id"`
	Broker  string `json:"broker" db:"broker"`
	Topic   string `json:"topic" db:"topic"`
	Payload []byte `json:"payload" db:"payload"`
	Flags   byte   `json:"flags" db:"flags"`

	// Failure information
	AttemptCount  int    `json:"attemptCount" db:"attempt_count"`
	LastError     string `json:"lastError" db:"last_error"`
	FailureReason string `json:"failureReason" db:"failure_reason"`

	// Timing information
	EnqueuedAt     time.Time `json:"enqueuedAt" db:"enqueued_at"`          // Original outbox row creation
	DeadLetteredAt time.Time `json:"deadLetteredAt" db:"dead_lettered_at"` // When quarantined

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// TableName returns the database table name for DeadLetter.
func (d DeadLetter) TableName() string {
	return tablePrefix + "dead_letter"
}

// NewDeadLetter creates a dead letter entry from an exhausted outbox row.
// Called by the drain worker when the row's attempt count reaches the ceiling.
func NewDeadLetter(row OutboxRow, failureReason string) DeadLetter {
	now := time.Now()
	return DeadLetter{
		ID:             0,
		Broker:         row.Broker,
		Topic:          row.Topic,
		Payload:        row.Payload,
		Flags:          row.Flags,
		AttemptCount:   row.AttemptCount,
		LastError:      row.LastError.String,
		FailureReason:  failureReason,
		EnqueuedAt:     row.CreatedAt,
		DeadLetteredAt: now,
		CreatedAt:      now,
	}
}

// ToOutboxRow converts the dead letter back into a fresh outbox row for
// replay: attempt count reset to zero, due immediately.
func (d DeadLetter) ToOutboxRow() OutboxRow {
	return NewOutboxRow(Message{
		Broker:  d.Broker,
		Topic:   d.Topic,
		Payload: d.Payload,
		QoS:     FlagsQoS(d.Flags),
		Retain:  FlagsRetain(d.Flags),
	})
}

// GetAge returns how long the entry has been in the dead letter table.
func (d *DeadLetter) GetAge() time.Duration {
	return time.Since(d.DeadLetteredAt)
}

// IsExpired reports whether the entry has outlived the retention horizon
// and should be pruned.
func (d *DeadLetter) IsExpired(retention time.Duration) bool {
	return d.GetAge() > retention
}

// DeadLetterFilter selects dead letters for replay or inspection.
// Zero values mean no filter on that field.
type DeadLetterFilter struct {
	Broker      string    // Match destination broker name
	TopicPrefix string    // Match topics by prefix
	Before      time.Time // Dead-lettered before this instant
}

// DeadLetterStats represents aggregate statistics for the dead letter table.
// Used by the observable surface for dashboards and monitoring.
type DeadLetterStats struct {
	TotalItems    int       `json:"totalItems"`
	OldestItemAge int64     `json:"oldestItemAge"` // Seconds
	LastUpdated   time.Time `json:"lastUpdated"`
}
