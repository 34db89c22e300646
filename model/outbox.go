package model

import (
	"database/sql"
	"time"
)

// OutboxRow represents a message persisted on the cold path, awaiting delivery
// by the drain worker. Rows survive a process crash and are drained strictly
// in created_at order.
//
// Lifecycle:
//  1. Created with AttemptCount=0, NextRetryAt=now (due immediately)
//  2. Claimed by the drain worker and published
//  3. On success the row is deleted (acknowledged)
//  4. On failure MarkFailed schedules the next attempt with backoff
//  5. After the attempt ceiling the row moves to the dead letter table
//
// The drain worker is the only actor that mutates AttemptCount, NextRetryAt
// and LastError; replay reinserts a fresh row instead of resetting in place.
type OutboxRow struct {
	ID           int64          `json:"id" db:"id"`
	Broker       string         `json:"broker" db:"broker"`
	Topic        string         `json:"topic" db:"topic"`
	Payload      []byte         `json:"payload" db:"payload"`
	Flags        byte           `json:"flags" db:"flags"`
	AttemptCount int            `json:"attemptCount" db:"attempt_count"`
	NextRetryAt  time.Time      `json:"nextRetryAt" db:"next_retry_at"`
	LastError    sql.NullString `json:"lastError" db:"last_error"`
	ClaimedUntil sql.NullTime   `json:"claimedUntil" db:"claimed_until"`
	CreatedAt    time.Time      `json:"createdAt" db:"created_at"`
}

// TableName returns the database table name for OutboxRow.
func (r *OutboxRow) TableName() string {
	return tablePrefix + "outbox"
}

// NewOutboxRow materializes a message as a durable outbox row.
// Initial state: AttemptCount=0, NextRetryAt=now (ready immediately).
func NewOutboxRow(m Message) OutboxRow {
	now := time.Now()
	return OutboxRow{
		ID:           0,
		Broker:       m.Broker,
		Topic:        m.Topic,
		Payload:      m.Payload,
		Flags:        m.Flags(),
		AttemptCount: 0,
		NextRetryAt:  now,
		LastError:    sql.NullString{},
		ClaimedUntil: sql.NullTime{},
		CreatedAt:    now,
	}
}

// Message reconstructs the ephemeral message carried by this row.
func (r *OutboxRow) Message() Message {
	return Message{
		Broker:  r.Broker,
		Topic:   r.Topic,
		Payload: r.Payload,
		QoS:     FlagsQoS(r.Flags),
		Retain:  FlagsRetain(r.Flags),
	}
}

// MarkFailed records a failed delivery attempt and schedules the next one.
// Increments the attempt count, stores the error text and pushes NextRetryAt
// forward by the backoff delay. The claim lease is released so the row
// becomes visible to claimants again once due.
func (r *OutboxRow) MarkFailed(err error, retryAfter time.Duration) {
	now := time.Now()
	r.AttemptCount++
	r.NextRetryAt = now.Add(retryAfter)
	r.ClaimedUntil = sql.NullTime{}
	if err != nil {
		r.LastError = sql.NullString{String: err.Error(), Valid: true}
	}
}

// IsDue reports whether the row is eligible for a delivery attempt at t.
// Rows not yet due are invisible to ClaimDue, so a backing-off poison row
// cannot block the rows behind it.
func (r *OutboxRow) IsDue(t time.Time) bool {
	return !r.NextRetryAt.After(t)
}

// ShouldDeadLetter reports whether the row has exhausted its delivery
// attempts and must be quarantined.
func (r *OutboxRow) ShouldDeadLetter(ceiling int) bool {
	return r.AttemptCount >= ceiling
}

// GetAge returns how long the row has existed since creation.
func (r *OutboxRow) GetAge() time.Duration {
	return time.Since(r.CreatedAt)
}

// GetTimeUntilDue returns the duration until the row becomes claimable.
// Returns 0 if the row is due now.
func (r *OutboxRow) GetTimeUntilDue() time.Duration {
	d := time.Until(r.NextRetryAt)
	if d < 0 {
		return 0
	}
	return d
}
