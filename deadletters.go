package mqpub

import (
	"context"
	"fmt"
	"time"

	"github.com/coregx/mqpub/model"
)

// DeadLetterManager is the operator-facing service over the dead letter
// table: inspection, statistics, and replay. Replay is the external path
// back into delivery — matching dead letters are reinserted as fresh outbox
// rows with a clean attempt count, then removed from the dead letter set.
type DeadLetterManager struct {
	outbox    OutboxRepository
	dlq       DeadLetterRepository
	modeState *ModeState
	logger    Logger
}

// DeadLetterManagerOption configures a DeadLetterManager.
type DeadLetterManagerOption func(*DeadLetterManager) error

// NewDeadLetterManager creates a new DeadLetterManager with the provided options.
//
// Required options:
//   - WithDeadLetterManagerRepositories: outbox and dead letter repositories
//   - WithDeadLetterManagerState: shared mode state
//   - WithDeadLetterManagerLogger: logger instance
func NewDeadLetterManager(opts ...DeadLetterManagerOption) (*DeadLetterManager, error) {
	m := &DeadLetterManager{}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply dead letter manager option", err)
		}
	}

	if m.outbox == nil {
		return nil, NewError(ErrCodeConfiguration, "OutboxRepository is required (use WithDeadLetterManagerRepositories)")
	}
	if m.dlq == nil {
		return nil, NewError(ErrCodeConfiguration, "DeadLetterRepository is required (use WithDeadLetterManagerRepositories)")
	}
	if m.modeState == nil {
		return nil, NewError(ErrCodeConfiguration, "ModeState is required (use WithDeadLetterManagerState)")
	}
	if m.logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required (use WithDeadLetterManagerLogger)")
	}

	return m, nil
}

// WithDeadLetterManagerRepositories sets the required repository dependencies.
func WithDeadLetterManagerRepositories(outboxRepo OutboxRepository, dlqRepo DeadLetterRepository) DeadLetterManagerOption {
	return func(m *DeadLetterManager) error {
		if outboxRepo == nil {
			return fmt.Errorf("outboxRepo cannot be nil")
		}
		if dlqRepo == nil {
			return fmt.Errorf("dlqRepo cannot be nil")
		}
		m.outbox = outboxRepo
		m.dlq = dlqRepo
		return nil
	}
}

// WithDeadLetterManagerState sets the shared mode state, used to keep the
// approximate pending counter in step with replayed rows.
func WithDeadLetterManagerState(modeState *ModeState) DeadLetterManagerOption {
	return func(m *DeadLetterManager) error {
		if modeState == nil {
			return fmt.Errorf("modeState cannot be nil")
		}
		m.modeState = modeState
		return nil
	}
}

// WithDeadLetterManagerLogger sets the logger instance.
func WithDeadLetterManagerLogger(logger Logger) DeadLetterManagerOption {
	return func(m *DeadLetterManager) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		m.logger = logger
		return nil
	}
}

// ReplayResult reports the outcome of a replay operation.
type ReplayResult struct {
	Matched  int `json:"matched"`  // Dead letters matching the filter
	Replayed int `json:"replayed"` // Successfully reinserted as outbox rows
}

// Replay reinserts dead letters matching the filter as fresh outbox rows
// with attempt count 0 and an immediate due time, then deletes them from the
// dead letter set. A nonzero replayed count keeps the engine on (or returns
// it to) the cold path until the rows are flushed.
//
// Individual failures are logged and skipped; the affected dead letters stay
// quarantined and can be replayed again.
func (m *DeadLetterManager) Replay(ctx context.Context, filter model.DeadLetterFilter, limit int) (*ReplayResult, error) {
	deadLetters, err := m.dlq.FindForReplay(ctx, filter, limit)
	if err != nil {
		if IsNoData(err) {
			return &ReplayResult{}, nil
		}
		return nil, NewErrorWithCause(ErrCodeDatabase, "failed to find dead letters for replay", err)
	}

	result := &ReplayResult{Matched: len(deadLetters)}
	for _, dl := range deadLetters {
		row := dl.ToOutboxRow()
		if _, err := m.outbox.Save(ctx, &row); err != nil {
			m.logger.Errorf("Failed to reinsert dead letter %d as outbox row: %v", dl.ID, err)
			continue
		}
		m.modeState.AddPending(1)

		if err := m.dlq.Delete(ctx, dl); err != nil {
			m.logger.Errorf("Failed to delete dead letter %d after replay: %v", dl.ID, err)
			// The outbox row exists; the stale dead letter is cleaned up by
			// the operator or retention pruning.
		}
		result.Replayed++

		m.logger.Infof("Replayed dead letter %d (broker=%s, topic=%s) as outbox row %d",
			dl.ID, dl.Broker, dl.Topic, row.ID)
	}

	return result, nil
}

// List retrieves the most recent dead letters for inspection.
func (m *DeadLetterManager) List(ctx context.Context, limit int) ([]model.DeadLetter, error) {
	deadLetters, err := m.dlq.FindRecent(ctx, limit)
	if err != nil {
		if IsNoData(err) {
			return []model.DeadLetter{}, nil
		}
		return nil, NewErrorWithCause(ErrCodeDatabase, "failed to list dead letters", err)
	}
	return deadLetters, nil
}

// Stats retrieves aggregate dead letter statistics for monitoring.
func (m *DeadLetterManager) Stats(ctx context.Context) (model.DeadLetterStats, error) {
	total, err := m.dlq.Count(ctx)
	if err != nil {
		return model.DeadLetterStats{}, NewErrorWithCause(ErrCodeDatabase, "failed to count dead letters", err)
	}

	stats := model.DeadLetterStats{
		TotalItems:  total,
		LastUpdated: time.Now(),
	}

	if total > 0 {
		oldest, err := m.dlq.FindForReplay(ctx, model.DeadLetterFilter{}, 1)
		if err == nil && len(oldest) > 0 {
			stats.OldestItemAge = int64(oldest[0].GetAge().Seconds())
		}
	}

	return stats, nil
}
