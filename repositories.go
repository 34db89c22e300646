package mqpub

import (
	"context"
	"time"

	"github.com/coregx/mqpub/model"
)

// OutboxRepository defines the persistence interface for the durable queue
// (cold path). The outbox is the last line of durability: if an insert fails
// the producer's request fails outright, since there is no lower fallback.
//
// Implementations must be safe for concurrent use. ClaimDue must remain
// correct if more than one drainer ever runs concurrently — the claim is a
// storage-level lease, not an in-process assumption.
type OutboxRepository interface {
	// Load retrieves an outbox row by ID.
	// Returns ErrNoData if not found.
	Load(ctx context.Context, id int64) (model.OutboxRow, error)

	// Save creates a new outbox row (if ID=0) or updates retry bookkeeping
	// on an existing one. Returns the saved row with populated ID.
	Save(ctx context.Context, m *model.OutboxRow) (*model.OutboxRow, error)

	// Delete permanently removes an outbox row. Called to acknowledge a
	// successful publish or after migrating the row to the dead letter table.
	Delete(ctx context.Context, m *model.OutboxRow) error

	// ClaimDue finds up to limit rows that are due for delivery
	// (next_retry_at <= now), ordered by created_at ASC (FIFO), and places a
	// short exclusive claim lease on each. Rows claimed by a concurrent
	// drainer are skipped rather than waited on. Rows whose next_retry_at is
	// in the future are invisible to this call, so a backing-off poison row
	// cannot block the rows behind it.
	ClaimDue(ctx context.Context, limit int) ([]model.OutboxRow, error)

	// CountPending returns the number of outbox rows, including rows not yet
	// due for retry. A nonzero count keeps the engine on the cold path.
	CountPending(ctx context.Context) (int, error)
}

// DeadLetterRepository defines the persistence interface for quarantined
// messages. Entries land here after exhausting all delivery attempts and
// leave via replay or retention pruning.
type DeadLetterRepository interface {
	// Load retrieves a dead letter by ID.
	// Returns ErrNoData if not found.
	Load(ctx context.Context, id int64) (model.DeadLetter, error)

	// Save creates a new dead letter entry (if ID=0).
	// Returns the saved entry with populated ID.
	Save(ctx context.Context, m model.DeadLetter) (model.DeadLetter, error)

	// Delete permanently removes a dead letter entry.
	// Called by replay and by manual cleanup.
	Delete(ctx context.Context, m model.DeadLetter) error

	// FindRecent retrieves dead letters ordered by dead_lettered_at DESC
	// (newest first). Used by the observable surface.
	FindRecent(ctx context.Context, limit int) ([]model.DeadLetter, error)

	// FindForReplay retrieves dead letters matching the filter, ordered by
	// dead_lettered_at ASC (oldest first).
	FindForReplay(ctx context.Context, filter model.DeadLetterFilter, limit int) ([]model.DeadLetter, error)

	// Count returns the total number of dead letters.
	Count(ctx context.Context) (int, error)

	// PruneOlderThan bulk-deletes dead letters quarantined before the cutoff.
	// Returns the number of deleted entries.
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
