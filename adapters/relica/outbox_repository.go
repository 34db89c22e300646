package relica

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/coregx/mqpub"
	"github.com/coregx/mqpub/model"
	"github.com/coregx/relica"
)

// claimLease is how long a claimed outbox row stays invisible to other
// claimants. It must comfortably exceed the time one drain batch takes;
// a crashed drainer's claims simply expire.
const claimLease = 30 * time.Second

// OutboxRepository implements mqpub.OutboxRepository using Relica.
type OutboxRepository struct {
	db          *relica.DB
	tablePrefix string
}

// NewOutboxRepository creates a new OutboxRepository with default table prefix.
func NewOutboxRepository(sqlDB *sql.DB, driverName string) *OutboxRepository {
	return &OutboxRepository{
		db:          relica.WrapDB(sqlDB, driverName),
		tablePrefix: "mqpub_",
	}
}

// NewOutboxRepositoryWithPrefix creates a new OutboxRepository with custom table prefix.
func NewOutboxRepositoryWithPrefix(sqlDB *sql.DB, driverName, prefix string) *OutboxRepository {
	return &OutboxRepository{
		db:          relica.WrapDB(sqlDB, driverName),
		tablePrefix: prefix,
	}
}

func (r *OutboxRepository) tableName() string {
	return r.tablePrefix + "outbox"
}

// Load retrieves an outbox row by ID.
func (r *OutboxRepository) Load(ctx context.Context, id int64) (model.OutboxRow, error) {
	var row model.OutboxRow

	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("id = ?", id).
		WithContext(ctx).
		One(&row)

	if errors.Is(err, sql.ErrNoRows) {
		return row, mqpub.ErrNoData
	}
	if err != nil {
		return row, mqpub.NewErrorWithCause(mqpub.ErrCodeDatabase, "failed to load outbox row", err)
	}

	return row, nil
}

// Save creates a new outbox row or updates retry bookkeeping on an existing one.
func (r *OutboxRepository) Save(ctx context.Context, m *model.OutboxRow) (*model.OutboxRow, error) {
	if m.ID == 0 {
		// Insert using Model() API - auto-populates m.ID
		err := r.db.WithContext(ctx).Model(m).Table(r.tableName()).Insert()
		if err != nil {
			return m, mqpub.NewErrorWithCause(mqpub.ErrCodeDatabase, "failed to insert outbox row", err)
		}
		return m, nil
	}

	// Update using Model() API - auto WHERE id = ?
	err := r.db.WithContext(ctx).Model(m).Table(r.tableName()).Update()
	if err != nil {
		return m, mqpub.NewErrorWithCause(mqpub.ErrCodeDatabase, "failed to update outbox row", err)
	}

	return m, nil
}

// Delete removes an outbox row. Called to acknowledge a successful publish
// or after migrating the row to the dead letter table.
func (r *OutboxRepository) Delete(ctx context.Context, m *model.OutboxRow) error {
	err := r.db.WithContext(ctx).Model(m).Table(r.tableName()).Delete()
	if err != nil {
		return mqpub.NewErrorWithCause(mqpub.ErrCodeDatabase, "failed to delete outbox row", err)
	}

	return nil
}

// ClaimDue finds up to limit due rows in created_at order and places a claim
// lease on each. The claim is a compare-and-set on claimed_until: a row
// already leased by a concurrent drainer loses the update and is skipped
// rather than waited on.
func (r *OutboxRepository) ClaimDue(ctx context.Context, limit int) ([]model.OutboxRow, error) {
	var rows []model.OutboxRow

	now := time.Now()

	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("next_retry_at <= ? AND (claimed_until IS NULL OR claimed_until <= ?)", now, now).
		OrderBy("created_at ASC").
		Limit(int64(limit)).
		WithContext(ctx).
		All(&rows)

	if err != nil {
		return nil, mqpub.NewErrorWithCause(mqpub.ErrCodeDatabase, "failed to find due outbox rows", err)
	}

	if len(rows) == 0 {
		return nil, mqpub.ErrNoData
	}

	lease := now.Add(claimLease)
	claimed := rows[:0]
	for i := range rows {
		res, err := r.db.WithContext(ctx).Update(r.tableName()).
			Set(map[string]interface{}{
				"claimed_until": lease,
			}).
			Where("id = ? AND (claimed_until IS NULL OR claimed_until <= ?)", rows[i].ID, now).
			WithContext(ctx).
			Execute()

		if err != nil {
			return nil, mqpub.NewErrorWithCause(mqpub.ErrCodeDatabase, "failed to claim outbox row", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return nil, mqpub.NewErrorWithCause(mqpub.ErrCodeDatabase, "failed to read claim result", err)
		}
		if affected == 0 {
			// Claimed by a concurrent drainer since the select; skip.
			continue
		}

		rows[i].ClaimedUntil = sql.NullTime{Time: lease, Valid: true}
		claimed = append(claimed, rows[i])
	}

	if len(claimed) == 0 {
		return nil, mqpub.ErrNoData
	}

	return claimed, nil
}

// CountPending returns the number of outbox rows, including rows not yet due.
func (r *OutboxRepository) CountPending(ctx context.Context) (int, error) {
	var count int64

	// Raw scan: the struct scanner only accepts struct destinations.
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+r.tableName()).Scan(&count)
	if err != nil {
		return 0, mqpub.NewErrorWithCause(mqpub.ErrCodeDatabase, "failed to count pending outbox rows", err)
	}

	return int(count), nil
}
