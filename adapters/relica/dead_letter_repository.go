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

// pruneBatchSize bounds how many expired entries one PruneOlderThan pass
// loads before deleting them.
const pruneBatchSize = 500

// DeadLetterRepository implements mqpub.DeadLetterRepository using Relica.
type DeadLetterRepository struct {
	db          *relica.DB
	tablePrefix string
}

// NewDeadLetterRepository creates a new DeadLetterRepository with default table prefix.
func NewDeadLetterRepository(sqlDB *sql.DB, driverName string) *DeadLetterRepository {
	return &DeadLetterRepository{db: relica.WrapDB(sqlDB, driverName), tablePrefix: "mqpub_"}
}

// NewDeadLetterRepositoryWithPrefix creates a new DeadLetterRepository with custom table prefix.
func NewDeadLetterRepositoryWithPrefix(sqlDB *sql.DB, driverName, prefix string) *DeadLetterRepository {
	return &DeadLetterRepository{db: relica.WrapDB(sqlDB, driverName), tablePrefix: prefix}
}

func (r *DeadLetterRepository) tableName() string {
	return r.tablePrefix + "dead_letter"
}

// Load retrieves a dead letter by ID.
func (r *DeadLetterRepository) Load(ctx context.Context, id int64) (model.DeadLetter, error) {
	var dl model.DeadLetter
	err := r.db.WithContext(ctx).Select("*").From(r.tableName()).Where("id = ?", id).One(&dl)
	if errors.Is(err, sql.ErrNoRows) {
		return dl, mqpub.ErrNoData
	}
	if err != nil {
		return dl, mqpub.NewErrorWithCause(mqpub.ErrCodeDatabase, "failed to load dead letter", err)
	}
	return dl, nil
}

// Save creates a new dead letter entry.
func (r *DeadLetterRepository) Save(ctx context.Context, m model.DeadLetter) (model.DeadLetter, error) {
	if m.ID == 0 {
		// Insert using Model() API
		err := r.db.WithContext(ctx).Model(&m).Table(r.tableName()).Insert()
		if err != nil {
			return m, mqpub.NewErrorWithCause(mqpub.ErrCodeDatabase, "failed to insert dead letter", err)
		}
		return m, nil
	}

	err := r.db.WithContext(ctx).Model(&m).Table(r.tableName()).Update()
	if err != nil {
		return m, mqpub.NewErrorWithCause(mqpub.ErrCodeDatabase, "failed to update dead letter", err)
	}
	return m, nil
}

// Delete removes a dead letter entry.
func (r *DeadLetterRepository) Delete(ctx context.Context, m model.DeadLetter) error {
	err := r.db.WithContext(ctx).Model(&m).Table(r.tableName()).Delete()
	if err != nil {
		return mqpub.NewErrorWithCause(mqpub.ErrCodeDatabase, "failed to delete dead letter", err)
	}
	return nil
}

// FindRecent retrieves dead letters ordered by dead_lettered_at DESC (newest first).
func (r *DeadLetterRepository) FindRecent(ctx context.Context, limit int) ([]model.DeadLetter, error) {
	var dls []model.DeadLetter
	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		OrderBy("dead_lettered_at DESC").
		Limit(int64(limit)).
		WithContext(ctx).
		All(&dls)
	if err != nil {
		return nil, mqpub.NewErrorWithCause(mqpub.ErrCodeDatabase, "failed to find recent dead letters", err)
	}
	if len(dls) == 0 {
		return nil, mqpub.ErrNoData
	}
	return dls, nil
}

// FindForReplay retrieves dead letters matching the filter, oldest first.
func (r *DeadLetterRepository) FindForReplay(ctx context.Context, filter model.DeadLetterFilter, limit int) ([]model.DeadLetter, error) {
	var dls []model.DeadLetter

	q := r.db.WithContext(ctx).Select("*").From(r.tableName())
	if filter.Broker != "" {
		q = q.Where("broker = ?", filter.Broker)
	}
	if filter.TopicPrefix != "" {
		q = q.Where("topic LIKE ?", filter.TopicPrefix+"%")
	}
	if !filter.Before.IsZero() {
		q = q.Where("dead_lettered_at < ?", filter.Before)
	}

	err := q.OrderBy("dead_lettered_at ASC").
		Limit(int64(limit)).
		WithContext(ctx).
		All(&dls)
	if err != nil {
		return nil, mqpub.NewErrorWithCause(mqpub.ErrCodeDatabase, "failed to find dead letters for replay", err)
	}
	if len(dls) == 0 {
		return nil, mqpub.ErrNoData
	}
	return dls, nil
}

// Count returns the total number of dead letters.
func (r *DeadLetterRepository) Count(ctx context.Context) (int, error) {
	var count int64
	// Raw scan: the struct scanner only accepts struct destinations.
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+r.tableName()).Scan(&count)
	if err != nil {
		return 0, mqpub.NewErrorWithCause(mqpub.ErrCodeDatabase, "failed to count dead letters", err)
	}
	return int(count), nil
}

// PruneOlderThan deletes dead letters quarantined before the cutoff.
// Entries are loaded and deleted in bounded batches.
func (r *DeadLetterRepository) PruneOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	pruned := 0

	for {
		var dls []model.DeadLetter
		err := r.db.WithContext(ctx).Select("*").
			From(r.tableName()).
			Where("dead_lettered_at < ?", cutoff).
			OrderBy("dead_lettered_at ASC").
			Limit(int64(pruneBatchSize)).
			WithContext(ctx).
			All(&dls)
		if err != nil {
			return pruned, mqpub.NewErrorWithCause(mqpub.ErrCodeDatabase, "failed to find expired dead letters", err)
		}
		if len(dls) == 0 {
			return pruned, nil
		}

		for i := range dls {
			if err := r.Delete(ctx, dls[i]); err != nil {
				return pruned, err
			}
			pruned++
		}

		if len(dls) < pruneBatchSize {
			return pruned, nil
		}
	}
}
