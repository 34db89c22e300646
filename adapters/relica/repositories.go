package relica

import (
	"database/sql"

	"github.com/coregx/mqpub"
)

// Repositories holds all repository implementations.
type Repositories struct {
	Outbox     mqpub.OutboxRepository
	DeadLetter mqpub.DeadLetterRepository
}

// NewRepositories creates all repository implementations using Relica.
//
// The db parameter should be an *sql.DB connected to MySQL, PostgreSQL, or SQLite.
// The driverName should be "mysql", "postgres", or "sqlite3".
// The table prefix defaults to "mqpub_" but can be customized.
func NewRepositories(db *sql.DB, driverName string) *Repositories {
	return &Repositories{
		Outbox:     NewOutboxRepository(db, driverName),
		DeadLetter: NewDeadLetterRepository(db, driverName),
	}
}

// NewRepositoriesWithPrefix creates all repository implementations with a custom table prefix.
func NewRepositoriesWithPrefix(db *sql.DB, driverName, prefix string) *Repositories {
	return &Repositories{
		Outbox:     NewOutboxRepositoryWithPrefix(db, driverName, prefix),
		DeadLetter: NewDeadLetterRepositoryWithPrefix(db, driverName, prefix),
	}
}
