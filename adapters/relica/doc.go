// Package relica provides repository implementations using Relica query builder.
//
// Relica (github.com/coregx/relica) is a lightweight, type-safe database query builder
// for Go with zero production dependencies.
//
// This package provides production-ready implementations of the mqpub
// repository interfaces:
//   - OutboxRepository (durable cold-path queue with lease-based row claims)
//   - DeadLetterRepository
//
// Example usage:
//
//	import (
//	    "database/sql"
//	    "github.com/coregx/mqpub"
//	    "github.com/coregx/mqpub/adapters/relica"
//	    _ "github.com/go-sql-driver/mysql"
//	)
//
//	// Open database connection
//	db, err := sql.Open("mysql", "user:pass@tcp(localhost:3306)/mqpub_db?parseTime=true")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Create repositories (driverName should be "mysql", "postgres", or "sqlite3")
//	repos := relica.NewRepositories(db, "mysql")
//
//	// Create services
//	worker, err := mqpub.NewDrainWorker(
//	    mqpub.WithRepositories(repos.Outbox, repos.DeadLetter),
//	    mqpub.WithQueues(modeState, ring),
//	    mqpub.WithGateway(gateway),
//	    mqpub.WithLogger(logger),
//	)
package relica
