package mqpub

import "embed"

// MigrationFiles contains the SQL migration files embedded in the binary,
// one directory per supported dialect: migrations/mysql, migrations/postgres
// and migrations/sqlite. Users can access these files programmatically to
// apply migrations using their preferred migration tool (goose,
// golang-migrate, atlas, etc.)
//
// Example with goose:
//
//	import (
//	    "github.com/pressly/goose/v3"
//	    mqpub "github.com/coregx/mqpub"
//	)
//
//	goose.SetBaseFS(mqpub.MigrationFiles)
//	if err := goose.Up(db, "migrations/postgres"); err != nil {
//	    log.Fatal(err)
//	}
//
//go:embed migrations/*/*.sql
var MigrationFiles embed.FS
