// Package database opens the nestunify SQLite file and runs its schema
// migrations.
//
// One database holds everything the service persists: the pairs table,
// the composite state history, and the audit trail. WAL mode keeps API
// reads flowing while pair pipelines append history rows, and the pool
// is pinned to a single connection so SQLite's one-writer rule is
// resolved by the busy timeout instead of by lock errors.
//
// Migrations are embedded .up.sql/.down.sql pairs (see the migrations
// package) applied in version order, each in its own transaction:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
