// Package database provides SQLite connectivity for the simulator.
//
// It opens the database with WAL mode and a busy timeout, and applies the
// embedded schema migrations. The only consumer is the SQLite backend of
// the custom variable store.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS()); err != nil {
//	    return err
//	}
package database
