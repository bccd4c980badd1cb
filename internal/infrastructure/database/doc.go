// Package database provides the SQLite connection used by the default
// device status store.
//
// It manages:
//   - Opening the database file with WAL mode and a busy timeout
//   - Applying versioned SQL migrations from an fs.FS
//   - Health checks for the /health endpoint
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.SQLite); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql. Applied versions are recorded in the
// schema_migrations table so Migrate is safe to call on every start.
package database
