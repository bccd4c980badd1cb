// Package postgres connects lightbridge to PostgreSQL when the store
// backend is "postgres".
//
// It provides a retrying pgxpool connection, goose migrations applied from
// an embedded filesystem, and a health check closure for the API.
//
//	pool, err := postgres.Connect(ctx, cfg.Postgres)
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	if err := postgres.Migrate(ctx, pool, migrations.Postgres, logger); err != nil {
//	    return err
//	}
package postgres
