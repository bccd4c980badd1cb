// Package migrations embeds the schema files for the SQL-backed stores so
// the binary can migrate without the files on disk.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed sqlite/*.sql
var sqliteFiles embed.FS

//go:embed postgres/*.sql
var postgresFiles embed.FS

// SQLite holds YYYYMMDD_HHMMSS_name.{up,down}.sql files applied by
// database.DB.Migrate.
var SQLite = mustSub(sqliteFiles, "sqlite")

// Postgres holds goose-annotated files applied by postgres.Migrate.
var Postgres = mustSub(postgresFiles, "postgres")

func mustSub(fsys embed.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
