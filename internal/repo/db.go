package repo

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS inbox_files (
	path TEXT PRIMARY KEY,
	content_hash TEXT NOT NULL,
	chunks INTEGER NOT NULL DEFAULT 0,
	nodes INTEGER NOT NULL DEFAULT 0,
	state TEXT NOT NULL,
	mtime INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_inbox_files_mtime ON inbox_files(mtime);
`

func Open(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}

func ApplyMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
