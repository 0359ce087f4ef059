package graftdb

import (
	"database/sql"

	_ "github.com/glebarez/sqlite"

	graftsql "github.com/cvmfs-go/graft/internal/graftsql/errors"
)

// schemaStatements creates the canonical schema_revision=4 graft DB layout:
// dirs, files, links, deletions, properties, with WAL journaling.
var schemaStatements = []string{
	`PRAGMA journal_mode=WAL`,
	`CREATE TABLE IF NOT EXISTS dirs (
		name    TEXT    PRIMARY KEY,
		mode    INTEGER NOT NULL DEFAULT 493,
		mtime_ns INTEGER NOT NULL DEFAULT 0,
		owner   INTEGER NOT NULL DEFAULT 0,
		grp     INTEGER NOT NULL DEFAULT 0,
		acl_text TEXT   NOT NULL DEFAULT '',
		nested  INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS files (
		name    TEXT    PRIMARY KEY,
		mode    INTEGER NOT NULL DEFAULT 420,
		mtime_ns INTEGER NOT NULL DEFAULT 0,
		owner   INTEGER NOT NULL DEFAULT 0,
		grp     INTEGER NOT NULL DEFAULT 0,
		size    INTEGER NOT NULL DEFAULT 0,
		hashes_csv TEXT NOT NULL DEFAULT '',
		internal INTEGER NOT NULL DEFAULT 0,
		compressed INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS links (
		name    TEXT    PRIMARY KEY,
		target  TEXT    NOT NULL DEFAULT '',
		mtime_ns INTEGER NOT NULL DEFAULT 0,
		owner   INTEGER NOT NULL DEFAULT 0,
		grp     INTEGER NOT NULL DEFAULT 0,
		skip_if_file_or_dir INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS deletions (
		name      TEXT PRIMARY KEY,
		directory INTEGER NOT NULL DEFAULT 0,
		file      INTEGER NOT NULL DEFAULT 0,
		link      INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS properties (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`INSERT INTO properties (key, value) VALUES ('schema_revision', '4')
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
}

// CreateEmpty creates a new graft DB file at path with the canonical
// schema_revision=4 layout and no rows beyond the schema_revision marker.
// It is the Go counterpart of swissknife's create_empty_database.
func CreateEmpty(path string) error {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=rwc")
	if err != nil {
		return graftsql.Wrap(graftsql.StorageError, err, "failed to create graft db").WithPath(path)
	}
	defer db.Close()

	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return graftsql.Wrap(graftsql.StorageError, err, "failed to apply graft db schema").WithPath(path)
		}
	}

	return nil
}

// MarkCompletedGraft sets or clears the properties.completed_graft flag
// used by -Z to avoid reapplying an already-ingested graft DB.
func MarkCompletedGraft(path string, completed bool) error {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=rw")
	if err != nil {
		return graftsql.Wrap(graftsql.StorageError, err, "failed to open graft db").WithPath(path)
	}
	defer db.Close()

	if completed {
		_, err = db.Exec(`INSERT INTO properties (key, value) VALUES ('completed_graft', '1')
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`)
	} else {
		_, err = db.Exec(`DELETE FROM properties WHERE key = 'completed_graft'`)
	}
	if err != nil {
		return graftsql.Wrap(graftsql.StorageError, err, "failed to update completed_graft property").WithPath(path)
	}
	return nil
}

// IsCompletedGraft reports whether path's properties table already carries
// a truthy completed_graft marker.
func IsCompletedGraft(path string) (bool, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return false, graftsql.Wrap(graftsql.StorageError, err, "failed to open graft db").WithPath(path)
	}
	defer db.Close()

	var value string
	row := db.QueryRow(`SELECT value FROM properties WHERE key = 'completed_graft'`)
	switch err := row.Scan(&value); err {
	case nil:
		return value == "1", nil
	case sql.ErrNoRows:
		return false, nil
	default:
		return false, graftsql.Wrap(graftsql.StorageError, err, "failed to read completed_graft property").WithPath(path)
	}
}
