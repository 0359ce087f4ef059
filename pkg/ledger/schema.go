package ledger

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/glebarez/sqlite"

	graftsql "github.com/cvmfs-go/graft/internal/graftsql/errors"
	"github.com/cvmfs-go/graft/internal/logger"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS cache_catalog (
	sha1   TEXT PRIMARY KEY,
	size   INTEGER NOT NULL,
	acseq  INTEGER UNIQUE NOT NULL,
	path   TEXT NOT NULL,
	type   INTEGER NOT NULL,
	pinned INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS properties (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const pragmaDDL = `
PRAGMA synchronous = 0;
PRAGMA locking_mode = EXCLUSIVE;
PRAGMA auto_vacuum = 1;
`

// openSchema opens the cache_catalog database, applies pragmas, and
// bootstraps the schema. If schema creation fails, the database file is
// deleted and the attempt is retried once.
func openSchema(dbPath string) (*sql.DB, error) {
	db, err := tryOpenSchema(dbPath)
	if err == nil {
		return db, nil
	}

	logger.Warn("ledger schema bootstrap failed, retrying from scratch",
		logger.Err(err))

	if rmErr := os.Remove(dbPath); rmErr != nil && !os.IsNotExist(rmErr) {
		return nil, graftsql.Wrap(graftsql.StorageError, rmErr, "failed to remove corrupt cache db")
	}

	db, err = tryOpenSchema(dbPath)
	if err != nil {
		return nil, graftsql.Wrap(graftsql.StorageError, err, "failed to bootstrap cache db schema after retry")
	}
	return db, nil
}

func tryOpenSchema(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec(pragmaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return db, nil
}

// createFscacheTable creates the temporary rebuild-scratch table. Scoped to
// the lifetime of a single rebuild pass.
func createFscacheTable(db *sql.DB) error {
	_, err := db.Exec(`CREATE TEMP TABLE IF NOT EXISTS fscache (
		sha1   TEXT PRIMARY KEY,
		size   INTEGER NOT NULL,
		actime INTEGER NOT NULL
	)`)
	return err
}

func dropFscacheTable(db *sql.DB) error {
	_, err := db.Exec(`DROP TABLE IF EXISTS fscache`)
	return err
}
