package graftdb

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/glebarez/sqlite"
)

func newTestGraftDB(t testing.TB, revision int) (*sql.DB, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "graft.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("failed to open test graft db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ddl := []string{
		`CREATE TABLE properties (key TEXT PRIMARY KEY, value TEXT NOT NULL)`,
		`CREATE TABLE dirs (name TEXT PRIMARY KEY, mode INTEGER, mtime_ns INTEGER, owner INTEGER, grp INTEGER, acl_text TEXT, nested INTEGER)`,
		`CREATE TABLE files (name TEXT PRIMARY KEY, mode INTEGER, mtime_ns INTEGER, owner INTEGER, grp INTEGER, size INTEGER, hashes_csv TEXT, internal INTEGER, compressed INTEGER)`,
		`CREATE TABLE links (name TEXT PRIMARY KEY, target TEXT, mtime_ns INTEGER, owner INTEGER, grp INTEGER, skip_if_file_or_dir INTEGER)`,
		`CREATE TABLE deletions (name TEXT PRIMARY KEY, directory INTEGER, file INTEGER, link INTEGER)`,
	}
	for _, stmt := range ddl {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("failed to create table: %v", err)
		}
	}

	if _, err := db.Exec(`INSERT INTO properties (key, value) VALUES ('schema_revision', ?)`, revision); err != nil {
		t.Fatalf("failed to insert schema_revision: %v", err)
	}

	return db, dbPath
}

func TestReadAll_DecodesDirsFilesLinksDeletions(t *testing.T) {
	db, dbPath := newTestGraftDB(t, 4)

	if _, err := db.Exec(`INSERT INTO dirs (name, mode, mtime_ns, owner, grp, acl_text, nested) VALUES ('a/b', 0755, 0, 0, 0, '', 0)`); err != nil {
		t.Fatalf("insert dir: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO files (name, mode, mtime_ns, owner, grp, size, hashes_csv, internal, compressed) VALUES ('a/b/c.txt', 0644, 0, 0, 0, 0, ?, 1, 0)`, sampleHash); err != nil {
		t.Fatalf("insert file: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO links (name, target, mtime_ns, owner, grp, skip_if_file_or_dir) VALUES ('a/b/link', 'c.txt', 0, 0, 0, 0)`); err != nil {
		t.Fatalf("insert link: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO deletions (name, directory, file, link) VALUES ('a/old', 0, 1, 0)`); err != nil {
		t.Fatalf("insert deletion: %v", err)
	}
	db.Close()

	cs, err := ReadAll([]string{dbPath}, "", "")
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}

	if _, ok := cs.AllDirs["a/b"]; !ok {
		t.Errorf("expected dir a/b to be present, got %v", cs.AllDirs)
	}
	if files := cs.AllFiles["a/b"]; len(files) != 1 || files[0].Name != "a/b/c.txt" {
		t.Errorf("unexpected files for a/b: %+v", files)
	}
	if links := cs.AllSymlinks["a/b"]; len(links) != 1 || links[0].Name != "a/b/link" {
		t.Errorf("unexpected links for a/b: %+v", links)
	}
	if len(cs.Deletions) != 1 || cs.Deletions[0].Kind != DeleteFile {
		t.Errorf("unexpected deletions: %+v", cs.Deletions)
	}
}

func TestReadAll_SchemaRevisionGatesColumns(t *testing.T) {
	db, dbPath := newTestGraftDB(t, 2)
	// Revision 2: no nested column on dirs, no compressed column on files.
	if _, err := db.Exec(`DROP TABLE dirs`); err != nil {
		t.Fatalf("drop dirs: %v", err)
	}
	if _, err := db.Exec(`CREATE TABLE dirs (name TEXT PRIMARY KEY, mode INTEGER, mtime_ns INTEGER, owner INTEGER, grp INTEGER, acl_text TEXT)`); err != nil {
		t.Fatalf("recreate dirs: %v", err)
	}
	if _, err := db.Exec(`DROP TABLE files`); err != nil {
		t.Fatalf("drop files: %v", err)
	}
	if _, err := db.Exec(`CREATE TABLE files (name TEXT PRIMARY KEY, mode INTEGER, mtime_ns INTEGER, owner INTEGER, grp INTEGER, size INTEGER, hashes_csv TEXT, internal INTEGER)`); err != nil {
		t.Fatalf("recreate files: %v", err)
	}

	if _, err := db.Exec(`INSERT INTO dirs (name, mode, mtime_ns, owner, grp, acl_text) VALUES ('x', 0755, 0, 0, 0, '')`); err != nil {
		t.Fatalf("insert dir: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO files (name, mode, mtime_ns, owner, grp, size, hashes_csv, internal) VALUES ('x/f', 0644, 0, 0, 0, 0, ?, 0)`, sampleHash); err != nil {
		t.Fatalf("insert file: %v", err)
	}
	db.Close()

	cs, err := ReadAll([]string{dbPath}, "", "")
	if err != nil {
		t.Fatalf("ReadAll failed on revision-2 schema: %v", err)
	}
	if d, ok := cs.AllDirs["x"]; !ok || !d.Nested {
		t.Errorf("expected nested to default true for revision <= 3 (missing column), got %+v", d)
	}
	if files := cs.AllFiles["x"]; len(files) != 1 || files[0].Compressed != CompressionDefault {
		t.Errorf("expected compressed to default to 0 for revision <= 2, got %+v", files)
	}
}

func TestReadAll_LeaseBoundaryRejectsOutsidePath(t *testing.T) {
	_, dbPath := newTestGraftDB(t, 4)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO dirs (name, mode, mtime_ns, owner, grp, acl_text, nested) VALUES ('outside/dir', 0755, 0, 0, 0, '', 0)`); err != nil {
		t.Fatalf("insert dir: %v", err)
	}
	db.Close()

	if _, err := ReadAll([]string{dbPath}, "", "inside"); err == nil {
		t.Fatal("expected lease-boundary rejection")
	}
}

func TestReadAll_MissingSchemaRevisionRejected(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "bad.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := db.Exec(`CREATE TABLE properties (key TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
		t.Fatalf("create properties: %v", err)
	}
	for _, stmt := range []string{
		`CREATE TABLE dirs (name TEXT PRIMARY KEY, mode INTEGER, mtime_ns INTEGER, owner INTEGER, grp INTEGER, acl_text TEXT, nested INTEGER)`,
		`CREATE TABLE files (name TEXT PRIMARY KEY, mode INTEGER, mtime_ns INTEGER, owner INTEGER, grp INTEGER, size INTEGER, hashes_csv TEXT, internal INTEGER, compressed INTEGER)`,
		`CREATE TABLE links (name TEXT PRIMARY KEY, target TEXT, mtime_ns INTEGER, owner INTEGER, grp INTEGER, skip_if_file_or_dir INTEGER)`,
		`CREATE TABLE deletions (name TEXT PRIMARY KEY, directory INTEGER, file INTEGER, link INTEGER)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	db.Close()

	if _, err := ReadAll([]string{dbPath}, "", ""); err == nil {
		t.Fatal("expected error for missing schema_revision")
	}
}
