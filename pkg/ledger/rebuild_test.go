package ledger

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeCacheBlob(t testing.TB, cacheDir, sha1 string, size int, atime, mtime time.Time) {
	t.Helper()
	subDir := filepath.Join(cacheDir, sha1[:2])
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatalf("failed to create cache subdir: %v", err)
	}
	path := filepath.Join(subDir, sha1[2:])
	if err := os.WriteFile(path, make([]byte, size), 0644); err != nil {
		t.Fatalf("failed to write blob: %v", err)
	}
	if err := os.Chtimes(path, atime, mtime); err != nil {
		t.Fatalf("failed to set blob times: %v", err)
	}
}

func TestRebuild_OrdersByAccessTimeNotModTime(t *testing.T) {
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")

	oldSha1 := "aa1111111111111111111111111111111111aa"
	newSha1 := "bb2222222222222222222222222222222222bb"

	now := time.Now()
	// Deliberately invert mtime relative to atime: if Rebuild sorted by
	// mtime it would pick the wrong order.
	writeCacheBlob(t, cacheDir, oldSha1, 10, now.Add(-2*time.Hour), now)
	writeCacheBlob(t, cacheDir, newSha1, 20, now.Add(-1*time.Hour), now.Add(-3*time.Hour))

	l := newTestLedger(t, 0, 0)

	if err := Rebuild(l.db, cacheDir); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	rows, err := l.db.Query(`SELECT sha1 FROM cache_catalog ORDER BY acseq ASC`)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	defer rows.Close()

	var order []string
	for rows.Next() {
		var sha1 string
		if err := rows.Scan(&sha1); err != nil {
			t.Fatalf("scan failed: %v", err)
		}
		order = append(order, sha1)
	}

	if len(order) != 2 || order[0] != oldSha1 || order[1] != newSha1 {
		t.Fatalf("got order %v, want [%s, %s] (by access time, oldest first)", order, oldSha1, newSha1)
	}
}

func TestRebuild_MarksCatalogFilesFromChecksumSidecar(t *testing.T) {
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")

	catalogSha1 := "cc3333333333333333333333333333333333cc"
	now := time.Now()
	writeCacheBlob(t, cacheDir, catalogSha1, 5, now, now)

	sidecarPath := filepath.Join(cacheDir, catalogSha1[:2], checksumSidecar)
	if err := os.WriteFile(sidecarPath, []byte(catalogSha1[2:]+"\n"), 0644); err != nil {
		t.Fatalf("failed to write checksum sidecar: %v", err)
	}

	l := newTestLedger(t, 0, 0)
	if err := Rebuild(l.db, cacheDir); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	var kind, pinned int
	row := l.db.QueryRow(`SELECT type, pinned FROM cache_catalog WHERE sha1 = ?`, catalogSha1)
	if err := row.Scan(&kind, &pinned); err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if Kind(kind) != KindCatalog || pinned != 1 {
		t.Errorf("got (kind=%d, pinned=%d), want (KindCatalog, pinned=1)", kind, pinned)
	}
}

func TestOpen_RebuildsWhenCacheCatalogEmpty(t *testing.T) {
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")

	sha1 := "dd4444444444444444444444444444444444dd"
	now := time.Now()
	writeCacheBlob(t, cacheDir, sha1, 7, now, now)

	l, err := Open(Config{
		DBPath:   filepath.Join(dir, "cache_catalog.db"),
		CacheDir: cacheDir,
	}, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer l.Close()

	var count int
	row := l.db.QueryRow(`SELECT COUNT(*) FROM cache_catalog WHERE sha1 = ?`, sha1)
	if err := row.Scan(&count); err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected pre-existing blob to be picked up by rebuild-on-open, got count=%d", count)
	}
}
