package manifest

import (
	"path/filepath"
	"testing"
)

func TestWriteFileThenLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".cvmfspublished")

	m := &Manifest{CatalogHash: "aa", RootPathMD5: "bb", TTL: 1, Revision: 2, RepositoryName: "repo"}
	if err := WriteFile(path, m); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if loaded.CatalogHash != "aa" || loaded.Revision != 2 || loaded.RepositoryName != "repo" {
		t.Errorf("loaded = %+v", loaded)
	}

	entries, err := filepath.Glob(filepath.Join(dir, "*.tmp-*"))
	if err != nil {
		t.Fatalf("Glob failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no leftover temp files, found %v", entries)
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	if _, err := LoadFile("/nonexistent/path/.cvmfspublished"); err == nil {
		t.Error("expected error loading a nonexistent manifest file")
	}
}
