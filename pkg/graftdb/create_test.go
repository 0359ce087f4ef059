package graftdb

import (
	"path/filepath"
	"testing"
)

func TestCreateEmpty_ProducesReadableSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	if err := CreateEmpty(path); err != nil {
		t.Fatalf("CreateEmpty failed: %v", err)
	}

	cs, err := ReadAll([]string{path}, "", "")
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(cs.AllDirs) != 0 || len(cs.AllFiles) != 0 || len(cs.AllSymlinks) != 0 || len(cs.Deletions) != 0 {
		t.Error("expected empty changeset from freshly created graft db")
	}
}

func TestCreateEmpty_IsReentrant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	if err := CreateEmpty(path); err != nil {
		t.Fatalf("first CreateEmpty failed: %v", err)
	}
	if err := CreateEmpty(path); err != nil {
		t.Fatalf("second CreateEmpty failed: %v", err)
	}
}

func TestMarkCompletedGraft_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	if err := CreateEmpty(path); err != nil {
		t.Fatalf("CreateEmpty failed: %v", err)
	}

	done, err := IsCompletedGraft(path)
	if err != nil {
		t.Fatalf("IsCompletedGraft failed: %v", err)
	}
	if done {
		t.Fatal("expected fresh graft db to not be marked completed")
	}

	if err := MarkCompletedGraft(path, true); err != nil {
		t.Fatalf("MarkCompletedGraft(true) failed: %v", err)
	}
	done, err = IsCompletedGraft(path)
	if err != nil {
		t.Fatalf("IsCompletedGraft failed: %v", err)
	}
	if !done {
		t.Fatal("expected graft db to be marked completed")
	}

	if err := MarkCompletedGraft(path, false); err != nil {
		t.Fatalf("MarkCompletedGraft(false) failed: %v", err)
	}
	done, err = IsCompletedGraft(path)
	if err != nil {
		t.Fatalf("IsCompletedGraft failed: %v", err)
	}
	if done {
		t.Fatal("expected completed_graft flag to be cleared")
	}
}
