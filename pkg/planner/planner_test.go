package planner

import (
	"context"
	"testing"

	"github.com/cvmfs-go/graft/pkg/graftdb"
)

func TestPrintFrequency(t *testing.T) {
	tests := []struct {
		total int
		want  int
	}{
		{0, 1},
		{49, 1},
		{50, 1},
		{51, 10},
		{500, 10},
		{501, 100},
	}
	for _, tt := range tests {
		if got := printFrequency(tt.total); got != tt.want {
			t.Errorf("printFrequency(%d) = %d, want %d", tt.total, got, tt.want)
		}
	}
}

func TestResolveCompression(t *testing.T) {
	if got := resolveCompression(graftdb.CompressionDefault, true); got != graftdb.CompressionZlib {
		t.Errorf("default+internal = %v, want Zlib", got)
	}
	if got := resolveCompression(graftdb.CompressionDefault, false); got != graftdb.CompressionNone {
		t.Errorf("default+external = %v, want None", got)
	}
	if got := resolveCompression(graftdb.CompressionNone, true); got != graftdb.CompressionNone {
		t.Errorf("explicit None should pass through, got %v", got)
	}
}

// TestApply_NestedCatalogMountpoint implements scenario S5: a DB with dirs
// {a, a/b} where a/b.nested=1, and a file a/b/f. After apply, a/b must be a
// nested-catalog mountpoint containing the .cvmfscatalog marker and f.
func TestApply_NestedCatalogMountpoint(t *testing.T) {
	cs := &graftdb.Changeset{
		AllDirs: map[string]graftdb.Dir{
			"a":   {Name: "a", Mode: 0755},
			"a/b": {Name: "a/b", Mode: 0755, Nested: true},
		},
		AllFiles: map[string][]graftdb.File{
			"a/b": {{Name: "a/b/f", Size: 0, Chunks: []graftdb.Chunk{{Hash: emptyHashForTest, Offset: 0, Len: 0}}}},
		},
	}

	cat := newFakeCatalogManager()
	p := New(cat, nil)

	if err := p.Apply(context.Background(), cs, ApplyOptions{AllowAdditions: true}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	entry, ok := cat.entries["a/b"]
	if !ok || !entry.IsNestedCatalogMountpoint {
		t.Fatalf("expected a/b to be a nested catalog mountpoint, got %+v (ok=%v)", entry, ok)
	}
	if _, ok := cat.markers["a/b/.cvmfscatalog"]; !ok {
		t.Errorf("expected .cvmfscatalog marker under a/b")
	}
	if _, ok := cat.files["a/b/f"]; !ok {
		t.Errorf("expected file a/b/f to be added")
	}
	found := false
	for _, s := range cat.snapshotted {
		if s == "a/b" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a/b to be snapshotted as a mountpoint, snapshotted=%v", cat.snapshotted)
	}
}

// TestApply_DeletionTypeMismatchSkipped implements scenario S6: a deletions
// row declares file=1 for a path that is actually a directory in the
// catalog. The planner must skip it and leave the directory alone.
func TestApply_DeletionTypeMismatchSkipped(t *testing.T) {
	cat := newFakeCatalogManager()
	cat.entries["a"] = DirEntry{Name: "a", Kind: KindDirectory}
	cat.children[""] = []string{"a"}

	cs := &graftdb.Changeset{
		Deletions: []graftdb.Deletion{{Name: "a", Kind: graftdb.DeleteFile}},
	}

	p := New(cat, nil)
	if err := p.Apply(context.Background(), cs, ApplyOptions{AllowDeletions: true}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if _, ok := cat.entries["a"]; !ok {
		t.Error("expected directory a to remain after type-mismatched deletion")
	}
}

func TestApply_DeletionRemovesMatchingFile(t *testing.T) {
	cat := newFakeCatalogManager()
	cat.entries["a"] = DirEntry{Name: "a", Kind: KindFile}
	cat.children[""] = []string{"a"}

	cs := &graftdb.Changeset{
		Deletions: []graftdb.Deletion{{Name: "a", Kind: graftdb.DeleteFile}},
	}

	p := New(cat, nil)
	if err := p.Apply(context.Background(), cs, ApplyOptions{AllowDeletions: true}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if _, ok := cat.entries["a"]; ok {
		t.Error("expected file a to be removed")
	}
}

func TestApply_DeletionNonExistentIsNoop(t *testing.T) {
	cat := newFakeCatalogManager()
	cs := &graftdb.Changeset{
		Deletions: []graftdb.Deletion{{Name: "missing", Kind: graftdb.DeleteFile}},
	}

	p := New(cat, nil)
	if err := p.Apply(context.Background(), cs, ApplyOptions{AllowDeletions: true}); err != nil {
		t.Fatalf("Apply on non-existent deletion target should be a no-op, got error: %v", err)
	}
}

func TestApply_RecursiveDirectoryDeletion(t *testing.T) {
	cat := newFakeCatalogManager()
	cat.entries["a"] = DirEntry{Name: "a", Kind: KindDirectory}
	cat.entries["a/b"] = DirEntry{Name: "b", Kind: KindFile}
	cat.children["a"] = []string{"b"}
	cat.children[""] = []string{"a"}

	cs := &graftdb.Changeset{
		Deletions: []graftdb.Deletion{{Name: "a", Kind: graftdb.DeleteDirectory}},
	}

	p := New(cat, nil)
	if err := p.Apply(context.Background(), cs, ApplyOptions{AllowDeletions: true}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if _, ok := cat.entries["a"]; ok {
		t.Error("expected directory a to be removed")
	}
	if _, ok := cat.entries["a/b"]; ok {
		t.Error("expected child a/b to be removed along with its parent")
	}
}

// TestPathTree_MultipleRootsDetected exercises the multi-root detection
// that guards against malformed changesets (every path reaching the
// planner should, in practice, already share a single lease-path ancestor;
// this is the defensive check for callers that bypass that guarantee).
func TestPathTree_MultipleRootsDetected(t *testing.T) {
	tree := pathTree{
		"a":   {"a/x": true},
		"a/x": {},
		"b":   {"b/y": true},
		"b/y": {},
	}
	roots := tree.roots()
	if len(roots) != 2 {
		t.Fatalf("expected 2 disjoint roots, got %v", roots)
	}
}

const emptyHashForTest = "da39a3ee5e6b4b0d3255bfef95601890afd80709"
