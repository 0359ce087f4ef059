package commands

import (
	"testing"

	"github.com/cvmfs-go/graft/pkg/graftdb"
)

func TestCommonPrefix(t *testing.T) {
	cases := []struct {
		name  string
		paths []string
		want  string
	}{
		{"empty", nil, ""},
		{"single", []string{"a/b/c"}, "a/b/c"},
		{"shared parent", []string{"a/b/c", "a/b/d"}, "a/b"},
		{"no overlap", []string{"a/b", "c/d"}, ""},
		{"one is prefix of other", []string{"a/b", "a/b/c"}, "a/b"},
		{"three way", []string{"a/b/c", "a/b/d", "a/b/e/f"}, "a/b"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := commonPrefix(tc.paths); got != tc.want {
				t.Errorf("commonPrefix(%v) = %q, want %q", tc.paths, got, tc.want)
			}
		})
	}
}

func TestAffectedPaths_CollectsAllSources(t *testing.T) {
	cs := &graftdb.Changeset{
		AllDirs: map[string]graftdb.Dir{
			"a/b": {},
		},
		AllFiles: map[string][]graftdb.File{
			"a/b/c": {{Name: "a/b/c/f1"}},
		},
		AllSymlinks: map[string][]graftdb.Symlink{
			"a/b/d": {{Name: "a/b/d/link"}},
		},
		Deletions: []graftdb.Deletion{
			{Name: "a/b/gone"},
		},
	}

	got := affectedPaths(cs)
	want := map[string]bool{"a/b": true, "a/b/c": true, "a/b/d": true, "a/b/gone": true}
	if len(got) != len(want) {
		t.Fatalf("affectedPaths returned %v, want members of %v", got, want)
	}
	for _, p := range got {
		if !want[p] {
			t.Errorf("unexpected path %q", p)
		}
	}
}

func TestAffectedPaths_Empty(t *testing.T) {
	cs := &graftdb.Changeset{
		AllDirs:     map[string]graftdb.Dir{},
		AllFiles:    map[string][]graftdb.File{},
		AllSymlinks: map[string][]graftdb.Symlink{},
	}
	if got := affectedPaths(cs); len(got) != 0 {
		t.Errorf("expected no affected paths, got %v", got)
	}
}
