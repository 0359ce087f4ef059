package commands

import (
	"strings"

	"github.com/cvmfs-go/graft/pkg/graftdb"
)

// commonPrefix computes the lease path auto-detected from the set of
// affected paths: the longest prefix that is an ancestor of every one of
// them, truncated at a '/' boundary. paths are expected already sanitised
// (no leading slash, no trailing slash).
//
// An empty paths slice yields an empty lease path (caller treats this as
// "nothing to do, no lease needed").
func commonPrefix(paths []string) string {
	if len(paths) == 0 {
		return ""
	}

	segments := strings.Split(paths[0], "/")
	for _, p := range paths[1:] {
		segments = commonSegments(segments, strings.Split(p, "/"))
		if len(segments) == 0 {
			return ""
		}
	}

	return strings.Join(segments, "/")
}

func commonSegments(a, b []string) []string {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return a[:i]
}

// affectedPaths collects every path name a changeset touches, for lease
// auto-detection purposes: every directory, every parent directory of a
// file or symlink, and every deletion target.
func affectedPaths(cs *graftdb.Changeset) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		out = append(out, p)
	}

	for d := range cs.AllDirs {
		add(d)
	}
	for parent := range cs.AllFiles {
		add(parent)
	}
	for parent := range cs.AllSymlinks {
		add(parent)
	}
	for _, del := range cs.Deletions {
		add(del.Name)
	}

	return out
}
