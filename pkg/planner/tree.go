package planner

import (
	"sort"
	"strings"

	"github.com/cvmfs-go/graft/pkg/graftdb"
)

func parentOf(p string) string {
	idx := strings.LastIndexByte(p, '/')
	if idx < 0 {
		return ""
	}
	return p[:idx]
}

// pathTree is an ancestor-closed adjacency map: every directory that must
// be visited, including implicit ancestors of file/symlink parents that
// carry no explicit dirs row, mapped to its direct children.
type pathTree map[string]map[string]bool

func (t pathTree) ensure(path string) {
	if _, ok := t[path]; !ok {
		t[path] = make(map[string]bool)
	}
}

func (t pathTree) addPath(path, leasePath string) {
	t.ensure(path)
	child := path
	parent := parentOf(path)
	for child != parent && child != leasePath {
		t.ensure(parent)
		if t[parent][child] {
			break
		}
		t[parent][child] = true
		child = parent
		parent = parentOf(parent)
	}
}

// buildTree spans every directory referenced directly or as an ancestor of
// a file or symlink in the changeset.
func buildTree(cs *graftdb.Changeset, leasePath string) pathTree {
	tree := make(pathTree)
	for p := range cs.AllDirs {
		tree.addPath(p, leasePath)
	}
	for p := range cs.AllFiles {
		tree.addPath(p, leasePath)
	}
	for p := range cs.AllSymlinks {
		tree.addPath(p, leasePath)
	}
	return tree
}

// roots returns every node in the tree whose parent is absent from it —
// the tree's entry points for a depth-first walk. A well-formed changeset
// produces exactly one.
func (t pathTree) roots() []string {
	var out []string
	for p := range t {
		if p == "" {
			out = append(out, p)
			continue
		}
		if _, ok := t[parentOf(p)]; !ok {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func (t pathTree) sortedChildren(path string) []string {
	children := t[path]
	out := make([]string, 0, len(children))
	for c := range children {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
