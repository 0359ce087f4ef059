package planner

import (
	"context"
	"sync"

	"github.com/cvmfs-go/graft/pkg/graftdb"
)

// fakeCatalogManager is an in-memory CatalogManager used only by this
// package's tests, mirroring the production catalog's observable behavior
// closely enough to exercise the planner's tree walk and invariant checks
// without a real catalog-upload pipeline.
type fakeCatalogManager struct {
	mu       sync.Mutex
	entries  map[string]DirEntry
	children map[string][]string

	files       map[string]chunkedFile
	symlinks    map[string]string
	markers     map[string]string
	snapshotted []string
}

type chunkedFile struct {
	entry       DirEntry
	chunks      []graftdb.Chunk
	compression graftdb.Compression
}

func newFakeCatalogManager() *fakeCatalogManager {
	return &fakeCatalogManager{
		entries:  make(map[string]DirEntry),
		children: make(map[string][]string),
		files:    make(map[string]chunkedFile),
		symlinks: make(map[string]string),
		markers:  make(map[string]string),
	}
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

func (f *fakeCatalogManager) addChild(parent, name string) {
	for _, c := range f.children[parent] {
		if c == name {
			return
		}
	}
	f.children[parent] = append(f.children[parent], name)
}

func (f *fakeCatalogManager) removeChild(parent, name string) {
	kids := f.children[parent]
	for i, c := range kids {
		if c == name {
			f.children[parent] = append(kids[:i], kids[i+1:]...)
			return
		}
	}
}

func (f *fakeCatalogManager) Lookup(_ context.Context, path string) (DirEntry, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if path == "" {
		return DirEntry{Kind: KindDirectory}, true, nil
	}
	e, ok := f.entries[path]
	return e, ok, nil
}

func (f *fakeCatalogManager) ListDirectory(_ context.Context, path string) ([]DirEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []DirEntry
	for _, name := range f.children[path] {
		out = append(out, f.entries[joinPath(path, name)])
	}
	return out, nil
}

func (f *fakeCatalogManager) AddDirectory(_ context.Context, parent string, entry DirEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	full := joinPath(parent, entry.Name)
	f.entries[full] = entry
	f.addChild(parent, entry.Name)
	return nil
}

func (f *fakeCatalogManager) TouchDirectory(_ context.Context, path string, entry DirEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing := f.entries[path]
	entry.IsNestedCatalogMountpoint = existing.IsNestedCatalogMountpoint
	f.entries[path] = entry
	return nil
}

func (f *fakeCatalogManager) AddFile(_ context.Context, parent string, entry DirEntry, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	full := joinPath(parent, entry.Name)
	f.entries[full] = entry
	f.addChild(parent, entry.Name)
	f.markers[full] = hash
	return nil
}

func (f *fakeCatalogManager) AddChunkedFile(_ context.Context, parent string, entry DirEntry, chunks []graftdb.Chunk, compression graftdb.Compression) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	full := joinPath(parent, entry.Name)
	f.entries[full] = entry
	f.addChild(parent, entry.Name)
	f.files[full] = chunkedFile{entry: entry, chunks: chunks, compression: compression}
	return nil
}

func (f *fakeCatalogManager) AddSymlink(_ context.Context, parent string, entry DirEntry, target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	full := joinPath(parent, entry.Name)
	f.entries[full] = entry
	f.addChild(parent, entry.Name)
	f.symlinks[full] = target
	return nil
}

func (f *fakeCatalogManager) RemoveFile(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, path)
	delete(f.files, path)
	delete(f.symlinks, path)
	delete(f.markers, path)
	parent := parentOf(path)
	name := path
	if parent != "" {
		name = path[len(parent)+1:]
	}
	f.removeChild(parent, name)
	return nil
}

func (f *fakeCatalogManager) RemoveDirectory(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, path)
	delete(f.children, path)
	return nil
}

func (f *fakeCatalogManager) CreateNestedCatalog(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.entries[path]
	e.IsNestedCatalogMountpoint = true
	f.entries[path] = e
	return nil
}

func (f *fakeCatalogManager) RemoveNestedCatalog(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := path + "/"
	for p := range f.entries {
		if len(p) > len(prefix) && p[:len(prefix)] == prefix {
			delete(f.entries, p)
		}
	}
	delete(f.children, path)
	return nil
}

func (f *fakeCatalogManager) SnapshotCatalog(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshotted = append(f.snapshotted, path)
	return nil
}
