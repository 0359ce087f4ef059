// Package planner applies a decoded graft changeset to a writable catalog.
// It is pure Go tree/DFS logic: it never touches SQLite or HTTP directly,
// instead driving an external CatalogManager collaborator (implemented in
// production by the catalog-upload package and, in tests, by an in-memory
// fake) through additions and deletions in an order that preserves catalog
// invariants.
package planner

import (
	"context"

	"github.com/cvmfs-go/graft/pkg/graftdb"
)

// EntryKind identifies what occupies a catalog path, if anything.
type EntryKind int

const (
	KindNone EntryKind = iota
	KindDirectory
	KindFile
	KindSymlink
)

func (k EntryKind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindFile:
		return "file"
	case KindSymlink:
		return "symlink"
	default:
		return "none"
	}
}

// DirEntry is the catalog-side view of one path: what the CatalogManager
// reports back from a lookup or listing, and what the planner hands it on
// add/touch.
type DirEntry struct {
	Name                      string
	Kind                      EntryKind
	Mode                      uint32
	MtimeNs                   int64
	Owner                     uint32
	Group                     uint32
	Size                      int64
	ACLXattr                  []byte
	IsNestedCatalogMountpoint bool
}

// EmptyFileHash is the SHA-1 of the empty string, the fixed hash used for
// the zero-length .cvmfscatalog marker placed at a new nested-catalog
// mountpoint.
const EmptyFileHash = "da39a3ee5e6b4b0d3255bfef95601890afd80709"

// CatalogMarkerName is the sentinel file that pins a nested catalog
// mountpoint against manual removal.
const CatalogMarkerName = ".cvmfscatalog"

// CatalogManager is the writable catalog the planner mutates. It is an
// external collaborator: production wires it to the catalog-upload
// pipeline, tests wire it to an in-memory fake.
type CatalogManager interface {
	// Lookup resolves path to its current catalog entry. ok is false if
	// nothing exists there.
	Lookup(ctx context.Context, path string) (entry DirEntry, ok bool, err error)

	// ListDirectory returns the immediate children of a directory path.
	ListDirectory(ctx context.Context, path string) ([]DirEntry, error)

	// AddDirectory creates a new directory entry under parent.
	AddDirectory(ctx context.Context, parent string, entry DirEntry) error

	// TouchDirectory refreshes metadata and xattrs on an existing directory.
	TouchDirectory(ctx context.Context, path string, entry DirEntry) error

	// AddFile creates a small, non-chunked file under parent (used for the
	// .cvmfscatalog marker).
	AddFile(ctx context.Context, parent string, entry DirEntry, hash string) error

	// AddChunkedFile creates a content-addressed, chunked file under parent.
	AddChunkedFile(ctx context.Context, parent string, entry DirEntry, chunks []graftdb.Chunk, compression graftdb.Compression) error

	// AddSymlink creates a symlink under parent.
	AddSymlink(ctx context.Context, parent string, entry DirEntry, target string) error

	// RemoveFile removes a file, symlink, or marker at path.
	RemoveFile(ctx context.Context, path string) error

	// RemoveDirectory removes an empty directory entry at path.
	RemoveDirectory(ctx context.Context, path string) error

	// CreateNestedCatalog turns the directory at path into a nested
	// catalog mountpoint.
	CreateNestedCatalog(ctx context.Context, path string) error

	// RemoveNestedCatalog detaches and deletes the nested catalog rooted
	// at path, along with its entire subtree.
	RemoveNestedCatalog(ctx context.Context, path string) error

	// SnapshotCatalog flushes and uploads the catalog owning path. Called
	// in post-order whenever path is a nested-catalog mountpoint.
	SnapshotCatalog(ctx context.Context, path string) error
}

// ApplyOptions configures one Apply call.
type ApplyOptions struct {
	AllowDeletions   bool
	AllowAdditions   bool
	AddMissingNested bool
	LeasePath        string
}
