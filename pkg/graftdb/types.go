// Package graftdb reads the SQLite "graft" databases a publisher supplies
// to describe one changeset: directories, files with precomputed
// chunk-hash lists, symlinks, and deletion intents. ReadAll opens every
// graft DB read-only; the only writers are CreateEmpty, which creates an
// empty graft DB, and MarkCompletedGraft, which records the completed_graft
// property.
package graftdb

// Compression identifies the compression algorithm a file's chunks use on
// the content store.
type Compression int

const (
	CompressionDefault Compression = iota
	CompressionNone
	CompressionZlib
)

// Dir is one row of the dirs table, decoded into the in-memory changeset
// model.
type Dir struct {
	Name    string
	Mode    uint32
	MtimeNs int64
	Owner   uint32
	Group   uint32
	ACLText string
	Nested  bool
}

// Chunk is one content-addressed slice of a file.
type Chunk struct {
	Hash   string
	Offset int64
	Len    int64
}

// File is one row of the files table, decoded into the in-memory
// changeset model, with its hash list expanded into concrete chunks.
type File struct {
	Name       string
	MtimeNs    int64
	Size       int64
	Owner      uint32
	Group      uint32
	Mode       uint32
	Internal   bool
	Compressed Compression
	Chunks     []Chunk
}

// Symlink is one row of the links table.
type Symlink struct {
	Name            string
	Target          string
	MtimeNs         int64
	Owner           uint32
	Group           uint32
	SkipIfFileOrDir bool
}

// DeletionKind identifies which of the three deletion-intent columns a
// deletions row carries.
type DeletionKind int

const (
	DeleteDirectory DeletionKind = iota
	DeleteFile
	DeleteLink
)

// Deletion is one row of the deletions table.
type Deletion struct {
	Name string
	Kind DeletionKind
}

// Changeset is the decoded content of one or more graft DBs, keyed by
// parent directory for dirs/files/symlinks.
type Changeset struct {
	AllDirs     map[string]Dir
	AllFiles    map[string][]File
	AllSymlinks map[string][]Symlink
	Deletions   []Deletion
}

func newChangeset() *Changeset {
	return &Changeset{
		AllDirs:     make(map[string]Dir),
		AllFiles:    make(map[string][]File),
		AllSymlinks: make(map[string][]Symlink),
	}
}
