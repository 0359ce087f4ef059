package commands

import (
	"os"
	"path/filepath"
	"sort"

	graftsql "github.com/cvmfs-go/graft/internal/graftsql/errors"
)

// resolveDBPaths expands -D into a concrete, sorted list of graft DB
// files: dbPath itself if it names a file, or every *.db file directly
// inside it if it names a directory.
func resolveDBPaths(dbPath string) ([]string, error) {
	if dbPath == "" {
		return nil, nil
	}

	info, err := os.Stat(dbPath)
	if err != nil {
		return nil, graftsql.Wrap(graftsql.StorageError, err, "failed to stat -D path").WithPath(dbPath)
	}

	if !info.IsDir() {
		return []string{dbPath}, nil
	}

	matches, err := filepath.Glob(filepath.Join(dbPath, "*.db"))
	if err != nil {
		return nil, graftsql.Wrap(graftsql.InputInvalid, err, "failed to scan -D directory").WithPath(dbPath)
	}
	sort.Strings(matches)
	return matches, nil
}
