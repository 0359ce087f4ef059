package manifest

import (
	"os"
	"path/filepath"

	graftsqlerrors "github.com/cvmfs-go/graft/internal/graftsql/errors"
)

// LoadFile reads and parses a .cvmfspublished file from disk.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, graftsqlerrors.Wrap(graftsqlerrors.StorageError, err, "failed to read manifest file").WithPath(path)
	}
	m, err := Parse(data)
	if err != nil {
		if ge, ok := err.(*graftsqlerrors.Error); ok {
			return nil, ge.WithPath(path)
		}
		return nil, err
	}
	return m, nil
}

// WriteFile encodes the manifest and writes it to path, replacing any
// existing file atomically: the content is written to a sibling temp file
// first, then renamed into place, so a reader never observes a partially
// written manifest.
func WriteFile(path string, m *Manifest) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return graftsqlerrors.Wrap(graftsqlerrors.StorageError, err, "failed to create temp manifest file").WithPath(path)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(m.Encode()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return graftsqlerrors.Wrap(graftsqlerrors.StorageError, err, "failed to write manifest file").WithPath(path)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return graftsqlerrors.Wrap(graftsqlerrors.StorageError, err, "failed to close manifest file").WithPath(path)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return graftsqlerrors.Wrap(graftsqlerrors.StorageError, err, "failed to rename manifest file into place").WithPath(path)
	}

	return nil
}
