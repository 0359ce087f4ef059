package ledger

import (
	"bufio"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	graftsql "github.com/cvmfs-go/graft/internal/graftsql/errors"
)

// checksumSidecar is the name of the file, within each two-hex-char cache
// subdirectory, that lists the hashes of pinned catalog blobs stored
// there.
const checksumSidecar = "cvmfs.checksum"

// Rebuild repopulates cache_catalog by scanning the cache directory. It is
// used when the persisted table is empty or a rebuild is explicitly
// requested (e.g. after detecting corruption). Entries are staged into the
// fscache scratch table keyed by hash and last-access time, then transferred
// into cache_catalog in ascending-access-time order, assigning monotonically
// increasing acseq values as they go (oldest access first).
func Rebuild(db *sql.DB, cacheDir string) error {
	if err := createFscacheTable(db); err != nil {
		return graftsql.Wrap(graftsql.StorageError, err, "failed to create rebuild scratch table")
	}
	defer dropFscacheTable(db)

	catalogHashes, err := scanChecksumSidecars(cacheDir)
	if err != nil {
		return err
	}

	entries, err := scanCacheDir(cacheDir)
	if err != nil {
		return err
	}

	paths := make(map[string]string, len(entries))

	tx, err := db.Begin()
	if err != nil {
		return graftsql.Wrap(graftsql.StorageError, err, "failed to begin rebuild transaction")
	}

	if _, err := tx.Exec(`DELETE FROM cache_catalog`); err != nil {
		tx.Rollback()
		return graftsql.Wrap(graftsql.StorageError, err, "failed to clear cache_catalog before rebuild")
	}
	if _, err := tx.Exec(`DELETE FROM fscache`); err != nil {
		tx.Rollback()
		return graftsql.Wrap(graftsql.StorageError, err, "failed to clear rebuild scratch table")
	}

	for _, e := range entries {
		paths[e.sha1] = e.path
		if _, err := tx.Exec(`
			INSERT INTO fscache (sha1, size, actime)
			VALUES (?, ?, ?)
			ON CONFLICT(sha1) DO UPDATE SET size = excluded.size, actime = excluded.actime
		`, e.sha1, e.size, e.accessTime.UnixNano()); err != nil {
			tx.Rollback()
			return graftsql.Wrap(graftsql.StorageError, err, "failed to stage rebuild row")
		}
	}

	rows, err := tx.Query(`SELECT sha1, size FROM fscache ORDER BY actime ASC`)
	if err != nil {
		tx.Rollback()
		return graftsql.Wrap(graftsql.StorageError, err, "failed to read staged rebuild rows")
	}

	type staged struct {
		sha1 string
		size uint64
	}
	var ordered []staged
	for rows.Next() {
		var s staged
		if err := rows.Scan(&s.sha1, &s.size); err != nil {
			rows.Close()
			tx.Rollback()
			return graftsql.Wrap(graftsql.StorageError, err, "failed to scan staged rebuild row")
		}
		ordered = append(ordered, s)
	}
	rowErr := rows.Err()
	rows.Close()
	if rowErr != nil {
		tx.Rollback()
		return graftsql.Wrap(graftsql.StorageError, rowErr, "failed to read staged rebuild rows")
	}

	var acseq uint64
	for _, s := range ordered {
		acseq++
		kind := KindRegular
		pinned := 0
		if catalogHashes[s.sha1] {
			kind = KindCatalog
			pinned = 1
		}
		if _, err := tx.Exec(`
			INSERT INTO cache_catalog (sha1, size, acseq, path, type, pinned)
			VALUES (?, ?, ?, ?, ?, ?)
		`, s.sha1, s.size, acseq, paths[s.sha1], int(kind), pinned); err != nil {
			tx.Rollback()
			return graftsql.Wrap(graftsql.StorageError, err, "failed to transfer rebuilt row into cache_catalog")
		}
	}

	if err := tx.Commit(); err != nil {
		return graftsql.Wrap(graftsql.StorageError, err, "failed to commit rebuild transaction")
	}

	return nil
}

type rebuildEntry struct {
	sha1       string
	size       uint64
	path       string
	accessTime time.Time
}

// scanCacheDir walks the 256 two-hex-char subdirectories of cacheDir and
// collects every blob file found, keyed by its reconstructed sha1 (the
// subdirectory name prepended to the file name).
func scanCacheDir(cacheDir string) ([]rebuildEntry, error) {
	var entries []rebuildEntry

	topLevel, err := os.ReadDir(cacheDir)
	if err != nil {
		return nil, graftsql.Wrap(graftsql.StorageError, err, "failed to read cache directory")
	}

	for _, sub := range topLevel {
		if !sub.IsDir() || len(sub.Name()) != 2 {
			continue
		}
		subPath := filepath.Join(cacheDir, sub.Name())
		files, err := os.ReadDir(subPath)
		if err != nil {
			return nil, graftsql.Wrap(graftsql.StorageError, err, "failed to read cache subdirectory").WithPath(subPath)
		}

		for _, f := range files {
			if f.IsDir() || f.Name() == checksumSidecar {
				continue
			}
			info, err := f.Info()
			if err != nil {
				continue
			}
			path := filepath.Join(subPath, f.Name())
			accessTime, err := fileAccessTime(path)
			if err != nil {
				accessTime = info.ModTime()
			}
			entries = append(entries, rebuildEntry{
				sha1:       sub.Name() + f.Name(),
				size:       uint64(info.Size()),
				path:       path,
				accessTime: accessTime,
			})
		}
	}

	return entries, nil
}

// scanChecksumSidecars reads each subdirectory's cvmfs.checksum file, if
// present, to determine which hashes belong to pinned catalog files.
func scanChecksumSidecars(cacheDir string) (map[string]bool, error) {
	hashes := make(map[string]bool)

	topLevel, err := os.ReadDir(cacheDir)
	if err != nil {
		return nil, graftsql.Wrap(graftsql.StorageError, err, "failed to read cache directory")
	}

	for _, sub := range topLevel {
		if !sub.IsDir() || len(sub.Name()) != 2 {
			continue
		}
		sidecarPath := filepath.Join(cacheDir, sub.Name(), checksumSidecar)
		f, err := os.Open(sidecarPath)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, graftsql.Wrap(graftsql.StorageError, err, "failed to open checksum sidecar").WithPath(sidecarPath)
		}

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			hashes[sub.Name()+line] = true
		}
		f.Close()
	}

	return hashes, nil
}
