package graftdb

import (
	"database/sql"
	"path"
	"strconv"

	_ "github.com/glebarez/sqlite"

	graftsql "github.com/cvmfs-go/graft/internal/graftsql/errors"
)

// schemaRevision describes which optional columns a graft DB's dirs/files
// tables carry, gated on properties.schema_revision.
type schemaRevision struct {
	revision      int
	hasNested     bool
	hasCompressed bool
}

func readSchemaRevision(db *sql.DB) (schemaRevision, error) {
	var raw string
	row := db.QueryRow(`SELECT value FROM properties WHERE key = 'schema_revision'`)
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return schemaRevision{}, graftsql.New(graftsql.InputInvalid, "graft db missing properties.schema_revision")
		}
		return schemaRevision{}, graftsql.Wrap(graftsql.StorageError, err, "failed to read schema_revision")
	}

	rev, err := strconv.Atoi(raw)
	if err != nil {
		return schemaRevision{}, graftsql.Newf(graftsql.InputInvalid, "non-numeric schema_revision %q", raw)
	}

	return schemaRevision{
		revision:      rev,
		hasNested:     rev > 3,
		hasCompressed: rev > 2,
	}, nil
}

// ReadAll opens each graft DB path read-only and merges their contents
// into a single Changeset. additionalPrefix is prepended to every decoded
// path (after sanitisation) and leasePath bounds every resulting path.
func ReadAll(dbPaths []string, additionalPrefix, leasePath string) (*Changeset, error) {
	cs := newChangeset()

	sanitisedPrefix := ""
	if additionalPrefix != "" {
		p, err := SanitisePath(additionalPrefix, true)
		if err != nil {
			return nil, err
		}
		sanitisedPrefix = p
	}

	for _, dbPath := range dbPaths {
		if err := readOne(dbPath, sanitisedPrefix, leasePath, cs); err != nil {
			return nil, err
		}
	}

	return cs, nil
}

func readOne(dbPath, additionalPrefix, leasePath string, cs *Changeset) error {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return graftsql.Wrap(graftsql.StorageError, err, "failed to open graft db").WithPath(dbPath)
	}
	defer db.Close()

	rev, err := readSchemaRevision(db)
	if err != nil {
		return graftsql.Wrap(graftsql.InputInvalid, err, "reading schema revision").WithPath(dbPath)
	}

	if err := readDirs(db, rev, additionalPrefix, leasePath, cs); err != nil {
		return err
	}
	if err := readFiles(db, rev, additionalPrefix, leasePath, cs); err != nil {
		return err
	}
	if err := readLinks(db, additionalPrefix, leasePath, cs); err != nil {
		return err
	}
	if err := readDeletions(db, additionalPrefix, leasePath, cs); err != nil {
		return err
	}

	return nil
}

func resolvePath(additionalPrefix, name string) (string, error) {
	sanitised, err := SanitisePath(name, false)
	if err != nil {
		return "", err
	}
	if additionalPrefix == "" {
		return sanitised, nil
	}
	return path.Join(additionalPrefix, sanitised), nil
}

func checkLease(resolved, leasePath string) error {
	if !CheckPrefix(resolved, leasePath) {
		return graftsql.Newf(graftsql.InputInvalid, "%s is not below lease path %s", resolved, leasePath)
	}
	return nil
}

func readDirs(db *sql.DB, rev schemaRevision, additionalPrefix, leasePath string, cs *Changeset) error {
	cols := "name, mode, mtime_ns, owner, grp, acl_text"
	if rev.hasNested {
		cols += ", nested"
	}

	rows, err := db.Query(`SELECT ` + cols + ` FROM dirs`)
	if err != nil {
		return graftsql.Wrap(graftsql.StorageError, err, "failed to query dirs")
	}
	defer rows.Close()

	for rows.Next() {
		var name, aclText string
		var mode uint32
		var mtimeNs int64
		var owner, group uint32
		// Revision <= 3 graft DBs carry no nested column; such directories
		// are treated as nested-catalog mountpoints by default.
		nested := int64(1)

		var scanErr error
		if rev.hasNested {
			scanErr = rows.Scan(&name, &mode, &mtimeNs, &owner, &group, &aclText, &nested)
		} else {
			scanErr = rows.Scan(&name, &mode, &mtimeNs, &owner, &group, &aclText)
		}
		if scanErr != nil {
			return graftsql.Wrap(graftsql.StorageError, scanErr, "failed to scan dirs row")
		}

		resolved, err := resolvePath(additionalPrefix, name)
		if err != nil {
			return err
		}
		if err := checkLease(resolved, leasePath); err != nil {
			return err
		}

		cs.AllDirs[resolved] = Dir{
			Name:    resolved,
			Mode:    mode,
			MtimeNs: mtimeNs,
			Owner:   owner,
			Group:   group,
			ACLText: aclText,
			Nested:  nested != 0,
		}
	}

	return rows.Err()
}

func readFiles(db *sql.DB, rev schemaRevision, additionalPrefix, leasePath string, cs *Changeset) error {
	cols := "name, mode, mtime_ns, owner, grp, size, hashes_csv, internal"
	if rev.hasCompressed {
		cols += ", compressed"
	}

	rows, err := db.Query(`SELECT ` + cols + ` FROM files`)
	if err != nil {
		return graftsql.Wrap(graftsql.StorageError, err, "failed to query files")
	}
	defer rows.Close()

	for rows.Next() {
		var name, hashesCSV string
		var mode uint32
		var mtimeNs, size int64
		var owner, group uint32
		var internal int64
		compressed := int64(0)

		var scanErr error
		if rev.hasCompressed {
			scanErr = rows.Scan(&name, &mode, &mtimeNs, &owner, &group, &size, &hashesCSV, &internal, &compressed)
		} else {
			scanErr = rows.Scan(&name, &mode, &mtimeNs, &owner, &group, &size, &hashesCSV, &internal)
		}
		if scanErr != nil {
			return graftsql.Wrap(graftsql.StorageError, scanErr, "failed to scan files row")
		}

		if size < 0 {
			return graftsql.Newf(graftsql.InputInvalid, "file size cannot be negative [%s]", name)
		}

		resolved, err := resolvePath(additionalPrefix, name)
		if err != nil {
			return err
		}
		if err := checkLease(resolved, leasePath); err != nil {
			return err
		}

		chunks, err := decodeChunks(hashesCSV, size, internal != 0)
		if err != nil {
			return graftsql.Wrap(graftsql.InputInvalid, err, "invalid chunk list for "+resolved)
		}

		if internal == 0 && compressed >= int64(CompressionZlib) {
			return graftsql.Newf(graftsql.InputInvalid, "compression is only allowed for internal data [%s]", resolved)
		}

		parent := path.Dir(resolved)
		cs.AllFiles[parent] = append(cs.AllFiles[parent], File{
			Name:       resolved,
			MtimeNs:    mtimeNs,
			Size:       size,
			Owner:      owner,
			Group:      group,
			Mode:       mode,
			Internal:   internal != 0,
			Compressed: Compression(compressed),
			Chunks:     chunks,
		})
	}

	return rows.Err()
}

func readLinks(db *sql.DB, additionalPrefix, leasePath string, cs *Changeset) error {
	rows, err := db.Query(`SELECT name, target, mtime_ns, owner, grp, skip_if_file_or_dir FROM links`)
	if err != nil {
		return graftsql.Wrap(graftsql.StorageError, err, "failed to query links")
	}
	defer rows.Close()

	for rows.Next() {
		var name, target string
		var mtimeNs int64
		var owner, group uint32
		var skip int64

		if err := rows.Scan(&name, &target, &mtimeNs, &owner, &group, &skip); err != nil {
			return graftsql.Wrap(graftsql.StorageError, err, "failed to scan links row")
		}

		resolved, err := resolvePath(additionalPrefix, name)
		if err != nil {
			return err
		}
		if err := checkLease(resolved, leasePath); err != nil {
			return err
		}

		parent := path.Dir(resolved)
		cs.AllSymlinks[parent] = append(cs.AllSymlinks[parent], Symlink{
			Name:            resolved,
			Target:          target,
			MtimeNs:         mtimeNs,
			Owner:           owner,
			Group:           group,
			SkipIfFileOrDir: skip != 0,
		})
	}

	return rows.Err()
}

func readDeletions(db *sql.DB, additionalPrefix, leasePath string, cs *Changeset) error {
	rows, err := db.Query(`SELECT name, directory, file, link FROM deletions`)
	if err != nil {
		return graftsql.Wrap(graftsql.StorageError, err, "failed to query deletions")
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var isDir, isFile, isLink int64

		if err := rows.Scan(&name, &isDir, &isFile, &isLink); err != nil {
			return graftsql.Wrap(graftsql.StorageError, err, "failed to scan deletions row")
		}

		resolved, err := resolvePath(additionalPrefix, name)
		if err != nil {
			return err
		}
		if err := checkLease(resolved, leasePath); err != nil {
			return err
		}

		kind, err := deletionKind(isDir, isFile, isLink, resolved)
		if err != nil {
			return err
		}

		cs.Deletions = append(cs.Deletions, Deletion{Name: resolved, Kind: kind})
	}

	return rows.Err()
}

func deletionKind(isDir, isFile, isLink int64, name string) (DeletionKind, error) {
	set := 0
	var kind DeletionKind
	if isDir != 0 {
		set++
		kind = DeleteDirectory
	}
	if isFile != 0 {
		set++
		kind = DeleteFile
	}
	if isLink != 0 {
		set++
		kind = DeleteLink
	}
	if set != 1 {
		return 0, graftsql.Newf(graftsql.InputInvalid, "deletion row for %q must declare exactly one type, got %d", name, set)
	}
	return kind, nil
}
