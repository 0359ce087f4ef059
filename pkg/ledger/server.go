package ledger

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	graftsql "github.com/cvmfs-go/graft/internal/graftsql/errors"
	"github.com/cvmfs-go/graft/internal/logger"
)

// serverState is the in-memory state owned exclusively by the command
// server goroutine: gauge, pinned, seq, and the pinned-hash set.
type serverState struct {
	gauge     uint64
	pinned    uint64
	seq       uint64
	pinnedSet map[string]bool
}

// Open bootstraps the schema, loads counters from persisted rows, and
// starts the command-server goroutine. Callers must call Close when done.
func Open(cfg Config, metrics *Metrics) (*Ledger, error) {
	db, err := openSchema(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	empty, err := cacheCatalogEmpty(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	if empty && cfg.CacheDir != "" {
		logger.Info("cache_catalog is empty, rebuilding from cache directory",
			logger.Path(cfg.CacheDir))
		if err := Rebuild(db, cfg.CacheDir); err != nil {
			db.Close()
			return nil, err
		}
	}

	st, err := loadState(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	l := &Ledger{
		db:       db,
		cacheDir: cfg.CacheDir,
		limit:    cfg.Limit,
		cleanup:  cfg.CleanupThreshold,
		cmdCh:    make(chan command),
		doneCh:   make(chan struct{}),
		metrics:  metrics,
	}

	l.wg.Add(1)
	go l.runServer(st)

	return l, nil
}

// Close stops the command server and releases the database handle. Any
// commands still in flight when Close is called are allowed to finish.
func (l *Ledger) Close() error {
	close(l.cmdCh)
	l.wg.Wait()
	close(l.doneCh)
	return l.db.Close()
}

// cacheCatalogEmpty reports whether cache_catalog has no rows, the trigger
// condition for a filesystem rebuild.
func cacheCatalogEmpty(db *sql.DB) (bool, error) {
	var count int
	row := db.QueryRow(`SELECT COUNT(*) FROM cache_catalog`)
	if err := row.Scan(&count); err != nil {
		return false, graftsql.Wrap(graftsql.StorageError, err, "failed to check cache_catalog emptiness")
	}
	return count == 0, nil
}

func loadState(db *sql.DB) (*serverState, error) {
	st := &serverState{pinnedSet: make(map[string]bool)}

	row := db.QueryRow(`SELECT COALESCE(SUM(size), 0) FROM cache_catalog`)
	if err := row.Scan(&st.gauge); err != nil {
		return nil, graftsql.Wrap(graftsql.StorageError, err, "failed to load cache gauge")
	}

	row = db.QueryRow(`SELECT COALESCE(SUM(size), 0) FROM cache_catalog WHERE pinned = 1`)
	if err := row.Scan(&st.pinned); err != nil {
		return nil, graftsql.Wrap(graftsql.StorageError, err, "failed to load pinned size")
	}

	row = db.QueryRow(`SELECT COALESCE(MAX(acseq), 0) FROM cache_catalog`)
	if err := row.Scan(&st.seq); err != nil {
		return nil, graftsql.Wrap(graftsql.StorageError, err, "failed to load access sequence")
	}

	rows, err := db.Query(`SELECT sha1 FROM cache_catalog WHERE pinned = 1`)
	if err != nil {
		return nil, graftsql.Wrap(graftsql.StorageError, err, "failed to load pinned set")
	}
	defer rows.Close()
	for rows.Next() {
		var sha1 string
		if err := rows.Scan(&sha1); err != nil {
			return nil, graftsql.Wrap(graftsql.StorageError, err, "failed to scan pinned row")
		}
		st.pinnedSet[sha1] = true
	}

	return st, nil
}

// runServer is the command-server event loop. It batches Touch/Insert into
// transactions of up to maxBatchSize operations; any immediate command
// flushes the pending batch first, then executes synchronously and replies
// on the caller's reply channel.
func (l *Ledger) runServer(st *serverState) {
	defer l.wg.Done()

	batch := make([]command, 0, maxBatchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := l.processBatch(st, batch); err != nil {
			logger.Error("ledger batch commit failed, aborting command server",
				logger.Err(err))
			panic(fmt.Sprintf("ledger: unrecoverable batch failure: %v", err))
		}
		l.metrics.recordBatch(len(batch))
		batch = batch[:0]
	}

	for cmd := range l.cmdCh {
		l.metrics.recordCommand(opName(cmd.kind))

		if isImmediate(cmd.kind) {
			flush()
			l.executeImmediate(st, cmd)
			continue
		}

		batch = append(batch, cmd)
		if len(batch) == maxBatchSize {
			flush()
		}
	}

	flush()
}

func opName(k opKind) string {
	switch k {
	case opTouch:
		return "touch"
	case opInsert:
		return "insert"
	case opPin:
		return "pin"
	case opRemove:
		return "remove"
	case opCleanup:
		return "cleanup"
	case opList:
		return "list"
	case opListPinned:
		return "list_pinned"
	case opListCatalogs:
		return "list_catalogs"
	case opStatus:
		return "status"
	default:
		return "unknown"
	}
}

// processBatch commits Touch/Insert operations in a single transaction,
// performing cleanup ahead of any Insert that would exceed the limit.
func (l *Ledger) processBatch(st *serverState, batch []command) error {
	tx, err := l.db.Begin()
	if err != nil {
		return fmt.Errorf("begin batch transaction: %w", err)
	}

	for _, cmd := range batch {
		switch cmd.kind {
		case opTouch:
			if err := l.touchLocked(tx, st, cmd.hash); err != nil {
				tx.Rollback()
				return err
			}
		case opInsert:
			if err := l.insertLocked(tx, st, cmd.hash, cmd.size, cmd.path, KindRegular, false); err != nil {
				tx.Rollback()
				return err
			}
		default:
			tx.Rollback()
			return fmt.Errorf("unexpected op %v in batch", cmd.kind)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch transaction: %w", err)
	}

	l.metrics.setGauge(st.gauge, st.pinned)
	return nil
}

func (l *Ledger) touchLocked(tx *sql.Tx, st *serverState, hash string) error {
	st.seq++
	_, err := tx.Exec(`UPDATE cache_catalog SET acseq = ? WHERE sha1 = ?`, st.seq, hash)
	return err
}

// insertLocked upserts a row. If the row is new and gauge+size would
// exceed limit, a cleanup pass runs first (limit == 0 disables
// management).
func (l *Ledger) insertLocked(tx *sql.Tx, st *serverState, hash string, size uint64, path string, kind Kind, pinned bool) error {
	var exists bool
	row := tx.QueryRow(`SELECT 1 FROM cache_catalog WHERE sha1 = ?`, hash)
	if err := row.Scan(new(int)); err == nil {
		exists = true
	}
	_ = row

	if !exists && l.limit != 0 && st.gauge+size > l.limit {
		if err := l.cleanupLocked(tx, st, l.cleanup); err != nil {
			return err
		}
	}

	st.seq++
	pinnedInt := 0
	if pinned {
		pinnedInt = 1
	}

	_, err := tx.Exec(`
		INSERT INTO cache_catalog (sha1, size, acseq, path, type, pinned)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(sha1) DO UPDATE SET
			acseq = excluded.acseq,
			path = excluded.path,
			type = excluded.type,
			pinned = excluded.pinned
	`, hash, size, st.seq, path, int(kind), pinnedInt)
	if err != nil {
		return fmt.Errorf("upsert cache row: %w", err)
	}

	if !exists {
		st.gauge += size
	}

	return nil
}

// cleanupLocked repeatedly evicts the unpinned row with the smallest
// acseq, unlinking its on-disk blob, until gauge <= leaveSize or no
// evictable row remains.
func (l *Ledger) cleanupLocked(tx *sql.Tx, st *serverState, leaveSize uint64) error {
	if l.limit == 0 || st.gauge <= leaveSize {
		return nil
	}

	for st.gauge > leaveSize {
		var sha1 string
		var size uint64
		row := tx.QueryRow(`
			SELECT sha1, size FROM cache_catalog
			WHERE pinned = 0
			ORDER BY acseq ASC
			LIMIT 1
		`)
		if err := row.Scan(&sha1, &size); err != nil {
			if err == sql.ErrNoRows {
				break
			}
			return fmt.Errorf("select lru row: %w", err)
		}

		if err := l.unlinkBlob(sha1); err != nil {
			logger.Warn("cleanup: failed to unlink cache blob",
				logger.Hash(sha1), logger.Err(err))
		}

		if _, err := tx.Exec(`DELETE FROM cache_catalog WHERE sha1 = ?`, sha1); err != nil {
			return fmt.Errorf("delete lru row: %w", err)
		}

		st.gauge -= size
		l.metrics.recordEviction(size)
	}

	return nil
}

func (l *Ledger) unlinkBlob(sha1 string) error {
	if len(sha1) < 3 {
		return fmt.Errorf("malformed hash %q", sha1)
	}
	path := filepath.Join(l.cacheDir, sha1[:2], sha1[2:])
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// executeImmediate handles Pin/Remove/Cleanup/List*/Status, which flush
// the pending batch and run in their own transaction before replying.
func (l *Ledger) executeImmediate(st *serverState, cmd command) {
	switch cmd.kind {
	case opPin:
		l.handlePin(st, cmd)
	case opRemove:
		l.handleRemove(st, cmd)
	case opCleanup:
		l.handleCleanup(st, cmd)
	case opList:
		l.handleList(st, cmd, `SELECT path FROM cache_catalog WHERE type = ?`, int(KindRegular))
	case opListPinned:
		l.handleList(st, cmd, `SELECT path FROM cache_catalog WHERE pinned = 1`)
	case opListCatalogs:
		l.handleList(st, cmd, `SELECT path FROM cache_catalog WHERE type = ?`, int(KindCatalog))
	case opStatus:
		cmd.reply <- reply{gauge: st.gauge, pinned: st.pinned}
	}
}

func (l *Ledger) handlePin(st *serverState, cmd command) {
	if !st.pinnedSet[cmd.hash] && l.cleanup > 0 && st.pinned+cmd.size > l.cleanup {
		cmd.reply <- reply{ok: false, err: graftsql.New(graftsql.QuotaFull, "no space to pin, would exceed cleanup threshold")}
		return
	}

	tx, err := l.db.Begin()
	if err != nil {
		cmd.reply <- reply{ok: false, err: graftsql.Wrap(graftsql.StorageError, err, "begin pin transaction")}
		return
	}

	if err := l.insertLocked(tx, st, cmd.hash, cmd.size, cmd.path, KindCatalog, true); err != nil {
		tx.Rollback()
		cmd.reply <- reply{ok: false, err: graftsql.Wrap(graftsql.StorageError, err, "pin upsert failed")}
		return
	}

	if err := tx.Commit(); err != nil {
		cmd.reply <- reply{ok: false, err: graftsql.Wrap(graftsql.StorageError, err, "commit pin transaction")}
		return
	}

	if !st.pinnedSet[cmd.hash] {
		st.pinnedSet[cmd.hash] = true
		st.pinned += cmd.size
	}

	l.metrics.setGauge(st.gauge, st.pinned)
	cmd.reply <- reply{ok: true}
}

func (l *Ledger) handleRemove(st *serverState, cmd command) {
	var size uint64
	var pinned int
	row := l.db.QueryRow(`SELECT size, pinned FROM cache_catalog WHERE sha1 = ?`, cmd.hash)
	if err := row.Scan(&size, &pinned); err != nil {
		if err == sql.ErrNoRows {
			cmd.reply <- reply{ok: true}
			return
		}
		cmd.reply <- reply{err: graftsql.Wrap(graftsql.StorageError, err, "failed to look up row to remove")}
		return
	}

	if _, err := l.db.Exec(`DELETE FROM cache_catalog WHERE sha1 = ?`, cmd.hash); err != nil {
		cmd.reply <- reply{err: graftsql.Wrap(graftsql.StorageError, err, "failed to delete row")}
		return
	}

	if err := l.unlinkBlob(cmd.hash); err != nil {
		logger.Warn("remove: failed to unlink cache blob", logger.Hash(cmd.hash), logger.Err(err))
	}

	st.gauge -= size
	if pinned != 0 {
		delete(st.pinnedSet, cmd.hash)
		st.pinned -= size
	}

	l.metrics.setGauge(st.gauge, st.pinned)
	cmd.reply <- reply{ok: true}
}

func (l *Ledger) handleCleanup(st *serverState, cmd command) {
	tx, err := l.db.Begin()
	if err != nil {
		cmd.reply <- reply{ok: false, err: graftsql.Wrap(graftsql.StorageError, err, "begin cleanup transaction")}
		return
	}

	if err := l.cleanupLocked(tx, st, cmd.size); err != nil {
		tx.Rollback()
		cmd.reply <- reply{ok: false, err: graftsql.Wrap(graftsql.StorageError, err, "cleanup failed")}
		return
	}

	if err := tx.Commit(); err != nil {
		cmd.reply <- reply{ok: false, err: graftsql.Wrap(graftsql.StorageError, err, "commit cleanup transaction")}
		return
	}

	l.metrics.setGauge(st.gauge, st.pinned)
	cmd.reply <- reply{ok: st.gauge <= cmd.size}
}

func (l *Ledger) handleList(st *serverState, cmd command, query string, args ...any) {
	rows, err := l.db.Query(query, args...)
	if err != nil {
		cmd.reply <- reply{err: graftsql.Wrap(graftsql.StorageError, err, "list query failed")}
		return
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			cmd.reply <- reply{err: graftsql.Wrap(graftsql.StorageError, err, "list scan failed")}
			return
		}
		paths = append(paths, path)
	}

	cmd.reply <- reply{paths: paths}
}
