package ledger

import (
	"context"

	graftsql "github.com/cvmfs-go/graft/internal/graftsql/errors"
)

// Touch bumps the access sequence of hash if present. Fire-and-forget: it
// may be batched with other Touch/Insert commands and does not block on
// the write actually landing.
func (l *Ledger) Touch(hash string) {
	l.cmdCh <- command{kind: opTouch, hash: hash}
}

// Insert upserts a regular-file row for hash, triggering a cleanup pass
// first if the insert would push the cache over its limit. Fire-and-forget.
func (l *Ledger) Insert(hash string, size uint64, path string) error {
	if len(path) > maxPathLength {
		return graftsql.Newf(graftsql.InputInvalid, "path exceeds %d bytes", maxPathLength)
	}
	l.cmdCh <- command{kind: opInsert, hash: hash, size: size, path: path}
	return nil
}

// Pin marks hash as a pinned catalog file, synchronously. Returns false if
// there is no room under the cleanup threshold.
func (l *Ledger) Pin(ctx context.Context, hash string, size uint64, path string) (bool, error) {
	if len(path) > maxPathLength {
		return false, graftsql.Newf(graftsql.InputInvalid, "path exceeds %d bytes", maxPathLength)
	}
	r, err := l.send(ctx, command{kind: opPin, hash: hash, size: size, path: path})
	if err != nil {
		return false, err
	}
	if r.err != nil {
		if graftsql.Is(r.err, graftsql.QuotaFull) {
			return false, nil
		}
		return false, r.err
	}
	return r.ok, nil
}

// Remove deletes the row for hash and unlinks its on-disk blob.
// Idempotent: removing a hash that is not present succeeds.
func (l *Ledger) Remove(ctx context.Context, hash string) error {
	r, err := l.send(ctx, command{kind: opRemove, hash: hash})
	if err != nil {
		return err
	}
	return r.err
}

// Cleanup evicts unpinned rows in ascending acseq order until gauge <=
// leaveSize or no evictable row remains. Returns true iff the target was
// reached.
func (l *Ledger) Cleanup(ctx context.Context, leaveSize uint64) (bool, error) {
	r, err := l.send(ctx, command{kind: opCleanup, size: leaveSize})
	if err != nil {
		return false, err
	}
	return r.ok, r.err
}

// List returns the paths of all regular (non-catalog) entries.
func (l *Ledger) List(ctx context.Context) ([]string, error) {
	r, err := l.send(ctx, command{kind: opList})
	if err != nil {
		return nil, err
	}
	return r.paths, r.err
}

// ListPinned returns the paths of all pinned entries.
func (l *Ledger) ListPinned(ctx context.Context) ([]string, error) {
	r, err := l.send(ctx, command{kind: opListPinned})
	if err != nil {
		return nil, err
	}
	return r.paths, r.err
}

// ListCatalogs returns the paths of all catalog-kind entries.
func (l *Ledger) ListCatalogs(ctx context.Context) ([]string, error) {
	r, err := l.send(ctx, command{kind: opListCatalogs})
	if err != nil {
		return nil, err
	}
	return r.paths, r.err
}

// Status returns the current (gauge, pinned) counters atomically with
// respect to the command server.
func (l *Ledger) Status(ctx context.Context) (gauge, pinned uint64, err error) {
	r, err := l.send(ctx, command{kind: opStatus})
	if err != nil {
		return 0, 0, err
	}
	return r.gauge, r.pinned, r.err
}

// send submits a command that expects a synchronous reply, respecting
// context cancellation on both the submit and the wait.
func (l *Ledger) send(ctx context.Context, cmd command) (reply, error) {
	cmd.reply = make(chan reply, 1)

	select {
	case l.cmdCh <- cmd:
	case <-ctx.Done():
		return reply{}, ctx.Err()
	}

	select {
	case r := <-cmd.reply:
		return r, nil
	case <-ctx.Done():
		return reply{}, ctx.Err()
	}
}
