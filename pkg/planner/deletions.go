package planner

import (
	"context"
	"sort"

	"github.com/cvmfs-go/graft/internal/logger"
	"github.com/cvmfs-go/graft/pkg/graftdb"
)

func expectedKind(d graftdb.Deletion) EntryKind {
	switch d.Kind {
	case graftdb.DeleteDirectory:
		return KindDirectory
	case graftdb.DeleteFile:
		return KindFile
	case graftdb.DeleteLink:
		return KindSymlink
	default:
		return KindNone
	}
}

// applyDeletions removes every deletion row whose declared type matches the
// catalog's actual entry, processed longest-path-first so a directory's
// children are always deleted (or already absent) before the directory
// itself is considered.
func (p *Planner) applyDeletions(ctx context.Context, deletions []graftdb.Deletion) error {
	ordered := make([]graftdb.Deletion, len(deletions))
	copy(ordered, deletions)
	sort.Slice(ordered, func(i, j int) bool {
		return len(ordered[i].Name) > len(ordered[j].Name)
	})

	total := len(ordered)
	every := printFrequency(total)

	for i, d := range ordered {
		if err := ctx.Err(); err != nil {
			return err
		}

		entry, exists, err := p.catalog.Lookup(ctx, d.Name)
		if err != nil {
			return err
		}
		if !exists {
			logger.Debug("not removing non-existent entry", logger.Path(d.Name))
			p.reportProgress("deletions", i+1, total, every)
			continue
		}

		if entry.Kind != expectedKind(d) {
			logger.Info("mismatch in deletion type, not deleting",
				logger.Path(d.Name))
			p.reportProgress("deletions", i+1, total, every)
			continue
		}

		if entry.Kind == KindDirectory {
			if err := p.recursivelyDeleteDirectory(ctx, d.Name); err != nil {
				return err
			}
		} else if err := p.catalog.RemoveFile(ctx, d.Name); err != nil {
			return err
		}

		p.reportProgress("deletions", i+1, total, every)
	}

	if total > 0 {
		logger.Info("applying deletions", logger.RowsDone(total), logger.RowsTotal(total))
	}

	return nil
}

// recursivelyDeleteDirectory removes path and everything under it. If path
// is a nested-catalog mountpoint, the whole subtree is detached and removed
// as a unit instead of being walked entry by entry.
func (p *Planner) recursivelyDeleteDirectory(ctx context.Context, path string) error {
	entry, exists, err := p.catalog.Lookup(ctx, path)
	if err != nil {
		return err
	}

	if exists && entry.IsNestedCatalogMountpoint {
		if err := p.catalog.RemoveNestedCatalog(ctx, path); err != nil {
			return err
		}
		return p.catalog.RemoveDirectory(ctx, path)
	}

	children, err := p.catalog.ListDirectory(ctx, path)
	if err != nil {
		return err
	}

	for _, child := range children {
		childPath := path + "/" + child.Name
		if child.Kind == KindDirectory {
			if err := p.recursivelyDeleteDirectory(ctx, childPath); err != nil {
				return err
			}
		} else if err := p.catalog.RemoveFile(ctx, childPath); err != nil {
			return err
		}
	}

	return p.catalog.RemoveDirectory(ctx, path)
}
