package planner

import (
	"context"
	"path"

	graftsql "github.com/cvmfs-go/graft/internal/graftsql/errors"
	"github.com/cvmfs-go/graft/internal/logger"
	"github.com/cvmfs-go/graft/pkg/aclcodec"
	"github.com/cvmfs-go/graft/pkg/graftdb"
)

// printFrequency returns 10^k, the smallest power of ten such that
// 10^k * 50 >= total. Used to throttle progress reporting to roughly 50
// updates over the whole run.
func printFrequency(total int) int {
	freq := 1
	for freq*50 < total {
		freq *= 10
	}
	return freq
}

func (p *Planner) reportProgress(label string, done, total, every int) {
	if every <= 0 || done%every != 0 {
		return
	}
	logger.Info("applying "+label, logger.RowsDone(done), logger.RowsTotal(total))
}

// applyAdditions walks the ancestor-closed directory tree depth-first,
// creating/touching directories in pre-order and adding their files and
// symlinks in post-order, per the UNVISITED -> PRE_DONE -> POST_DONE state
// machine: a node is pushed once (UNVISITED), marked seen and has its
// children pushed (PRE_DONE), and is popped and finalized only once every
// child has unwound (POST_DONE).
func (p *Planner) applyAdditions(ctx context.Context, cs *graftdb.Changeset, opts ApplyOptions) error {
	tree := buildTree(cs, opts.LeasePath)
	if len(tree) == 0 {
		return nil
	}

	roots := tree.roots()
	if len(roots) > 1 {
		return graftsql.Newf(graftsql.InternalInvariant,
			"provided db input forms more than one path tree (roots: %v)", roots)
	}

	total := len(tree)
	every := printFrequency(total)
	processed := 0

	preDone := make(map[string]bool, total)
	stack := []string{roots[0]}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		curr := stack[len(stack)-1]

		if preDone[curr] {
			stack = stack[:len(stack)-1]
			if err := p.postOrder(ctx, curr, cs, opts); err != nil {
				return err
			}
			processed++
			if p.metrics != nil {
				p.metrics.AdditionsTotal.Inc()
			}
			p.reportProgress("directories", processed, total, every)
			continue
		}

		preDone[curr] = true
		for _, child := range tree.sortedChildren(curr) {
			stack = append(stack, child)
		}

		if dir, ok := cs.AllDirs[curr]; ok {
			if err := p.preOrder(ctx, curr, dir, opts.AddMissingNested); err != nil {
				return err
			}
		}
	}

	logger.Info("applying directories", logger.RowsDone(processed), logger.RowsTotal(total))
	return nil
}

// preOrder ensures a directory named explicitly in the changeset exists in
// the catalog, creating or touching it, and places a nested-catalog
// mountpoint marker when required.
func (p *Planner) preOrder(ctx context.Context, curr string, dir graftdb.Dir, addMissingNested bool) error {
	entry, exists, err := p.catalog.Lookup(ctx, curr)
	if err != nil {
		return err
	}
	if exists && entry.Kind != KindDirectory {
		return graftsql.Newf(graftsql.CatalogConflict,
			"refusing to replace existing file/symlink at %s with a directory", curr)
	}

	xattr, err := dirXattr(dir.ACLText)
	if err != nil {
		return err
	}

	newEntry := DirEntry{
		Name:     path.Base(dir.Name),
		Kind:     KindDirectory,
		Mode:     dir.Mode,
		MtimeNs:  dir.MtimeNs,
		Owner:    dir.Owner,
		Group:    dir.Group,
		ACLXattr: xattr,
	}

	addNestedCatalog := false

	if exists {
		if err := p.catalog.TouchDirectory(ctx, curr, newEntry); err != nil {
			return err
		}
		if !entry.IsNestedCatalogMountpoint && (addMissingNested || dir.Nested) {
			addNestedCatalog = true
		}
	} else {
		if err := p.catalog.AddDirectory(ctx, parentOf(curr), newEntry); err != nil {
			return err
		}
		if dir.Nested {
			addNestedCatalog = true
		}
	}

	if addNestedCatalog {
		marker := DirEntry{
			Name:    CatalogMarkerName,
			Kind:    KindFile,
			Mode:    0666,
			MtimeNs: dir.MtimeNs,
		}
		if err := p.catalog.AddFile(ctx, curr, marker, EmptyFileHash); err != nil {
			return err
		}
		if err := p.catalog.CreateNestedCatalog(ctx, curr); err != nil {
			return err
		}
	}

	return nil
}

// postOrder adds a directory's symlinks and chunked files, then snapshots
// the owning catalog if the directory is a nested-catalog mountpoint.
func (p *Planner) postOrder(ctx context.Context, curr string, cs *graftdb.Changeset, opts ApplyOptions) error {
	if links, ok := cs.AllSymlinks[curr]; ok {
		for _, link := range links {
			if err := p.addSymlink(ctx, link); err != nil {
				return err
			}
		}
	}

	if files, ok := cs.AllFiles[curr]; ok {
		for _, file := range files {
			if err := p.addFile(ctx, file); err != nil {
				return err
			}
		}
	}

	entry, exists, err := p.catalog.Lookup(ctx, curr)
	if err != nil {
		return err
	}
	if exists && entry.IsNestedCatalogMountpoint {
		if err := p.catalog.SnapshotCatalog(ctx, curr); err != nil {
			return err
		}
	}

	return nil
}

func (p *Planner) addSymlink(ctx context.Context, link graftdb.Symlink) error {
	entry, exists, err := p.catalog.Lookup(ctx, link.Name)
	if err != nil {
		return err
	}

	skip := false
	if exists {
		switch {
		case link.SkipIfFileOrDir && (entry.Kind == KindDirectory || entry.Kind == KindFile):
			skip = true
		case entry.Kind == KindDirectory:
			return graftsql.Newf(graftsql.CatalogConflict,
				"not removing directory %s to create symlink", link.Name)
		default:
			if err := p.catalog.RemoveFile(ctx, link.Name); err != nil {
				return err
			}
		}
	}
	if skip {
		return nil
	}

	newEntry := DirEntry{
		Name:    path.Base(link.Name),
		Kind:    KindSymlink,
		Mode:    0777,
		MtimeNs: link.MtimeNs,
		Owner:   link.Owner,
		Group:   link.Group,
	}
	return p.catalog.AddSymlink(ctx, parentOf(link.Name), newEntry, link.Target)
}

func (p *Planner) addFile(ctx context.Context, file graftdb.File) error {
	entry, exists, err := p.catalog.Lookup(ctx, file.Name)
	if err != nil {
		return err
	}
	if exists {
		if entry.Kind == KindDirectory || entry.Kind == KindSymlink {
			return graftsql.Newf(graftsql.CatalogConflict,
				"refusing to replace existing dir/symlink at %s with a file", file.Name)
		}
		if err := p.catalog.RemoveFile(ctx, file.Name); err != nil {
			return err
		}
	}

	newEntry := DirEntry{
		Name:    path.Base(file.Name),
		Kind:    KindFile,
		Mode:    file.Mode,
		MtimeNs: file.MtimeNs,
		Owner:   file.Owner,
		Group:   file.Group,
		Size:    file.Size,
	}
	return p.catalog.AddChunkedFile(ctx, parentOf(file.Name), newEntry, file.Chunks, resolveCompression(file.Compressed, file.Internal))
}

// resolveCompression applies the default-resolution rule: explicit none/zlib
// pass through, "default" becomes zlib for internal data and none for
// external data.
func resolveCompression(c graftdb.Compression, internal bool) graftdb.Compression {
	if c != graftdb.CompressionDefault {
		return c
	}
	if internal {
		return graftdb.CompressionZlib
	}
	return graftdb.CompressionNone
}

func dirXattr(aclText string) ([]byte, error) {
	if aclText == "" {
		return nil, nil
	}
	data, equiv, err := aclcodec.EncodeText(aclText)
	if err != nil {
		return nil, graftsql.Wrap(graftsql.InputInvalid, err, "failed to marshal directory acl")
	}
	if equiv {
		return nil, nil
	}
	return data, nil
}
