package planner

import (
	"context"

	"github.com/cvmfs-go/graft/internal/logger"
	"github.com/cvmfs-go/graft/pkg/graftdb"
)

// Planner sequences deletions then additions from a decoded changeset onto
// a CatalogManager, preserving the invariant that children are removed
// before their parents and parents are created before their children.
type Planner struct {
	catalog CatalogManager
	metrics *Metrics
}

// New returns a Planner driving the given catalog. metrics may be nil.
func New(catalog CatalogManager, metrics *Metrics) *Planner {
	return &Planner{catalog: catalog, metrics: metrics}
}

// Apply runs deletions (if allowed) followed by additions (if allowed)
// against the given changeset.
func (p *Planner) Apply(ctx context.Context, cs *graftdb.Changeset, opts ApplyOptions) error {
	if opts.AllowDeletions && len(cs.Deletions) > 0 {
		logger.Info("processing deletions", logger.RowsTotal(len(cs.Deletions)))
		start := p.metrics.startTimer()
		err := p.applyDeletions(ctx, cs.Deletions)
		p.metrics.observeDeletions(len(cs.Deletions), start, err)
		if err != nil {
			return err
		}
	}

	if opts.AllowAdditions {
		logger.Info("processing additions")
		start := p.metrics.startTimer()
		err := p.applyAdditions(ctx, cs, opts)
		p.metrics.observeAdditions(start, err)
		if err != nil {
			return err
		}
	}

	return nil
}
