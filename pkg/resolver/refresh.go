package resolver

import (
	"context"
	"fmt"

	"github.com/Ramsey-B/briar/internal/repositories/edgeindex"
	"github.com/Ramsey-B/briar/pkg/edges"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/nodes"
	"github.com/Ramsey-B/briar/pkg/tracing"
)

// RefreshIndices maintains one root's locator and edge rows from two snapshots of it.
// A nil before is a create and a nil after is a delete.
func (r *Resolver) RefreshIndices(ctx context.Context, before, after map[string]any) (models.RefreshResult, error) {
	ctx, span := tracing.StartSpan(ctx, "resolver.Resolver.RefreshIndices")
	defer span.End()

	var prev, next *models.Document
	var err error
	if before != nil {
		if prev, err = models.ParseDocument(before); err != nil {
			return models.RefreshResult{}, err
		}
	}
	if after != nil {
		if next, err = models.ParseDocument(after); err != nil {
			return models.RefreshResult{}, err
		}
	}
	switch {
	case prev == nil && next == nil:
		return models.RefreshResult{}, fmt.Errorf("%w: refresh needs at least one snapshot", models.ErrValidation)
	case next == nil:
		res, err := r.removeIndices(ctx, prev)
		r.Invalidator.Invalidate(ctx, prev.ID)
		return res, err
	case prev != nil && prev.ID != next.ID:
		return models.RefreshResult{}, fmt.Errorf("%w: snapshots belong to different documents", models.ErrValidation)
	}

	res := models.RefreshResult{EntityID: next.ID}
	var previous []models.NodeLocatorEntry
	var oldEdges []models.ForeignKeyEdge
	if prev != nil {
		previous = r.Walker.Walk(prev.Body, nodes.RootOf(prev))
		oldEdges = edges.FromHeaderNodes(edges.SourceOf(prev), r.Scanner.Scan(prev.Body), r.Clock.Now().UTC())
	}

	res.Locators, err = r.indexLocators(ctx, next, previous, false)
	if err != nil {
		return res, err
	}

	current := edges.FromHeaderNodes(edges.SourceOf(next), r.Scanner.Scan(next.Body), r.Clock.Now().UTC())
	d := edges.DiffOutboundEdges(oldEdges, current)
	if _, _, err := r.Edges.Apply(ctx, d, edgeindex.ReasonReferenceRemoved); err != nil {
		return res, err
	}
	res.Edges = models.EdgeReconcileResult{
		EntityID:  next.ID,
		Added:     len(d.Added),
		Removed:   len(d.Removed),
		Unchanged: len(d.SameIdentity),
	}
	r.mirror(ctx, append(d.Added, d.SameIdentity...), d.Removed)
	if len(d.Removed) > 0 {
		r.notify(func(n Notifier) { n.EdgesTombstoned(ctx, next.Pk(), d.Removed) })
	}

	r.Invalidator.Invalidate(ctx, next.ID)
	return res, nil
}
