package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/patchpath"
	"github.com/Ramsey-B/briar/pkg/tracing"
)

// PatchEntity resolves keyed logical paths against the current document and applies the
// concrete operations through the document store.
func (r *Resolver) PatchEntity(ctx context.Context, id string, ops []patchpath.Operation, expectedRevision int64) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "resolver.Resolver.PatchEntity")
	defer span.End()

	if len(ops) == 0 {
		return 0, fmt.Errorf("%w: at least one patch operation is required", models.ErrValidation)
	}
	body, err := r.Documents.Read(ctx, id)
	if err != nil {
		return 0, err
	}
	concrete, err := patchpath.ResolveAll(body, ops)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"entity_id": id}).Warn("Failed to resolve patch paths")
		return 0, err
	}

	rev, err := r.Documents.Patch(ctx, id, concrete, expectedRevision)
	if err != nil {
		if !errors.Is(err, patchpath.ErrResolve) {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"entity_id": id}).Error("Failed to patch document")
		}
		return 0, err
	}
	r.Invalidator.Invalidate(ctx, id)
	return rev, nil
}
