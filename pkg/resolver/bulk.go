package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Ramsey-B/briar/internal/repositories/edgeindex"
	"github.com/Ramsey-B/briar/pkg/edges"
	"github.com/Ramsey-B/briar/pkg/locators"
	"github.com/Ramsey-B/briar/pkg/metrics"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/nodes"
	"github.com/Ramsey-B/briar/pkg/tracing"
	"github.com/jmespath/go-jmespath"
	"golang.org/x/sync/errgroup"
)

// Bulk operation names, also used as metric labels and checkpoint job prefixes.
const (
	OpAddNodeLocators      = "add_node_locators"
	OpResolveEntityHeaders = "resolve_entity_headers"
	OpReconcileEdges       = "reconcile_edges"
	OpDeleteByEntityType   = "delete_by_entity_type"
	OpScanContainer        = "scan_container"
)

// itemFunc processes one document of a page. A returned error is handled per the failure policy.
type itemFunc func(ctx context.Context, body map[string]any) (models.BulkItemResult, error)

// runBulk pages sequentially through one entity type and fans each page out to a bounded
// worker pool. The continuation token only advances once a page has fully succeeded
// (or, under SkipAndLog, finished), so a failed run can resume at the failed page.
func (r *Resolver) runBulk(ctx context.Context, op string, req models.BulkRequest, fn itemFunc) (models.BulkResult, error) {
	ctx, span := tracing.StartSpan(ctx, "resolver.Resolver."+op)
	defer span.End()

	res := models.BulkResult{
		Operation:         op,
		EntityType:        req.EntityType,
		ContinuationToken: req.ContinuationToken,
		Results:           []models.BulkItemResult{},
	}
	if strings.TrimSpace(req.EntityType) == "" {
		return res, fmt.Errorf("%w: entity type is required", models.ErrValidation)
	}
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = r.opts.PageSize
	}
	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"operation":   op,
		"entity_type": req.EntityType,
		"dry_run":     req.DryRun,
	})

	token := req.ContinuationToken
	for req.MaxPages <= 0 || res.Pages < req.MaxPages {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		started := time.Now()
		page, err := r.Documents.ScanPage(ctx, req.EntityType, token, pageSize)
		if err != nil {
			log.WithError(err).Error("Failed to read page")
			return res, err
		}

		items, err := r.runPage(ctx, op, page.Documents, fn)
		metrics.PageDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())
		for _, item := range items {
			if item.Status == "" {
				continue
			}
			res.Processed++
			if item.Status == models.StatusFailed {
				res.Failed++
			}
			if item.Status != models.StatusSkipped || op != OpScanContainer {
				res.Results = append(res.Results, item)
			}
		}
		if err == nil {
			err = ctx.Err()
		}
		if err != nil {
			log.WithError(err).WithFields(map[string]any{"page": res.Pages + 1}).Error("Bulk page failed")
			return res, err
		}

		res.Pages++
		token = page.ContinuationToken
		res.ContinuationToken = token
		if token == "" {
			res.Done = true
			break
		}
	}

	log.WithFields(map[string]any{
		"pages":     res.Pages,
		"processed": res.Processed,
		"failed":    res.Failed,
		"done":      res.Done,
	}).Info("Bulk run finished")
	return res, nil
}

func (r *Resolver) runPage(ctx context.Context, op string, docs []map[string]any, fn itemFunc) ([]models.BulkItemResult, error) {
	items := make([]models.BulkItemResult, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Parallelism)

	var mu sync.Mutex
	for i, body := range docs {
		g.Go(func() error {
			// A fail-fast abort leaves the rest of the page unattempted.
			if gctx.Err() != nil {
				return nil
			}
			item, err := fn(gctx, body)
			if item.EntityID == "" {
				item.EntityID, _ = body[models.DocID].(string)
			}
			if err != nil {
				item.Status = models.StatusFailed
				item.Error = err.Error()
			}
			metrics.DocumentsProcessed.WithLabelValues(op, item.Status).Inc()

			mu.Lock()
			items[i] = item
			mu.Unlock()

			if err != nil && r.opts.FailurePolicy == FailFast {
				return fmt.Errorf("%s %s: %w", op, item.EntityID, err)
			}
			if err != nil {
				r.logger.WithContext(gctx).WithError(err).WithFields(map[string]any{
					"operation": op,
					"entity_id": item.EntityID,
				}).Warn("Skipping failed document")
			}
			return nil
		})
	}
	err := g.Wait()
	return items, err
}

// AddNodeLocators walks every document of a type and upserts a locator row per node.
func (r *Resolver) AddNodeLocators(ctx context.Context, req models.BulkRequest) (models.BulkResult, error) {
	return r.runBulk(ctx, OpAddNodeLocators, req, func(ctx context.Context, body map[string]any) (models.BulkItemResult, error) {
		doc, err := models.ParseDocument(body)
		if err != nil {
			return models.BulkItemResult{}, err
		}
		lr, err := r.indexLocators(ctx, doc, nil, req.DryRun)
		if err != nil {
			return models.BulkItemResult{EntityID: doc.ID}, err
		}
		return models.BulkItemResult{EntityID: doc.ID, Status: models.StatusOK, Detail: lr}, nil
	})
}

// indexLocators walks doc, reports duplicate node ids, and writes the deduplicated diff
// against previous.
func (r *Resolver) indexLocators(ctx context.Context, doc *models.Document, previous []models.NodeLocatorEntry, dryRun bool) (models.LocatorResult, error) {
	entries := r.Walker.Walk(doc.Body, nodes.RootOf(doc))
	lr := models.LocatorResult{
		EntityID:  doc.ID,
		Conflicts: locators.FindConflicts(entries),
	}
	if len(lr.Conflicts) > 0 {
		r.logger.WithContext(ctx).WithFields(map[string]any{
			"entity_id": doc.ID,
			"conflicts": len(lr.Conflicts),
		}).Warn("Document contains duplicate node ids")
	}

	d := locators.DiffNodeLocators(previous, locators.Deduplicate(doc.ID, entries))
	if dryRun {
		lr.Upserted, lr.Deleted = len(d.Upserts), len(d.Deletes)
		return lr, nil
	}
	up, del, err := r.Locators.Apply(ctx, d)
	if err != nil {
		return lr, err
	}
	lr.Upserted, lr.Deleted = up, del
	r.notify(func(n Notifier) { n.LocatorsUpdated(ctx, lr) })
	return lr, nil
}

// ResolveEntityHeaders runs single-document resolution over every document of a type.
func (r *Resolver) ResolveEntityHeaders(ctx context.Context, req models.BulkRequest) (models.BulkResult, error) {
	return r.runBulk(ctx, OpResolveEntityHeaders, req, func(ctx context.Context, body map[string]any) (models.BulkItemResult, error) {
		rr, err := r.resolveDocument(ctx, body, req.DryRun)
		item := models.BulkItemResult{EntityID: rr.EntityID, Status: models.StatusOK, Detail: rr}
		if err == nil && !rr.Updated {
			item.Status = models.StatusSkipped
		}
		return item, err
	})
}

// ReconcileEdges diffs each document's references against its stored live outbound edges,
// upserting current edges and tombstoning removed ones.
func (r *Resolver) ReconcileEdges(ctx context.Context, req models.BulkRequest) (models.BulkResult, error) {
	return r.runBulk(ctx, OpReconcileEdges, req, func(ctx context.Context, body map[string]any) (models.BulkItemResult, error) {
		doc, err := models.ParseDocument(body)
		if err != nil {
			return models.BulkItemResult{}, err
		}
		er, err := r.reconcileDocumentEdges(ctx, doc, req.DryRun)
		return models.BulkItemResult{EntityID: doc.ID, Status: models.StatusOK, Detail: er}, err
	})
}

func (r *Resolver) reconcileDocumentEdges(ctx context.Context, doc *models.Document, dryRun bool) (models.EdgeReconcileResult, error) {
	current := edges.FromHeaderNodes(edges.SourceOf(doc), r.Scanner.Scan(doc.Body), r.Clock.Now().UTC())
	stored, err := r.Edges.ListOutbound(ctx, doc.Pk(), false)
	if err != nil {
		return models.EdgeReconcileResult{EntityID: doc.ID}, err
	}
	d := edges.DiffOutboundEdges(liveEdges(stored), current)
	er := models.EdgeReconcileResult{
		EntityID:  doc.ID,
		Added:     len(d.Added),
		Removed:   len(d.Removed),
		Unchanged: len(d.SameIdentity),
	}
	if dryRun {
		return er, nil
	}
	if _, _, err := r.Edges.Apply(ctx, d, edgeindex.ReasonReferenceRemoved); err != nil {
		return er, err
	}
	r.mirror(ctx, append(d.Added, d.SameIdentity...), d.Removed)
	if len(d.Removed) > 0 {
		r.notify(func(n Notifier) { n.EdgesTombstoned(ctx, doc.Pk(), d.Removed) })
	}
	return er, nil
}

// DeleteByEntityType deletes every document of a type, tombstoning its outbound edges and
// deleting its locator rows first so a failure never leaves index rows without a cleanup path.
func (r *Resolver) DeleteByEntityType(ctx context.Context, req models.BulkRequest) (models.BulkResult, error) {
	return r.runBulk(ctx, OpDeleteByEntityType, req, func(ctx context.Context, body map[string]any) (models.BulkItemResult, error) {
		doc, err := models.ParseDocument(body)
		if err != nil {
			return models.BulkItemResult{}, err
		}
		if req.DryRun {
			return models.BulkItemResult{EntityID: doc.ID, Status: models.StatusMatched}, nil
		}
		if _, err := r.removeIndices(ctx, doc); err != nil {
			return models.BulkItemResult{EntityID: doc.ID}, err
		}
		if err := r.Documents.Delete(ctx, doc.ID); err != nil {
			return models.BulkItemResult{EntityID: doc.ID}, err
		}
		r.Invalidator.Invalidate(ctx, doc.ID)
		return models.BulkItemResult{EntityID: doc.ID, Status: models.StatusDeleted}, nil
	})
}

// removeIndices tombstones a root's outbound edges and deletes the locator rows of its nodes.
func (r *Resolver) removeIndices(ctx context.Context, doc *models.Document) (models.RefreshResult, error) {
	res := models.RefreshResult{EntityID: doc.ID, Deleted: true}

	stored, err := r.Edges.ListOutbound(ctx, doc.Pk(), false)
	if err != nil {
		return res, err
	}
	n, err := r.Edges.TombstoneAll(ctx, doc.Pk(), edgeindex.ReasonSourceDeleted)
	if err != nil {
		return res, err
	}
	res.Edges = models.EdgeReconcileResult{EntityID: doc.ID, Removed: n}
	removed := liveEdges(stored)
	r.mirror(ctx, nil, removed)
	if len(removed) > 0 {
		r.notify(func(n Notifier) { n.EdgesTombstoned(ctx, doc.Pk(), removed) })
	}

	previous := r.Walker.Walk(doc.Body, nodes.RootOf(doc))
	d := locators.DiffNodeLocators(previous, nil)
	_, del, err := r.Locators.Apply(ctx, d)
	if err != nil {
		return res, err
	}
	res.Locators = models.LocatorResult{EntityID: doc.ID, Deleted: del}
	r.notify(func(n Notifier) { n.LocatorsUpdated(ctx, res.Locators) })
	return res, nil
}

// ScanContainer is read-only. With a filter, only documents for which the JMESPath
// expression is truthy are returned; Processed still counts every document scanned.
func (r *Resolver) ScanContainer(ctx context.Context, req models.BulkRequest) (models.BulkResult, error) {
	var expr *jmespath.JMESPath
	if strings.TrimSpace(req.Filter) != "" {
		compiled, err := jmespath.Compile(req.Filter)
		if err != nil {
			return models.BulkResult{Operation: OpScanContainer, EntityType: req.EntityType},
				fmt.Errorf("%w: invalid filter: %v", models.ErrValidation, err)
		}
		expr = compiled
	}

	return r.runBulk(ctx, OpScanContainer, req, func(_ context.Context, body map[string]any) (models.BulkItemResult, error) {
		id, _ := body[models.DocID].(string)
		if expr == nil {
			return models.BulkItemResult{EntityID: id, Status: models.StatusMatched, Detail: body}, nil
		}
		ok, err := matches(expr, body)
		if err != nil {
			return models.BulkItemResult{EntityID: id}, err
		}
		if !ok {
			return models.BulkItemResult{EntityID: id, Status: models.StatusSkipped}, nil
		}
		return models.BulkItemResult{EntityID: id, Status: models.StatusMatched, Detail: body}, nil
	})
}

// matches evaluates expr against body. The body is round-tripped through encoding/json
// because go-jmespath compares numbers as float64 only.
func matches(expr *jmespath.JMESPath, body map[string]any) (bool, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return false, err
	}
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return false, err
	}
	out, err := expr.Search(data)
	if err != nil {
		return false, err
	}
	return truthy(out), nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}
