package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/Ramsey-B/briar/internal/repositories/edgeindex"
	"github.com/Ramsey-B/briar/pkg/docstore"
	"github.com/Ramsey-B/briar/pkg/edges"
	"github.com/Ramsey-B/briar/pkg/jsontree"
	"github.com/Ramsey-B/briar/pkg/metrics"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/normalizers"
	"github.com/Ramsey-B/briar/pkg/tracing"
)

var keyRules = normalizers.DefaultKeyRules()

// References under these roles are bookkeeping, not graph relationships, and are never resolved.
var nonGraphRoles = map[string]bool{
	strings.ToLower(models.DocOwnerOrganization): true,
	strings.ToLower(models.DocCreatedBy):         true,
	strings.ToLower(models.DocLastUpdatedBy):     true,
}

// ResolveEntity loads one document, repairs its references and writes it back when anything changed.
func (r *Resolver) ResolveEntity(ctx context.Context, id string, dryRun bool) (models.ResolveResult, error) {
	ctx, span := tracing.StartSpan(ctx, "resolver.Resolver.ResolveEntity")
	defer span.End()

	body, err := r.Documents.Read(ctx, id)
	if err != nil {
		return models.ResolveResult{EntityID: id}, err
	}
	return r.resolveDocument(ctx, body, dryRun)
}

func (r *Resolver) resolveDocument(ctx context.Context, body map[string]any, dryRun bool) (models.ResolveResult, error) {
	doc, err := models.ParseDocument(body)
	if err != nil {
		return models.ResolveResult{}, err
	}
	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"entity_id":   doc.ID,
		"entity_type": doc.EntityType,
		"dry_run":     dryRun,
	})

	res := models.ResolveResult{
		EntityID:   doc.ID,
		EntityType: doc.EntityType,
		DryRun:     dryRun,
		Revision:   doc.Revision,
	}
	updated := normalizeKey(doc)

	refs := r.Scanner.Scan(doc.Body)
	res.ReferencesSeen = len(refs)
	for _, ref := range refs {
		if !ref.NeedsResolution() || nonGraphRoles[strings.ToLower(ref.Role)] {
			continue
		}
		changed, err := r.resolveReference(ctx, doc, ref, dryRun, &res)
		if err != nil {
			return res, err
		}
		updated = updated || changed
	}

	fks := edges.FromHeaderNodes(edges.SourceOf(doc), refs, r.Clock.Now().UTC())
	if !dryRun {
		if err := r.writeResolvedEdges(ctx, doc, fks, &res); err != nil {
			return res, err
		}
	}

	res.Hash, _ = r.Hasher.Stamp(doc.Body)
	res.Updated = updated

	if updated && !dryRun {
		raw, err := jsontree.Marshal(doc.Body)
		if err != nil {
			return res, fmt.Errorf("failed to encode document %s: %w", doc.ID, err)
		}
		rev, err := r.Documents.Upsert(ctx, raw, doc.Revision)
		if err != nil {
			log.WithError(err).Error("Failed to persist resolved document")
			return res, err
		}
		res.Revision = rev
		res.Persisted = true
		r.Invalidator.Invalidate(ctx, doc.ID)
	}

	log.WithFields(map[string]any{
		"updated":    res.Updated,
		"unresolved": len(res.Unresolved),
	}).Debug("Resolved document references")
	r.notify(func(n Notifier) { n.DocumentResolved(ctx, res) })
	return res, nil
}

// resolveReference tries a direct header lookup, then the node locator, and records an
// orphan when both miss. It reports whether the live reference changed.
func (r *Resolver) resolveReference(ctx context.Context, doc *models.Document, ref *models.EntityHeaderNode, dryRun bool, res *models.ResolveResult) (bool, error) {
	direct, err := r.lookupHeader(ctx, ref.ID)
	if err != nil {
		return false, err
	}
	if direct.Found {
		res.DirectResolved++
		metrics.ReferencesResolved.WithLabelValues("direct").Inc()
		return ref.Stamp(direct.Header), nil
	}

	entry, found, err := r.Locators.TryGet(ctx, ref.ID)
	if err != nil {
		return false, err
	}
	if found {
		root, err := r.lookupHeader(ctx, entry.RootID)
		if err != nil {
			return false, err
		}
		if root.Found {
			res.LocatorResolved++
			metrics.ReferencesResolved.WithLabelValues("locator").Inc()
			return ref.Stamp(root.Header), nil
		}
	}

	metrics.ReferencesResolved.WithLabelValues("orphan").Inc()
	res.Unresolved = append(res.Unresolved, models.UnresolvedReference{
		ID:         ref.ID,
		Key:        ref.Key,
		Text:       ref.Text,
		EntityType: ref.EntityType,
		Path:       ref.NormalizedPath,
	})
	changed := ref.MarkUnresolved()
	if dryRun {
		return changed, nil
	}

	o := models.OrphanRecord{
		Source:     doc.Pk(),
		TargetID:   ref.ID,
		TargetKey:  ref.Key,
		TargetText: ref.Text,
		TargetType: ref.EntityType,
		RefPath:    ref.NormalizedPath,
		RecordedAt: r.Clock.Now().UTC(),
	}
	if err := r.Orphans.Record(ctx, o); err != nil {
		return changed, err
	}
	r.notify(func(n Notifier) { n.OrphanRecorded(ctx, o) })
	return changed, nil
}

func (r *Resolver) lookupHeader(ctx context.Context, id string) (models.HeaderResult, error) {
	return r.Cache.GetOrLoad(ctx, id, func(ctx context.Context, id string) (models.HeaderResult, error) {
		return r.Documents.GetHeader(ctx, id, docstore.HeaderQuery{})
	})
}

// writeResolvedEdges upserts the current edges. With TombstoneStaleEdges it diffs against
// the stored live edges so references removed from the document are tombstoned too.
func (r *Resolver) writeResolvedEdges(ctx context.Context, doc *models.Document, fks []models.ForeignKeyEdge, res *models.ResolveResult) error {
	if !r.opts.TombstoneStaleEdges {
		n, err := r.Edges.UpsertOutbound(ctx, fks)
		if err != nil {
			return err
		}
		res.EdgesUpserted = n
		r.mirror(ctx, fks, nil)
		return nil
	}

	stored, err := r.Edges.ListOutbound(ctx, doc.Pk(), false)
	if err != nil {
		return err
	}
	d := edges.DiffOutboundEdges(liveEdges(stored), fks)
	up, tomb, err := r.Edges.Apply(ctx, d, edgeindex.ReasonReferenceRemoved)
	if err != nil {
		return err
	}
	res.EdgesUpserted, res.EdgesTombstoned = up, tomb
	r.mirror(ctx, append(d.Added, d.SameIdentity...), d.Removed)
	if len(d.Removed) > 0 {
		r.notify(func(n Notifier) { n.EdgesTombstoned(ctx, doc.Pk(), d.Removed) })
	}
	return nil
}

func liveEdges(records []models.EdgeRecord) []models.ForeignKeyEdge {
	out := make([]models.ForeignKeyEdge, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.ForeignKeyEdge)
	}
	return out
}

// normalizeKey applies the type-specific key rules before references are scanned.
func normalizeKey(doc *models.Document) bool {
	key, ok := normalizers.DeriveKey(keyRules, doc.EntityType, doc.Body)
	if !ok || key == doc.Key {
		return false
	}
	doc.SetKey(key)
	return true
}
