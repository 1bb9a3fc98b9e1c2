// Package orphan records references whose targets could not be found anywhere.
package orphan

import (
	"context"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/briar/pkg/initgate"
	"github.com/Ramsey-B/briar/pkg/jsontree"
	"github.com/Ramsey-B/briar/pkg/metrics"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/tablestore"
	"github.com/Ramsey-B/briar/pkg/tracing"
)

// Keys returns (org or SYSTEM | source type, source id).
func Keys(source models.EntityPk) (string, string) {
	return source.OrgOrSystem() + "|" + source.EntityType, source.EntityID
}

// Repository writes orphan rows. Rows are only ever added or replaced.
type Repository struct {
	client tablestore.Client
	table  string
	gate   *initgate.Gate
	logger ectologger.Logger
}

func NewRepository(client tablestore.Client, table string, clock initgate.Clock, logger ectologger.Logger) *Repository {
	return &Repository{
		client: client,
		table:  table,
		gate:   initgate.New(clock),
		logger: logger,
	}
}

// Record stores the latest unresolved target seen for a source entity.
func (r *Repository) Record(ctx context.Context, o models.OrphanRecord) error {
	ctx, span := tracing.StartSpan(ctx, "orphan.Repository.Record")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"table":     r.table,
		"entity_id": o.Source.EntityID,
		"target_id": o.TargetID,
	})

	err := r.gate.Ensure(ctx, func(ctx context.Context) error {
		return r.client.CreateTableIfNotExists(ctx, r.table)
	})
	if err != nil {
		log.WithError(err).Error("Failed to initialize orphan table")
		return err
	}

	pk, rk := Keys(o.Source)
	err = r.client.Upsert(ctx, r.table, tablestore.Entity{
		PartitionKey: pk,
		RowKey:       rk,
		Properties: map[string]any{
			"SourceOrgId":      o.Source.OrgOrSystem(),
			"SourceEntityType": o.Source.EntityType,
			"SourceEntityId":   o.Source.EntityID,
			"TargetId":         o.TargetID,
			"TargetKey":        o.TargetKey,
			"TargetText":       o.TargetText,
			"TargetEntityType": o.TargetType,
			"RefPath":          o.RefPath,
			"RecordedAt":       o.RecordedAt.UTC().Format(time.RFC3339Nano),
		},
	})
	if err != nil {
		log.WithError(err).Error("Failed to record orphaned reference")
		return err
	}

	metrics.OrphansRecorded.Inc()
	log.Debug("Recorded orphaned reference")
	return nil
}

// Get returns the orphan row for a source, if any.
func (r *Repository) Get(ctx context.Context, source models.EntityPk) (models.OrphanRecord, bool, error) {
	pk, rk := Keys(source)
	row, err := r.client.Get(ctx, r.table, pk, rk)
	if err != nil {
		if errors.Is(err, tablestore.ErrNotFound) || errors.Is(err, tablestore.ErrTableNotFound) {
			return models.OrphanRecord{}, false, nil
		}
		return models.OrphanRecord{}, false, err
	}
	p := row.Properties
	rec := models.OrphanRecord{
		Source:     source,
		TargetID:   jsontree.String(p, "TargetId"),
		TargetKey:  jsontree.String(p, "TargetKey"),
		TargetText: jsontree.String(p, "TargetText"),
		TargetType: jsontree.String(p, "TargetEntityType"),
		RefPath:    jsontree.String(p, "RefPath"),
	}
	rec.RecordedAt, _ = time.Parse(time.RFC3339Nano, jsontree.String(p, "RecordedAt"))
	return rec, true, nil
}
