// Package processor keeps the secondary indices current from the documents change feed.
package processor

import (
	"context"
	"fmt"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/briar/pkg/fingerprint"
	"github.com/Ramsey-B/briar/pkg/kafka"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/tracing"
)

// DocumentsTable is the source table whose changes drive index maintenance.
const DocumentsTable = "documents"

// Refresher applies one root's before/after snapshots to the indices.
type Refresher interface {
	RefreshIndices(ctx context.Context, before, after map[string]any) (models.RefreshResult, error)
}

// ChangeProcessor handles Debezium change events for the documents table.
type ChangeProcessor struct {
	logger    ectologger.Logger
	refresher Refresher
	hasher    *fingerprint.Hasher
}

func NewChangeProcessor(logger ectologger.Logger, refresher Refresher) *ChangeProcessor {
	return &ChangeProcessor{
		logger:    logger,
		refresher: refresher,
		hasher:    fingerprint.NewHasher(),
	}
}

// ProcessMessage is a kafka.MessageHandler. A returned error leaves the offset uncommitted.
func (p *ChangeProcessor) ProcessMessage(ctx context.Context, msg *kafka.IncomingMessage) error {
	ctx, span := tracing.StartSpan(ctx, "processor.ChangeProcessor.ProcessMessage")
	defer span.End()

	if msg.Envelope == nil {
		return fmt.Errorf("change event at offset %d has no envelope", msg.Offset)
	}
	payload := msg.Envelope.Payload
	if table := payload.Source.Table; table != "" && !strings.EqualFold(table, DocumentsTable) {
		p.logger.WithContext(ctx).WithField("table", table).Debug("Skipping change event for another table")
		return nil
	}

	beforeRow, afterRow, err := payload.DocumentRows()
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to parse document rows")
		return err
	}

	var before, after map[string]any
	if beforeRow != nil {
		if before, err = beforeRow.Document(); err != nil {
			return err
		}
	}
	if afterRow != nil && !payload.IsDelete() {
		if after, err = afterRow.Document(); err != nil {
			return err
		}
	}

	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"op":        payload.Op,
		"partition": msg.Partition,
		"offset":    msg.Offset,
	})

	switch {
	case after == nil && before == nil:
		// A delete without REPLICA IDENTITY FULL carries no body to clean up from.
		log.Warn("Skipping change event without document snapshots")
		return nil
	case before != nil && after != nil && p.hasher.Hash(before) == p.hasher.Hash(after):
		log.Debug("Skipping change event with unchanged content")
		return nil
	}

	res, err := p.refresher.RefreshIndices(ctx, before, after)
	if err != nil {
		log.WithError(err).Error("Failed to refresh indices")
		return err
	}

	log.WithFields(map[string]any{
		"entity_id":        res.EntityID,
		"deleted":          res.Deleted,
		"locators_upsert":  res.Locators.Upserted,
		"locators_deleted": res.Locators.Deleted,
		"edges_added":      res.Edges.Added,
		"edges_removed":    res.Edges.Removed,
	}).Debug("Refreshed indices from change event")
	return nil
}
