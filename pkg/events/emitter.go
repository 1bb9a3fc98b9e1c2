// Package events publishes index change notifications.
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/briar/pkg/kafka"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/tracing"
)

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	PublishIndexEvent(ctx context.Context, event *kafka.IndexEvent) error
}

// Emitter turns resolver notifications into Kafka events. Publish failures are logged,
// never returned, so indexing does not depend on the event bus.
type Emitter struct {
	publisher Publisher
	logger    ectologger.Logger
}

func NewEmitter(publisher Publisher, logger ectologger.Logger) *Emitter {
	return &Emitter{
		publisher: publisher,
		logger:    logger,
	}
}

func (e *Emitter) DocumentResolved(ctx context.Context, res models.ResolveResult) {
	if res.DryRun || !res.Updated {
		return
	}
	e.emit(ctx, EventTypeDocumentResolved, "", res.EntityType, res.EntityID, DocumentResolvedData{
		Revision:        res.Revision,
		Persisted:       res.Persisted,
		DirectResolved:  res.DirectResolved,
		LocatorResolved: res.LocatorResolved,
		Unresolved:      res.Unresolved,
	})
}

func (e *Emitter) OrphanRecorded(ctx context.Context, o models.OrphanRecord) {
	e.emit(ctx, EventTypeOrphanRecorded, o.Source.OrgOrSystem(), o.Source.EntityType, o.Source.EntityID, OrphanRecordedData{
		TargetID:   o.TargetID,
		TargetType: o.TargetType,
		RefPath:    o.RefPath,
		RecordedAt: o.RecordedAt,
	})
}

func (e *Emitter) EdgesTombstoned(ctx context.Context, source models.EntityPk, tombstoned []models.ForeignKeyEdge) {
	if len(tombstoned) == 0 {
		return
	}
	data := EdgesTombstonedData{
		Targets: make([]models.EntityPk, 0, len(tombstoned)),
		Paths:   make([]string, 0, len(tombstoned)),
	}
	for _, edge := range tombstoned {
		data.Targets = append(data.Targets, edge.Target)
		data.Paths = append(data.Paths, edge.RefPath)
	}
	e.emit(ctx, EventTypeEdgesTombstoned, source.OrgOrSystem(), source.EntityType, source.EntityID, data)
}

func (e *Emitter) LocatorsUpdated(ctx context.Context, res models.LocatorResult) {
	if res.Upserted == 0 && res.Deleted == 0 {
		return
	}
	e.emit(ctx, EventTypeLocatorsUpdated, "", "", res.EntityID, LocatorsUpdatedData{
		Upserted:  res.Upserted,
		Deleted:   res.Deleted,
		Conflicts: len(res.Conflicts),
	})
}

func (e *Emitter) emit(ctx context.Context, eventType EventType, orgID, entityType, entityID string, data any) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.emit")
	defer span.End()

	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"event_type": eventType,
		"entity_id":  entityID,
	})
	raw, err := json.Marshal(data)
	if err != nil {
		log.WithError(err).Error("Failed to encode event data")
		return
	}
	event := &kafka.IndexEvent{
		EventType:  string(eventType),
		OrgID:      orgID,
		EntityID:   entityID,
		EntityType: entityType,
		Data:       raw,
	}
	if err := e.publisher.PublishIndexEvent(ctx, event); err != nil {
		log.WithError(err).Errorf("Failed to emit %s event", eventType)
	}
}

// Nop discards every notification. It is used when the producer is disabled.
type Nop struct{}

func (Nop) DocumentResolved(context.Context, models.ResolveResult)                    {}
func (Nop) OrphanRecorded(context.Context, models.OrphanRecord)                       {}
func (Nop) EdgesTombstoned(context.Context, models.EntityPk, []models.ForeignKeyEdge) {}
func (Nop) LocatorsUpdated(context.Context, models.LocatorResult)                     {}
