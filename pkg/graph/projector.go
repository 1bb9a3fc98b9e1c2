package graph

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/briar/pkg/initgate"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/tracing"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const upsertEdgesCypher = `
	UNWIND $edges AS e
	MERGE (s:Entity {id: e.source_id, org_id: e.source_org})
	SET s.entity_type = e.source_type
	MERGE (t:Entity {id: e.target_id, org_id: e.target_org})
	ON CREATE SET t.entity_type = e.target_type
	MERGE (s)-[r:REFERENCES {ref_path_hash: e.ref_path_hash}]->(t)
	SET r.ref_path = e.ref_path,
		r.source_revision = e.source_revision,
		r.seen_at = e.seen_at,
		r.deleted_at = null
`

const tombstoneEdgesCypher = `
	UNWIND $edges AS e
	MATCH (:Entity {id: e.source_id, org_id: e.source_org})-[r:REFERENCES {ref_path_hash: e.ref_path_hash}]->(:Entity {id: e.target_id, org_id: e.target_org})
	SET r.deleted_at = $deleted_at
`

const referencesCypher = `
	MATCH (s:Entity {id: $id, org_id: $org_id})-[r:REFERENCES]->(t:Entity)
	WHERE $include_deleted OR r.deleted_at IS NULL
	RETURN t.id AS id, t.org_id AS org_id, t.entity_type AS entity_type, r.ref_path AS ref_path, r.deleted_at AS deleted_at
	ORDER BY r.ref_path
`

// Projector mirrors outbound edge writes as (:Entity)-[:REFERENCES]->(:Entity).
// Tombstoned edges keep their relationship with deleted_at set.
type Projector struct {
	client *Client
	clock  initgate.Clock
	logger ectologger.Logger
}

func NewProjector(client *Client, clock initgate.Clock, logger ectologger.Logger) *Projector {
	if clock == nil {
		clock = initgate.SystemClock{}
	}
	return &Projector{
		client: client,
		clock:  clock,
		logger: logger,
	}
}

// ProjectEdges writes upserts then tombstones in one transaction.
func (p *Projector) ProjectEdges(ctx context.Context, upserted, tombstoned []models.ForeignKeyEdge) error {
	ctx, span := tracing.StartSpan(ctx, "graph.Projector.ProjectEdges")
	defer span.End()

	if len(upserted) == 0 && len(tombstoned) == 0 {
		return nil
	}
	deletedAt := p.clock.Now().UTC().Format(time.RFC3339Nano)

	_, err := p.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if len(upserted) > 0 {
			result, err := tx.Run(ctx, upsertEdgesCypher, map[string]any{"edges": edgeParams(upserted)})
			if err != nil {
				return nil, err
			}
			if _, err := result.Consume(ctx); err != nil {
				return nil, err
			}
		}
		if len(tombstoned) > 0 {
			result, err := tx.Run(ctx, tombstoneEdgesCypher, map[string]any{
				"edges":      edgeParams(tombstoned),
				"deleted_at": deletedAt,
			})
			if err != nil {
				return nil, err
			}
			if _, err := result.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"upserted":   len(upserted),
			"tombstoned": len(tombstoned),
		}).Error("Failed to project edges to graph")
		return err
	}
	return nil
}

// Reference is one outbound edge as read back from the graph.
type Reference struct {
	Target    models.EntityPk `json:"target"`
	RefPath   string          `json:"ref_path"`
	DeletedAt string          `json:"deleted_at,omitempty"`
}

// References lists the outbound references of source.
func (p *Projector) References(ctx context.Context, source models.EntityPk, includeDeleted bool) ([]Reference, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.Projector.References")
	defer span.End()

	res, err := p.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, referencesCypher, map[string]any{
			"id":              source.EntityID,
			"org_id":          source.OrgOrSystem(),
			"include_deleted": includeDeleted,
		})
		if err != nil {
			return nil, err
		}
		refs := []Reference{}
		for result.Next(ctx) {
			refs = append(refs, referenceFromRecord(result.Record()))
		}
		return refs, result.Err()
	})
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).WithField("entity_id", source.EntityID).Error("Failed to read references from graph")
		return nil, err
	}
	return res.([]Reference), nil
}

func referenceFromRecord(record *neo4j.Record) Reference {
	str := func(key string) string {
		v, _ := record.Get(key)
		s, _ := v.(string)
		return s
	}
	return Reference{
		Target: models.EntityPk{
			OrgID:      str("org_id"),
			EntityType: str("entity_type"),
			EntityID:   str("id"),
		},
		RefPath:   str("ref_path"),
		DeletedAt: str("deleted_at"),
	}
}

func edgeParams(edges []models.ForeignKeyEdge) []map[string]any {
	out := make([]map[string]any, 0, len(edges))
	for _, e := range edges {
		out = append(out, map[string]any{
			"source_id":       e.Source.EntityID,
			"source_org":      e.Source.OrgOrSystem(),
			"source_type":     e.Source.EntityType,
			"target_id":       e.Target.EntityID,
			"target_org":      e.Target.OrgOrSystem(),
			"target_type":     e.Target.EntityType,
			"ref_path":        e.RefPath,
			"ref_path_hash":   e.RefPathHash,
			"source_revision": e.SourceRevision,
			"seen_at":         e.SeenAt.UTC().Format(time.RFC3339Nano),
		})
	}
	return out
}
