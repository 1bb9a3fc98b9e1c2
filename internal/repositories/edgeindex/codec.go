package edgeindex

import (
	"time"

	"github.com/Ramsey-B/briar/pkg/jsontree"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/tablestore"
)

// Row property names.
const (
	propSourceOrgID           = "SourceOrgId"
	propSourceType            = "SourceEntityType"
	propSourceID              = "SourceEntityId"
	propTargetOrgID           = "TargetOrgId"
	propTargetType            = "TargetEntityType"
	propTargetID              = "TargetEntityId"
	propRefPath               = "RefPath"
	propRefPathHash           = "RefPathHash"
	propTargetKey             = "TargetKey"
	propTargetText            = "TargetText"
	propSourceRevision        = "SourceRevision"
	propSourceLastUpdatedDate = "SourceLastUpdatedDate"
	propSeenAt                = "SeenAt"
	propIsDeleted             = "IsDeleted"
	propDeletedAt             = "DeletedAt"
	propTombstoneReason       = "TombstoneReason"
)

// OutboundKeys answers "what does source point at". The row key leaves out the
// target type so an Unknown reference and its resolved form share one row.
func OutboundKeys(e models.ForeignKeyEdge) (string, string) {
	return e.Source.Identity(), e.Target.RefIdentity() + "|" + e.RefPathHash
}

// InboundKeys answers "who points at target".
func InboundKeys(e models.ForeignKeyEdge) (string, string) {
	return e.Target.RefIdentity(), e.Source.Identity() + "|" + e.RefPathHash
}

// encode writes every tombstone field, so an upsert of a live edge clears a previous tombstone.
func encode(rec models.EdgeRecord) map[string]any {
	props := map[string]any{
		propSourceOrgID:           rec.Source.OrgOrSystem(),
		propSourceType:            rec.Source.EntityType,
		propSourceID:              rec.Source.EntityID,
		propTargetOrgID:           rec.Target.OrgOrSystem(),
		propTargetType:            rec.Target.EntityType,
		propTargetID:              rec.Target.EntityID,
		propRefPath:               rec.RefPath,
		propRefPathHash:           rec.RefPathHash,
		propTargetKey:             rec.TargetKey,
		propTargetText:            rec.TargetText,
		propSourceRevision:        rec.SourceRevision,
		propSourceLastUpdatedDate: rec.SourceLastUpdatedDate,
		propSeenAt:                rec.SeenAt.UTC().Format(time.RFC3339Nano),
		propIsDeleted:             rec.IsDeleted,
		propDeletedAt:             nil,
		propTombstoneReason:       rec.TombstoneReason,
	}
	if rec.DeletedAt != nil {
		props[propDeletedAt] = rec.DeletedAt.UTC().Format(time.RFC3339Nano)
	}
	return props
}

func orgFromRow(v string) string {
	if v == models.SystemOrg {
		return ""
	}
	return v
}

func decode(e tablestore.Entity) models.EdgeRecord {
	p := e.Properties
	rec := models.EdgeRecord{
		ForeignKeyEdge: models.ForeignKeyEdge{
			Source: models.EntityPk{
				OrgID:      orgFromRow(jsontree.String(p, propSourceOrgID)),
				EntityType: jsontree.String(p, propSourceType),
				EntityID:   jsontree.String(p, propSourceID),
			},
			Target: models.EntityPk{
				OrgID:      orgFromRow(jsontree.String(p, propTargetOrgID)),
				EntityType: jsontree.String(p, propTargetType),
				EntityID:   jsontree.String(p, propTargetID),
			},
			RefPath:               jsontree.String(p, propRefPath),
			RefPathHash:           jsontree.String(p, propRefPathHash),
			TargetKey:             jsontree.String(p, propTargetKey),
			TargetText:            jsontree.String(p, propTargetText),
			SourceRevision:        jsontree.Int64(p[propSourceRevision]),
			SourceLastUpdatedDate: jsontree.String(p, propSourceLastUpdatedDate),
		},
		TombstoneReason: jsontree.String(p, propTombstoneReason),
	}
	rec.IsDeleted, _ = p[propIsDeleted].(bool)
	if t, err := time.Parse(time.RFC3339Nano, jsontree.String(p, propSeenAt)); err == nil {
		rec.SeenAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, jsontree.String(p, propDeletedAt)); err == nil {
		rec.DeletedAt = &t
	}
	return rec
}

func operations(rec models.EdgeRecord) (outbound, inbound tablestore.Operation) {
	props := encode(rec)
	opk, ork := OutboundKeys(rec.ForeignKeyEdge)
	ipk, irk := InboundKeys(rec.ForeignKeyEdge)
	outbound = tablestore.Upsert(tablestore.Entity{PartitionKey: opk, RowKey: ork, Properties: props})
	inbound = tablestore.Upsert(tablestore.Entity{PartitionKey: ipk, RowKey: irk, Properties: jsontree.Clone(props)})
	return outbound, inbound
}
