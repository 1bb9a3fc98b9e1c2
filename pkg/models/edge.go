package models

import "time"

// UnknownEntityType is the target type of a reference that does not name one.
const UnknownEntityType = "Unknown"

// ForeignKeyEdge is a directed reference from one entity to another.
type ForeignKeyEdge struct {
	Source                EntityPk  `json:"source"`
	Target                EntityPk  `json:"target"`
	RefPath               string    `json:"ref_path"`
	RefPathHash           string    `json:"ref_path_hash"`
	TargetKey             string    `json:"target_key,omitempty"`
	TargetText            string    `json:"target_text,omitempty"`
	SourceRevision        int64     `json:"source_revision"`
	SourceLastUpdatedDate string    `json:"source_last_updated_date,omitempty"`
	SeenAt                time.Time `json:"seen_at"`
}

// IdentityKey is (target id, reference path). Display metadata is not part of it.
func (e ForeignKeyEdge) IdentityKey() string {
	return e.Target.EntityID + "\x1f" + e.RefPath
}

// EdgeRecord is a stored edge row, including its tombstone state.
type EdgeRecord struct {
	ForeignKeyEdge
	IsDeleted       bool       `json:"is_deleted"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
	TombstoneReason string     `json:"tombstone_reason,omitempty"`
}
