package events

import (
	"time"

	"github.com/Ramsey-B/briar/pkg/models"
)

type EventType string

const (
	EventTypeDocumentResolved EventType = "document.resolved"
	EventTypeOrphanRecorded   EventType = "orphan.recorded"
	EventTypeEdgesTombstoned  EventType = "edges.tombstoned"
	EventTypeLocatorsUpdated  EventType = "locators.updated"
)

// DocumentResolvedData is the payload of document.resolved.
type DocumentResolvedData struct {
	Revision        int64                        `json:"revision"`
	Persisted       bool                         `json:"persisted"`
	DirectResolved  int                          `json:"direct_resolved"`
	LocatorResolved int                          `json:"locator_resolved"`
	Unresolved      []models.UnresolvedReference `json:"unresolved,omitempty"`
}

// OrphanRecordedData is the payload of orphan.recorded.
type OrphanRecordedData struct {
	TargetID   string    `json:"target_id"`
	TargetType string    `json:"target_type,omitempty"`
	RefPath    string    `json:"ref_path"`
	RecordedAt time.Time `json:"recorded_at"`
}

// EdgesTombstonedData is the payload of edges.tombstoned.
type EdgesTombstonedData struct {
	Targets []models.EntityPk `json:"targets"`
	Paths   []string          `json:"paths"`
}

// LocatorsUpdatedData is the payload of locators.updated.
type LocatorsUpdatedData struct {
	Upserted  int `json:"upserted"`
	Deleted   int `json:"deleted"`
	Conflicts int `json:"conflicts"`
}
