package models

import "time"

// OrphanRecord is a reference whose target could not be found anywhere.
type OrphanRecord struct {
	Source     EntityPk  `json:"source"`
	TargetID   string    `json:"target_id"`
	TargetKey  string    `json:"target_key,omitempty"`
	TargetText string    `json:"target_text,omitempty"`
	TargetType string    `json:"target_type,omitempty"`
	RefPath    string    `json:"ref_path"`
	RecordedAt time.Time `json:"recorded_at"`
}
