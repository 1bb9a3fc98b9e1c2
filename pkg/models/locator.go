package models

import "time"

// UnknownNodeType marks a node whose type could not be derived.
const UnknownNodeType = "-"

// NodeLocatorEntry records that a node id lives inside a root document at a path.
type NodeLocatorEntry struct {
	NodeID              string    `json:"node_id"`
	NodePath            string    `json:"node_path"`
	NodePathHash        string    `json:"node_path_hash,omitempty"`
	NodeType            string    `json:"node_type"`
	RootOrgID           string    `json:"root_org_id"`
	RootType            string    `json:"root_type"`
	RootID              string    `json:"root_id"`
	RootRevision        int64     `json:"root_revision"`
	RootLastUpdatedDate string    `json:"root_last_updated_date,omitempty"`
	SeenAt              time.Time `json:"seen_at"`
}

// LocatorConflict reports a node id seen at more than one path or with more than one type.
type LocatorConflict struct {
	NodeID string   `json:"node_id"`
	Paths  []string `json:"paths"`
	Types  []string `json:"types"`
}
