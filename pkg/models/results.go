package models

// UnresolvedReference is surfaced to operators for manual triage.
type UnresolvedReference struct {
	ID         string `json:"id"`
	Key        string `json:"key,omitempty"`
	Text       string `json:"text,omitempty"`
	EntityType string `json:"entity_type,omitempty"`
	Path       string `json:"path"`
}

// ResolveResult is the outcome of resolving a single document's references.
type ResolveResult struct {
	EntityID        string                `json:"entity_id"`
	EntityType      string                `json:"entity_type"`
	DryRun          bool                  `json:"dry_run"`
	Updated         bool                  `json:"updated"`
	Persisted       bool                  `json:"persisted"`
	Revision        int64                 `json:"revision"`
	Hash            string                `json:"hash"`
	ReferencesSeen  int                   `json:"references_seen"`
	DirectResolved  int                   `json:"direct_resolved"`
	LocatorResolved int                   `json:"locator_resolved"`
	Unresolved      []UnresolvedReference `json:"unresolved,omitempty"`
	EdgesUpserted   int                   `json:"edges_upserted"`
	EdgesTombstoned int                   `json:"edges_tombstoned"`
}

// LocatorResult is the outcome of indexing one document's nodes.
type LocatorResult struct {
	EntityID  string            `json:"entity_id"`
	Upserted  int               `json:"upserted"`
	Deleted   int               `json:"deleted"`
	Conflicts []LocatorConflict `json:"conflicts,omitempty"`
}

// EdgeReconcileResult is the outcome of diffing one document's outbound edges.
type EdgeReconcileResult struct {
	EntityID  string `json:"entity_id"`
	Added     int    `json:"added"`
	Removed   int    `json:"removed"`
	Unchanged int    `json:"unchanged"`
}

// Bulk item statuses.
const (
	StatusOK      = "ok"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
	StatusDeleted = "deleted"
	StatusMatched = "matched"
)

// BulkRequest drives one run of a resumable maintenance job.
type BulkRequest struct {
	EntityType        string `json:"entity_type" validate:"required"`
	ContinuationToken string `json:"continuation_token,omitempty"`
	PageSize          int    `json:"page_size" validate:"omitempty,min=1,max=1000"`
	MaxPages          int    `json:"max_pages" validate:"omitempty,min=0"`
	DryRun            bool   `json:"dry_run"`
	// Filter is an optional JMESPath predicate used by scans.
	Filter string `json:"filter,omitempty"`
}

// BulkItemResult is the per-document outcome inside a bulk run.
type BulkItemResult struct {
	EntityID string `json:"entity_id"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Detail   any    `json:"detail,omitempty"`
}

// BulkResult is returned after each run so callers can checkpoint the token.
type BulkResult struct {
	Operation         string           `json:"operation"`
	EntityType        string           `json:"entity_type"`
	Results           []BulkItemResult `json:"results"`
	ContinuationToken string           `json:"continuation_token,omitempty"`
	Pages             int              `json:"pages"`
	Processed         int              `json:"processed"`
	Failed            int              `json:"failed"`
	Done              bool             `json:"done"`
}

// RefreshResult is the outcome of incrementally refreshing one root's index rows.
type RefreshResult struct {
	EntityID string              `json:"entity_id"`
	Deleted  bool                `json:"deleted"`
	Locators LocatorResult       `json:"locators"`
	Edges    EdgeReconcileResult `json:"edges"`
}
