package models

// Header property names used for embedded references.
const (
	HeaderID         = "Id"
	HeaderKey        = "Key"
	HeaderText       = "Text"
	HeaderEntityType = "EntityType"
	HeaderOwnerOrgID = "OwnerOrgId"
	HeaderResolved   = "Resolved"
)

// EntityHeader is the display identity of a document: what a reference to it embeds.
type EntityHeader struct {
	ID         string `json:"id"`
	Key        string `json:"key"`
	Text       string `json:"text"`
	EntityType string `json:"entity_type"`
	OwnerOrgID string `json:"owner_org_id,omitempty"`
}

// HeaderResult is the outcome of a header lookup. A miss is data, not an error.
type HeaderResult struct {
	Header EntityHeader
	Found  bool
}

func Found(h EntityHeader) HeaderResult {
	return HeaderResult{Header: h, Found: true}
}

func NotFound() HeaderResult {
	return HeaderResult{}
}

// EntityHeaderNode is an embedded reference discovered inside a document. It keeps
// a handle on the live object so resolution can rewrite it in place.
type EntityHeaderNode struct {
	ID             string
	Key            string
	Text           string
	EntityType     string
	OwnerOrgID     string
	NormalizedPath string
	// Role is the top-level property the reference sits under, e.g. "ownerOrganization".
	Role     string
	Resolved bool

	raw map[string]any
}

// NewEntityHeaderNode reads the header fields from a live header object.
func NewEntityHeaderNode(raw map[string]any, path, role string) *EntityHeaderNode {
	n := &EntityHeaderNode{
		NormalizedPath: path,
		Role:           role,
		raw:            raw,
	}
	n.ID, _ = raw[HeaderID].(string)
	n.Key, _ = raw[HeaderKey].(string)
	n.Text, _ = raw[HeaderText].(string)
	n.EntityType, _ = raw[HeaderEntityType].(string)
	n.OwnerOrgID, _ = raw[HeaderOwnerOrgID].(string)
	n.Resolved, _ = raw[HeaderResolved].(bool)
	return n
}

// NeedsResolution reports whether the reference lacks a key or a type.
func (n *EntityHeaderNode) NeedsResolution() bool {
	return n.Key == "" || n.EntityType == ""
}

// Stamp copies the resolved header onto the reference and reports whether anything changed.
func (n *EntityHeaderNode) Stamp(h EntityHeader) bool {
	changed := false
	set := func(field string, dst *string, value string) {
		if value == "" || *dst == value {
			return
		}
		*dst = value
		if n.raw != nil {
			n.raw[field] = value
		}
		changed = true
	}
	set(HeaderID, &n.ID, h.ID)
	set(HeaderKey, &n.Key, h.Key)
	set(HeaderText, &n.Text, h.Text)
	set(HeaderEntityType, &n.EntityType, h.EntityType)
	set(HeaderOwnerOrgID, &n.OwnerOrgID, h.OwnerOrgID)

	if !n.Resolved {
		changed = true
	}
	n.Resolved = true
	if n.raw != nil {
		n.raw[HeaderResolved] = true
	}
	return changed
}

// MarkUnresolved flags the reference as pointing at nothing that currently exists.
func (n *EntityHeaderNode) MarkUnresolved() bool {
	wasResolved := n.Resolved
	_, present := n.raw[HeaderResolved]
	n.Resolved = false
	if n.raw != nil {
		n.raw[HeaderResolved] = false
	}
	return wasResolved || !present
}
