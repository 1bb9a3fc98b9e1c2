package models

import (
	"fmt"
	"strings"

	"github.com/Ramsey-B/briar/pkg/jsontree"
)

// Top-level document property names.
const (
	DocID                = "id"
	DocEntityType        = "entityType"
	DocKey               = "key"
	DocOwnerOrganization = "ownerOrganization"
	DocRevision          = "revision"
	DocLastUpdatedDate   = "lastUpdatedDate"
	DocHash              = "hash"
	DocCreatedBy         = "createdBy"
	DocLastUpdatedBy     = "lastUpdatedBy"
)

// SystemOrg stands in for documents that have no owning organization.
const SystemOrg = "SYSTEM"

// Document is the known envelope of a stored JSON document. Body is the live tree.
type Document struct {
	ID                string
	EntityType        string
	Key               string
	OwnerOrganization *EntityHeader
	Revision          int64
	LastUpdatedDate   string
	Body              map[string]any
}

// ParseDocument reads the envelope from a tree. id and entityType are required.
func ParseDocument(body map[string]any) (*Document, error) {
	if body == nil {
		return nil, fmt.Errorf("%w: document is empty", ErrValidation)
	}
	doc := &Document{
		ID:              jsontree.String(body, DocID),
		EntityType:      jsontree.String(body, DocEntityType),
		Key:             jsontree.String(body, DocKey),
		Revision:        jsontree.Int64(body[DocRevision]),
		LastUpdatedDate: jsontree.String(body, DocLastUpdatedDate),
		Body:            body,
	}
	if doc.ID == "" {
		return nil, fmt.Errorf("%w: document has no id", ErrValidation)
	}
	if doc.EntityType == "" {
		return nil, fmt.Errorf("%w: document %s has no entityType", ErrValidation, doc.ID)
	}
	if owner, ok := body[DocOwnerOrganization].(map[string]any); ok {
		h := NewEntityHeaderNode(owner, "/"+DocOwnerOrganization, DocOwnerOrganization)
		if h.ID != "" {
			doc.OwnerOrganization = &EntityHeader{ID: h.ID, Key: h.Key, Text: h.Text, EntityType: h.EntityType}
		}
	}
	return doc, nil
}

// ParseRawDocument decodes and parses a raw JSON document.
func ParseRawDocument(raw []byte) (*Document, error) {
	body, err := jsontree.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return ParseDocument(body)
}

// ValidateForWrite additionally requires a key.
func (d *Document) ValidateForWrite() error {
	if strings.TrimSpace(d.Key) == "" {
		return fmt.Errorf("%w: document %s has no key", ErrValidation, d.ID)
	}
	return nil
}

// OrgID is the owning organization id, or "" for unowned documents.
func (d *Document) OrgID() string {
	if d.OwnerOrganization == nil {
		return ""
	}
	return d.OwnerOrganization.ID
}

func (d *Document) Pk() EntityPk {
	return EntityPk{OrgID: d.OrgID(), EntityType: d.EntityType, EntityID: d.ID}
}

// Header derives the reference header other documents embed for this one.
func (d *Document) Header() EntityHeader {
	text := jsontree.String(d.Body, "name", "displayName", "title", "text")
	if text == "" {
		text = d.Key
	}
	return EntityHeader{
		ID:         d.ID,
		Key:        d.Key,
		Text:       text,
		EntityType: d.EntityType,
		OwnerOrgID: d.OrgID(),
	}
}

// SetKey updates both the envelope and the live tree.
func (d *Document) SetKey(key string) {
	d.Key = key
	d.Body[DocKey] = key
}
