// Package docstore is the primary document store client. Documents are JSON trees with
// a known envelope (see models.Document); revisions provide optimistic concurrency.
package docstore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/Ramsey-B/briar/pkg/jsontree"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/patchpath"
)

var (
	ErrNotFound = errors.New("document not found")
	// ErrConflict means the stored revision did not match the expected one.
	ErrConflict = errors.New("document revision conflict")
)

// HeaderQuery optionally scopes a header lookup.
type HeaderQuery struct {
	OwnerOrgID string
	EntityType string
}

// Page is one slice of a paged scan. An empty ContinuationToken means the scan is done.
type Page struct {
	Documents         []map[string]any
	ContinuationToken string
}

type Store interface {
	// GetHeader returns NotFound rather than an error when no document matches.
	GetHeader(ctx context.Context, id string, q HeaderQuery) (models.HeaderResult, error)
	QueryHeaders(ctx context.Context, entityType, search string, limit int) ([]models.EntityHeader, error)
	Read(ctx context.Context, id string) (map[string]any, error)
	// Upsert stores raw and returns the new revision. expectedRevision 0 skips the check.
	Upsert(ctx context.Context, raw []byte, expectedRevision int64) (int64, error)
	// Patch applies concrete-path operations and returns the new revision.
	Patch(ctx context.Context, id string, ops []patchpath.Operation, expectedRevision int64) (int64, error)
	ScanPage(ctx context.Context, entityType, token string, pageSize int) (Page, error)
	Delete(ctx context.Context, id string) error
}

const DefaultPageSize = 100

// EncodeToken wraps the last id of a page into an opaque continuation token.
func EncodeToken(lastID string) string {
	if lastID == "" {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte(lastID))
}

// DecodeToken returns the id a scan resumes after.
func DecodeToken(token string) (string, error) {
	if token == "" {
		return "", nil
	}
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("%w: invalid continuation token", models.ErrValidation)
	}
	return string(b), nil
}

// prepareWrite validates raw for storage and stamps the next revision.
func prepareWrite(raw []byte, current int64, exists bool, expected int64) (*models.Document, error) {
	doc, err := models.ParseRawDocument(raw)
	if err != nil {
		return nil, err
	}
	if err := doc.ValidateForWrite(); err != nil {
		return nil, err
	}
	if err := checkRevision(doc.ID, current, exists, expected); err != nil {
		return nil, err
	}
	doc.Revision = current + 1
	doc.Body[models.DocRevision] = doc.Revision
	return doc, nil
}

func checkRevision(id string, current int64, exists bool, expected int64) error {
	if expected == 0 {
		return nil
	}
	if !exists || current != expected {
		return fmt.Errorf("%w: %s expected revision %d, stored %d", ErrConflict, id, expected, current)
	}
	return nil
}

// applyPatch runs ops against a copy of body and stamps the next revision.
func applyPatch(body map[string]any, ops []patchpath.Operation, expected int64) (*models.Document, error) {
	current := jsontree.Int64(body[models.DocRevision])
	id := jsontree.String(body, models.DocID)
	if err := checkRevision(id, current, true, expected); err != nil {
		return nil, err
	}
	patched := jsontree.Clone(body)
	if err := patchpath.Apply(patched, ops); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	doc, err := models.ParseDocument(patched)
	if err != nil {
		return nil, err
	}
	if doc.ID != id {
		return nil, fmt.Errorf("%w: patch may not change the document id", models.ErrValidation)
	}
	doc.Revision = current + 1
	doc.Body[models.DocRevision] = doc.Revision
	return doc, nil
}

func headerMatches(doc *models.Document, q HeaderQuery) bool {
	if q.OwnerOrgID != "" && !strings.EqualFold(doc.OrgID(), q.OwnerOrgID) {
		return false
	}
	if q.EntityType != "" && !strings.EqualFold(doc.EntityType, q.EntityType) {
		return false
	}
	return true
}

func searchMatches(h models.EntityHeader, search string) bool {
	if search == "" {
		return true
	}
	search = strings.ToLower(search)
	return strings.Contains(strings.ToLower(h.Key), search) || strings.Contains(strings.ToLower(h.Text), search)
}
