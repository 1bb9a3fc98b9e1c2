package docstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/Ramsey-B/briar/pkg/jsontree"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/patchpath"
)

// MemoryStore is an in-process Store for tests and local runs.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]map[string]any
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]map[string]any)}
}

func (s *MemoryStore) GetHeader(_ context.Context, id string, q HeaderQuery) (models.HeaderResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	body, ok := s.docs[id]
	if !ok {
		return models.NotFound(), nil
	}
	doc, err := models.ParseDocument(body)
	if err != nil || !headerMatches(doc, q) {
		return models.NotFound(), nil
	}
	return models.Found(doc.Header()), nil
}

func (s *MemoryStore) QueryHeaders(_ context.Context, entityType, search string, limit int) ([]models.EntityHeader, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.EntityHeader
	for _, id := range s.sortedIDs() {
		doc, err := models.ParseDocument(s.docs[id])
		if err != nil || !strings.EqualFold(doc.EntityType, entityType) {
			continue
		}
		h := doc.Header()
		if !searchMatches(h, search) {
			continue
		}
		out = append(out, h)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) Read(_ context.Context, id string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	body, ok := s.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return jsontree.Clone(body), nil
}

func (s *MemoryStore) Upsert(_ context.Context, raw []byte, expectedRevision int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	probe, err := models.ParseRawDocument(raw)
	if err != nil {
		return 0, err
	}
	existing, exists := s.docs[probe.ID]
	doc, err := prepareWrite(raw, jsontree.Int64(existing[models.DocRevision]), exists, expectedRevision)
	if err != nil {
		return 0, err
	}
	s.docs[doc.ID] = doc.Body
	return doc.Revision, nil
}

func (s *MemoryStore) Patch(_ context.Context, id string, ops []patchpath.Operation, expectedRevision int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	body, ok := s.docs[id]
	if !ok {
		return 0, ErrNotFound
	}
	doc, err := applyPatch(body, ops, expectedRevision)
	if err != nil {
		return 0, err
	}
	s.docs[id] = doc.Body
	return doc.Revision, nil
}

func (s *MemoryStore) ScanPage(_ context.Context, entityType, token string, pageSize int) (Page, error) {
	after, err := DecodeToken(token)
	if err != nil {
		return Page{}, err
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var page Page
	var lastID string
	more := false
	for _, id := range s.sortedIDs() {
		if id <= after {
			continue
		}
		if !strings.EqualFold(jsontree.String(s.docs[id], models.DocEntityType), entityType) {
			continue
		}
		if len(page.Documents) == pageSize {
			more = true
			break
		}
		page.Documents = append(page.Documents, jsontree.Clone(s.docs[id]))
		lastID = id
	}
	if more {
		page.ContinuationToken = EncodeToken(lastID)
	}
	return page, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return ErrNotFound
	}
	delete(s.docs, id)
	return nil
}

func (s *MemoryStore) sortedIDs() []string {
	ids := make([]string, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
