// Package nodes discovers the addressable sub-objects of a document.
package nodes

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Ramsey-B/briar/pkg/models"
)

const (
	RootPath    = "/"
	idSegPrefix = "@id="
)

// Root describes the document being walked.
type Root struct {
	OrgID           string
	Type            string
	ID              string
	Revision        int64
	LastUpdatedDate string
}

// RootOf builds a Root from a parsed document.
func RootOf(doc *models.Document) Root {
	return Root{
		OrgID:           doc.OrgID(),
		Type:            doc.EntityType,
		ID:              doc.ID,
		Revision:        doc.Revision,
		LastUpdatedDate: doc.LastUpdatedDate,
	}
}

// Walker extracts node locator entries from documents.
type Walker struct {
	exclusions Exclusions
	now        func() time.Time
}

func NewWalker(exclusions Exclusions, now func() time.Time) *Walker {
	if now == nil {
		now = time.Now
	}
	return &Walker{exclusions: exclusions, now: now}
}

// Walk returns one entry for the root at "/" plus one per node found below it.
func (w *Walker) Walk(body map[string]any, root Root) []models.NodeLocatorEntry {
	seenAt := w.now().UTC()
	out := []models.NodeLocatorEntry{w.entry(root, root.ID, RootPath, root.Type, seenAt)}

	for _, name := range sortedKeys(body) {
		out = w.walkValue(body[name], JoinPath(RootPath, name), root, seenAt, out)
	}
	return out
}

func (w *Walker) walkValue(v any, path string, root Root, seenAt time.Time, out []models.NodeLocatorEntry) []models.NodeLocatorEntry {
	switch t := v.(type) {
	case map[string]any:
		return w.walkObject(t, path, root, seenAt, out)
	case []any:
		for i, elem := range t {
			obj, isObj := elem.(map[string]any)
			if isObj && IsHeaderLike(obj) {
				continue
			}
			seg := strconv.Itoa(i)
			if isObj {
				if id := NodeID(obj); id != "" {
					seg = idSegPrefix + id
				}
			}
			out = w.walkValue(elem, JoinPath(path, seg), root, seenAt, out)
		}
	}
	return out
}

func (w *Walker) walkObject(obj map[string]any, path string, root Root, seenAt time.Time, out []models.NodeLocatorEntry) []models.NodeLocatorEntry {
	if IsHeaderLike(obj) {
		return out
	}
	if w.exclusions.excluded(path, root.Type) {
		return out
	}
	if id := NodeID(obj); id != "" && path != RootPath {
		nodeType, _ := obj["EntityType"].(string)
		if nodeType == "" {
			nodeType, _ = obj["entityType"].(string)
		}
		if nodeType == "" {
			nodeType = TypeFromPath(path)
		}
		out = append(out, w.entry(root, id, path, nodeType, seenAt))
	}
	for _, name := range sortedKeys(obj) {
		out = w.walkValue(obj[name], JoinPath(path, name), root, seenAt, out)
	}
	return out
}

func (w *Walker) entry(root Root, id, path, nodeType string, seenAt time.Time) models.NodeLocatorEntry {
	return models.NodeLocatorEntry{
		NodeID:              id,
		NodePath:            path,
		NodeType:            nodeType,
		RootOrgID:           root.OrgID,
		RootType:            root.Type,
		RootID:              root.ID,
		RootRevision:        root.Revision,
		RootLastUpdatedDate: root.LastUpdatedDate,
		SeenAt:              seenAt,
	}
}

// TypeFromPath singularizes the last path segment that is neither an index nor an id selector.
func TypeFromPath(path string) string {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	for i := len(segs) - 1; i >= 0; i-- {
		seg := segs[i]
		if seg == "" || strings.HasPrefix(seg, idSegPrefix) {
			continue
		}
		if _, err := strconv.Atoi(seg); err == nil {
			continue
		}
		return Singularize(seg)
	}
	return models.UnknownNodeType
}

// JoinPath appends a segment to a canonical path.
func JoinPath(parent, seg string) string {
	if parent == RootPath || parent == "" {
		return RootPath + seg
	}
	return parent + "/" + seg
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
