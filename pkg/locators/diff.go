// Package locators diffs and deduplicates node locator entries.
package locators

import (
	"strings"

	"github.com/Ramsey-B/briar/pkg/edges"
	"github.com/Ramsey-B/briar/pkg/models"
)

// Diff is the set of locator mutations between two snapshots of a root.
type Diff struct {
	Upserts []models.NodeLocatorEntry
	Deletes []models.NodeLocatorEntry
}

// Normalize trims the path, defaults it to the root, and fills the path hash.
func Normalize(e models.NodeLocatorEntry) models.NodeLocatorEntry {
	e.NodeID = strings.TrimSpace(e.NodeID)
	e.NodePath = edges.NormalizeRefPath(e.NodePath)
	e.NodePathHash = edges.ComputePathHash16(e.NodePath)
	if strings.TrimSpace(e.NodeType) == "" {
		e.NodeType = models.UnknownNodeType
	}
	return e
}

// DiffNodeLocators upserts every current entry and deletes ids that disappeared.
// The write side is idempotent, so unchanged entries are rewritten rather than compared.
func DiffNodeLocators(old, current []models.NodeLocatorEntry) Diff {
	oldIdx, oldOrder := index(old)
	newIdx, newOrder := index(current)

	d := Diff{Upserts: make([]models.NodeLocatorEntry, 0, len(newOrder))}
	for _, id := range newOrder {
		d.Upserts = append(d.Upserts, newIdx[id])
	}
	for _, id := range oldOrder {
		if _, ok := newIdx[id]; !ok {
			d.Deletes = append(d.Deletes, oldIdx[id])
		}
	}
	return d
}

// index keys entries by node id, last write wins.
func index(entries []models.NodeLocatorEntry) (map[string]models.NodeLocatorEntry, []string) {
	idx := make(map[string]models.NodeLocatorEntry, len(entries))
	order := make([]string, 0, len(entries))
	for _, e := range entries {
		e = Normalize(e)
		if e.NodeID == "" {
			continue
		}
		if _, seen := idx[e.NodeID]; !seen {
			order = append(order, e.NodeID)
		}
		idx[e.NodeID] = e
	}
	return idx, order
}
