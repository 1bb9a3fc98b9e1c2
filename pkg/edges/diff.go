package edges

import "github.com/Ramsey-B/briar/pkg/models"

// Diff partitions two edge sets by identity.
type Diff struct {
	Added        []models.ForeignKeyEdge
	Removed      []models.ForeignKeyEdge
	SameIdentity []models.ForeignKeyEdge
}

// IsEmpty reports whether nothing was added or removed.
func (d Diff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// DiffOutboundEdges compares a source's previous and current edges by (target id, path).
// SameIdentity carries the current edges so refreshed metadata is written.
func DiffOutboundEdges(old, current []models.ForeignKeyEdge) Diff {
	oldIdx, oldOrder := index(old)
	newIdx, newOrder := index(current)

	var d Diff
	for _, key := range newOrder {
		if _, ok := oldIdx[key]; ok {
			d.SameIdentity = append(d.SameIdentity, newIdx[key])
		} else {
			d.Added = append(d.Added, newIdx[key])
		}
	}
	for _, key := range oldOrder {
		if _, ok := newIdx[key]; !ok {
			d.Removed = append(d.Removed, oldIdx[key])
		}
	}
	return d
}

// index keys edges by identity. A repeated identity keeps the last edge.
func index(edges []models.ForeignKeyEdge) (map[string]models.ForeignKeyEdge, []string) {
	idx := make(map[string]models.ForeignKeyEdge, len(edges))
	order := make([]string, 0, len(edges))
	for _, e := range edges {
		e.RefPath = NormalizeRefPath(e.RefPath)
		if e.RefPathHash == "" {
			e.RefPathHash = ComputePathHash16(e.RefPath)
		}
		key := e.IdentityKey()
		if _, seen := idx[key]; !seen {
			order = append(order, key)
		}
		idx[key] = e
	}
	return idx, order
}
