// Package edges turns discovered references into foreign key edges and diffs edge sets.
package edges

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/Ramsey-B/briar/pkg/models"
)

// ComputePathHash16 returns the first 8 bytes of SHA-256(path) as 16 hex characters.
func ComputePathHash16(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:8])
}

// NormalizeRefPath trims a reference path and defaults it to the root.
func NormalizeRefPath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return "/"
	}
	return path
}

// Source is the referencing entity plus the snapshot metadata stamped onto its edges.
type Source struct {
	Pk              models.EntityPk
	Revision        int64
	LastUpdatedDate string
}

// SourceOf builds a Source from a parsed document.
func SourceOf(doc *models.Document) Source {
	return Source{Pk: doc.Pk(), Revision: doc.Revision, LastUpdatedDate: doc.LastUpdatedDate}
}

// FromHeaderNodes builds one edge per reference with a non-empty target id. Targets
// are assumed to live in the source's organization.
func FromHeaderNodes(src Source, refs []*models.EntityHeaderNode, seenAt time.Time) []models.ForeignKeyEdge {
	out := make([]models.ForeignKeyEdge, 0, len(refs))
	for _, ref := range refs {
		if ref == nil || strings.TrimSpace(ref.ID) == "" {
			continue
		}
		targetType := ref.EntityType
		if targetType == "" {
			targetType = models.UnknownEntityType
		}
		path := NormalizeRefPath(ref.NormalizedPath)
		out = append(out, models.ForeignKeyEdge{
			Source: src.Pk,
			Target: models.EntityPk{
				OrgID:      src.Pk.OrgID,
				EntityType: targetType,
				EntityID:   ref.ID,
			},
			RefPath:               path,
			RefPathHash:           ComputePathHash16(path),
			TargetKey:             ref.Key,
			TargetText:            ref.Text,
			SourceRevision:        src.Revision,
			SourceLastUpdatedDate: src.LastUpdatedDate,
			SeenAt:                seenAt,
		})
	}
	return out
}
