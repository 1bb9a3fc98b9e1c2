package edges

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/briar/pkg/models"
)

func testSource() Source {
	return Source{
		Pk:              models.EntityPk{OrgID: "org-1", EntityType: "Widget", EntityID: "src"},
		Revision:        7,
		LastUpdatedDate: "2026-01-01T00:00:00Z",
	}
}

func edge(target, path, text string, seen time.Time) models.ForeignKeyEdge {
	return models.ForeignKeyEdge{
		Source:      testSource().Pk,
		Target:      models.EntityPk{OrgID: "org-1", EntityType: "Thing", EntityID: target},
		RefPath:     path,
		RefPathHash: ComputePathHash16(path),
		TargetText:  text,
		SeenAt:      seen,
	}
}

func TestComputePathHash16(t *testing.T) {
	a := ComputePathHash16("/refs/0")
	b := ComputePathHash16("/refs/0")
	c := ComputePathHash16("/refs/1")

	assert.Len(t, a, 16)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, ComputePathHash16(""), 16)
	assert.Regexp(t, "^[0-9a-f]{16}$", a)
}

func TestFromHeaderNodes(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	refs := []*models.EntityHeaderNode{
		models.NewEntityHeaderNode(map[string]any{"Id": "t1", "Key": "k1", "Text": "One", "EntityType": "Thing"}, "/refs/0", "refs"),
		models.NewEntityHeaderNode(map[string]any{"Id": "t2"}, "  ", "refs"),
		models.NewEntityHeaderNode(map[string]any{"Id": "", "Key": "empty"}, "/refs/2", "refs"),
	}

	out := FromHeaderNodes(testSource(), refs, now)
	require.Len(t, out, 2)

	assert.Equal(t, "t1", out[0].Target.EntityID)
	assert.Equal(t, "Thing", out[0].Target.EntityType)
	assert.Equal(t, "org-1", out[0].Target.OrgID)
	assert.Equal(t, "k1", out[0].TargetKey)
	assert.Equal(t, "One", out[0].TargetText)
	assert.Equal(t, int64(7), out[0].SourceRevision)
	assert.Equal(t, ComputePathHash16("/refs/0"), out[0].RefPathHash)
	assert.Equal(t, now, out[0].SeenAt)

	assert.Equal(t, models.UnknownEntityType, out[1].Target.EntityType)
	assert.Equal(t, "/", out[1].RefPath)
}

func TestDiffOutboundEdges(t *testing.T) {
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	t.Run("identical identity ignores metadata", func(t *testing.T) {
		old := []models.ForeignKeyEdge{edge("a", "/x", "Old", t1), edge("b", "/y", "B", t1)}
		current := []models.ForeignKeyEdge{edge("a", "/x", "New", t2), edge("b", "/y", "B", t2)}

		d := DiffOutboundEdges(old, current)
		assert.Empty(t, d.Added)
		assert.Empty(t, d.Removed)
		require.Len(t, d.SameIdentity, 2)
		assert.Equal(t, "New", d.SameIdentity[0].TargetText)
		assert.True(t, d.IsEmpty())
	})

	t.Run("self diff", func(t *testing.T) {
		e := []models.ForeignKeyEdge{edge("a", "/x", "A", t1), edge("c", "/z", "C", t1)}
		d := DiffOutboundEdges(e, e)
		assert.Empty(t, d.Added)
		assert.Empty(t, d.Removed)
		assert.Equal(t, e, d.SameIdentity)
	})

	t.Run("added and removed", func(t *testing.T) {
		old := []models.ForeignKeyEdge{edge("a", "/x", "A", t1), edge("b", "/y", "B", t1)}
		current := []models.ForeignKeyEdge{edge("a", "/x", "A", t1), edge("b", "/moved", "B", t1), edge("c", "/z", "C", t1)}

		d := DiffOutboundEdges(old, current)
		require.Len(t, d.Added, 2)
		assert.Equal(t, "/moved", d.Added[0].RefPath)
		assert.Equal(t, "c", d.Added[1].Target.EntityID)
		require.Len(t, d.Removed, 1)
		assert.Equal(t, "/y", d.Removed[0].RefPath)
		require.Len(t, d.SameIdentity, 1)
		assert.False(t, d.IsEmpty())
	})

	t.Run("duplicate identity keeps last", func(t *testing.T) {
		current := []models.ForeignKeyEdge{edge("a", "/x", "first", t1), edge("a", "/x", "second", t2)}
		d := DiffOutboundEdges(nil, current)
		require.Len(t, d.Added, 1)
		assert.Equal(t, "second", d.Added[0].TargetText)
	})

	t.Run("everything removed", func(t *testing.T) {
		old := []models.ForeignKeyEdge{edge("a", "/x", "A", t1)}
		d := DiffOutboundEdges(old, nil)
		assert.Empty(t, d.Added)
		assert.Len(t, d.Removed, 1)
	})
}
