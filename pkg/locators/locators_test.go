package locators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/briar/pkg/edges"
	"github.com/Ramsey-B/briar/pkg/models"
)

const rootID = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func loc(id, path, nodeType string, seen time.Time) models.NodeLocatorEntry {
	return models.NodeLocatorEntry{NodeID: id, NodePath: path, NodeType: nodeType, RootID: rootID, SeenAt: seen}
}

func TestDiffNodeLocators(t *testing.T) {
	t.Run("upserts everything new and deletes what vanished", func(t *testing.T) {
		old := []models.NodeLocatorEntry{loc("a", "/A", "A", t0), loc("b", "/B", "B", t0)}
		current := []models.NodeLocatorEntry{loc("a", "/A", "A", t0), loc("c", "/C", "C", t0)}

		d := DiffNodeLocators(old, current)
		require.Len(t, d.Upserts, 2)
		assert.Equal(t, "a", d.Upserts[0].NodeID)
		assert.Equal(t, "c", d.Upserts[1].NodeID)
		require.Len(t, d.Deletes, 1)
		assert.Equal(t, "b", d.Deletes[0].NodeID)
	})

	t.Run("normalizes paths", func(t *testing.T) {
		d := DiffNodeLocators(nil, []models.NodeLocatorEntry{loc("a", "  ", "", t0)})
		require.Len(t, d.Upserts, 1)
		assert.Equal(t, "/", d.Upserts[0].NodePath)
		assert.Equal(t, edges.ComputePathHash16("/"), d.Upserts[0].NodePathHash)
		assert.Equal(t, models.UnknownNodeType, d.Upserts[0].NodeType)
	})

	t.Run("last write wins inside one sequence", func(t *testing.T) {
		current := []models.NodeLocatorEntry{loc("a", "/first", "A", t0), loc("a", "/second", "A", t0)}
		d := DiffNodeLocators(nil, current)
		require.Len(t, d.Upserts, 1)
		assert.Equal(t, "/second", d.Upserts[0].NodePath)
	})

	t.Run("empty new deletes all", func(t *testing.T) {
		d := DiffNodeLocators([]models.NodeLocatorEntry{loc("a", "/A", "A", t0)}, nil)
		assert.Empty(t, d.Upserts)
		assert.Len(t, d.Deletes, 1)
	})
}

func TestDeduplicate(t *testing.T) {
	tests := []struct {
		name     string
		entries  []models.NodeLocatorEntry
		expected models.NodeLocatorEntry
	}{
		{
			name: "authoritative root wins",
			entries: []models.NodeLocatorEntry{
				loc(rootID, "/alias", "Site", t0),
				loc(rootID, "/", "Site", t0),
			},
			expected: loc(rootID, "/", "Site", t0),
		},
		{
			name: "real type beats placeholder",
			entries: []models.NodeLocatorEntry{
				loc("n", "/a", models.UnknownNodeType, t0),
				loc("n", "/much/longer/path", "Page", t0),
			},
			expected: loc("n", "/much/longer/path", "Page", t0),
		},
		{
			name: "non root path beats degenerate root",
			entries: []models.NodeLocatorEntry{
				loc("n", "/", "Page", t0),
				loc("n", "/Pages/0", "Page", t0),
			},
			expected: loc("n", "/Pages/0", "Page", t0),
		},
		{
			name: "shortest path",
			entries: []models.NodeLocatorEntry{
				loc("n", "/Areas/0/Pages/0", "Page", t0),
				loc("n", "/Pages/0", "Page", t0),
			},
			expected: loc("n", "/Pages/0", "Page", t0),
		},
		{
			name: "latest seen",
			entries: []models.NodeLocatorEntry{
				loc("n", "/Pages/0", "Page", t0),
				loc("n", "/Pages/1", "Page", t0.Add(time.Minute)),
			},
			expected: loc("n", "/Pages/1", "Page", t0.Add(time.Minute)),
		},
		{
			name: "full tie keeps first",
			entries: []models.NodeLocatorEntry{
				loc("n", "/Pages/0", "Page", t0),
				loc("n", "/Pages/1", "Page", t0),
			},
			expected: loc("n", "/Pages/0", "Page", t0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Deduplicate(rootID, tt.entries)
			require.Len(t, out, 1)
			assert.Equal(t, tt.expected, out[0])
		})
	}
}

func TestDeduplicate_Idempotent(t *testing.T) {
	entries := []models.NodeLocatorEntry{
		loc(rootID, "/", "Site", t0),
		loc("x", "/X/0", "X", t0),
		loc("y", "/Y", models.UnknownNodeType, t0),
		loc("x", "/X", "X", t0),
		loc("y", "/Z/Y", "Y", t0),
		loc(rootID, "/self", "Site", t0),
	}

	once := Deduplicate(rootID, entries)
	twice := Deduplicate(rootID, once)

	assert.Len(t, once, 3)
	assert.Equal(t, once, twice)
}

func TestFindConflicts(t *testing.T) {
	entries := []models.NodeLocatorEntry{
		loc("x", "/A", "A", t0),
		loc("x", "/B", "A", t0),
		loc("y", "/Y", "Y", t0),
		loc("z", "/Z", "Z", t0),
		loc("z", "/Z", "Zed", t0),
	}

	conflicts := FindConflicts(entries)
	require.Len(t, conflicts, 2)
	assert.Equal(t, "x", conflicts[0].NodeID)
	assert.Equal(t, []string{"/A", "/B"}, conflicts[0].Paths)
	assert.Equal(t, "z", conflicts[1].NodeID)
	assert.Equal(t, []string{"Z", "Zed"}, conflicts[1].Types)

	assert.Empty(t, FindConflicts(Deduplicate(rootID, entries)))
}
