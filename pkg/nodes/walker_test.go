package nodes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/briar/pkg/jsontree"
	"github.com/Ramsey-B/briar/pkg/models"
)

const (
	rootID  = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	areaID  = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	pageID  = "cccccccccccccccccccccccccccccccc"
	refID   = "dddddddddddddddddddddddddddddddd"
	routeID = "eeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testWalker() *Walker {
	return NewWalker(DefaultExclusions(), func() time.Time { return fixedNow })
}

func testRoot() Root {
	return Root{OrgID: "org-1", Type: "Site", ID: rootID, Revision: 4, LastUpdatedDate: "2026-02-28T00:00:00Z"}
}

func parse(t *testing.T, raw string) map[string]any {
	t.Helper()
	doc, err := jsontree.Parse([]byte(raw))
	require.NoError(t, err)
	return doc
}

func byPath(entries []models.NodeLocatorEntry) map[string]models.NodeLocatorEntry {
	out := make(map[string]models.NodeLocatorEntry, len(entries))
	for _, e := range entries {
		out[e.NodePath] = e
	}
	return out
}

func TestWalker_RootAlwaysPresent(t *testing.T) {
	docs := []string{
		`{}`,
		`{"id": "` + rootID + `"}`,
		`{"id": "` + rootID + `", "nested": {"Id": "` + rootID + `", "Name": "self alias"}}`,
		`{"values": [1, 2, 3], "flag": true, "nothing": null}`,
	}

	for _, raw := range docs {
		entries := testWalker().Walk(parse(t, raw), testRoot())

		roots := 0
		for _, e := range entries {
			if e.NodePath == RootPath {
				roots++
				assert.Equal(t, rootID, e.NodeID)
				assert.Equal(t, "Site", e.NodeType)
				assert.Equal(t, "org-1", e.RootOrgID)
				assert.Equal(t, int64(4), e.RootRevision)
				assert.Equal(t, fixedNow, e.SeenAt)
			}
		}
		assert.Equal(t, 1, roots, raw)
	}
}

func TestWalker_DiscoversNodes(t *testing.T) {
	doc := parse(t, `{
		"id": "`+rootID+`",
		"entityType": "Site",
		"Areas": [
			{"Id": "`+areaID+`", "Key": "guides", "Pages": [
				{"Id": "`+pageID+`", "Key": "new", "CardTitle": "hello"}
			]},
			{"Key": "no-id", "Pages": [{"Id": "`+refID+`", "EntityType": "Article", "Body": "x"}]}
		]
	}`)

	entries := testWalker().Walk(doc, testRoot())
	paths := byPath(entries)
	require.Len(t, entries, 4)

	area := paths["/Areas/@id="+areaID]
	assert.Equal(t, areaID, area.NodeID)
	assert.Equal(t, "Area", area.NodeType)
	assert.Equal(t, rootID, area.RootID)

	page := paths["/Areas/@id="+areaID+"/Pages/@id="+pageID]
	assert.Equal(t, pageID, page.NodeID)
	assert.Equal(t, "Page", page.NodeType)

	explicit := paths["/Areas/1/Pages/@id="+refID]
	assert.Equal(t, refID, explicit.NodeID)
	assert.Equal(t, "Article", explicit.NodeType)
}

func TestWalker_SkipsHeaders(t *testing.T) {
	doc := parse(t, `{
		"owner": {"Id": "`+areaID+`", "Key": "acme", "Text": "Acme"},
		"refs": [
			{"Id": "`+pageID+`", "Key": "p", "Text": "P", "EntityType": "Page"},
			{"Id": "`+refID+`", "Key": "r", "Text": "R", "Notes": "real node"}
		]
	}`)

	entries := testWalker().Walk(doc, testRoot())
	paths := byPath(entries)

	require.Len(t, entries, 2)
	assert.Contains(t, paths, "/refs/@id="+refID)
	assert.Equal(t, "ref", paths["/refs/@id="+refID].NodeType)
}

func TestWalker_ArrayPathsAreStableUnderReorder(t *testing.T) {
	first := parse(t, `{"Items": [{"Id": "`+areaID+`", "A": 1}, {"Id": "`+pageID+`", "A": 2}]}`)
	second := parse(t, `{"Items": [{"Id": "`+pageID+`", "A": 2}, {"Id": "`+areaID+`", "A": 1}]}`)

	a := byPath(testWalker().Walk(first, testRoot()))
	b := byPath(testWalker().Walk(second, testRoot()))

	assert.Equal(t, a["/Items/@id="+areaID].NodeID, b["/Items/@id="+areaID].NodeID)
	assert.Equal(t, a["/Items/@id="+pageID].NodeID, b["/Items/@id="+pageID].NodeID)
}

func TestWalker_Exclusions(t *testing.T) {
	t.Run("self referential region", func(t *testing.T) {
		doc := parse(t, `{
			"RoutingTable": {"Routes": [{"Id": "`+routeID+`", "PipelineModules": {"Module": {"Id": "`+areaID+`", "Name": "m"}}}]}
		}`)
		paths := byPath(testWalker().Walk(doc, testRoot()))

		assert.Contains(t, paths, "/RoutingTable/Routes/@id="+routeID)
		assert.NotContains(t, paths, "/RoutingTable/Routes/@id="+routeID+"/PipelineModules/Module")
	})

	t.Run("root type specific", func(t *testing.T) {
		doc := parse(t, `{"Revisions": [{"Id": "`+areaID+`", "Name": "r1"}]}`)

		pipeline := testRoot()
		pipeline.Type = "Pipeline"
		assert.Len(t, testWalker().Walk(doc, pipeline), 1)
		assert.Len(t, testWalker().Walk(doc, testRoot()), 2)
	})
}

func TestTypeFromPath(t *testing.T) {
	assert.Equal(t, "Page", TypeFromPath("/Areas/@id="+areaID+"/Pages/@id="+pageID))
	assert.Equal(t, "Widget", TypeFromPath("/Widgets/3"))
	assert.Equal(t, "Settings", TypeFromPath("/Settings"))
	assert.Equal(t, models.UnknownNodeType, TypeFromPath("/0/1"))
}
