package headers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/briar/pkg/jsontree"
	"github.com/Ramsey-B/briar/pkg/models"
)

const (
	orgID    = "11111111111111111111111111111111"
	targetID = "22222222222222222222222222222222"
	nodeID   = "33333333333333333333333333333333"
)

func TestDefaultScanner_Scan(t *testing.T) {
	body, err := jsontree.Parse([]byte(`{
		"id": "root",
		"ownerOrganization": {"Id": "` + orgID + `", "Key": "acme", "Text": "Acme"},
		"refs": [
			{"Id": "` + targetID + `", "Key": "", "EntityType": ""},
			{"Id": "", "Key": "blank"}
		],
		"Sections": [
			{"Id": "` + nodeID + `", "Title": "s", "Owner": {"Id": "plain-id", "Text": "Bob"}}
		]
	}`))
	require.NoError(t, err)

	refs := NewScanner().Scan(body)
	require.Len(t, refs, 3)

	byPath := map[string]*models.EntityHeaderNode{}
	for _, r := range refs {
		byPath[r.NormalizedPath] = r
	}

	owner := byPath["/ownerOrganization"]
	require.NotNil(t, owner)
	assert.Equal(t, orgID, owner.ID)
	assert.Equal(t, models.DocOwnerOrganization, owner.Role)

	ref := byPath["/refs/@id="+targetID]
	require.NotNil(t, ref)
	assert.True(t, ref.NeedsResolution())
	assert.Equal(t, "refs", ref.Role)

	nested := byPath["/Sections/@id="+nodeID+"/Owner"]
	require.NotNil(t, nested)
	assert.Equal(t, "plain-id", nested.ID)
	assert.Equal(t, "Sections", nested.Role)
}

func TestEntityHeaderNode_StampWritesThrough(t *testing.T) {
	body, err := jsontree.Parse([]byte(`{"ref": {"Id": "` + targetID + `", "Key": ""}}`))
	require.NoError(t, err)

	refs := NewScanner().Scan(body)
	require.Len(t, refs, 1)

	changed := refs[0].Stamp(models.EntityHeader{ID: targetID, Key: "widget-1", Text: "Widget One", EntityType: "Widget"})
	assert.True(t, changed)

	live := body["ref"].(map[string]any)
	assert.Equal(t, "widget-1", live["Key"])
	assert.Equal(t, "Widget One", live["Text"])
	assert.Equal(t, "Widget", live["EntityType"])
	assert.Equal(t, true, live["Resolved"])

	assert.False(t, refs[0].Stamp(models.EntityHeader{ID: targetID, Key: "widget-1", Text: "Widget One", EntityType: "Widget"}))

	assert.True(t, refs[0].MarkUnresolved())
	assert.Equal(t, false, live["Resolved"])
	assert.False(t, refs[0].MarkUnresolved())
}
