package edgeindex

import (
	"context"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/briar/pkg/edges"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/tablestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var (
	org    = "0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a"
	source = models.EntityPk{OrgID: org, EntityType: "Widget", EntityID: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}
	now    = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
)

func newWriter(t *testing.T) (*Writer, *tablestore.MemoryClient) {
	t.Helper()
	client := tablestore.NewMemoryClient()
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	w := NewWriter(client, Options{
		Tables:    Tables{Inbound: "InboundEdges", Outbound: "OutboundEdges"},
		BatchSize: 100,
		Clock:     fixedClock{t: now},
	}, logger)
	return w, client
}

func edgeTo(targetID, path, text string) models.ForeignKeyEdge {
	return edges.FromHeaderNodes(edges.Source{Pk: source, Revision: 3}, []*models.EntityHeaderNode{
		{ID: targetID, Key: "k", Text: text, EntityType: "Gadget", NormalizedPath: path},
	}, now)[0]
}

func TestWriter_UpsertOutboundWritesBothDirections(t *testing.T) {
	ctx := context.Background()
	w, client := newWriter(t)
	a := edgeTo("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", "/parts/0", "Bolt")

	n, err := w.UpsertOutbound(ctx, []models.ForeignKeyEdge{a})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, client.Len("OutboundEdges"))
	assert.Equal(t, 1, client.Len("InboundEdges"))

	out, err := w.ListOutbound(ctx, source, false)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, a.Target, out[0].Target)
	assert.Equal(t, a.Source, out[0].Source)
	assert.Equal(t, "/parts/0", out[0].RefPath)
	assert.EqualValues(t, 3, out[0].SourceRevision)
	assert.True(t, out[0].SeenAt.Equal(now))

	in, err := w.ListInbound(ctx, a.Target, false)
	require.NoError(t, err)
	require.Len(t, in, 1)
	assert.Equal(t, source, in[0].Source)
}

func TestWriter_TombstoneResurrectRoundTrip(t *testing.T) {
	ctx := context.Background()
	w, _ := newWriter(t)
	a := edgeTo("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", "/parts/0", "Bolt")

	var stored []models.ForeignKeyEdge
	for _, next := range [][]models.ForeignKeyEdge{{a}, {}, {a}} {
		_, _, err := w.Apply(ctx, edges.DiffOutboundEdges(stored, next), ReasonReferenceRemoved)
		require.NoError(t, err)
		stored = next

		if len(next) == 0 {
			rows, err := w.ListOutbound(ctx, source, true)
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.True(t, rows[0].IsDeleted)
			require.NotNil(t, rows[0].DeletedAt)
			assert.True(t, rows[0].DeletedAt.Equal(now))
			assert.Equal(t, ReasonReferenceRemoved, rows[0].TombstoneReason)

			live, err := w.ListOutbound(ctx, source, false)
			require.NoError(t, err)
			assert.Empty(t, live)
		}
	}

	for _, list := range []func() ([]models.EdgeRecord, error){
		func() ([]models.EdgeRecord, error) { return w.ListOutbound(ctx, source, true) },
		func() ([]models.EdgeRecord, error) { return w.ListInbound(ctx, a.Target, true) },
	} {
		rows, err := list()
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.False(t, rows[0].IsDeleted)
		assert.Nil(t, rows[0].DeletedAt)
		assert.Empty(t, rows[0].TombstoneReason)
	}
}

func TestWriter_ApplyRefreshesMetadata(t *testing.T) {
	ctx := context.Background()
	w, _ := newWriter(t)
	old := edgeTo("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", "/parts/0", "Bolt")
	renamed := edgeTo("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", "/parts/0", "Hex Bolt")
	gone := edgeTo("cccccccccccccccccccccccccccccccc", "/parts/1", "Nut")

	_, err := w.UpsertOutbound(ctx, []models.ForeignKeyEdge{old, gone})
	require.NoError(t, err)

	up, tomb, err := w.Apply(ctx, edges.DiffOutboundEdges([]models.ForeignKeyEdge{old, gone}, []models.ForeignKeyEdge{renamed}), ReasonReferenceRemoved)
	require.NoError(t, err)
	assert.Equal(t, 1, up)
	assert.Equal(t, 1, tomb)

	live, err := w.ListOutbound(ctx, source, false)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, "Hex Bolt", live[0].TargetText)
}

func TestWriter_TombstoneAll(t *testing.T) {
	ctx := context.Background()
	w, _ := newWriter(t)
	_, err := w.UpsertOutbound(ctx, []models.ForeignKeyEdge{
		edgeTo("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", "/parts/0", "Bolt"),
		edgeTo("cccccccccccccccccccccccccccccccc", "/parts/1", "Nut"),
	})
	require.NoError(t, err)

	n, err := w.TombstoneAll(ctx, source, ReasonSourceDeleted)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	live, err := w.ListOutbound(ctx, source, false)
	require.NoError(t, err)
	assert.Empty(t, live)

	n, err = w.TombstoneAll(ctx, source, ReasonSourceDeleted)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReader_MissingTable(t *testing.T) {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	r := NewReader(tablestore.NewMemoryClient(), Tables{Inbound: "InboundEdges", Outbound: "OutboundEdges"}, logger)
	rows, err := r.ListOutbound(context.Background(), source, true)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestKeys(t *testing.T) {
	e := edgeTo("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", "/parts/0", "Bolt")
	pk, rk := OutboundKeys(e)
	assert.Equal(t, org+"|Widget|aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", pk)
	assert.Equal(t, org+"|bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb|"+e.RefPathHash, rk)

	pk, rk = InboundKeys(e)
	assert.Equal(t, org+"|bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", pk)
	assert.Equal(t, org+"|Widget|aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa|"+e.RefPathHash, rk)
}

func TestWriter_TargetTypeChangeKeepsOneRow(t *testing.T) {
	ctx := context.Background()
	w, client := newWriter(t)
	unknown := edges.FromHeaderNodes(edges.Source{Pk: source, Revision: 1}, []*models.EntityHeaderNode{
		{ID: "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", NormalizedPath: "/parts/0"},
	}, now)
	resolved := []models.ForeignKeyEdge{edgeTo("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", "/parts/0", "Bolt")}
	require.Equal(t, models.UnknownEntityType, unknown[0].Target.EntityType)

	_, err := w.UpsertOutbound(ctx, unknown)
	require.NoError(t, err)
	_, _, err = w.Apply(ctx, edges.DiffOutboundEdges(unknown, resolved), ReasonReferenceRemoved)
	require.NoError(t, err)

	assert.Equal(t, 1, client.Len("OutboundEdges"))
	assert.Equal(t, 1, client.Len("InboundEdges"))
	out, err := w.ListOutbound(ctx, source, true)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Gadget", out[0].Target.EntityType)
	assert.False(t, out[0].IsDeleted)

	in, err := w.ListInbound(ctx, unknown[0].Target, true)
	require.NoError(t, err)
	require.Len(t, in, 1)
	assert.Equal(t, "Gadget", in[0].Target.EntityType)
}
